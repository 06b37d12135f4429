package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Role 是地勤岗位，与系统用户的角色（UserRole）无关
type Role string

const (
	RoleSpvPax  Role = "SPV PAX"
	RoleCheckIn Role = "CHECKIN"
	RoleAgPax   Role = "AG PAX"
	RoleCoordi  Role = "COORDI"
	RoleSpvRamp Role = "SPV RAMP"
	RoleDriver  Role = "DRIV"
	RoleOpeA    Role = "OPE_A"
	RoleOpeB    Role = "OPE_B"
)

var ErrUnknownRole = errors.New("未知的岗位")

// RoleOrder 是报表中岗位的展示顺序
var RoleOrder = []Role{
	RoleSpvPax,
	RoleCheckIn,
	RoleAgPax,
	RoleCoordi,
	RoleSpvRamp,
	RoleDriver,
	RoleOpeA,
	RoleOpeB,
}

// 人员编号的岗位前缀，人员编号形如 BCN-SP1
var rolePrefixes = map[Role]string{
	RoleSpvPax:  "SP",
	RoleCheckIn: "CH",
	RoleAgPax:   "AP",
	RoleCoordi:  "CO",
	RoleSpvRamp: "SR",
	RoleDriver:  "DR",
	RoleOpeA:    "OA",
	RoleOpeB:    "OB",
}

func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rolePrefixes[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return role, nil
}

func (r Role) Valid() bool {
	_, ok := rolePrefixes[r]
	return ok
}

// Prefix 返回人员编号中的岗位前缀，未知岗位返回空字符串
func (r Role) Prefix() string {
	return rolePrefixes[r]
}

// Rank 返回岗位在 RoleOrder 中的位置，未知岗位排在最后
func (r Role) Rank() int {
	for i, role := range RoleOrder {
		if role == r {
			return i
		}
	}
	return len(RoleOrder)
}

// RoleByPrefix 根据人员编号前缀反查岗位
func RoleByPrefix(prefix string) (Role, bool) {
	for role, p := range rolePrefixes {
		if p == prefix {
			return role, true
		}
	}
	return "", false
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}
