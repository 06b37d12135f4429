package utils

import (
	"fmt"
	"strings"

	"github.com/groundops/staff-sizer/backend/internal/domain"
)

// ValidateFlightRecords 检查航班计划中是否有重复的航班号
func ValidateFlightRecords(records []domain.FlightRecord) error {
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		if j, ok := seen[rec.ID]; ok {
			return fmt.Errorf("第 %d 个航班和第 %d 个航班的航班号 %s 重复", i+1, j+1, rec.ID)
		}
		seen[rec.ID] = i
	}
	return nil
}

// ValidateRoleRules 检查同一个岗位在同一种作业类型下是否有多条规则。
// 从 CSV 读入时后出现的规则覆盖前面的，但通过接口提交时视为错误。
func ValidateRoleRules(rules []domain.RoleRule) error {
	type ruleKey struct {
		role   domain.Role
		opType string
	}

	seen := make(map[ruleKey]int, len(rules))
	for i, rule := range rules {
		key := ruleKey{
			role:   rule.Role,
			opType: strings.ToUpper(strings.TrimSpace(rule.OperationType)),
		}
		if j, ok := seen[key]; ok {
			return fmt.Errorf("第 %d 条规则和第 %d 条规则重复: %s %s", i+1, j+1, key.role, key.opType)
		}
		seen[key] = i
	}
	return nil
}
