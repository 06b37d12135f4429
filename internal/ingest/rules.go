package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/groundops/staff-sizer/backend/internal/domain"
)

// RuleSet 保存每个岗位在各种作业类型下的提前/延后在岗分钟数
type RuleSet struct {
	rules map[domain.Role]map[string]domain.RoleRule
	order []domain.Role // 岗位第一次出现的顺序，也是排班顺序
}

func normalizeOperationType(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NewRuleSet 根据规则列表构造 RuleSet，同一岗位和作业类型出现多次时以最后一条为准
func NewRuleSet(rules []domain.RoleRule) (*RuleSet, error) {
	rs := &RuleSet{
		rules: make(map[domain.Role]map[string]domain.RoleRule),
		order: make([]domain.Role, 0),
	}

	for i, rule := range rules {
		role, err := domain.ParseRole(string(rule.Role))
		if err != nil {
			return nil, fmt.Errorf("第 %d 条规则: %w", i+1, err)
		}
		opType := normalizeOperationType(rule.OperationType)
		if opType == "" {
			return nil, fmt.Errorf("第 %d 条规则没有作业类型", i+1)
		}
		if rule.PreMinutes < 0 || rule.PostMinutes < 0 {
			return nil, fmt.Errorf("第 %d 条规则的提前或延后分钟数不能为负数", i+1)
		}

		if _, ok := rs.rules[role]; !ok {
			rs.rules[role] = make(map[string]domain.RoleRule)
			rs.order = append(rs.order, role)
		}
		rs.rules[role][opType] = domain.RoleRule{
			Role:          role,
			OperationType: opType,
			PreMinutes:    rule.PreMinutes,
			PostMinutes:   rule.PostMinutes,
		}
	}

	return rs, nil
}

// Roles 返回规则中出现过的岗位，按第一次出现的顺序
func (rs *RuleSet) Roles() []domain.Role {
	return append([]domain.Role(nil), rs.order...)
}

func (rs *RuleSet) Lookup(role domain.Role, operationType string) (domain.RoleRule, bool) {
	rule, ok := rs.rules[role][normalizeOperationType(operationType)]
	return rule, ok
}

// ReadRulesCSV 读取岗位规则表。
// 前四列依次是岗位、作业类型、提前分钟数、延后分钟数，第一行是表头；缺少任意一列的行会被跳过。
func ReadRulesCSV(r io.Reader) (*RuleSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("岗位规则表为空")
		}
		return nil, fmt.Errorf("读取岗位规则表表头失败: %w", err)
	}

	rules := make([]domain.RoleRule, 0)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("读取岗位规则表第 %d 行失败: %w", line, err)
		}

		if len(row) < 4 || hasEmpty(row[:4]) {
			continue
		}

		pre, err := parseMinutes(row[2])
		if err != nil {
			return nil, fmt.Errorf("岗位规则表第 %d 行的提前分钟数 %q 格式错误", line, row[2])
		}
		post, err := parseMinutes(row[3])
		if err != nil {
			return nil, fmt.Errorf("岗位规则表第 %d 行的延后分钟数 %q 格式错误", line, row[3])
		}

		rules = append(rules, domain.RoleRule{
			Role:          domain.Role(row[0]),
			OperationType: row[1],
			PreMinutes:    pre,
			PostMinutes:   post,
		})
	}

	return NewRuleSet(rules)
}

// 表格软件导出的整数经常带有 ".0"
func parseMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q 不是整数", s)
	}
	return int(f), nil
}

func hasEmpty(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return true
		}
	}
	return false
}
