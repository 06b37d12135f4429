package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/config"
	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/groundops/staff-sizer/backend/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// 测试中不连接数据库、redis 和消息队列，只覆盖不依赖它们的路径
func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	defaults := scheduler.DefaultParameters()
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiration = 1
	cfg.Server.MaxBodyBytes = 1 << 20
	cfg.Sizing = config.SizingConfig{
		MaxShiftHours:        defaults.MaxShiftHours,
		MinSeparationMinutes: defaults.MinSeparationMinutes,
		ClusterGapMinutes:    defaults.ClusterGapMinutes,
		MaxWeeklyHours:       defaults.MaxWeeklyHours,
		MinRestHours:         defaults.MinRestHours,
		MaxConsecutiveDays:   defaults.MaxConsecutiveDays,
		ClusterRoles:         defaults.ClusterRoles,
		Workers:              2,
		RunTimeout:           30,
	}

	h, err := NewHandler(cfg, nil, nil, nil)
	require.NoError(t, err)
	h.RegisterRoutes()

	return h
}

func (h *Handler) testToken(t *testing.T, role domain.UserRole) *http.Cookie {
	t.Helper()

	ss, err := h.issueToken(&domain.User{ID: 1, Role: role}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	return &http.Cookie{Name: authCookieName, Value: ss}
}

func doRequest(t *testing.T, h *Handler, method, path, body string, cookie *http.Cookie) testResponse {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler(t)

	resp := doRequest(t, h, http.MethodGet, "/sizing-parameters", "", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "用户未登录", resp.Message)

	resp = doRequest(t, h, http.MethodGet, "/sizing-parameters", "", &http.Cookie{Name: authCookieName, Value: "garbage"})
	assert.False(t, resp.Success)
	assert.Equal(t, "无效的令牌", resp.Message)

	// 用其他密钥签发的令牌同样无效
	other := newTestHandler(t)
	other.config.JWT.Secret = "another-secret"
	resp = doRequest(t, h, http.MethodGet, "/sizing-parameters", "", other.testToken(t, domain.UserRoleAdmin))
	assert.False(t, resp.Success)
	assert.Equal(t, "无效的令牌", resp.Message)
}

func TestAdminOnlyRoutes(t *testing.T) {
	h := newTestHandler(t)

	body := `{"fullName": "王伟", "email": "wangwei@example.com", "role": "排班员"}`
	resp := doRequest(t, h, http.MethodPost, "/users", body, h.testToken(t, domain.UserRolePlanner))
	assert.False(t, resp.Success)
	assert.Equal(t, "权限不足", resp.Message)
}

func TestLoginValidation(t *testing.T) {
	h := newTestHandler(t)

	resp := doRequest(t, h, http.MethodPost, "/auth/login", `{"username": "admin"}`, nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Password")

	resp = doRequest(t, h, http.MethodPost, "/auth/login", `{"username": "admin", "password": "x", "remember": true}`, nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "remember")
}

func TestGetDefaultParameters(t *testing.T) {
	h := newTestHandler(t)

	resp := doRequest(t, h, http.MethodGet, "/sizing-parameters", "", h.testToken(t, domain.UserRolePlanner))
	require.True(t, resp.Success, resp.Message)

	var params scheduler.Parameters
	require.NoError(t, json.Unmarshal(resp.Data, &params))
	assert.Equal(t, 9.0, params.MaxShiftHours)
	assert.Equal(t, 2, params.Workers)
	assert.Equal(t, scheduler.DefaultParameters().ClusterRoles, params.ClusterRoles)
}

const testRules = `[
	{"role": "CHECKIN", "operationType": "TURNAROUND", "preMinutes": 120, "postMinutes": 40},
	{"role": "OPE_A", "operationType": "TURNAROUND", "preMinutes": 60, "postMinutes": 10}
]`

const testFlights = `[
	{"id": "VY1000", "airport": "BCN", "operationType": "TURNAROUND", "departure": "2025-04-07T06:00:00Z"},
	{"id": "VY1002", "airport": "BCN", "operationType": "TURNAROUND", "departure": "2025-04-07T06:30:00Z"},
	{"id": "VY1004", "airport": "BCN", "operationType": "TURNAROUND", "departure": "2025-04-07T14:00:00Z"}
]`

func sizingBody(parameters, roles, rules, flights string) string {
	fields := make([]string, 0, 4)
	if parameters != "" {
		fields = append(fields, `"parameters": `+parameters)
	}
	if roles != "" {
		fields = append(fields, `"roles": `+roles)
	}
	if rules != "" {
		fields = append(fields, `"rules": `+rules)
	}
	if flights != "" {
		fields = append(fields, `"flights": `+flights)
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

func TestSizingRunValidation(t *testing.T) {
	h := newTestHandler(t)
	cookie := h.testToken(t, domain.UserRolePlanner)

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing flights",
			body: sizingBody("", "", testRules, ""),
			want: "Flights",
		},
		{
			name: "unknown rule role",
			body: sizingBody("", "", `[{"role": "PILOT", "operationType": "TURNAROUND", "preMinutes": 10, "postMinutes": 10}]`, testFlights),
			want: "未知的岗位",
		},
		{
			name: "unknown requested role",
			body: sizingBody("", `["CHECKIN", "PILOT"]`, testRules, testFlights),
			want: "未知的岗位",
		},
		{
			name: "duplicated requested role",
			body: sizingBody("", `["CHECKIN", "CHECKIN"]`, testRules, testFlights),
			want: "重复",
		},
		{
			name: "invalid parameter value",
			body: sizingBody(`{"maxShiftHours": -1}`, "", testRules, testFlights),
			want: "MaxShiftHours",
		},
		{
			name: "weekly cap below shift length",
			body: sizingBody(`{"maxShiftHours": 10, "maxWeeklyHours": 8}`, "", testRules, testFlights),
			want: "MaxWeeklyHours",
		},
		{
			name: "unknown parameter",
			body: sizingBody(`{"maxShiftHour": 8}`, "", testRules, testFlights),
			want: "排班参数格式错误",
		},
		{
			name: "duplicated flight",
			body: sizingBody("", "", testRules, `[
				{"id": "VY1000", "airport": "BCN", "operationType": "TURNAROUND", "departure": "2025-04-07T06:00:00Z"},
				{"id": "VY1000", "airport": "BCN", "operationType": "TURNAROUND", "departure": "2025-04-07T09:00:00Z"}
			]`),
			want: "VY1000",
		},
		{
			name: "duplicated rule",
			body: sizingBody("", "", `[
				{"role": "CHECKIN", "operationType": "TURNAROUND", "preMinutes": 120, "postMinutes": 40},
				{"role": "CHECKIN", "operationType": "turnaround", "preMinutes": 90, "postMinutes": 40}
			]`, testFlights),
			want: "重复",
		},
		{
			name: "negative minutes",
			body: sizingBody("", "", `[{"role": "CHECKIN", "operationType": "TURNAROUND", "preMinutes": -5, "postMinutes": 40}]`, testFlights),
			want: "PreMinutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, h, http.MethodPost, "/sizing-runs/preview", tt.body, cookie)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Message, tt.want)
		})
	}
}

func TestPreviewSizingRun(t *testing.T) {
	h := newTestHandler(t)
	cookie := h.testToken(t, domain.UserRolePlanner)

	resp := doRequest(t, h, http.MethodPost, "/sizing-runs/preview", sizingBody(`{"workers": 1}`, "", testRules, testFlights), cookie)
	require.True(t, resp.Success, resp.Message)

	var preview struct {
		Run          domain.SizingRun `json:"run"`
		HoursSummary []struct {
			Label string `json:"label"`
		} `json:"hoursSummary"`
		Partitions []partitionSummary `json:"partitions"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &preview))

	assert.Equal(t, 3, preview.Run.FlightCount)
	assert.Equal(t, []domain.Role{domain.RoleCheckIn, domain.RoleOpeA}, preview.Run.Roles)
	assert.NotEmpty(t, preview.Run.Assignments)
	assert.Positive(t, preview.Run.WorkerCount)

	var params scheduler.Parameters
	require.NoError(t, json.Unmarshal(preview.Run.Parameters, &params))
	assert.Equal(t, 1, params.Workers)
	assert.Equal(t, 9.0, params.MaxShiftHours)

	require.Len(t, preview.HoursSummary, 1)
	assert.Equal(t, "7–13 April 2025", preview.HoursSummary[0].Label)

	require.Len(t, preview.Partitions, 2)
	assert.Equal(t, domain.RoleCheckIn, preview.Partitions[0].Role)
	assert.Equal(t, "2025-04-07", preview.Partitions[0].Day)
	assert.Equal(t, domain.RoleOpeA, preview.Partitions[1].Role)

	// 每个航班在每个岗位上要么被分配，要么被列为未覆盖
	covered := map[domain.Role]map[string]bool{
		domain.RoleCheckIn: {},
		domain.RoleOpeA:    {},
	}
	for _, a := range preview.Run.Assignments {
		for _, id := range a.Shift.FlightIDs {
			assert.False(t, covered[a.Shift.Role][id], "航班 %s 在岗位 %s 上被重复分配", id, a.Shift.Role)
			covered[a.Shift.Role][id] = true
		}
	}
	for _, u := range preview.Run.Uncovered {
		for _, id := range u.FlightIDs {
			covered[u.Role][id] = true
		}
	}
	for _, role := range []domain.Role{domain.RoleCheckIn, domain.RoleOpeA} {
		assert.Len(t, covered[role], 3, role)
	}

	// 默认参数不能被请求中的覆盖修改
	assert.Equal(t, 2, h.parameters.Workers)
}

func TestPreviewSizingRunDoesNotShareClusterRoles(t *testing.T) {
	h := newTestHandler(t)
	cookie := h.testToken(t, domain.UserRolePlanner)
	before := append([]domain.Role(nil), h.parameters.ClusterRoles...)

	resp := doRequest(t, h, http.MethodPost, "/sizing-runs/preview", sizingBody(`{"clusterRoles": ["OPE_A"]}`, "", testRules, testFlights), cookie)
	require.True(t, resp.Success, resp.Message)

	assert.Equal(t, before, h.parameters.ClusterRoles)
}

func TestSizingError(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "canceled", err: context.Canceled, want: "测算已取消"},
		{name: "wrapped canceled", err: fmt.Errorf("分区 CHECKIN/BCN/2025-04-07: %w", context.Canceled), want: "测算已取消"},
		{name: "deadline", err: context.DeadlineExceeded, want: "测算超时，请减少航班数量后重试"},
		{name: "bad input", err: &inputError{errors.New("航班计划表为空")}, want: "航班计划表为空"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sizing-runs", nil)
			rec := httptest.NewRecorder()
			h.sizingError(rec, req, tt.err)

			require.Equal(t, http.StatusOK, rec.Code)
			var resp testResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want, resp.Message)
		})
	}
}

func withUser(r *http.Request, user *domain.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), MyInfoCtx, user))
}

func TestGetMyInfo(t *testing.T) {
	h := newTestHandler(t)
	user := &domain.User{ID: 7, Username: "wangw12", FullName: "王伟", PasswordHash: "secret-hash"}

	rec := httptest.NewRecorder()
	h.GetMyInfo(rec, withUser(httptest.NewRequest(http.MethodGet, "/my-info", nil), user))

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), "wangw12")
	assert.NotContains(t, string(resp.Data), "secret-hash")
}

func TestUpdateMyPasswordRejected(t *testing.T) {
	h := newTestHandler(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("OldPassword1"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "wrong old password", body: `{"oldPassword": "Wrong1234", "newPassword": "NewPassword1"}`, want: "旧密码错误"},
		{name: "same password", body: `{"oldPassword": "OldPassword1", "newPassword": "OldPassword1"}`},
		{name: "too short", body: `{"oldPassword": "OldPassword1", "newPassword": "short"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &domain.User{ID: 7, Username: "wangw12", PasswordHash: string(hash)}
			req := httptest.NewRequest(http.MethodPatch, "/my-info/password", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			h.UpdateMyPassword(rec, withUser(req, user))

			var resp testResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			if tt.want != "" {
				assert.Equal(t, tt.want, resp.Message)
			}
			// 被拒绝时不改动当前用户
			assert.Equal(t, string(hash), user.PasswordHash)
		})
	}
}

func TestSetPassword(t *testing.T) {
	user := &domain.User{PasswordHash: "old"}
	require.NoError(t, setPassword(user, "NewPassword1"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("NewPassword1")))
}
