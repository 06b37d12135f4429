package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/groundops/staff-sizer/backend/internal/ingest"
	"github.com/groundops/staff-sizer/backend/internal/report"
	"github.com/groundops/staff-sizer/backend/internal/scheduler"
	"github.com/groundops/staff-sizer/backend/internal/utils"
)

type sizingRunRequest struct {
	// 只需要给出和默认参数不同的字段
	Parameters json.RawMessage       `json:"parameters"`
	Roles      []domain.Role         `json:"roles"` // 为空时使用规则中出现的岗位
	Rules      []domain.RoleRule     `json:"rules" validate:"required,min=1,dive"`
	Flights    []domain.FlightRecord `json:"flights" validate:"required,min=1,dive"`
}

// inputError 表示请求的数据本身有问题，返回给用户而不是记录为服务器错误
type inputError struct {
	err error
}

func (e *inputError) Error() string {
	return e.err.Error()
}

func (e *inputError) Unwrap() error {
	return e.err
}

// sizingParameters 在默认参数的基础上覆盖请求中给出的字段
func (h *Handler) sizingParameters(raw json.RawMessage) (*scheduler.Parameters, error) {
	params := *h.parameters
	params.ClusterRoles = slices.Clone(h.parameters.ClusterRoles)

	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&params); err != nil {
			return nil, fmt.Errorf("排班参数格式错误: %w", err)
		}
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &params, nil
}

type sizingOutcome struct {
	parameters *scheduler.Parameters
	roles      []domain.Role
	flights    int
	result     *scheduler.Result
}

// runSizing 校验请求并执行一次测算，不涉及数据库
func (h *Handler) runSizing(ctx context.Context, req *sizingRunRequest) (*sizingOutcome, error) {
	params, err := h.sizingParameters(req.Parameters)
	if err != nil {
		return nil, &inputError{err}
	}

	if err := utils.ValidateFlightRecords(req.Flights); err != nil {
		return nil, &inputError{err}
	}
	if err := utils.ValidateRoleRules(req.Rules); err != nil {
		return nil, &inputError{err}
	}

	rules, err := ingest.NewRuleSet(req.Rules)
	if err != nil {
		return nil, &inputError{err}
	}

	records := make([]*domain.FlightRecord, len(req.Flights))
	for i := range req.Flights {
		records[i] = &req.Flights[i]
	}
	flights := ingest.BuildFlights(records, rules)

	roles := req.Roles
	if len(roles) == 0 {
		roles = rules.Roles()
	}

	s, err := scheduler.New(params, roles, flights)
	if err != nil {
		return nil, &inputError{err}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(h.config.Sizing.RunTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	result, err := s.Schedule(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("排班测算完成",
		"flights", len(flights),
		"partitions", len(result.Partitions),
		"candidates", result.CandidateCount(),
		"workers", result.WorkerCount(),
		"duration", time.Since(start),
	)

	return &sizingOutcome{
		parameters: params,
		roles:      roles,
		flights:    len(flights),
		result:     result,
	}, nil
}

// sizingError 把测算过程中的错误转换成响应
func (h *Handler) sizingError(w http.ResponseWriter, r *http.Request, err error) {
	var inErr *inputError
	switch {
	case errors.As(err, &inErr):
		h.badRequest(w, r, inErr.err)
	case errors.Is(err, context.DeadlineExceeded):
		h.errorResponse(w, r, "测算超时，请减少航班数量后重试")
	case errors.Is(err, context.Canceled):
		// 客户端多半已经断开，响应仍然照常写出
		slog.Info("测算被取消", "path", r.URL.Path)
		h.errorResponse(w, r, "测算已取消")
	default:
		h.internalServerError(w, r, err)
	}
}

func (h *Handler) readSizingRunRequest(w http.ResponseWriter, r *http.Request) (*sizingRunRequest, bool) {
	var req sizingRunRequest

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}

	return &req, true
}

func newSizingRun(createdBy int64, outcome *sizingOutcome) (*domain.SizingRun, error) {
	parameters, err := json.Marshal(outcome.parameters)
	if err != nil {
		return nil, err
	}

	return &domain.SizingRun{
		ID:             uuid.New(),
		CreatedBy:      createdBy,
		Parameters:     parameters,
		Roles:          outcome.roles,
		FlightCount:    outcome.flights,
		CandidateCount: outcome.result.CandidateCount(),
		WorkerCount:    outcome.result.WorkerCount(),
		Assignments:    outcome.result.Assignments,
		Uncovered:      outcome.result.Uncovered(),
		CreatedAt:      time.Now(),
	}, nil
}

func (h *Handler) CreateSizingRun(w http.ResponseWriter, r *http.Request) {
	sub := r.Context().Value(SubCtxKey).(int64)

	req, ok := h.readSizingRunRequest(w, r)
	if !ok {
		return
	}

	outcome, err := h.runSizing(r.Context(), req)
	if err != nil {
		h.sizingError(w, r, err)
		return
	}

	run, err := newSizingRun(sub, outcome)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.repository.InsertSizingRun(run); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()
	h.cacheSizingRun(ctx, run)

	// 测算结果已经保存，通知邮件发送失败只记录日志
	h.notifySizingCompleted(sub, run)

	h.successResponse(w, r, "排班测算成功", run)
}

func (h *Handler) notifySizingCompleted(userID int64, run *domain.SizingRun) {
	user, err := h.repository.GetUserByID(userID)
	if err != nil {
		slog.Warn("无法获取测算发起人", "id", run.ID, "user", userID, "error", err)
		return
	}

	if err := h.publishMail(domain.MailMessage{
		Type: domain.MailTypeSizingCompleted,
		To:   user.Email,
		Data: domain.SizingCompletedMailData{
			FullName:       user.FullName,
			RunID:          run.ID.String(),
			FlightCount:    run.FlightCount,
			CandidateCount: run.CandidateCount,
			AssignmentNum:  len(run.Assignments),
			WorkerCount:    run.WorkerCount,
			Uncovered:      run.Uncovered,
		},
	}); err != nil {
		slog.Warn("测算完成通知发送失败", "id", run.ID, "error", err)
	}
}

type partitionSummary struct {
	Role        domain.Role `json:"role"`
	Airport     string      `json:"airport"`
	Day         string      `json:"day"`
	Blocks      int         `json:"blocks"`
	Candidates  int         `json:"candidates"`
	Assignments int         `json:"assignments"`
	Uncovered   []string    `json:"uncovered"`
}

type sizingPreview struct {
	Run          *domain.SizingRun  `json:"run"`
	HoursSummary []report.WeekHours `json:"hoursSummary"`
	Partitions   []partitionSummary `json:"partitions"`
}

// PreviewSizingRun 执行测算但不保存结果
func (h *Handler) PreviewSizingRun(w http.ResponseWriter, r *http.Request) {
	sub := r.Context().Value(SubCtxKey).(int64)

	req, ok := h.readSizingRunRequest(w, r)
	if !ok {
		return
	}

	outcome, err := h.runSizing(r.Context(), req)
	if err != nil {
		h.sizingError(w, r, err)
		return
	}

	run, err := newSizingRun(sub, outcome)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	summary, err := report.HoursSummary(outcome.result.WeeklyHours)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	partitions := make([]partitionSummary, 0, len(outcome.result.Partitions))
	for _, p := range outcome.result.Partitions {
		partitions = append(partitions, partitionSummary{
			Role:        p.Role,
			Airport:     p.Airport,
			Day:         p.Day.Format(time.DateOnly),
			Blocks:      p.BlockCount,
			Candidates:  len(p.Candidates),
			Assignments: len(p.Assignments),
			Uncovered:   p.Uncovered,
		})
	}

	h.successResponse(w, r, "排班测算预览成功", sizingPreview{
		Run:          run,
		HoursSummary: summary,
		Partitions:   partitions,
	})
}

func (h *Handler) GetAllSizingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetAllSizingRuns()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取测算列表成功", runs)
}

func (h *Handler) GetSizingRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(SizingRunCtx).(*domain.SizingRun)
	h.successResponse(w, r, "获取测算结果成功", run)
}

func (h *Handler) GetSizingRunHoursSummary(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(SizingRunCtx).(*domain.SizingRun)

	summary, err := report.HoursSummary(scheduler.WeeklyHoursOf(run.Assignments))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取工时汇总成功", summary)
}

func (h *Handler) DeleteSizingRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(SizingRunCtx).(*domain.SizingRun)

	if err := h.repository.DeleteSizingRun(run.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()
	if err := h.redisClient.Del(ctx, sizingRunCacheKey(run.ID)).Err(); err != nil {
		slog.Warn("删除缓存失败", "id", run.ID, "error", err)
	}

	h.successResponse(w, r, "删除测算结果成功", nil)
}

func (h *Handler) GetDefaultParameters(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取默认排班参数成功", h.parameters)
}
