package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/groundops/staff-sizer/backend/internal/ingest"
	"github.com/groundops/staff-sizer/backend/internal/repository"
	"github.com/groundops/staff-sizer/backend/internal/scheduler"
	"github.com/groundops/staff-sizer/backend/internal/utils"
)

const (
	DefaultFlightsPath = "./internal/seed/data/flights.csv"
	DefaultRulesPath   = "./internal/seed/data/rules.csv"
)

func readRules(path string) (*ingest.RuleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ingest.ReadRulesCSV(file)
}

func readFlights(path string) ([]*domain.FlightRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ingest.ReadFlightsCSV(file)
}

// SeedSampleRun 用样例航班计划执行一次测算并保存，createdBy 是测算发起人
func SeedSampleRun(r *repository.Repository, params *scheduler.Parameters, createdBy int64, flightsPath, rulesPath string) (*domain.SizingRun, error) {
	rules, err := readRules(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("读取岗位规则表失败: %w", err)
	}

	records, err := readFlights(flightsPath)
	if err != nil {
		return nil, fmt.Errorf("读取航班计划表失败: %w", err)
	}

	return insertRun(r, params, createdBy, rules, records)
}

// SeedRandomRun 从 start 开始随机生成 days 天的航班并执行一次测算
func SeedRandomRun(r *repository.Repository, params *scheduler.Parameters, createdBy int64, rulesPath string, start time.Time, days, perDay int) (*domain.SizingRun, error) {
	rules, err := readRules(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("读取岗位规则表失败: %w", err)
	}

	return insertRun(r, params, createdBy, rules, utils.GenerateRandomFlightRecords(start, days, perDay))
}

func insertRun(r *repository.Repository, params *scheduler.Parameters, createdBy int64, rules *ingest.RuleSet, records []*domain.FlightRecord) (*domain.SizingRun, error) {
	flights := ingest.BuildFlights(records, rules)
	roles := rules.Roles()

	s, err := scheduler.New(params, roles, flights)
	if err != nil {
		return nil, err
	}

	result, err := s.Schedule(context.Background())
	if err != nil {
		return nil, err
	}

	parameters, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	run := &domain.SizingRun{
		ID:             uuid.New(),
		CreatedBy:      createdBy,
		Parameters:     parameters,
		Roles:          roles,
		FlightCount:    len(flights),
		CandidateCount: result.CandidateCount(),
		WorkerCount:    result.WorkerCount(),
		Assignments:    result.Assignments,
		Uncovered:      result.Uncovered(),
	}

	if err := r.InsertSizingRun(run); err != nil {
		return nil, fmt.Errorf("保存测算结果失败: %w", err)
	}

	slog.Info("插入测算结果完成", "id", run.ID, "flights", run.FlightCount, "workers", run.WorkerCount, "assignments", len(run.Assignments))
	return run, nil
}
