package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/groundops/staff-sizer/backend/internal/domain"
)

// InsertSizingRun 在一个事务中保存测算结果，包括所有分配和未覆盖的航班
func (r *Repository) InsertSizingRun(run *domain.SizingRun) error {
	ctx, cancel := r.txContext()
	defer cancel()

	roles, err := json.Marshal(run.Roles)
	if err != nil {
		return err
	}

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO sizing_runs (id, created_by, parameters, roles, flight_count, candidate_count, worker_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	args := []any{run.ID, run.CreatedBy, []byte(run.Parameters), roles, run.FlightCount, run.CandidateCount, run.WorkerCount}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&run.CreatedAt); err != nil {
		return err
	}

	for i, a := range run.Assignments {
		shift, err := json.Marshal(a.Shift)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO sizing_run_assignments (sizing_run_id, position, worker_id, role, airport, start_time, end_time, duration_hours, shift)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`

		args := []any{run.ID, i, a.WorkerID, a.Shift.Role, a.Shift.Airport, a.Shift.Start, a.Shift.End, a.Shift.DurationHours, shift}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	for _, u := range run.Uncovered {
		flightIDs, err := json.Marshal(u.FlightIDs)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO sizing_run_uncovered (sizing_run_id, role, airport, day, flight_ids)
			VALUES ($1, $2, $3, $4, $5)
		`

		if _, err := tx.ExecContext(ctx, query, run.ID, u.Role, u.Airport, u.Day, flightIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// GetAllSizingRuns 只返回测算的概要信息，不包含分配结果
func (r *Repository) GetAllSizingRuns() ([]*domain.SizingRun, error) {
	return r.listSizingRuns(`
		SELECT id, created_by, parameters, roles, flight_count, candidate_count, worker_count, created_at
		FROM sizing_runs
		ORDER BY created_at DESC
	`)
}

func (r *Repository) GetSizingRunsByCreator(userID int64) ([]*domain.SizingRun, error) {
	return r.listSizingRuns(`
		SELECT id, created_by, parameters, roles, flight_count, candidate_count, worker_count, created_at
		FROM sizing_runs
		WHERE created_by = $1
		ORDER BY created_at DESC
	`, userID)
}

func (r *Repository) listSizingRuns(query string, args ...any) ([]*domain.SizingRun, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.SizingRun, 0)
	for rows.Next() {
		run, err := scanSizingRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// GetSizingRun 返回完整的测算结果
func (r *Repository) GetSizingRun(id uuid.UUID) (*domain.SizingRun, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		SELECT id, created_by, parameters, roles, flight_count, candidate_count, worker_count, created_at
		FROM sizing_runs WHERE id = $1
	`

	run, err := scanSizingRun(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if run.Assignments, err = r.getSizingRunAssignments(ctx, id); err != nil {
		return nil, err
	}
	if run.Uncovered, err = r.getSizingRunUncovered(ctx, id); err != nil {
		return nil, err
	}

	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSizingRun(s scanner) (*domain.SizingRun, error) {
	run := &domain.SizingRun{}

	var parameters, roles []byte
	dst := []any{&run.ID, &run.CreatedBy, &parameters, &roles, &run.FlightCount, &run.CandidateCount, &run.WorkerCount, &run.CreatedAt}
	if err := s.Scan(dst...); err != nil {
		return nil, err
	}

	run.Parameters = json.RawMessage(parameters)
	if err := json.Unmarshal(roles, &run.Roles); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *Repository) getSizingRunAssignments(ctx context.Context, id uuid.UUID) ([]*domain.Assignment, error) {
	query := `
		SELECT worker_id, shift FROM sizing_run_assignments
		WHERE sizing_run_id = $1
		ORDER BY position
	`

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]*domain.Assignment, 0)
	for rows.Next() {
		a := &domain.Assignment{Shift: &domain.ShiftCandidate{}}
		var shift []byte
		if err := rows.Scan(&a.WorkerID, &shift); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(shift, a.Shift); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *Repository) getSizingRunUncovered(ctx context.Context, id uuid.UUID) ([]*domain.UncoveredFlights, error) {
	query := `
		SELECT role, airport, to_char(day, 'YYYY-MM-DD'), flight_ids FROM sizing_run_uncovered
		WHERE sizing_run_id = $1
		ORDER BY id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uncovered := make([]*domain.UncoveredFlights, 0)
	for rows.Next() {
		u := &domain.UncoveredFlights{}
		var flightIDs []byte
		if err := rows.Scan(&u.Role, &u.Airport, &u.Day, &flightIDs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(flightIDs, &u.FlightIDs); err != nil {
			return nil, err
		}
		uncovered = append(uncovered, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return uncovered, nil
}

// DeleteSizingRun 删除测算结果，分配和未覆盖航班通过外键级联删除
func (r *Repository) DeleteSizingRun(id uuid.UUID) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, `DELETE FROM sizing_runs WHERE id = $1`, id); err != nil {
		return err
	}

	return nil
}
