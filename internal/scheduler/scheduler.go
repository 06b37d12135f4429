package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

type Scheduler struct {
	parameters *Parameters
	partitions []*Partition
}

// New 校验参数和航班数据，并按 岗位 -> 机场 -> 日期 的顺序划分分区。
// roles 的顺序决定了排班顺序。
func New(parameters *Parameters, roles []domain.Role, flights []*domain.Flight) (*Scheduler, error) {
	if err := parameters.Validate(); err != nil {
		return nil, err
	}

	if len(roles) == 0 {
		return nil, fmt.Errorf("没有需要排班的岗位")
	}
	for i, role := range roles {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, role)
		}
		if slices.Contains(roles[:i], role) {
			return nil, fmt.Errorf("岗位 %s 重复", role)
		}
	}

	if err := validateFlights(flights); err != nil {
		return nil, err
	}

	return &Scheduler{
		parameters: parameters,
		partitions: buildPartitions(roles, flights),
	}, nil
}

func validateFlights(flights []*domain.Flight) error {
	seen := make(map[string]struct{}, len(flights))
	for _, f := range flights {
		if f.ID == "" {
			return fmt.Errorf("航班号不能为空")
		}
		if _, ok := seen[f.ID]; ok {
			return fmt.Errorf("航班 %s 重复", f.ID)
		}
		seen[f.ID] = struct{}{}

		if f.Airport == "" {
			return fmt.Errorf("航班 %s 没有机场", f.ID)
		}
		if f.Departure.IsZero() {
			return fmt.Errorf("航班 %s 没有起飞时间", f.ID)
		}

		for role, w := range f.Windows {
			if !role.Valid() {
				return fmt.Errorf("航班 %s: %w: %q", f.ID, domain.ErrUnknownRole, role)
			}
			if w.End.Before(w.Start) {
				return fmt.Errorf("航班 %s 岗位 %s 的在岗结束时间早于开始时间", f.ID, role)
			}
		}
	}
	return nil
}

func buildPartitions(roles []domain.Role, flights []*domain.Flight) []*Partition {
	partitions := make([]*Partition, 0)

	for _, role := range roles {
		// {airport: {"2006-01-02": slots}}
		byAirport := make(map[string]map[string][]Slot)
		for _, f := range flights {
			w, ok := f.Windows[role]
			if !ok {
				continue
			}
			day := f.Departure.Format(time.DateOnly)
			if _, exists := byAirport[f.Airport]; !exists {
				byAirport[f.Airport] = make(map[string][]Slot)
			}
			byAirport[f.Airport][day] = append(byAirport[f.Airport][day], Slot{
				FlightID:  f.ID,
				Role:      role,
				Airport:   f.Airport,
				Departure: f.Departure,
				Window:    w,
			})
		}

		airports := make([]string, 0, len(byAirport))
		for airport := range byAirport {
			airports = append(airports, airport)
		}
		sort.Strings(airports)

		for _, airport := range airports {
			days := make([]string, 0, len(byAirport[airport]))
			for day := range byAirport[airport] {
				days = append(days, day)
			}
			sort.Strings(days)

			for _, day := range days {
				slots := byAirport[airport][day]
				sortSlots(slots)
				partitions = append(partitions, &Partition{
					Role:    role,
					Airport: airport,
					Day:     dateOf(slots[0].Departure),
					Slots:   slots,
				})
			}
		}
	}

	return partitions
}

func (s *Scheduler) Partitions() []*Partition {
	return s.partitions
}

type prepared struct {
	blocks     int
	candidates []*domain.ShiftCandidate
}

// Schedule 执行排班。
// 各分区的聚簇和候选班次生成互不影响，并行执行；人员分配共享同一个 State，按分区顺序串行执行。
func (s *Scheduler) Schedule(ctx context.Context) (*Result, error) {
	preparedParts := make([]prepared, len(s.partitions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parameters.Workers)
	for i, part := range s.partitions {
		g.Go(func() error {
			p, err := s.prepare(gctx, part)
			if err != nil {
				return fmt.Errorf("分区 %s 生成候选班次失败: %w", part, err)
			}
			preparedParts[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state := NewState()
	result := &Result{
		Partitions:  make([]*PartitionResult, 0, len(s.partitions)),
		Assignments: make([]*domain.Assignment, 0),
	}

	for i, part := range s.partitions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		assignments, uncovered, err := AssignPartition(state, preparedParts[i].candidates, part.FlightIDs(), s.parameters)
		if err != nil {
			return nil, fmt.Errorf("分区 %s 分配人员失败: %w", part, err)
		}

		slog.Debug("分区排班完成",
			"role", part.Role,
			"airport", part.Airport,
			"day", part.DayString(),
			"blocks", preparedParts[i].blocks,
			"candidates", len(preparedParts[i].candidates),
			"assignments", len(assignments),
		)
		if len(uncovered) > 0 {
			slog.Warn("存在未覆盖的航班",
				"role", part.Role,
				"airport", part.Airport,
				"day", part.DayString(),
				"count", len(uncovered),
				"flights", uncovered,
			)
		}

		result.Partitions = append(result.Partitions, &PartitionResult{
			Role:        part.Role,
			Airport:     part.Airport,
			Day:         part.Day,
			BlockCount:  preparedParts[i].blocks,
			Candidates:  preparedParts[i].candidates,
			Assignments: assignments,
			Uncovered:   uncovered,
		})
		result.Assignments = append(result.Assignments, assignments...)
	}

	result.WeeklyHours = state.WeeklyHours()

	return result, nil
}

// prepare 对一个分区做聚簇，然后把不可分割块和剩下的单个航班一起交给候选班次生成
func (s *Scheduler) prepare(ctx context.Context, part *Partition) (prepared, error) {
	items := make([]WorkItem, 0, len(part.Slots))
	claimed := make(map[string]struct{})

	clusters, err := DetectClusters(ctx, part.Slots, part.Role, s.parameters.ClusterRoles, s.parameters.clusterGap())
	if err != nil {
		return prepared{}, err
	}
	seq := 1
	for _, c := range clusters {
		blocks := MaterializeCluster(c, seq)
		seq += len(blocks)
		items = append(items, blocks...)
		for _, slot := range c {
			claimed[slot.FlightID] = struct{}{}
		}
	}
	blockCount := len(items)

	for _, slot := range part.Slots {
		if _, ok := claimed[slot.FlightID]; ok {
			continue
		}
		items = append(items, WorkItem{Slots: []Slot{slot}})
	}

	candidates, err := GenerateCandidates(ctx, items, s.parameters.maxShift(), s.parameters.minSeparation())
	if err != nil {
		return prepared{}, err
	}

	return prepared{blocks: blockCount, candidates: candidates}, nil
}
