package scheduler

import (
	"fmt"
	"slices"
	"sort"

	"github.com/groundops/staff-sizer/backend/internal/domain"
)

// AssignPartition 在一个分区内贪心地把候选班次分配给人员，直到所有航班都被覆盖或者没有候选班次可用。
// state 在整个排班过程中累积，返回本分区的分配结果和没有覆盖到的航班。
func AssignPartition(state *State, candidates []*domain.ShiftCandidate, flightIDs []string, p *Parameters) ([]*domain.Assignment, []string, error) {
	pending := make(map[string]struct{}, len(flightIDs))
	for _, id := range flightIDs {
		pending[id] = struct{}{}
	}

	assignments := make([]*domain.Assignment, 0)
	for len(pending) > 0 {
		pool := make([]*domain.ShiftCandidate, 0)
		for _, c := range candidates {
			if coverage(c, pending) > 0 {
				pool = append(pool, c)
			}
		}
		if len(pool) == 0 {
			break
		}

		// 优先选择已有人员能承担的班次，都不行的话只能新增人员
		compatible := make([]*domain.ShiftCandidate, 0, len(pool))
		for _, c := range pool {
			if _, _, ok := state.findWorker(c, p); ok {
				compatible = append(compatible, c)
			}
		}
		if len(compatible) > 0 {
			pool = compatible
		}

		best := pickBest(pool, pending)

		worker, streakCount, ok := state.findWorker(best, p)
		if !ok {
			worker = state.newWorker(best.Airport, best.Role)
			streakCount = 1
		}

		covered := 0
		for _, id := range best.FlightIDs {
			if _, ok := pending[id]; ok {
				delete(pending, id)
				covered++
			}
		}
		if covered == 0 {
			return nil, nil, fmt.Errorf("%w: 班次 %v 没有覆盖任何新的航班", ErrInconsistent, best.FlightIDs)
		}

		state.record(worker, best, streakCount)
		assignments = append(assignments, &domain.Assignment{
			WorkerID: worker,
			Shift:    best,
		})
	}

	uncovered := make([]string, 0, len(pending))
	for id := range pending {
		uncovered = append(uncovered, id)
	}
	sort.Strings(uncovered)

	return assignments, uncovered, nil
}

func coverage(c *domain.ShiftCandidate, pending map[string]struct{}) int {
	n := 0
	for _, id := range c.FlightIDs {
		if _, ok := pending[id]; ok {
			n++
		}
	}
	return n
}

// pickBest 选出覆盖待覆盖航班最多的班次，其次时长最短、开始最早，最后按航班号序列的字典序
func pickBest(pool []*domain.ShiftCandidate, pending map[string]struct{}) *domain.ShiftCandidate {
	best := pool[0]
	bestCover := coverage(best, pending)
	for _, c := range pool[1:] {
		cover := coverage(c, pending)
		if better(c, cover, best, bestCover) {
			best, bestCover = c, cover
		}
	}
	return best
}

func better(c *domain.ShiftCandidate, cover int, best *domain.ShiftCandidate, bestCover int) bool {
	if cover != bestCover {
		return cover > bestCover
	}
	if c.DurationHours != best.DurationHours {
		return c.DurationHours < best.DurationHours
	}
	if !c.Start.Equal(best.Start) {
		return c.Start.Before(best.Start)
	}
	return slices.Compare(c.FlightIDs, best.FlightIDs) < 0
}
