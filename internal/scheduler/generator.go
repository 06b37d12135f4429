package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
)

// 分段班次中间休息的上下限
const (
	minBreak = 60 * time.Minute
	maxBreak = 300 * time.Minute
)

// 每枚举这么多个子集检查一次 context
const cancelCheckInterval = 4096

// GenerateCandidates 枚举分区内工作项的所有非空组合，返回去重后的合法候选班次。
// 不可分割块作为一个整体参与组合。
func GenerateCandidates(ctx context.Context, items []WorkItem, maxShift, minSeparation time.Duration) ([]*domain.ShiftCandidate, error) {
	candidates := make([]*domain.ShiftCandidate, 0)
	seenSets := make(map[string]struct{})
	seenKeys := make(map[string]struct{})

	flat := make([]Slot, 0)
	comb := NewCombinations(len(items), 1)
	for n := 0; comb.Next(); n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		flat = flat[:0]
		for _, i := range comb.Indices() {
			flat = append(flat, items[i].Slots...)
		}

		ids := sortedIDs(flat)
		if hasDuplicate(ids) {
			continue
		}
		setKey := strings.Join(ids, "\x00")
		if _, ok := seenSets[setKey]; ok {
			continue
		}
		seenSets[setKey] = struct{}{}

		slots := slices.Clone(flat)
		sortSlots(slots)

		if !separated(slots, minSeparation) {
			continue
		}

		c, effective := buildCandidate(slots)
		if effective > maxShift {
			continue
		}

		key := candidateKey(c)
		if _, ok := seenKeys[key]; ok {
			continue
		}
		seenKeys[key] = struct{}{}
		candidates = append(candidates, c)
	}

	for _, c := range candidates {
		if err := checkCandidate(c, maxShift); err != nil {
			return nil, err
		}
	}

	return candidates, nil
}

// separated 检查相邻航班的起飞间隔是否都严格大于 minSeparation，同一个块内的航班不检查
func separated(slots []Slot, minSeparation time.Duration) bool {
	for i := 0; i+1 < len(slots); i++ {
		a, b := slots[i], slots[i+1]
		if a.BlockID != "" && a.BlockID == b.BlockID {
			continue
		}
		if b.Departure.Sub(a.Departure) <= minSeparation {
			return false
		}
	}
	return true
}

// buildCandidate 根据按起飞时间排好序的航班构造候选班次，同时返回扣除休息后的有效时长。
// 只在第一个落在 [60, 300] 分钟内的间隙处分段。
func buildCandidate(slots []Slot) (*domain.ShiftCandidate, time.Duration) {
	start, end := bounds(slots)

	c := &domain.ShiftCandidate{
		Role:      slots[0].Role,
		Airport:   slots[0].Airport,
		FlightIDs: slotIDs(slots),
		Start:     start,
		End:       end,
	}

	splitAt := -1
	var pause time.Duration
	for i := 0; i+1 < len(slots); i++ {
		gap := slots[i+1].Window.Start.Sub(slots[i].Window.End)
		if gap >= minBreak && gap <= maxBreak {
			splitAt = i + 1
			pause = gap
			break
		}
	}

	effective := end.Sub(start)
	if splitAt > 0 {
		effective -= pause
		c.Split = true
		c.BreakMinutes = pause.Minutes()
		c.Blocks = []domain.ShiftBlock{block(slots[:splitAt]), block(slots[splitAt:])}
	} else {
		c.Blocks = []domain.ShiftBlock{block(slots)}
	}
	c.DurationHours = effective.Hours()

	return c, effective
}

func bounds(slots []Slot) (time.Time, time.Time) {
	start, end := slots[0].Window.Start, slots[0].Window.End
	for _, s := range slots[1:] {
		if s.Window.Start.Before(start) {
			start = s.Window.Start
		}
		if s.Window.End.After(end) {
			end = s.Window.End
		}
	}
	return start, end
}

func block(slots []Slot) domain.ShiftBlock {
	start, end := bounds(slots)
	return domain.ShiftBlock{
		Start:     start,
		End:       end,
		FlightIDs: slotIDs(slots),
	}
}

func candidateKey(c *domain.ShiftCandidate) string {
	ids := slices.Clone(c.FlightIDs)
	slices.Sort(ids)
	return fmt.Sprintf("%s|%s|%s|%d|%d", strings.Join(ids, ","), c.Role, c.Airport, c.Start.UnixNano(), c.End.UnixNano())
}

func hasDuplicate(sortedIDs []string) bool {
	for i := 1; i < len(sortedIDs); i++ {
		if sortedIDs[i] == sortedIDs[i-1] {
			return true
		}
	}
	return false
}

// checkCandidate 对输出的候选班次做最后一次校验，不通过说明生成逻辑有问题
func checkCandidate(c *domain.ShiftCandidate, maxShift time.Duration) error {
	ids := slices.Clone(c.FlightIDs)
	slices.Sort(ids)
	if hasDuplicate(ids) {
		return fmt.Errorf("%w: 候选班次 %v 中存在重复的航班", ErrInconsistent, c.FlightIDs)
	}
	if c.DurationHours < 0 || hoursToDuration(c.DurationHours) > maxShift {
		return fmt.Errorf("%w: 候选班次 %v 的时长 %.2f 小时超出范围", ErrInconsistent, c.FlightIDs, c.DurationHours)
	}
	if c.Split && (c.BreakMinutes < minBreak.Minutes() || c.BreakMinutes > maxBreak.Minutes()) {
		return fmt.Errorf("%w: 候选班次 %v 的休息时长 %.0f 分钟不合法", ErrInconsistent, c.FlightIDs, c.BreakMinutes)
	}
	return nil
}
