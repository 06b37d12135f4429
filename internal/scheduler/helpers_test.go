package scheduler

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/stretchr/testify/require"
)

// 2025-04-07 是周一
var monday = time.Date(2025, time.April, 7, 0, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func slot(id string, dep time.Time, preMinutes, postMinutes int) Slot {
	return Slot{
		FlightID:  id,
		Role:      domain.RoleCheckIn,
		Airport:   "BCN",
		Departure: dep,
		Window: domain.PresenceWindow{
			Start: dep.Add(-time.Duration(preMinutes) * time.Minute),
			End:   dep.Add(time.Duration(postMinutes) * time.Minute),
		},
	}
}

func solo(slots ...Slot) []WorkItem {
	items := make([]WorkItem, len(slots))
	for i, s := range slots {
		items[i] = WorkItem{Slots: []Slot{s}}
	}
	return items
}

func candidate(role domain.Role, airport string, start, end time.Time, ids ...string) *domain.ShiftCandidate {
	return &domain.ShiftCandidate{
		Role:          role,
		Airport:       airport,
		FlightIDs:     ids,
		Start:         start,
		End:           end,
		DurationHours: end.Sub(start).Hours(),
		Blocks:        []domain.ShiftBlock{{Start: start, End: end, FlightIDs: ids}},
	}
}

func testParameters() *Parameters {
	p := DefaultParameters()
	return &p
}

// flight 构造一个同时需要 CHECKIN 和 OPE_A 的航班
func flight(id, airport string, dep time.Time) *domain.Flight {
	return &domain.Flight{
		ID:            id,
		Airport:       airport,
		OperationType: "ARR/DEP",
		Departure:     dep,
		Windows: map[domain.Role]domain.PresenceWindow{
			domain.RoleCheckIn: {Start: dep.Add(-120 * time.Minute), End: dep.Add(-30 * time.Minute)},
			domain.RoleOpeA:    {Start: dep.Add(-45 * time.Minute), End: dep.Add(15 * time.Minute)},
		},
	}
}

// weekOfFlights 生成一周多的航班，每天每个机场若干个，部分航班挨得很近可以聚簇
func weekOfFlights() []*domain.Flight {
	offsets := [][2]int{{6, 0}, {6, 15}, {8, 40}, {11, 5}, {13, 30}, {13, 45}, {17, 20}, {20, 50}}
	flights := make([]*domain.Flight, 0)
	for day := 0; day < 9; day++ {
		for _, airport := range []string{"BCN", "MAD"} {
			for i, o := range offsets {
				if (day+i)%5 == 4 {
					continue // 每天少几个航班，让各天的情况不完全一样
				}
				id := fmt.Sprintf("%s%d%02d", airport[:1], day, i)
				flights = append(flights, flight(id, airport, at(day, o[0], o[1])))
			}
		}
	}
	return flights
}

// checkAssignments 检查分配结果满足所有劳动约束
func checkAssignments(t *testing.T, assignments []*domain.Assignment, p *Parameters) {
	t.Helper()

	byWorker := make(map[string][]*domain.ShiftCandidate)
	booked := make(map[string]struct{})
	weekly := make(map[string]float64)

	for _, a := range assignments {
		c := a.Shift
		require.LessOrEqual(t, c.DurationHours, p.MaxShiftHours+hoursEpsilon)
		require.GreaterOrEqual(t, c.DurationHours, 0.0)

		key := fmt.Sprintf("%s|%s|%s|%s", a.WorkerID, c.Airport, c.Role, c.Start.Format(time.DateOnly))
		_, dup := booked[key]
		require.False(t, dup, "人员 %s 同一天被安排了两次", a.WorkerID)
		booked[key] = struct{}{}

		year, week := c.Start.ISOWeek()
		wk := fmt.Sprintf("%s|%d|%d", a.WorkerID, year, week)
		weekly[wk] += c.DurationHours
		require.LessOrEqual(t, weekly[wk], p.MaxWeeklyHours+hoursEpsilon)

		byWorker[a.WorkerID] = append(byWorker[a.WorkerID], c)
	}

	for worker, shifts := range byWorker {
		sort.Slice(shifts, func(i, j int) bool { return shifts[i].Start.Before(shifts[j].Start) })

		run := 1
		for i := 1; i < len(shifts); i++ {
			prev, cur := shifts[i-1], shifts[i]
			require.False(t, cur.Start.Before(prev.End.Add(p.minRest())), "人员 %s 两个班次之间休息不足", worker)

			prevDay, curDay := dateOf(prev.Start), dateOf(cur.Start)
			switch {
			case curDay.Equal(prevDay.AddDate(0, 0, 1)):
				run++
			case curDay.Equal(prevDay):
			default:
				run = 1
			}
			require.LessOrEqual(t, run, p.MaxConsecutiveDays, "人员 %s 连续上班天数超限", worker)
		}
	}
}
