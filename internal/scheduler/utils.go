package scheduler

import (
	"sort"
	"time"
)

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func minutesToDuration(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// dateOf 截掉时间部分，只保留日期
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// 起飞时间相同的航班按航班号排序，保证结果可复现
func sortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].Departure.Equal(slots[j].Departure) {
			return slots[i].Departure.Before(slots[j].Departure)
		}
		return slots[i].FlightID < slots[j].FlightID
	})
}

func slotIDs(slots []Slot) []string {
	ids := make([]string, len(slots))
	for i, s := range slots {
		ids[i] = s.FlightID
	}
	return ids
}

func sortedIDs(slots []Slot) []string {
	ids := slotIDs(slots)
	sort.Strings(ids)
	return ids
}
