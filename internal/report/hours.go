package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/groundops/staff-sizer/backend/internal/scheduler"
)

type HoursRow struct {
	WorkerID string      `json:"workerId"`
	Role     domain.Role `json:"role"`
	Hours    float64     `json:"hours"` // 保留两位小数

	seq int
}

type AirportHours struct {
	Airport string     `json:"airport"`
	Rows    []HoursRow `json:"rows"`
}

// WeekHours 是一个 ISO 周内各机场人员的工时
type WeekHours struct {
	Year     int            `json:"year"`
	Week     int            `json:"week"`
	Label    string         `json:"label"` // 形如 "7–13 April 2025"
	Airports []AirportHours `json:"airports"`
}

// WeekMonday 返回 ISO 周的周一
func WeekMonday(year, week int) time.Time {
	// 1 月 4 日一定在第一周
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}

func WeekLabel(year, week int) string {
	monday := WeekMonday(year, week)
	sunday := monday.AddDate(0, 0, 6)
	return fmt.Sprintf("%d–%d %s %d", monday.Day(), sunday.Day(), sunday.Month(), sunday.Year())
}

// HoursSummary 把人员周工时按周和机场分组。
// 周按时间先后排列，机场按名称排列，同一机场内先按岗位顺序，再按人员序号排列。
func HoursSummary(hours []domain.WorkerWeekHours) ([]WeekHours, error) {
	type weekID struct{ year, week int }

	grouped := make(map[weekID]map[string][]HoursRow)
	for _, h := range hours {
		airport, role, seq, err := scheduler.ParseWorkerID(h.WorkerID)
		if err != nil {
			return nil, err
		}

		id := weekID{h.Year, h.Week}
		if _, ok := grouped[id]; !ok {
			grouped[id] = make(map[string][]HoursRow)
		}
		grouped[id][airport] = append(grouped[id][airport], HoursRow{
			WorkerID: h.WorkerID,
			Role:     role,
			Hours:    math.Round(h.Hours*100) / 100,
			seq:      seq,
		})
	}

	weeks := make([]weekID, 0, len(grouped))
	for id := range grouped {
		weeks = append(weeks, id)
	}
	sort.Slice(weeks, func(i, j int) bool {
		if weeks[i].year != weeks[j].year {
			return weeks[i].year < weeks[j].year
		}
		return weeks[i].week < weeks[j].week
	})

	summary := make([]WeekHours, 0, len(weeks))
	for _, id := range weeks {
		byAirport := grouped[id]

		airports := make([]string, 0, len(byAirport))
		for airport := range byAirport {
			airports = append(airports, airport)
		}
		sort.Strings(airports)

		wh := WeekHours{
			Year:     id.year,
			Week:     id.week,
			Label:    WeekLabel(id.year, id.week),
			Airports: make([]AirportHours, 0, len(airports)),
		}
		for _, airport := range airports {
			rows := byAirport[airport]
			sort.Slice(rows, func(i, j int) bool {
				if ri, rj := rows[i].Role.Rank(), rows[j].Role.Rank(); ri != rj {
					return ri < rj
				}
				return rows[i].seq < rows[j].seq
			})
			wh.Airports = append(wh.Airports, AirportHours{Airport: airport, Rows: rows})
		}
		summary = append(summary, wh)
	}

	return summary, nil
}
