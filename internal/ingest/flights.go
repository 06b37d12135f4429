package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
)

const (
	columnID            = "id"
	columnAirport       = "airport"
	columnTime          = "time"
	columnDay           = "day"
	columnOperationType = "operation type"
)

var requiredColumns = []string{columnID, columnAirport, columnTime, columnDay}

var dayLayouts = []string{"2/1/2006", time.DateOnly}
var timeLayouts = []string{"15:04:05", "15:04"}

// ReadFlightsCSV 读取航班计划表，列名忽略首尾空格和大小写。
// 缺少 ID、Airport、Time、Day 任意一项的行会被跳过；Operation Type 可以为空，这样的航班不需要任何岗位。
func ReadFlightsCSV(r io.Reader) ([]*domain.FlightRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("航班计划表为空")
		}
		return nil, fmt.Errorf("读取航班计划表表头失败: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("航班计划表缺少 %q 列", name)
		}
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]*domain.FlightRecord, 0)
	line, skipped := 1, 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("读取航班计划表第 %d 行失败: %w", line, err)
		}

		id, airport := field(row, columnID), field(row, columnAirport)
		clock, day := field(row, columnTime), field(row, columnDay)
		if id == "" || airport == "" || clock == "" || day == "" {
			skipped++
			continue
		}

		departure, err := parseDeparture(day, clock)
		if err != nil {
			return nil, fmt.Errorf("航班计划表第 %d 行: %w", line, err)
		}

		records = append(records, &domain.FlightRecord{
			ID:            id,
			Airport:       airport,
			OperationType: normalizeOperationType(field(row, columnOperationType)),
			Departure:     departure,
		})
	}

	if skipped > 0 {
		slog.Debug("跳过了信息不完整的航班", "count", skipped)
	}

	return records, nil
}

// parseDeparture 把日期和时刻合成为起飞时间，秒数会被忽略
func parseDeparture(day, clock string) (time.Time, error) {
	var date time.Time
	var err error
	for _, layout := range dayLayouts {
		if date, err = time.Parse(layout, day); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("日期 %q 格式错误", day)
	}

	var t time.Time
	for _, layout := range timeLayouts {
		if t, err = time.Parse(layout, clock); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("时刻 %q 格式错误", clock)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

// BuildFlights 根据岗位规则计算每个航班各岗位的在岗时间段。
// 只有规则中包含该航班作业类型的岗位才会出现在 Windows 里。
func BuildFlights(records []*domain.FlightRecord, rules *RuleSet) []*domain.Flight {
	flights := make([]*domain.Flight, 0, len(records))

	for _, rec := range records {
		opType := normalizeOperationType(rec.OperationType)
		windows := make(map[domain.Role]domain.PresenceWindow)
		for _, role := range rules.order {
			rule, ok := rules.Lookup(role, opType)
			if !ok {
				continue
			}
			windows[role] = domain.PresenceWindow{
				Start: rec.Departure.Add(-time.Duration(rule.PreMinutes) * time.Minute),
				End:   rec.Departure.Add(time.Duration(rule.PostMinutes) * time.Minute),
			}
		}

		flights = append(flights, &domain.Flight{
			ID:            rec.ID,
			Airport:       rec.Airport,
			OperationType: opType,
			Departure:     rec.Departure,
			Windows:       windows,
		})
	}

	return flights
}
