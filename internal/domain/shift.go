package domain

import "time"

type ShiftBlock struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	FlightIDs []string  `json:"flightIds"`
}

// ShiftCandidate 是一个人一天内可能承担的班次
type ShiftCandidate struct {
	Role          Role         `json:"role"`
	Airport       string       `json:"airport"`
	FlightIDs     []string     `json:"flightIds"` // 按起飞时间排序
	Start         time.Time    `json:"start"`
	End           time.Time    `json:"end"`
	DurationHours float64      `json:"durationHours"` // 扣除中间休息后的有效工时
	Split         bool         `json:"split"`
	BreakMinutes  float64      `json:"breakMinutes"`
	Blocks        []ShiftBlock `json:"blocks"` // 分段班次有两段，否则只有一段
}

type Assignment struct {
	WorkerID string          `json:"workerId"`
	Shift    *ShiftCandidate `json:"shift"`
}

// WorkerWeekHours 是某个人员在某个 ISO 周内累计的工时
type WorkerWeekHours struct {
	WorkerID string  `json:"workerId"`
	Year     int     `json:"year"`
	Week     int     `json:"week"`
	Hours    float64 `json:"hours"`
}

// UncoveredFlights 记录某个分区中没能分配出去的航班
type UncoveredFlights struct {
	Role      Role     `json:"role"`
	Airport   string   `json:"airport"`
	Day       string   `json:"day"`
	FlightIDs []string `json:"flightIds"`
}
