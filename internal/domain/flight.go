package domain

import "time"

// PresenceWindow 是某个岗位在某个航班上需要在岗的时间段
type PresenceWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Flight struct {
	ID            string                  `json:"id"`
	Airport       string                  `json:"airport"`
	OperationType string                  `json:"operationType"`
	Departure     time.Time               `json:"departure"`
	Windows       map[Role]PresenceWindow `json:"windows"` // 只包含适用于该作业类型的岗位
}

// FlightRecord 是航班计划表中的一行，尚未计算各岗位的在岗时间段
type FlightRecord struct {
	ID            string    `json:"id" validate:"required"`
	Airport       string    `json:"airport" validate:"required"`
	OperationType string    `json:"operationType"`
	Departure     time.Time `json:"departure" validate:"required"`
}

// RoleRule 描述某个岗位在某种作业类型下需要提前和延后在岗的分钟数
type RoleRule struct {
	Role          Role   `json:"role" validate:"required"`
	OperationType string `json:"operationType" validate:"required"`
	PreMinutes    int    `json:"preMinutes" validate:"gte=0"`
	PostMinutes   int    `json:"postMinutes" validate:"gte=0"`
}
