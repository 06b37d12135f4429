package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SizingRun 是一次已经完成的排班测算
type SizingRun struct {
	ID             uuid.UUID           `json:"id"`
	CreatedBy      int64               `json:"createdBy"`
	Parameters     json.RawMessage     `json:"parameters"`
	Roles          []Role              `json:"roles"`
	FlightCount    int                 `json:"flightCount"`
	CandidateCount int                 `json:"candidateCount"`
	WorkerCount    int                 `json:"workerCount"`
	Assignments    []*Assignment       `json:"assignments,omitempty"`
	Uncovered      []*UncoveredFlights `json:"uncovered,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}
