package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/groundops/staff-sizer/backend/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekLabel(t *testing.T) {
	assert.Equal(t, "7–13 April 2025", WeekLabel(2025, 15))
	assert.Equal(t, "30–5 January 2025", WeekLabel(2025, 1))
	assert.Equal(t, time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC), WeekMonday(2025, 1))

	// 周一所在的 ISO 周要和 WeekMonday 对得上
	for _, week := range []int{1, 10, 27, 52} {
		y, w := WeekMonday(2026, week).ISOWeek()
		assert.Equal(t, 2026, y)
		assert.Equal(t, week, w)
	}
}

func TestHoursSummary(t *testing.T) {
	hours := []domain.WorkerWeekHours{
		{WorkerID: "MAD-CH1", Year: 2025, Week: 15, Hours: 8},
		{WorkerID: "BCN-OA1", Year: 2025, Week: 15, Hours: 3.3333333},
		{WorkerID: "BCN-CH10", Year: 2025, Week: 15, Hours: 5},
		{WorkerID: "BCN-CH2", Year: 2025, Week: 15, Hours: 7.5},
		{WorkerID: "BCN-SP1", Year: 2025, Week: 15, Hours: 9},
		{WorkerID: "BCN-CH2", Year: 2025, Week: 16, Hours: 4},
		{WorkerID: "BCN-CH2", Year: 2024, Week: 52, Hours: 1},
	}

	summary, err := HoursSummary(hours)
	require.NoError(t, err)
	require.Len(t, summary, 3)

	assert.Equal(t, 2024, summary[0].Year)
	assert.Equal(t, 15, summary[1].Week)
	assert.Equal(t, 16, summary[2].Week)

	week := summary[1]
	assert.Equal(t, "7–13 April 2025", week.Label)
	require.Len(t, week.Airports, 2)
	assert.Equal(t, "BCN", week.Airports[0].Airport)
	assert.Equal(t, "MAD", week.Airports[1].Airport)

	ids := make([]string, 0)
	for _, row := range week.Airports[0].Rows {
		ids = append(ids, row.WorkerID)
	}
	assert.Equal(t, []string{"BCN-SP1", "BCN-CH2", "BCN-CH10", "BCN-OA1"}, ids)
	assert.Equal(t, domain.RoleOpeA, week.Airports[0].Rows[3].Role)
	assert.Equal(t, 3.33, week.Airports[0].Rows[3].Hours)
}

func TestHoursSummaryRejectsBadWorkerID(t *testing.T) {
	_, err := HoursSummary([]domain.WorkerWeekHours{{WorkerID: "nobody", Year: 2025, Week: 1, Hours: 1}})
	assert.Error(t, err)
}

func TestRenderTables(t *testing.T) {
	start := time.Date(2025, time.April, 7, 6, 0, 0, 0, time.UTC)
	split := &domain.ShiftCandidate{
		Role:          domain.RoleCheckIn,
		Airport:       "BCN",
		FlightIDs:     []string{"F1", "F2"},
		Start:         start,
		End:           start.Add(6*time.Hour + 30*time.Minute),
		DurationHours: 5,
		Split:         true,
		BreakMinutes:  90,
		Blocks: []domain.ShiftBlock{
			{Start: start, End: start.Add(150 * time.Minute), FlightIDs: []string{"F1"}},
			{Start: start.Add(4 * time.Hour), End: start.Add(6*time.Hour + 30*time.Minute), FlightIDs: []string{"F2"}},
		},
	}

	var buf bytes.Buffer
	RenderCandidates(&buf, []*scheduler.PartitionResult{{
		Role:       domain.RoleCheckIn,
		Airport:    "BCN",
		Day:        start,
		Candidates: []*domain.ShiftCandidate{split},
	}})
	assert.Contains(t, buf.String(), "06:00-08:30 / 10:00-12:30")
	assert.Contains(t, buf.String(), "CHECKIN / BCN / 2025-04-07")

	buf.Reset()
	RenderAssignments(&buf, []*domain.Assignment{{WorkerID: "BCN-CH1", Shift: split}})
	assert.Contains(t, buf.String(), "BCN-CH1")
	assert.Contains(t, buf.String(), "5.00")

	buf.Reset()
	RenderUncovered(&buf, nil)
	assert.Empty(t, buf.String())

	buf.Reset()
	summary, err := HoursSummary([]domain.WorkerWeekHours{{WorkerID: "BCN-CH1", Year: 2025, Week: 15, Hours: 5}})
	require.NoError(t, err)
	RenderHoursSummary(&buf, summary)
	assert.Contains(t, buf.String(), "=== Weekly Summary (7–13 April 2025) ===")
	assert.Contains(t, buf.String(), "Airport: BCN")
	assert.Contains(t, buf.String(), "5.00")
}
