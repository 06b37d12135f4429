package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesCSV = `Rol,Operation Type ,Pre,Post
SPV PAX,ARR/DEP,135,45
checkin ,arr/dep,135,30
CHECKIN,DEP,100.0,30
OPE_A,ARR/DEP,120,30
DRIV,,60,10
`

const flightsCSV = ` ID ,AIRPORT,Time,Day,Operation Type
FLT1018,BCN,14:00,01/04/2025,ARR/DEP
FLT1019,BCN,06:05:30,2025-04-02,DEP
FLT1020,MAD,,01/04/2025,DEP
FLT1021,MAD,9:15,1/4/2025,
`

func TestReadRulesCSV(t *testing.T) {
	rules, err := ReadRulesCSV(strings.NewReader(rulesCSV))
	require.NoError(t, err)

	assert.Equal(t, []domain.Role{domain.RoleSpvPax, domain.RoleCheckIn, domain.RoleOpeA}, rules.Roles())

	rule, ok := rules.Lookup(domain.RoleCheckIn, " arr/dep")
	require.True(t, ok)
	assert.Equal(t, 135, rule.PreMinutes)
	assert.Equal(t, 30, rule.PostMinutes)

	rule, ok = rules.Lookup(domain.RoleCheckIn, "DEP")
	require.True(t, ok)
	assert.Equal(t, 100, rule.PreMinutes)

	_, ok = rules.Lookup(domain.RoleOpeA, "DEP")
	assert.False(t, ok)
}

func TestReadRulesCSVErrors(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"unknown role": "Role,Op,Pre,Post\nPILOT,DEP,10,10\n",
		"bad minutes":  "Role,Op,Pre,Post\nCHECKIN,DEP,ten,10\n",
		"fraction":     "Role,Op,Pre,Post\nCHECKIN,DEP,10.5,10\n",
		"negative":     "Role,Op,Pre,Post\nCHECKIN,DEP,-10,10\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadRulesCSV(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestReadFlightsCSV(t *testing.T) {
	records, err := ReadFlightsCSV(strings.NewReader(flightsCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, &domain.FlightRecord{
		ID:            "FLT1018",
		Airport:       "BCN",
		OperationType: "ARR/DEP",
		Departure:     time.Date(2025, time.April, 1, 14, 0, 0, 0, time.UTC),
	}, records[0])

	// 秒数被忽略
	assert.Equal(t, time.Date(2025, time.April, 2, 6, 5, 0, 0, time.UTC), records[1].Departure)

	assert.Equal(t, "FLT1021", records[2].ID)
	assert.Equal(t, time.Date(2025, time.April, 1, 9, 15, 0, 0, time.UTC), records[2].Departure)
	assert.Empty(t, records[2].OperationType)
}

func TestReadFlightsCSVErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing column": "ID,Airport,Time\nF1,BCN,10:00\n",
		"bad day":        "ID,Airport,Time,Day\nF1,BCN,10:00,April 1st\n",
		"bad time":       "ID,Airport,Time,Day\nF1,BCN,ten,01/04/2025\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadFlightsCSV(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestBuildFlights(t *testing.T) {
	rules, err := ReadRulesCSV(strings.NewReader(rulesCSV))
	require.NoError(t, err)
	records, err := ReadFlightsCSV(strings.NewReader(flightsCSV))
	require.NoError(t, err)

	flights := BuildFlights(records, rules)
	require.Len(t, flights, 3)

	dep := time.Date(2025, time.April, 1, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, map[domain.Role]domain.PresenceWindow{
		domain.RoleSpvPax:  {Start: dep.Add(-135 * time.Minute), End: dep.Add(45 * time.Minute)},
		domain.RoleCheckIn: {Start: dep.Add(-135 * time.Minute), End: dep.Add(30 * time.Minute)},
		domain.RoleOpeA:    {Start: dep.Add(-120 * time.Minute), End: dep.Add(30 * time.Minute)},
	}, flights[0].Windows)

	// DEP 只有 CHECKIN 有规则
	assert.Len(t, flights[1].Windows, 1)
	assert.Contains(t, flights[1].Windows, domain.RoleCheckIn)

	assert.Empty(t, flights[2].Windows)
}
