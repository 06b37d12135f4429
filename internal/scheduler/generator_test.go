package scheduler

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nineHours = 9 * time.Hour
	twentyMin = 20 * time.Minute
)

func generate(t *testing.T, items []WorkItem) []*domain.ShiftCandidate {
	t.Helper()
	candidates, err := GenerateCandidates(context.Background(), items, nineHours, twentyMin)
	require.NoError(t, err)
	return candidates
}

func TestMaxDurationBoundary(t *testing.T) {
	exact := generate(t, solo(slot("F1", at(0, 18, 0), 540, 0)))
	require.Len(t, exact, 1)
	assert.InDelta(t, 9.0, exact[0].DurationHours, 1e-9)

	over := generate(t, solo(slot("F1", at(0, 18, 0), 541, 0)))
	assert.Empty(t, over)
}

func TestSeparationIsStrict(t *testing.T) {
	tooClose := generate(t, solo(
		slot("F1", at(0, 10, 0), 60, 10),
		slot("F2", at(0, 10, 20), 60, 10),
	))
	assert.Len(t, tooClose, 2)
	for _, c := range tooClose {
		assert.Len(t, c.FlightIDs, 1)
	}

	apart := generate(t, solo(
		slot("F1", at(0, 10, 0), 60, 10),
		slot("F2", at(0, 10, 21), 60, 10),
	))
	require.Len(t, apart, 3)
	assert.Equal(t, []string{"F1", "F2"}, apart[2].FlightIDs)
}

func TestBlockMembersSkipSeparation(t *testing.T) {
	blocks := MaterializeCluster(Cluster{
		slot("F1", at(0, 10, 0), 60, 10),
		slot("F2", at(0, 10, 5), 60, 10),
	}, 1)

	candidates := generate(t, blocks)
	require.Len(t, candidates, 1)
	assert.Equal(t, []string{"F1", "F2"}, candidates[0].FlightIDs)
}

func TestBlockAndSoloStillSeparated(t *testing.T) {
	items := MaterializeCluster(Cluster{
		slot("F1", at(0, 10, 0), 60, 10),
		slot("F2", at(0, 10, 5), 60, 10),
	}, 1)
	items = append(items, solo(slot("F3", at(0, 10, 20), 60, 10))...)

	candidates := generate(t, items)
	for _, c := range candidates {
		assert.NotEqual(t, []string{"F1", "F2", "F3"}, c.FlightIDs)
	}
	assert.Len(t, candidates, 2)
}

func TestSplitShift(t *testing.T) {
	// F1 在岗 06:00-08:30，F2 在岗 10:00-12:30，中间休息 90 分钟
	candidates := generate(t, solo(
		slot("F1", at(0, 8, 0), 120, 30),
		slot("F2", at(0, 12, 0), 120, 30),
	))
	require.Len(t, candidates, 3)

	c := candidates[2]
	assert.Equal(t, []string{"F1", "F2"}, c.FlightIDs)
	assert.True(t, c.Split)
	assert.Equal(t, 90.0, c.BreakMinutes)
	assert.InDelta(t, 5.0, c.DurationHours, 1e-9)
	assert.Equal(t, at(0, 6, 0), c.Start)
	assert.Equal(t, at(0, 12, 30), c.End)

	require.Len(t, c.Blocks, 2)
	assert.Equal(t, domain.ShiftBlock{Start: at(0, 6, 0), End: at(0, 8, 30), FlightIDs: []string{"F1"}}, c.Blocks[0])
	assert.Equal(t, domain.ShiftBlock{Start: at(0, 10, 0), End: at(0, 12, 30), FlightIDs: []string{"F2"}}, c.Blocks[1])
}

func TestSplitBreakBounds(t *testing.T) {
	tests := []struct {
		name      string
		gap       int
		wantSplit bool
	}{
		{"59 minutes", 59, false},
		{"60 minutes", 60, true},
		{"300 minutes", 300, true},
		{"301 minutes", 301, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 两个在岗时间都是 1 小时的航班，间隔 tt.gap 分钟
			first := slot("F1", at(0, 8, 0), 60, 0)
			second := slot("F2", at(0, 9, 0).Add(time.Duration(tt.gap)*time.Minute), 60, 0)

			candidates := generate(t, solo(first, second))
			var pair *domain.ShiftCandidate
			for _, c := range candidates {
				if len(c.FlightIDs) == 2 {
					pair = c
				}
			}
			require.NotNil(t, pair)
			assert.Equal(t, tt.wantSplit, pair.Split)
			if tt.wantSplit {
				assert.Equal(t, float64(tt.gap), pair.BreakMinutes)
				assert.InDelta(t, 2.0, pair.DurationHours, 1e-9)
			} else {
				assert.Len(t, pair.Blocks, 1)
			}
		})
	}
}

func TestOnlyFirstBreakIsSplit(t *testing.T) {
	// 三个航班之间各有一段 60 分钟的空档，只扣除第一段
	candidates := generate(t, solo(
		slot("F1", at(0, 7, 0), 60, 0),
		slot("F2", at(0, 9, 0), 60, 0),
		slot("F3", at(0, 11, 0), 60, 0),
	))

	var triple *domain.ShiftCandidate
	for _, c := range candidates {
		if len(c.FlightIDs) == 3 {
			triple = c
		}
	}
	require.NotNil(t, triple)
	assert.True(t, triple.Split)
	assert.InDelta(t, 4.0, triple.DurationHours, 1e-9)
	assert.Equal(t, []string{"F1"}, triple.Blocks[0].FlightIDs)
	assert.Equal(t, []string{"F2", "F3"}, triple.Blocks[1].FlightIDs)
}

func TestGeneratorInvariants(t *testing.T) {
	slots := []Slot{
		slot("F1", at(0, 6, 0), 120, 30),
		slot("F2", at(0, 6, 10), 120, 30),
		slot("F3", at(0, 8, 45), 120, 30),
		slot("F4", at(0, 11, 0), 120, 30),
		slot("F5", at(0, 13, 30), 120, 30),
		slot("F6", at(0, 16, 0), 120, 30),
		slot("F7", at(0, 19, 15), 120, 30),
	}
	runs, err := FindRuns(context.Background(), slots, twentyMin)
	require.NoError(t, err)
	items := MaterializeCluster(runs[0], 1)
	items = append(items, solo(slots[2:]...)...)

	candidates := generate(t, items)
	require.NotEmpty(t, candidates)

	keys := make(map[string]struct{})
	for _, c := range candidates {
		assert.LessOrEqual(t, c.DurationHours, 9.0)
		assert.GreaterOrEqual(t, c.DurationHours, 0.0)

		ids := slices.Clone(c.FlightIDs)
		slices.Sort(ids)
		assert.Equal(t, len(ids), len(slices.Compact(ids)), "候选班次 %v 中有重复航班", c.FlightIDs)

		if c.Split {
			assert.GreaterOrEqual(t, c.BreakMinutes, 60.0)
			assert.LessOrEqual(t, c.BreakMinutes, 300.0)
			require.Len(t, c.Blocks, 2)
			assert.Equal(t, c.FlightIDs, append(slices.Clone(c.Blocks[0].FlightIDs), c.Blocks[1].FlightIDs...))
			assert.Equal(t, c.Start, c.Blocks[0].Start)
			assert.Equal(t, c.End, c.Blocks[1].End)
		}

		key := candidateKey(c)
		_, dup := keys[key]
		assert.False(t, dup)
		keys[key] = struct{}{}

		// F1 和 F2 在同一个块里，要么一起出现，要么都不出现
		assert.Equal(t, slices.Contains(c.FlightIDs, "F1"), slices.Contains(c.FlightIDs, "F2"))
	}
}

func TestGeneratorIdempotent(t *testing.T) {
	items := solo(
		slot("F1", at(0, 6, 0), 90, 20),
		slot("F2", at(0, 7, 30), 90, 20),
		slot("F3", at(0, 10, 0), 90, 20),
		slot("F4", at(0, 14, 0), 90, 20),
	)

	first := generate(t, items)
	second := generate(t, items)
	assert.Equal(t, first, second)
}

func TestGeneratorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GenerateCandidates(ctx, solo(slot("F1", at(0, 6, 0), 90, 20)), nineHours, twentyMin)
	assert.ErrorIs(t, err, context.Canceled)
}
