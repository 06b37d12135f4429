package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/groundops/staff-sizer/backend/internal/scheduler"
	"github.com/jedib0t/go-pretty/v6/table"
)

const clock = "15:04"

func newTable(w io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	if title != "" {
		tw.SetTitle(title)
	}
	return tw
}

func shiftTimes(c *domain.ShiftCandidate) string {
	if !c.Split {
		return fmt.Sprintf("%s-%s", c.Start.Format(clock), c.End.Format(clock))
	}
	parts := make([]string, len(c.Blocks))
	for i, b := range c.Blocks {
		parts[i] = fmt.Sprintf("%s-%s", b.Start.Format(clock), b.End.Format(clock))
	}
	return strings.Join(parts, " / ")
}

func breakMinutes(c *domain.ShiftCandidate) string {
	if !c.Split {
		return ""
	}
	return fmt.Sprintf("%.0f", c.BreakMinutes)
}

// RenderCandidates 按分区输出所有候选班次
func RenderCandidates(w io.Writer, partitions []*scheduler.PartitionResult) {
	for _, p := range partitions {
		if len(p.Candidates) == 0 {
			continue
		}
		tw := newTable(w, fmt.Sprintf("%s / %s / %s", p.Role, p.Airport, p.Day.Format(time.DateOnly)))
		tw.AppendHeader(table.Row{"#", "Flights", "Time", "Hours", "Break (min)"})
		for i, c := range p.Candidates {
			tw.AppendRow(table.Row{i + 1, strings.Join(c.FlightIDs, ", "), shiftTimes(c), fmt.Sprintf("%.2f", c.DurationHours), breakMinutes(c)})
		}
		tw.AppendFooter(table.Row{"", "", "Blocks", p.BlockCount, ""})
		tw.Render()
	}
}

func RenderAssignments(w io.Writer, assignments []*domain.Assignment) {
	tw := newTable(w, "Assignments")
	tw.AppendHeader(table.Row{"Worker", "Role", "Airport", "Day", "Time", "Hours", "Flights"})
	total := 0.0
	for _, a := range assignments {
		c := a.Shift
		tw.AppendRow(table.Row{a.WorkerID, c.Role, c.Airport, c.Start.Format(time.DateOnly), shiftTimes(c), fmt.Sprintf("%.2f", c.DurationHours), strings.Join(c.FlightIDs, ", ")})
		total += c.DurationHours
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Total", fmt.Sprintf("%.2f", total), len(assignments)})
	tw.Render()
}

func RenderUncovered(w io.Writer, uncovered []*domain.UncoveredFlights) {
	if len(uncovered) == 0 {
		return
	}
	tw := newTable(w, "Uncovered flights")
	tw.AppendHeader(table.Row{"Role", "Airport", "Day", "Flights"})
	for _, u := range uncovered {
		tw.AppendRow(table.Row{u.Role, u.Airport, u.Day, strings.Join(u.FlightIDs, ", ")})
	}
	tw.Render()
}

// RenderHoursSummary 每周每个机场输出一张工时表
func RenderHoursSummary(w io.Writer, summary []WeekHours) {
	for _, week := range summary {
		fmt.Fprintf(w, "\n=== Weekly Summary (%s) ===\n", week.Label)
		for _, airport := range week.Airports {
			fmt.Fprintf(w, "Airport: %s\n", airport.Airport)
			tw := newTable(w, "")
			tw.AppendHeader(table.Row{"Worker ID", "Role", "Hours Worked"})
			for _, row := range airport.Rows {
				tw.AppendRow(table.Row{row.WorkerID, row.Role, fmt.Sprintf("%.2f", row.Hours)})
			}
			tw.Render()
		}
	}
}
