package anttop

import (
	"fmt"
	"strconv"
	"time"
)

// AggregateHeaders are the column titles of the statistics table
var AggregateHeaders = []string{
	"Label", "Requests", "Average", "Median", "90%", "95%", "99%",
	"Min", "Max", "Error %", "Throughput", "Received KB/s", "Sent KB/s",
}

// AggregateRow formats one statistic for display. Every measurement is
// printed with two decimals; the error rate carries a percent sign.
func AggregateRow(stat AggregateStat) []string {
	f := func(v float64) string {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return []string{
		stat.Label,
		strconv.Itoa(stat.RequestCount),
		f(stat.Average),
		f(stat.Median),
		f(stat.NinetyPercent),
		f(stat.NinetyFive),
		f(stat.NinetyNine),
		f(stat.MinTime),
		f(stat.MaxTime),
		fmt.Sprintf("%s%%", f(stat.ErrorPercent)),
		f(stat.Throughput),
		f(stat.ReceivedKB),
		f(stat.SentKB),
	}
}

// RenderAggregateTable draws the statistics table, wrapping when it is
// taller than maxHeight (0 disables wrapping)
func RenderAggregateTable(stats []AggregateStat, maxHeight int) string {
	rows := make([][]string, 0, len(stats))
	for _, stat := range stats {
		rows = append(rows, AggregateRow(stat))
	}
	return NewWrapTable().
		Headers(AggregateHeaders...).
		Numeric(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12).
		MaxHeight(maxHeight).
		Rows(rows...).
		Render()
}

// RenderStatesTable lists executions with their run window in loc
func RenderStatesTable(states []ExecutionState, loc *time.Location) string {
	stamp := func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.In(loc).Format(time.DateTime)
	}
	rows := make([][]string, 0, len(states))
	for _, s := range states {
		start := s.StartAt
		rows = append(rows, []string{s.LoadTestKey, s.ExecutionStatus, stamp(&start), stamp(s.FinishAt), s.FailureMessage})
	}
	return NewWrapTable().
		Headers("Key", "Status", "Started", "Finished", "Failure").
		Rows(rows...).
		Render()
}
