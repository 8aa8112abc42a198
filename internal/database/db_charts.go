package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ChartFilter narrows the chart queries to a local date range and projects.
// Start and End are calendar days; both are inclusive. Zero values are open.
type ChartFilter struct {
	Start    time.Time
	End      time.Time
	Projects []string
}

// clause returns the SQL appended to a WHERE and its arguments
func (f ChartFilter) clause() (string, []interface{}) {
	var b strings.Builder
	var args []interface{}
	if !f.Start.IsZero() {
		b.WriteString(" AND entry.start_time > ?")
		args = append(args, StartOfDay(f.Start).Unix())
	}
	if !f.End.IsZero() {
		b.WriteString(" AND entry.start_time < ?")
		args = append(args, StartOfDay(f.End).AddDate(0, 0, 1).Unix())
	}
	if len(f.Projects) > 0 {
		b.WriteString(" AND ticket_details.project IN (?" + strings.Repeat(", ?", len(f.Projects)-1) + ")")
		for _, p := range f.Projects {
			args = append(args, p)
		}
	}
	return b.String(), args
}

// withFilter splices a filter clause into a query template
func withFilter(query, where string) string {
	return strings.Replace(query, "{{filter}}", where, 1)
}

// BillableDay is the billable share of one day's tracked time
type BillableDay struct {
	Date    string
	Percent float64
}

const query_BillableByDay = `SELECT date,
		ROUND(SUM(CASE WHEN billable = 1 THEN duration ELSE 0 END) / CAST(SUM(duration) AS FLOAT) * 100, 1)
	FROM (
		SELECT
			entry_details.billable AS billable,
			STRFTIME('%Y-%m-%d', entry.start_time, 'unixepoch', 'localtime') AS date,
			entry.end_time - entry.start_time AS duration
		FROM entry
		INNER JOIN entry_details ON entry_details.entry_id = entry.id
		LEFT JOIN ticket_details ON entry_details.ticket_number = ticket_details.number
		WHERE entry.sheet = ?{{filter}}
	)
	GROUP BY date
	ORDER BY date`

// BillableByDay returns per day the percentage of billable time. Only
// entries with details count; running entries contribute nothing.
func (ts *Timesheet) BillableByDay(ctx context.Context, sheet string, f ChartFilter) ([]BillableDay, error) {
	where, fargs := f.clause()
	args := append([]interface{}{sheet}, fargs...)

	rows, err := retryableQuery(ctx, ts.db, withFilter(query_BillableByDay, where), args...)
	if err != nil {
		return nil, fmt.Errorf("billable by day: %w", err)
	}
	defer rows.Close()

	var out []BillableDay
	for rows.Next() {
		var d BillableDay
		var pct sql.NullFloat64
		if err := rows.Scan(&d.Date, &pct); err != nil {
			return nil, fmt.Errorf("scan billable day: %w", err)
		}
		d.Percent = pct.Float64
		out = append(out, d)
	}
	return out, rows.Err()
}

const query_ProjectsInRange = `SELECT DISTINCT ticket_details.project FROM ticket_details
	INNER JOIN entry_details ON entry_details.ticket_number = ticket_details.number
	INNER JOIN entry ON entry_details.entry_id = entry.id
	WHERE entry.sheet = ? AND ticket_details.project IS NOT NULL AND ticket_details.project != ''{{filter}}
	ORDER BY ticket_details.project`

// ProjectsInRange returns the projects that have entries matching f
func (ts *Timesheet) ProjectsInRange(ctx context.Context, sheet string, f ChartFilter) ([]string, error) {
	where, fargs := f.clause()
	args := append([]interface{}{sheet}, fargs...)

	rows, err := retryableQuery(ctx, ts.db, withFilter(query_ProjectsInRange, where), args...)
	if err != nil {
		return nil, fmt.Errorf("projects in range: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ProjectHours is the time spent on one project during one day.
// Project is empty for entries without a ticket.
type ProjectHours struct {
	Date    string
	Project string
	Hours   float64
}

const query_ProjectHoursByDay = `SELECT
		STRFTIME('%Y-%m-%d', entry.start_time, 'unixepoch', 'localtime') AS date,
		COALESCE(ticket_details.project, '') AS project_name,
		ROUND(SUM((COALESCE(entry.end_time, ?) - entry.start_time) / CAST(3600 AS FLOAT)), 1) AS hours
	FROM entry
	LEFT JOIN entry_details ON entry_details.entry_id = entry.id
	LEFT JOIN ticket_details ON entry_details.ticket_number = ticket_details.number
	WHERE entry.sheet = ?{{filter}}
	GROUP BY date, project_name
	ORDER BY date, project_name`

// ProjectHoursByDay returns hours per day and project, rounded to one
// place. Running entries count until now.
func (ts *Timesheet) ProjectHoursByDay(ctx context.Context, sheet string, f ChartFilter) ([]ProjectHours, error) {
	where, fargs := f.clause()
	args := append([]interface{}{ts.now().Unix(), sheet}, fargs...)

	rows, err := retryableQuery(ctx, ts.db, withFilter(query_ProjectHoursByDay, where), args...)
	if err != nil {
		return nil, fmt.Errorf("project hours by day: %w", err)
	}
	defer rows.Close()

	var out []ProjectHours
	for rows.Next() {
		var ph ProjectHours
		var hours sql.NullFloat64
		if err := rows.Scan(&ph.Date, &ph.Project, &hours); err != nil {
			return nil, fmt.Errorf("scan project hours: %w", err)
		}
		ph.Hours = hours.Float64
		out = append(out, ph)
	}
	return out, rows.Err()
}
