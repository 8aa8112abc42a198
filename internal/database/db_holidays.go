package database

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DateLayout is the calendar date format used throughout the charts
const DateLayout = "2006-01-02"

const query_IsUntracked = `SELECT COUNT(*) FROM holidays WHERE year = ? AND month = ? AND day = ?`

// IsUntracked reports whether no time is expected on the given day.
// Databases without a holidays table track every day.
func (ts *Timesheet) IsUntracked(ctx context.Context, day time.Time) (bool, error) {
	var n int
	err := retryableQueryRowScan(ctx, ts.db, query_IsUntracked,
		[]interface{}{day.Year(), int(day.Month()), day.Day()}, &n)
	if isMissingTable(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("untracked %s: %w", day.Format(DateLayout), err)
	}
	return n > 0, nil
}

const query_UntrackedDays = `SELECT year, month, day FROM holidays`

// UntrackedDays returns all untracked days keyed by their date string
func (ts *Timesheet) UntrackedDays(ctx context.Context) (map[string]bool, error) {
	days := make(map[string]bool)
	rows, err := retryableQuery(ctx, ts.db, query_UntrackedDays)
	if isMissingTable(err) {
		log.Printf("[DB]: %s has no holidays table, every weekday is tracked", ts.Path)
		return days, nil
	}
	if err != nil {
		return nil, fmt.Errorf("untracked days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var y, m, d int
		if err := rows.Scan(&y, &m, &d); err != nil {
			return nil, fmt.Errorf("scan untracked day: %w", err)
		}
		days[time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local).Format(DateLayout)] = true
	}
	return days, rows.Err()
}

const query_AddHoliday = `INSERT OR REPLACE INTO holidays (year, month, day, description) VALUES (?, ?, ?, ?)`

// AddHoliday marks a day as untracked
func (ts *Timesheet) AddHoliday(ctx context.Context, day time.Time, description string) error {
	if _, err := retryableExec(ctx, ts.db, query_AddHoliday, day.Year(), int(day.Month()), day.Day(), description); err != nil {
		return fmt.Errorf("add holiday %s: %w", day.Format(DateLayout), err)
	}
	return nil
}
