package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-while/go-timebook-web/internal/models"
)

const entryColumns = `id, sheet, start_time, end_time, COALESCE(description, '')`

func scanEntry(scan func(dest ...interface{}) error) (models.Entry, error) {
	var e models.Entry
	var end sql.NullInt64
	if err := scan(&e.ID, &e.Sheet, &e.StartTime, &end, &e.Description); err != nil {
		return e, err
	}
	if end.Valid {
		v := end.Int64
		e.EndTime = &v
	}
	return e, nil
}

const query_CurrentEntry = `SELECT ` + entryColumns + ` FROM entry
	WHERE sheet = ?
	ORDER BY start_time DESC, id DESC
	LIMIT 1`

// CurrentEntry returns the most recently started entry of sheet
func (ts *Timesheet) CurrentEntry(ctx context.Context, sheet string) (*models.TimesheetRow, error) {
	e, err := scanEntry(func(dest ...interface{}) error {
		return retryableQueryRowScan(ctx, ts.db, query_CurrentEntry, []interface{}{sheet}, dest...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoEntries
	}
	if err != nil {
		return nil, fmt.Errorf("current entry of sheet %s: %w", sheet, err)
	}
	return models.NewTimesheetRow(e, ts.now()), nil
}

const query_EntriesSince = `SELECT ` + entryColumns + ` FROM entry
	WHERE sheet = ? AND start_time > ?
	ORDER BY start_time DESC, id DESC`

// EntriesSince returns the entries of sheet started after since, newest first
func (ts *Timesheet) EntriesSince(ctx context.Context, sheet string, since time.Time) ([]*models.TimesheetRow, error) {
	rows, err := retryableQuery(ctx, ts.db, query_EntriesSince, sheet, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("entries of sheet %s since %s: %w", sheet, since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	now := ts.now()
	var out []*models.TimesheetRow
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, models.NewTimesheetRow(e, now))
	}
	return out, rows.Err()
}

// EntriesToday returns today's entries of sheet, local calendar
func (ts *Timesheet) EntriesToday(ctx context.Context, sheet string) ([]*models.TimesheetRow, error) {
	return ts.EntriesSince(ctx, sheet, StartOfDay(ts.now()))
}

const query_EntryMeta = `SELECT entry_id, ticket_number, COALESCE(billable, 0) FROM entry_details WHERE entry_id = ?`

// EntryMeta returns the details of an entry; entries without details get a
// zero value carrying only the id
func (ts *Timesheet) EntryMeta(ctx context.Context, entryID int64) (models.EntryDetails, error) {
	meta := models.EntryDetails{EntryID: entryID}
	var ticket sql.NullInt64
	var billable int
	err := retryableQueryRowScan(ctx, ts.db, query_EntryMeta, []interface{}{entryID}, &meta.EntryID, &ticket, &billable)
	if errors.Is(err, sql.ErrNoRows) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("entry meta %d: %w", entryID, err)
	}
	if ticket.Valid {
		v := ticket.Int64
		meta.TicketNumber = &v
	}
	meta.Billable = billable == 1
	return meta, nil
}

const query_InsertEntry = `INSERT INTO entry (sheet, start_time, end_time, description) VALUES (?, ?, ?, ?)`

// InsertEntry adds an entry and returns its id
func (ts *Timesheet) InsertEntry(ctx context.Context, e models.Entry) (int64, error) {
	var end interface{}
	if e.EndTime != nil {
		end = *e.EndTime
	}
	res, err := retryableExec(ctx, ts.db, query_InsertEntry, e.Sheet, e.StartTime, end, e.Description)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return res.LastInsertId()
}

const query_SetEntryDetails = `INSERT OR REPLACE INTO entry_details (entry_id, ticket_number, billable) VALUES (?, ?, ?)`

// SetEntryDetails stores the ticket link and billable flag of an entry
func (ts *Timesheet) SetEntryDetails(ctx context.Context, d models.EntryDetails) error {
	var ticket interface{}
	if d.TicketNumber != nil {
		ticket = *d.TicketNumber
	}
	billable := 0
	if d.Billable {
		billable = 1
	}
	if _, err := retryableExec(ctx, ts.db, query_SetEntryDetails, d.EntryID, ticket, billable); err != nil {
		return fmt.Errorf("set entry details %d: %w", d.EntryID, err)
	}
	return nil
}

// StartOfDay returns local midnight of t's calendar day
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
