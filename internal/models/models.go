// Package models defines core data structures for go-timebook-web
package models

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one timesheet row: a tracked interval with an optional end
type Entry struct {
	ID          int64  `json:"id" db:"id"`
	Sheet       string `json:"sheet" db:"sheet"`
	StartTime   int64  `json:"start_time" db:"start_time"` // unix seconds
	EndTime     *int64 `json:"end_time" db:"end_time"`     // nil while in progress
	Description string `json:"description" db:"description"`
}

// EntryDetails links an entry to a ticket and marks it billable
type EntryDetails struct {
	EntryID      int64  `json:"entry_id" db:"entry_id"`
	TicketNumber *int64 `json:"ticket_number" db:"ticket_number"`
	Billable     bool   `json:"billable" db:"billable"`
}

// TicketDetails is the cached issue tracker information of a ticket
type TicketDetails struct {
	Number  int64           `json:"number" db:"number"`
	Project string          `json:"project" db:"project"`
	Details json.RawMessage `json:"details" db:"details"`
}

// TicketInfo is the subset of the remote issue we display
type TicketInfo struct {
	Subject string `json:"subject"`
	Status  string `json:"status"`
	Project string `json:"project"`
}

// Info decodes the details blob. Empty blobs yield a zero value; blobs that
// do not decode are logged and yield what could be decoded.
func (t *TicketDetails) Info() TicketInfo {
	var info TicketInfo
	if t == nil || len(t.Details) == 0 {
		return info
	}
	if err := json.Unmarshal(t.Details, &info); err != nil {
		log.Printf("[MODELS]: ticket %d: decode details: %v", t.Number, err)
	}
	if info.Project == "" {
		info.Project = t.Project
	}
	return info
}

// TicketLookup resolves ticket numbers to their details
type TicketLookup interface {
	Lookup(ctx context.Context, number int64) (*TicketDetails, error)
	URL(number int64) string
}

// TimesheetRow is an entry prepared for display
type TimesheetRow struct {
	Entry
	Hours     decimal.Decimal // rounded to 2 places
	Meta      EntryDetails
	Ticket    *TicketDetails
	TicketURL string
}

// NewTimesheetRow computes the hours of e against now when it is still open
func NewTimesheetRow(e Entry, now time.Time) *TimesheetRow {
	return &TimesheetRow{Entry: e, Hours: EntryHours(e, now)}
}

// EntryHours returns the duration of e in hours, rounded to 2 places
func EntryHours(e Entry, now time.Time) decimal.Decimal {
	end := now.Unix()
	if e.EndTime != nil {
		end = *e.EndTime
	}
	return decimal.NewFromInt(end - e.StartTime).Div(decimal.NewFromInt(3600)).Round(2)
}

// IsActive reports whether the entry has not been stopped yet
func (r *TimesheetRow) IsActive() bool {
	return r.EndTime == nil
}

// Start returns the start time in local time
func (r *TimesheetRow) Start() time.Time {
	return time.Unix(r.StartTime, 0)
}

// End returns the end time in local time, zero while active
func (r *TimesheetRow) End() time.Time {
	if r.EndTime == nil {
		return time.Time{}
	}
	return time.Unix(*r.EndTime, 0)
}

// TicketNumber returns the linked ticket or 0
func (r *TimesheetRow) TicketNumber() int64 {
	if r.Meta.TicketNumber == nil {
		return 0
	}
	return *r.Meta.TicketNumber
}

// TicketInfo returns the decoded ticket details, zero when unresolved
func (r *TimesheetRow) TicketInfo() TicketInfo {
	return r.Ticket.Info()
}

// ResolveTicket looks up the ticket linked in Meta. Lookup errors leave the
// row without ticket details.
func (r *TimesheetRow) ResolveTicket(ctx context.Context, lookup TicketLookup) error {
	n := r.TicketNumber()
	if n == 0 || lookup == nil {
		return nil
	}
	r.TicketURL = lookup.URL(n)
	td, err := lookup.Lookup(ctx, n)
	if err != nil {
		return err
	}
	r.Ticket = td
	return nil
}

// SumHours adds up the hours of rows
func SumHours(rows []*TimesheetRow) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Hours)
	}
	return total
}
