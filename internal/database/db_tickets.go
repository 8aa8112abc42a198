package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-while/go-timebook-web/internal/models"
)

const query_TicketDetails = `SELECT number, COALESCE(project, ''), details FROM ticket_details WHERE number = ?`

// TicketDetails returns the cached details of a ticket or ErrNotFound
func (ts *Timesheet) TicketDetails(ctx context.Context, number int64) (*models.TicketDetails, error) {
	td := &models.TicketDetails{}
	var details []byte
	err := retryableQueryRowScan(ctx, ts.db, query_TicketDetails, []interface{}{number}, &td.Number, &td.Project, &details)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ticket details %d: %w", number, err)
	}
	td.Details = details
	return td, nil
}

const query_SaveTicketDetails = `INSERT OR REPLACE INTO ticket_details (number, project, details) VALUES (?, ?, ?)`

// SaveTicketDetails caches the details of a ticket
func (ts *Timesheet) SaveTicketDetails(ctx context.Context, td *models.TicketDetails) error {
	var project interface{}
	if td.Project != "" {
		project = td.Project
	}
	if _, err := retryableExec(ctx, ts.db, query_SaveTicketDetails, td.Number, project, []byte(td.Details)); err != nil {
		return fmt.Errorf("save ticket details %d: %w", td.Number, err)
	}
	return nil
}

const query_AllProjects = `SELECT DISTINCT project FROM ticket_details WHERE project IS NOT NULL AND project != '' ORDER BY project`

// AllProjects returns every project known to the ticket cache
func (ts *Timesheet) AllProjects(ctx context.Context) ([]string, error) {
	rows, err := retryableQuery(ctx, ts.db, query_AllProjects)
	if err != nil {
		return nil, fmt.Errorf("all projects: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
