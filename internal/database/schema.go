package database

import (
	"context"
	_ "embed"
	"fmt"
	"log"
)

//go:embed schema/sheets.sql
var sheetsSchema string

// InitSchema creates the timebook tables that do not exist yet
func (ts *Timesheet) InitSchema(ctx context.Context) error {
	if _, err := retryableExec(ctx, ts.db, sheetsSchema); err != nil {
		return fmt.Errorf("init schema %s: %w", ts.Path, err)
	}
	log.Printf("[DB]: schema ready in %s", ts.Path)
	return nil
}
