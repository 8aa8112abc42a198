// Package database provides access to a timebook user's sheets.db
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
)

const (
	defaultBusyTimeout = 5 * time.Second
	pingTimeout        = 3 * time.Second
)

var (
	// ErrNoEntries is returned when a sheet holds no entries at all
	ErrNoEntries = errors.New("no timesheet entries")
	// ErrNotFound is returned for lookups of rows that do not exist
	ErrNotFound = errors.New("not found")
)

// Timesheet is one open connection to a user's timesheet database.
// It is opened per request and must be closed by the caller.
type Timesheet struct {
	db   *sql.DB
	Path string

	// now is replaceable for tests
	now func() time.Time
}

// OpenOptions control how the database file is opened
type OpenOptions struct {
	Create   bool // create the file if missing (init-db only)
	ReadOnly bool
	// BusyTimeout is how long sqlite waits on a lock before the retry
	// helpers take over, default 5s
	BusyTimeout time.Duration
}

// Open opens the timesheet database at path
func Open(ctx context.Context, path string, opts OpenOptions) (*Timesheet, error) {
	mode := "rw"
	switch {
	case opts.Create:
		mode = "rwc"
	case opts.ReadOnly:
		mode = "ro"
	}
	if !opts.Create {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("timesheet database %s: %w", path, err)
		}
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	dsn := fmt.Sprintf("file:%s?mode=%s&_busy_timeout=%d", path, mode, busy.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open timesheet database %s: %w", path, err)
	}
	// one connection per request is all we need
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping timesheet database %s: %w", path, err)
	}
	return &Timesheet{db: db, Path: path, now: time.Now}, nil
}

// Close releases the connection
func (ts *Timesheet) Close() error {
	if ts == nil || ts.db == nil {
		return nil
	}
	if err := ts.db.Close(); err != nil {
		log.Printf("[DB]: failed to close %s: %v", ts.Path, err)
		return err
	}
	return nil
}

// DB returns the underlying handle for direct access
func (ts *Timesheet) DB() *sql.DB {
	return ts.db
}

// Now returns the clock used for in-progress entries
func (ts *Timesheet) Now() time.Time {
	return ts.now()
}

// SetClock replaces the clock, used by tests
func (ts *Timesheet) SetClock(now func() time.Time) {
	ts.now = now
}
