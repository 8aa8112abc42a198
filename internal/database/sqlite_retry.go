package database

import (
	"context"
	"database/sql"
	"log"
	"math/rand"
	"strings"
	"time"
)

const (
	maxRetries = 50
	baseDelay  = 10 * time.Millisecond
	maxDelay   = 25 * time.Millisecond
)

// isRetryableError checks if the error is a retryable SQLite error
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked") ||
		strings.Contains(errStr, "busy")
}

// isMissingTable reports errors caused by a table that older timebook
// databases do not have
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// backoff sleeps before the next attempt, false when ctx is done
func backoff(ctx context.Context, attempt int) bool {
	// Exponential backoff with jitter
	delay := time.Duration(attempt+1) * baseDelay
	if delay > maxDelay {
		delay = maxDelay
	}
	// Add random jitter (up to 50% of delay)
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))

	t := time.NewTimer(delay + jitter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryableExec executes a SQL statement with retry logic for lock conflicts
func retryableExec(ctx context.Context, db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err = db.ExecContext(ctx, query, args...)
		if !isRetryableError(err) {
			return result, err
		}
		log.Printf("[WARN] SQLite retry attempt %d/%d for query (first 50 chars): %s... Error: %v",
			attempt+1, maxRetries, truncateString(query, 50), err)
		if !backoff(ctx, attempt) {
			return result, ctx.Err()
		}
	}

	return result, err
}

// retryableQuery executes a query that returns multiple rows with retry logic
func retryableQuery(ctx context.Context, db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		rows, err = db.QueryContext(ctx, query, args...)
		if !isRetryableError(err) {
			return rows, err
		}
		log.Printf("[WARN] SQLite retry attempt %d/%d for query (first 50 chars): %s... Error: %v",
			attempt+1, maxRetries, truncateString(query, 50), err)
		if !backoff(ctx, attempt) {
			return nil, ctx.Err()
		}
	}

	return rows, err
}

// retryableQueryRowScan executes a QueryRow and Scan with retry logic
func retryableQueryRowScan(ctx context.Context, db *sql.DB, query string, args []interface{}, dest ...interface{}) error {
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err = db.QueryRowContext(ctx, query, args...).Scan(dest...)
		if !isRetryableError(err) {
			return err
		}
		log.Printf("[WARN] SQLite retry attempt %d/%d for QueryRow scan (first 50 chars): %s... Error: %v",
			attempt+1, maxRetries, truncateString(query, 50), err)
		if !backoff(ctx, attempt) {
			return ctx.Err()
		}
	}

	return err
}

// truncateString truncates a string to the specified length
func truncateString(s string, length int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= length {
		return s
	}
	return s[:length]
}
