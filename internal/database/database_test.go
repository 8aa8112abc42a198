package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-while/go-timebook-web/internal/models"
)

const sheet = "default"

// openTestSheet creates an empty timesheet database in a temp dir
func openTestSheet(t *testing.T) *Timesheet {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheets.db")
	ts, err := Open(context.Background(), path, OpenOptions{Create: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { ts.Close() })
	if err := ts.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	return ts
}

func local(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.Local)
}

func i64(v int64) *int64 { return &v }

// addEntry inserts an entry from start to end (nil end: running)
func addEntry(t *testing.T, ts *Timesheet, start time.Time, end *time.Time, desc string, ticket int64, billable bool, withDetails bool) int64 {
	t.Helper()
	e := models.Entry{Sheet: sheet, StartTime: start.Unix(), Description: desc}
	if end != nil {
		e.EndTime = i64(end.Unix())
	}
	id, err := ts.InsertEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("InsertEntry() error = %v", err)
	}
	if withDetails {
		d := models.EntryDetails{EntryID: id, Billable: billable}
		if ticket != 0 {
			d.TicketNumber = i64(ticket)
		}
		if err := ts.SetEntryDetails(context.Background(), d); err != nil {
			t.Fatalf("SetEntryDetails() error = %v", err)
		}
	}
	return id
}

func timePtr(t time.Time) *time.Time { return &t }

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.db"), OpenOptions{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, expected os.ErrNotExist", err)
	}
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	ts := openTestSheet(t)
	if err := ts.InitSchema(context.Background()); err != nil {
		t.Errorf("second InitSchema() error = %v", err)
	}
}

func TestCurrentEntry(t *testing.T) {
	ts := openTestSheet(t)
	ctx := context.Background()

	if _, err := ts.CurrentEntry(ctx, sheet); !errors.Is(err, ErrNoEntries) {
		t.Fatalf("CurrentEntry() on empty sheet error = %v, expected ErrNoEntries", err)
	}

	now := local(2024, time.March, 5, 12, 0)
	ts.SetClock(func() time.Time { return now })
	addEntry(t, ts, local(2024, time.March, 5, 9, 0), timePtr(local(2024, time.March, 5, 10, 0)), "standup", 0, false, false)
	addEntry(t, ts, local(2024, time.March, 5, 10, 30), nil, "coding", 0, false, false)

	cur, err := ts.CurrentEntry(ctx, sheet)
	if err != nil {
		t.Fatalf("CurrentEntry() error = %v", err)
	}
	if cur.Description != "coding" || !cur.IsActive() {
		t.Errorf("CurrentEntry() = %+v, expected running 'coding'", cur.Entry)
	}
	if got := cur.Hours.String(); got != "1.5" {
		t.Errorf("CurrentEntry().Hours = %s, want 1.5", got)
	}
}

func TestCurrentEntryWaitsForLock(t *testing.T) {
	ts := openTestSheet(t)
	ctx := context.Background()
	addEntry(t, ts, local(2024, time.March, 5, 9, 0), nil, "coding", 0, false, false)

	reader, err := Open(ctx, ts.Path, OpenOptions{ReadOnly: true, BusyTimeout: time.Millisecond})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	locker, err := sql.Open("sqlite3", "file:"+ts.Path+"?_busy_timeout=1")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer locker.Close()
	conn, err := locker.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn() error = %v", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		t.Fatalf("BEGIN EXCLUSIVE error = %v", err)
	}

	released := make(chan error, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_, err := conn.ExecContext(ctx, "COMMIT")
		released <- err
	}()

	cur, err := reader.CurrentEntry(ctx, sheet)
	if err := <-released; err != nil {
		t.Fatalf("COMMIT error = %v", err)
	}
	if err != nil {
		t.Fatalf("CurrentEntry() while locked error = %v", err)
	}
	if cur.Description != "coding" {
		t.Errorf("CurrentEntry() = %+v", cur.Entry)
	}
}

func TestEntriesToday(t *testing.T) {
	ts := openTestSheet(t)
	ctx := context.Background()
	ts.SetClock(func() time.Time { return local(2024, time.March, 5, 12, 0) })

	addEntry(t, ts, local(2024, time.March, 4, 16, 0), timePtr(local(2024, time.March, 4, 17, 0)), "yesterday", 0, false, false)
	addEntry(t, ts, local(2024, time.March, 5, 9, 0), timePtr(local(2024, time.March, 5, 10, 0)), "first", 0, false, false)
	addEntry(t, ts, local(2024, time.March, 5, 10, 0), timePtr(local(2024, time.March, 5, 11, 15)), "second", 0, false, false)

	rows, err := ts.EntriesToday(ctx, sheet)
	if err != nil {
		t.Fatalf("EntriesToday() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("EntriesToday() returned %d rows, want 2", len(rows))
	}
	if rows[0].Description != "second" || rows[1].Description != "first" {
		t.Errorf("EntriesToday() order = %q, %q; want newest first", rows[0].Description, rows[1].Description)
	}
	if got := models.SumHours(rows).String(); got != "2.25" {
		t.Errorf("SumHours() = %s, want 2.25", got)
	}
}

func TestEntryMeta(t *testing.T) {
	ts := openTestSheet(t)
	ctx := context.Background()
	start := local(2024, time.March, 5, 9, 0)

	with := addEntry(t, ts, start, timePtr(start.Add(time.Hour)), "ticket work", 1234, true, true)
	without := addEntry(t, ts, start.Add(time.Hour), timePtr(start.Add(2*time.Hour)), "misc", 0, false, false)

	meta, err := ts.EntryMeta(ctx, with)
	if err != nil {
		t.Fatalf("EntryMeta() error = %v", err)
	}
	if meta.TicketNumber == nil || *meta.TicketNumber != 1234 || !meta.Billable {
		t.Errorf("EntryMeta() = %+v", meta)
	}

	meta, err = ts.EntryMeta(ctx, without)
	if err != nil {
		t.Fatalf("EntryMeta() error = %v", err)
	}
	if meta.EntryID != without || meta.TicketNumber != nil || meta.Billable {
		t.Errorf("EntryMeta() for entry without details = %+v", meta)
	}
}

func TestTicketDetails(t *testing.T) {
	ts := openTestSheet(t)
	ctx := context.Background()

	if _, err := ts.TicketDetails(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("TicketDetails() error = %v, expected ErrNotFound", err)
	}
	td := &models.TicketDetails{Number: 7, Project: "acme", Details: []byte(`{"subject":"Fix"}`)}
	if err := ts.SaveTicketDetails(ctx, td); err != nil {
		t.Fatalf("SaveTicketDetails() error = %v", err)
	}
	got, err := ts.TicketDetails(ctx, 7)
	if err != nil {
		t.Fatalf("TicketDetails() error = %v", err)
	}
	if got.Project != "acme" || got.Info().Subject != "Fix" {
		t.Errorf("TicketDetails() = %+v", got)
	}

	projects, err := ts.AllProjects(ctx)
	if err != nil {
		t.Fatalf("AllProjects() error = %v", err)
	}
	if len(projects) != 1 || projects[0] != "acme" {
		t.Errorf("AllProjects() = %v", projects)
	}
}

// seedChartData fills Mon 2024-03-04 and Tue 2024-03-05
func seedChartData(t *testing.T, ts *Timesheet) {
	t.Helper()
	ctx := context.Background()
	for _, td := range []*models.TicketDetails{
		{Number: 1, Project: "acme"},
		{Number: 2, Project: "globex"},
		{Number: 3, Project: "unused"},
	} {
		if err := ts.SaveTicketDetails(ctx, td); err != nil {
			t.Fatalf("SaveTicketDetails() error = %v", err)
		}
	}
	// Monday: 2h billable acme, 2h non-billable globex, 1h without details
	addEntry(t, ts, local(2024, time.March, 4, 9, 0), timePtr(local(2024, time.March, 4, 11, 0)), "acme", 1, true, true)
	addEntry(t, ts, local(2024, time.March, 4, 11, 0), timePtr(local(2024, time.March, 4, 13, 0)), "globex", 2, false, true)
	addEntry(t, ts, local(2024, time.March, 4, 14, 0), timePtr(local(2024, time.March, 4, 15, 0)), "lunch", 0, false, false)
	// Tuesday: 1.5h billable acme
	addEntry(t, ts, local(2024, time.March, 5, 9, 0), timePtr(local(2024, time.March, 5, 10, 30)), "acme", 1, true, true)
}

func TestBillableByDay(t *testing.T) {
	ts := openTestSheet(t)
	seedChartData(t, ts)

	days, err := ts.BillableByDay(context.Background(), sheet, ChartFilter{})
	if err != nil {
		t.Fatalf("BillableByDay() error = %v", err)
	}
	want := []BillableDay{{"2024-03-04", 50}, {"2024-03-05", 100}}
	if len(days) != len(want) {
		t.Fatalf("BillableByDay() = %v, want %v", days, want)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("BillableByDay()[%d] = %v, want %v", i, days[i], want[i])
		}
	}
}

func TestBillableByDayDateRange(t *testing.T) {
	ts := openTestSheet(t)
	seedChartData(t, ts)

	f := ChartFilter{Start: local(2024, time.March, 5, 0, 0), End: local(2024, time.March, 5, 0, 0)}
	days, err := ts.BillableByDay(context.Background(), sheet, f)
	if err != nil {
		t.Fatalf("BillableByDay() error = %v", err)
	}
	if len(days) != 1 || days[0].Date != "2024-03-05" {
		t.Errorf("BillableByDay() with range = %v, want only 2024-03-05", days)
	}
}

func TestProjectsInRange(t *testing.T) {
	ts := openTestSheet(t)
	seedChartData(t, ts)
	ctx := context.Background()

	projects, err := ts.ProjectsInRange(ctx, sheet, ChartFilter{})
	if err != nil {
		t.Fatalf("ProjectsInRange() error = %v", err)
	}
	if len(projects) != 2 || projects[0] != "acme" || projects[1] != "globex" {
		t.Errorf("ProjectsInRange() = %v, want [acme globex]", projects)
	}

	projects, err = ts.ProjectsInRange(ctx, sheet, ChartFilter{Projects: []string{"globex"}})
	if err != nil {
		t.Fatalf("ProjectsInRange() error = %v", err)
	}
	if len(projects) != 1 || projects[0] != "globex" {
		t.Errorf("ProjectsInRange(globex) = %v", projects)
	}

	all, err := ts.AllProjects(ctx)
	if err != nil {
		t.Fatalf("AllProjects() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("AllProjects() = %v, want 3 projects", all)
	}
}

func TestProjectHoursByDay(t *testing.T) {
	ts := openTestSheet(t)
	seedChartData(t, ts)
	ts.SetClock(func() time.Time { return local(2024, time.March, 5, 12, 0) })
	// running since 11:00 → 1h until the clock
	addEntry(t, ts, local(2024, time.March, 5, 11, 0), nil, "running", 2, false, true)

	got, err := ts.ProjectHoursByDay(context.Background(), sheet, ChartFilter{})
	if err != nil {
		t.Fatalf("ProjectHoursByDay() error = %v", err)
	}
	want := []ProjectHours{
		{"2024-03-04", "", 1},
		{"2024-03-04", "acme", 2},
		{"2024-03-04", "globex", 2},
		{"2024-03-05", "acme", 1.5},
		{"2024-03-05", "globex", 1},
	}
	if len(got) != len(want) {
		t.Fatalf("ProjectHoursByDay() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ProjectHoursByDay()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHolidays(t *testing.T) {
	ts := openTestSheet(t)
	ctx := context.Background()
	day := local(2024, time.December, 25, 0, 0)

	untracked, err := ts.IsUntracked(ctx, day)
	if err != nil || untracked {
		t.Fatalf("IsUntracked() = %v, %v before adding holiday", untracked, err)
	}
	if err := ts.AddHoliday(ctx, day, "Christmas"); err != nil {
		t.Fatalf("AddHoliday() error = %v", err)
	}
	untracked, err = ts.IsUntracked(ctx, day)
	if err != nil || !untracked {
		t.Errorf("IsUntracked() = %v, %v after adding holiday", untracked, err)
	}
	days, err := ts.UntrackedDays(ctx)
	if err != nil {
		t.Fatalf("UntrackedDays() error = %v", err)
	}
	if !days["2024-12-25"] || len(days) != 1 {
		t.Errorf("UntrackedDays() = %v", days)
	}
}

func TestHolidaysMissingTable(t *testing.T) {
	ts := openTestSheet(t)
	ctx := context.Background()
	if _, err := ts.DB().Exec(`DROP TABLE holidays`); err != nil {
		t.Fatalf("drop holidays: %v", err)
	}
	untracked, err := ts.IsUntracked(ctx, local(2024, time.March, 4, 0, 0))
	if err != nil || untracked {
		t.Errorf("IsUntracked() = %v, %v without holidays table", untracked, err)
	}
	days, err := ts.UntrackedDays(ctx)
	if err != nil || len(days) != 0 {
		t.Errorf("UntrackedDays() = %v, %v without holidays table", days, err)
	}
}
