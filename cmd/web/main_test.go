package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-while/go-timebook-web/internal/config"
	"github.com/go-while/go-timebook-web/internal/database"
	"github.com/go-while/go-timebook-web/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func TestReadPasswordFromPipe(t *testing.T) {
	var prompt bytes.Buffer
	got, err := readPassword(&prompt, strings.NewReader("correct horse\n"))
	if err != nil || got != "correct horse" {
		t.Fatalf("readPassword() = %q, %v", got, err)
	}
	if prompt.Len() != 0 {
		t.Errorf("piped input printed a prompt: %q", prompt.String())
	}

	if _, err := readPassword(&prompt, strings.NewReader("short")); err == nil {
		t.Error("readPassword() accepted a short password")
	}
}

func TestHashPasswordCommand(t *testing.T) {
	cmd := newHashPasswordCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("hunter22\n"))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("hash-password error = %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")); err != nil {
		t.Errorf("printed hash %q does not match: %v", hash, err)
	}
}

func TestLoadServeConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "web.toml")
	if err := os.WriteFile(path, []byte("listen_port = 9000\ndebug = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     []string
		wantPort int
		wantErr  bool
	}{
		{"file only", []string{"--config", path}, 9000, false},
		{"flag wins", []string{"--config", path, "--port", "9100"}, 9100, false},
		{"ssl without cert", []string{"--config", path, "--ssl"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &serveOptions{}
			cmd := &cobra.Command{Use: "serve"}
			bindServeFlags(cmd, opts)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags() error = %v", err)
			}
			cfg, err := loadServeConfig(cmd, opts, config.Env{})
			if tt.wantErr {
				if err == nil {
					t.Error("loadServeConfig() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("loadServeConfig() error = %v", err)
			}
			if cfg.ListenPort != tt.wantPort || !cfg.Debug {
				t.Errorf("config = %+v, want port %d with debug", cfg, tt.wantPort)
			}
		})
	}
}

func TestInitDB(t *testing.T) {
	paths := config.PathsForHome(t.TempDir())
	ctx := context.Background()
	if err := initDB(ctx, paths); err != nil {
		t.Fatalf("initDB() error = %v", err)
	}
	// existing databases are left alone
	if err := initDB(ctx, paths); err != nil {
		t.Fatalf("second initDB() error = %v", err)
	}

	ts, err := database.Open(ctx, paths.SheetsDB, database.OpenOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ts.Close()
	if _, err := ts.CurrentEntry(ctx, config.DefaultSheet); err != database.ErrNoEntries {
		t.Errorf("CurrentEntry() on a fresh db error = %v, want ErrNoEntries", err)
	}
}

func row(desc string, start time.Time, end *time.Time, hours string) *models.TimesheetRow {
	e := models.Entry{Description: desc, StartTime: start.Unix()}
	if end != nil {
		v := end.Unix()
		e.EndTime = &v
	}
	return &models.TimesheetRow{Entry: e, Hours: decimal.RequireFromString(hours)}
}

func TestRenderStatus(t *testing.T) {
	day := time.Date(2024, 3, 6, 0, 0, 0, 0, time.Local)
	end := day.Add(10*time.Hour + 30*time.Minute)
	done := row("Login bug", day.Add(9*time.Hour), &end, "1.5")
	running := row("Writing tests", day.Add(14*time.Hour), nil, "1")

	var out bytes.Buffer
	renderStatus(&out, "Adam Coddington", running, []*models.TimesheetRow{running, done})
	for _, want := range []string{
		"Adam Coddington",
		"Working on Writing tests since 14:00 (1.00 h)",
		"09:00 - 10:30",
		"Login bug",
		"Today: 2.50 h",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("status output does not contain %q\n%s", want, out.String())
		}
	}

	out.Reset()
	renderStatus(&out, "Adam", nil, nil)
	if !strings.Contains(out.String(), "Nothing tracked yet.") || !strings.Contains(out.String(), "No entries today.") {
		t.Errorf("empty status output = %q", out.String())
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out.String(), config.AppVersion) {
		t.Errorf("version output = %q", out.String())
	}
}
