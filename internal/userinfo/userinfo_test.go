package userinfo

import (
	"context"
	"errors"
	"os/user"
	"testing"
)

func TestParsePasswdName(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"adam:x:1000:1000:Adam Coddington,,,:/home/adam:/bin/bash\n", "Adam Coddington"},
		{"svc:x:999:999::/var/lib/svc:/usr/sbin/nologin", ""},
		{"", ""},
		{"broken:x:1", ""},
	}
	for _, tt := range tests {
		if got := ParsePasswdName(tt.line); got != tt.want {
			t.Errorf("ParsePasswdName(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func withGetent(t *testing.T, fn func(ctx context.Context, username string) (string, error)) {
	t.Helper()
	orig := Getent
	Getent = fn
	t.Cleanup(func() { Getent = orig })
}

func TestHumanName(t *testing.T) {
	withGetent(t, func(ctx context.Context, username string) (string, error) {
		if username == "adam" {
			return "adam:x:1000:1000:Adam Coddington,Room 1:/home/adam:/bin/bash\n", nil
		}
		return "", nil
	})

	if got := HumanName(context.Background(), "adam"); got != "Adam Coddington" {
		t.Errorf("HumanName(adam) = %q", got)
	}
	if got := HumanName(context.Background(), "ghost"); got != "ghost" {
		t.Errorf("HumanName(ghost) = %q, want the username", got)
	}
}

func TestHumanNameGetentMissing(t *testing.T) {
	withGetent(t, func(ctx context.Context, username string) (string, error) {
		return "", errors.New("exec: \"getent\": executable file not found in $PATH")
	})
	if got := HumanName(context.Background(), "no-such-user-here"); got != "no-such-user-here" {
		t.Errorf("HumanName() = %q, want the username as fallback", got)
	}
}

func TestHomeDir(t *testing.T) {
	cur, err := user.Current()
	if err != nil {
		t.Skipf("Skipping test: no current user: %v", err)
	}
	home, err := HomeDir(cur.Username)
	if err != nil {
		t.Fatalf("HomeDir(%q) error = %v", cur.Username, err)
	}
	if home != cur.HomeDir {
		t.Errorf("HomeDir() = %q, want %q", home, cur.HomeDir)
	}

	if _, err := HomeDir("no-such-user-timebook"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("HomeDir(unknown) error = %v, want ErrUnknownUser", err)
	}
}
