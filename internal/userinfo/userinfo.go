// Package userinfo resolves timebook users to display names and home
// directories through the system passwd database.
package userinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"os/user"
	"strings"
	"time"
)

const getentTimeout = 2 * time.Second

// ErrUnknownUser is returned when the passwd database has no such user
var ErrUnknownUser = errors.New("unknown user")

// Getent returns the raw passwd line of username; replaceable for tests
var Getent = func(ctx context.Context, username string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, getentTimeout)
	defer cancel()
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "getent", "passwd", username)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// getent exits 2 for keys it cannot find
			return "", nil
		}
		return "", err
	}
	return out.String(), nil
}

// ParsePasswdName extracts the full name from a passwd line: the first
// comma separated part of the GECOS field
func ParsePasswdName(line string) string {
	fields := strings.Split(strings.TrimSpace(line), ":")
	if len(fields) < 5 {
		return ""
	}
	return strings.TrimSpace(strings.Split(fields[4], ",")[0])
}

// HumanName returns the full name of username, or username itself when
// the passwd database has none
func HumanName(ctx context.Context, username string) string {
	line, err := Getent(ctx, username)
	if err != nil {
		log.Printf("[USER]: getent for %q failed, using os/user: %v", username, err)
		if u, lerr := user.Lookup(username); lerr == nil && u.Name != "" {
			return strings.Split(u.Name, ",")[0]
		}
		return username
	}
	if name := ParsePasswdName(line); name != "" {
		return name
	}
	return username
}

// HomeDir resolves ~username
func HomeDir(username string) (string, error) {
	u, err := user.Lookup(username)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return "", fmt.Errorf("%q: %w", username, ErrUnknownUser)
		}
		return "", fmt.Errorf("lookup %q: %w", username, err)
	}
	return u.HomeDir, nil
}
