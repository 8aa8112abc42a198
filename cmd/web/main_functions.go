package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-while/go-timebook-web/internal/config"
	"github.com/go-while/go-timebook-web/internal/database"
	"github.com/go-while/go-timebook-web/internal/models"
	"github.com/go-while/go-timebook-web/internal/userinfo"
	"github.com/go-while/go-timebook-web/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const minPasswordLen = 6

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for password_hash",
		Long: `Reads a password (twice when stdin is a terminal) and prints the
bcrypt hash to put into the password_hash setting of the server config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.ErrOrStderr(), cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := web.HashPassword(password)
			if err != nil {
				return fmt.Errorf("failed to hash password: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// readPassword prompts on a terminal, otherwise reads the first line of in
func readPassword(prompt io.Writer, in io.Reader) (string, error) {
	fd := int(syscall.Stdin)
	if f, ok := in.(*os.File); ok && f == os.Stdin && term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Enter password: ")
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprint(prompt, "Confirm password: ")
		confirm, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password confirmation: %v", err)
		}
		if string(password) != string(confirm) {
			return "", errors.New("passwords do not match")
		}
		return checkPassword(string(password))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %v", err)
	}
	return checkPassword(strings.TrimRight(line, "\r\n"))
}

func checkPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	}
	return password, nil
}

// resolveUser picks the timebook user for the terminal commands: the flag,
// then TIMEBOOK_USER, then the invoking OS user
func resolveUser(flagUser string) (string, error) {
	if flagUser != "" {
		return flagUser, nil
	}
	env, err := config.ParseEnv()
	if err != nil {
		return "", err
	}
	if env.User != "" {
		return env.User, nil
	}
	cur, err := user.Current()
	if err != nil {
		return "", config.ErrNoUser
	}
	return cur.Username, nil
}

func userPaths(flagUser string) (string, config.UserPaths, error) {
	username, err := resolveUser(flagUser)
	if err != nil {
		return "", config.UserPaths{}, err
	}
	home, err := userinfo.HomeDir(username)
	if err != nil {
		return "", config.UserPaths{}, err
	}
	return username, config.PathsForHome(home), nil
}

func newInitDBCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create missing tables in a user's sheets.db",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, paths, err := userPaths(username)
			if err != nil {
				return err
			}
			return initDB(cmd.Context(), paths)
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "timebook user (default: $TIMEBOOK_USER or the current user)")
	return cmd
}

func initDB(ctx context.Context, paths config.UserPaths) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(paths.Dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", paths.Dir, err)
	}
	ts, err := database.Open(ctx, paths.SheetsDB, database.OpenOptions{Create: true})
	if err != nil {
		return err
	}
	defer ts.Close()
	return ts.InitSchema(ctx)
}

func newStatusCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current entry and today's entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			name, paths, err := userPaths(username)
			if err != nil {
				return err
			}
			ts, err := database.Open(ctx, paths.SheetsDB, database.OpenOptions{ReadOnly: true})
			if err != nil {
				return err
			}
			defer ts.Close()

			current, err := ts.CurrentEntry(ctx, config.DefaultSheet)
			if err != nil && !errors.Is(err, database.ErrNoEntries) {
				return err
			}
			today, err := ts.EntriesToday(ctx, config.DefaultSheet)
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), userinfo.HumanName(ctx, name), current, today)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "timebook user (default: $TIMEBOOK_USER or the current user)")
	return cmd
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	hoursStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Width(7).Align(lipgloss.Right)
	summaryStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

func clock(t time.Time) string {
	if t.IsZero() {
		return "     "
	}
	return t.Format("15:04")
}

// renderStatus prints the terminal version of the dashboard
func renderStatus(w io.Writer, humanName string, current *models.TimesheetRow, today []*models.TimesheetRow) {
	fmt.Fprintln(w, titleStyle.Render(humanName))

	switch {
	case current == nil:
		fmt.Fprintln(w, mutedStyle.Render("Nothing tracked yet."))
	case current.IsActive():
		fmt.Fprintln(w, activeStyle.Render(fmt.Sprintf("Working on %s since %s (%s h)",
			current.Description, clock(current.Start()), current.Hours.StringFixed(2))))
	default:
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Not tracking. Last: %s until %s",
			current.Description, clock(current.End()))))
	}

	if len(today) == 0 {
		fmt.Fprintln(w, summaryStyle.Render("No entries today."))
		return
	}
	fmt.Fprintln(w)
	for _, row := range today {
		line := fmt.Sprintf("%s - %s %s  %s", clock(row.Start()), clock(row.End()),
			hoursStyle.Render(row.Hours.StringFixed(2)), row.Description)
		if row.IsActive() {
			line = activeStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, summaryStyle.Render("Today: "+models.SumHours(today).StringFixed(2)+" h"))
}
