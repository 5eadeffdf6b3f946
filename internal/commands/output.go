package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/core/styles"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/taskflow"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// login resolves --user/--password into a RequestContext, prompting for the
// password when it is missing and stdin is a terminal.
func login(flags *Flags, app *taskflow.App) (*taskflow.RequestContext, error) {
	if flags.User == "" {
		return nil, errors.New("no user: pass --user or set TASKFLOW_USER")
	}

	password := flags.Password
	if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		pw, err := promptPassword(fmt.Sprintf("Password for %s: ", flags.User))
		if err != nil {
			return nil, err
		}
		password = pw
	}

	return app.Login(flags.User, password)
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bits, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bits), nil
}

// readLine reads one line from r without the trailing newline.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// argID parses the first positional argument as a task or notification id.
func argID(c *cli.Command, usage string) (int64, error) {
	if c.NArg() < 1 {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", c.Args().First())
	}
	return id, nil
}

// parseDay parses a YYYY-MM-DD flag value. Empty yields nil.
func parseDay(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(task.DateFormat, v, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not a YYYY-MM-DD date", name, v)
	}
	return &t, nil
}

// maxCellWidth caps free-text columns in styled tables.
const maxCellWidth = 48

// truncateColumn shortens column col of every row to width display cells.
func truncateColumn(rows [][]string, col, width int) {
	for _, r := range rows {
		if col < len(r) && ansi.StringWidth(r[col]) > width {
			r[col] = ansi.Truncate(r[col], width, "…")
		}
	}
}

// writeTasks renders tasks as a styled table on a terminal and as a plain
// tab-aligned table otherwise.
func writeTasks(w io.Writer, tasks []task.Task, now time.Time) error {
	headers := []string{"ID", "TITLE", "ASSIGNEE", "DUE", "STATUS", "PRIORITY", "HOURS"}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = task.FormatDate(t.DueDate) + " (" + t.DueIn(now) + ")"
		}
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			t.AssignedTo,
			due,
			string(t.Status),
			t.Priority.String(),
			strconv.FormatFloat(t.HoursSpent, 'f', 2, 64),
		})
	}

	if !isTerminal(w) {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
		for _, r := range rows {
			_, _ = fmt.Fprintln(tw, strings.Join(r, "\t"))
		}
		return tw.Flush()
	}

	truncateColumn(rows, 1, maxCellWidth)

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.BorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.HeaderStyle
			}
			t := tasks[row]
			switch col {
			case 3:
				if t.IsOverdue(now) {
					return styles.CellStyle.Foreground(styles.CurrentPalette.Error)
				}
			case 4:
				return styles.StatusStyle(t.Status)
			case 5:
				return styles.CellStyle.Foreground(styles.PriorityColor(t.Priority))
			}
			return styles.CellStyle
		})

	_, err := fmt.Fprintln(w, tbl)
	return err
}

// writeEntries renders notifications the same way as writeTasks.
func writeEntries(w io.Writer, entries []audit.Entry) error {
	headers := []string{"ID", "TIME", "TASK", "USER", "ACTION", "DETAILS"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			e.Title,
			e.User,
			string(e.Action),
			e.Details,
		})
	}

	if !isTerminal(w) {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
		for _, r := range rows {
			_, _ = fmt.Fprintln(tw, strings.Join(r, "\t"))
		}
		return tw.Flush()
	}

	truncateColumn(rows, 2, maxCellWidth)
	truncateColumn(rows, 5, maxCellWidth)

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.BorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.HeaderStyle
			}
			if !entries[row].Read {
				return styles.CellStyle.Bold(true)
			}
			return styles.CellStyle.Foreground(styles.CurrentPalette.Muted)
		})

	_, err := fmt.Fprintln(w, tbl)
	return err
}
