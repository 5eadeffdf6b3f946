package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/core/styles"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
)

// TaskCmd implements the taskflow task command group.
type TaskCmd struct {
	flags *Flags
	app   *taskflow.App
	now   func() time.Time

	jsonOutput bool

	// list flags
	listStatus   string
	listAssignee string
	listPriority string
	listDueFrom  string
	listDueTo    string
	listSearch   string
	listArchived bool
	listMine     bool

	// create and update flags
	title       string
	assignee    string
	startDate   string
	dueDate     string
	priority    string
	description string
	link        string

	// update only
	status   string
	hours    float64
	revision int64
	patchDoc iojson.FileReader[task.Patch]
}

// NewTaskCmd creates a new task command.
func NewTaskCmd(flags *Flags, app *taskflow.App) *TaskCmd {
	return &TaskCmd{flags: flags, app: app, now: time.Now}
}

// Register adds the task command to the application.
func (cmd *TaskCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "task",
		Usage: "List, create and update tasks",
		Description: `Task commands act as the user given by --user (or TASKFLOW_USER).

Managers create and reassign tasks. Members update the tasks assigned to them.

Examples:
  taskflow task list --mine
  taskflow task create --title "Draft contract" --assignee Luke --due 2024-03-15
  taskflow task update 1709283600000 --status "In Progress"
  taskflow task comment 1709283600000 "waiting on legal"`,
		Commands: []*cli.Command{
			cmd.listCmd(),
			cmd.showCmd(),
			cmd.createCmd(),
			cmd.updateCmd(),
			cmd.archiveCmd(),
			cmd.commentCmd(),
		},
	})

	return app
}

func (cmd *TaskCmd) jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:        "json",
		Usage:       "output as JSON",
		Destination: &cmd.jsonOutput,
	}
}

func (cmd *TaskCmd) listCmd() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List tasks",
		UsageText: "taskflow task list [--status <status>] [--assignee <name>] [--search <text>]",
		Description: `Lists tasks sorted as stored. Archived tasks are hidden unless --archived
or --status Archived is given.

--search matches title and description case-insensitively. A query with
glob characters such as "*contract*" is matched as a glob instead.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "filter by status", Destination: &cmd.listStatus},
			&cli.StringFlag{Name: "assignee", Aliases: []string{"a"}, Usage: "filter by assignee", Destination: &cmd.listAssignee},
			&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "filter by priority (high, medium, low or 1-3)", Destination: &cmd.listPriority},
			&cli.StringFlag{Name: "due-from", Usage: "due on or after YYYY-MM-DD", Destination: &cmd.listDueFrom},
			&cli.StringFlag{Name: "due-to", Usage: "due on or before YYYY-MM-DD", Destination: &cmd.listDueTo},
			&cli.StringFlag{Name: "search", Usage: "search title and description", Destination: &cmd.listSearch},
			&cli.BoolFlag{Name: "archived", Usage: "include archived tasks", Destination: &cmd.listArchived},
			&cli.BoolFlag{Name: "mine", Usage: "only tasks assigned to the current user", Destination: &cmd.listMine},
			cmd.jsonFlag(),
		},
		Action: cmd.runList,
	}
}

func (cmd *TaskCmd) showCmd() *cli.Command {
	return &cli.Command{
		Name:          "show",
		Usage:         "Show one task with its description and comments",
		UsageText:     "taskflow task show <id> [--json]",
		Flags:         []cli.Flag{cmd.jsonFlag()},
		ShellComplete: TaskIDCompleter(cmd.app),
		Action:        cmd.runShow,
	}
}

func (cmd *TaskCmd) createCmd() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create and assign a task (managers only)",
		UsageText: "taskflow task create --title <title> --assignee <name> [options]",
		Description: `Creates a task in the Assigned state.

When --title is omitted and stdin is a terminal, an interactive form is shown.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "task title", Destination: &cmd.title},
			&cli.StringFlag{Name: "assignee", Aliases: []string{"a"}, Usage: "user the task is assigned to", Destination: &cmd.assignee},
			&cli.StringFlag{Name: "start", Usage: "start date YYYY-MM-DD", Destination: &cmd.startDate},
			&cli.StringFlag{Name: "due", Usage: "due date YYYY-MM-DD", Destination: &cmd.dueDate},
			&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "high, medium or low", Value: "low", Destination: &cmd.priority},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "markdown description", Destination: &cmd.description},
			&cli.StringFlag{Name: "link", Usage: "external link", Destination: &cmd.link},
			cmd.jsonFlag(),
		},
		Action: cmd.runCreate,
	}
}

func (cmd *TaskCmd) updateCmd() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update fields of a task",
		UsageText: "taskflow task update <id> [--status <status>] [--title <title>] ... | --file patch.json",
		Description: `Updates only the fields that are given. A JSON patch document can be passed
with --file or piped on stdin instead of flags.

--revision makes the update fail if someone else changed the task since
that revision was read.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "task title", Destination: &cmd.title},
			&cli.StringFlag{Name: "assignee", Aliases: []string{"a"}, Usage: "reassign (managers only)", Destination: &cmd.assignee},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "new status", Destination: &cmd.status},
			&cli.StringFlag{Name: "start", Usage: "start date YYYY-MM-DD", Destination: &cmd.startDate},
			&cli.StringFlag{Name: "due", Usage: "due date YYYY-MM-DD", Destination: &cmd.dueDate},
			&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "high, medium or low", Destination: &cmd.priority},
			&cli.FloatFlag{Name: "hours", Usage: "hours spent", Destination: &cmd.hours},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "markdown description", Destination: &cmd.description},
			&cli.StringFlag{Name: "link", Usage: "external link", Destination: &cmd.link},
			&cli.Int64Flag{Name: "revision", Usage: "expected revision", Destination: &cmd.revision},
			cmd.patchDoc.Flag(),
			cmd.jsonFlag(),
		},
		ShellComplete: TaskIDCompleter(cmd.app),
		Action:        cmd.runUpdate,
	}
}

func (cmd *TaskCmd) archiveCmd() *cli.Command {
	return &cli.Command{
		Name:          "archive",
		Usage:         "Archive a task",
		UsageText:     "taskflow task archive <id>",
		ShellComplete: TaskIDCompleter(cmd.app),
		Action:        cmd.runArchive,
	}
}

func (cmd *TaskCmd) commentCmd() *cli.Command {
	return &cli.Command{
		Name:          "comment",
		Usage:         "Add a comment to a task",
		UsageText:     "taskflow task comment <id> <text>",
		ShellComplete: TaskIDCompleter(cmd.app),
		Action:        cmd.runComment,
	}
}

func (cmd *TaskCmd) runList(ctx context.Context, c *cli.Command) error {
	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}

	filter := task.ListFilter{
		AssignedTo:      cmd.listAssignee,
		Search:          cmd.listSearch,
		IncludeArchived: cmd.listArchived,
	}
	if cmd.listMine {
		filter.AssignedTo = rc.User.Name
	}
	if cmd.listStatus != "" {
		filter.Status = task.ParseStatus(cmd.listStatus)
		if !filter.Status.IsValid() {
			return fmt.Errorf("invalid status %q", cmd.listStatus)
		}
	}
	if cmd.listPriority != "" {
		filter.Priority = task.ParsePriority(cmd.listPriority)
	}
	if filter.DueFrom, err = parseDay("due-from", cmd.listDueFrom); err != nil {
		return err
	}
	if filter.DueTo, err = parseDay("due-to", cmd.listDueTo); err != nil {
		return err
	}

	rc.Selection = filter
	tasks, err := rc.List(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.WriteLines(out, tasks)
	}
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(c.Root().ErrWriter, "No tasks found")
		return nil
	}
	return writeTasks(out, tasks, cmd.now())
}

func (cmd *TaskCmd) runShow(ctx context.Context, c *cli.Command) error {
	id, err := argID(c, "taskflow task show <id>")
	if err != nil {
		return err
	}
	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}
	rc.Select(id)

	t, err := rc.Selected(ctx)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.Write(out, t)
	}

	doc := taskMarkdown(t, cmd.now())
	if !isTerminal(out) {
		_, err := fmt.Fprint(out, doc)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(styles.GlamourStyle()),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		log.Debug().Err(err).Msg("failed to create markdown renderer, showing raw content")
		_, err := fmt.Fprint(out, doc)
		return err
	}
	rendered, err := renderer.Render(doc)
	if err != nil {
		log.Debug().Err(err).Msg("failed to render markdown, showing raw content")
		rendered = doc
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

// taskMarkdown renders a task as a markdown document.
func taskMarkdown(t task.Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| ID | %d |\n", t.ID)
	fmt.Fprintf(&b, "| Assigned to | %s |\n", t.AssignedTo)
	fmt.Fprintf(&b, "| Status | %s |\n", t.Status)
	fmt.Fprintf(&b, "| Priority | %s |\n", t.Priority)
	if t.StartDate != nil {
		fmt.Fprintf(&b, "| Start | %s |\n", task.FormatDate(t.StartDate))
	}
	if t.DueDate != nil {
		fmt.Fprintf(&b, "| Due | %s (%s) |\n", task.FormatDate(t.DueDate), t.DueIn(now))
	}
	if t.CompletedDate != nil {
		fmt.Fprintf(&b, "| Completed | %s |\n", task.FormatDate(t.CompletedDate))
	}
	fmt.Fprintf(&b, "| Hours | %.2f |\n", t.HoursSpent)
	fmt.Fprintf(&b, "| Revision | %d |\n", t.Revision)
	if t.ExternalLink != "" {
		fmt.Fprintf(&b, "| Link | %s |\n", t.ExternalLink)
	}

	if strings.TrimSpace(t.Description) != "" {
		fmt.Fprintf(&b, "\n## Description\n\n%s\n", t.Description)
	}

	if len(t.Comments) > 0 {
		b.WriteString("\n## Comments\n\n")
		for _, cm := range t.Comments {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", cm.User, cm.Time.Local().Format("2006-01-02 15:04"), cm.Text)
		}
	}
	return b.String()
}

func (cmd *TaskCmd) runCreate(ctx context.Context, c *cli.Command) error {
	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}

	if cmd.title == "" && isTerminal(c.Root().Writer) {
		if err := cmd.runForm(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return fmt.Errorf("form: %w", err)
		}
	}

	in := taskflow.NewTask{
		Title:        cmd.title,
		AssignedTo:   cmd.assignee,
		Priority:     task.ParsePriority(cmd.priority),
		Description:  cmd.description,
		ExternalLink: cmd.link,
	}
	if in.StartDate, err = parseDay("start", cmd.startDate); err != nil {
		return err
	}
	if in.DueDate, err = parseDay("due", cmd.dueDate); err != nil {
		return err
	}

	created, err := rc.Create(ctx, in)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.Write(c.Root().Writer, created)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "created %d\n", created.ID)
	return nil
}

func (cmd *TaskCmd) runForm() error {
	assignees := cmd.app.Config.KnownAssignees()

	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Validate(required("title")).
			Value(&cmd.title),
	}

	if len(assignees) > 0 {
		fields = append(fields, huh.NewSelect[string]().
			Title("Assignee").
			Options(huh.NewOptions(assignees...)...).
			Value(&cmd.assignee))
	} else {
		fields = append(fields, huh.NewInput().
			Title("Assignee").
			Validate(required("assignee")).
			Value(&cmd.assignee))
	}

	fields = append(fields,
		huh.NewInput().
			Title("Due date").
			Description("YYYY-MM-DD, leave empty for none").
			Validate(func(s string) error {
				_, err := parseDay("due", s)
				return err
			}).
			Value(&cmd.dueDate),
		huh.NewSelect[string]().
			Title("Priority").
			Options(
				huh.NewOption("High", "high"),
				huh.NewOption("Medium", "medium"),
				huh.NewOption("Low", "low"),
			).
			Value(&cmd.priority),
		huh.NewText().
			Title("Description").
			Description("Markdown").
			Value(&cmd.description),
	)

	return huh.NewForm(huh.NewGroup(fields...)).WithTheme(styles.FormTheme()).Run()
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// patch builds a task.Patch from the flags that were set on c.
func (cmd *TaskCmd) patch(c *cli.Command) (task.Patch, error) {
	var p task.Patch
	var err error

	if c.IsSet("title") {
		p.Title = &cmd.title
	}
	if c.IsSet("assignee") {
		p.AssignedTo = &cmd.assignee
	}
	if c.IsSet("status") {
		st := task.ParseStatus(cmd.status)
		p.Status = &st
	}
	if c.IsSet("start") {
		if p.StartDate, err = parseDay("start", cmd.startDate); err != nil {
			return p, err
		}
	}
	if c.IsSet("due") {
		if p.DueDate, err = parseDay("due", cmd.dueDate); err != nil {
			return p, err
		}
	}
	if c.IsSet("priority") {
		pr, err := task.ParsePriorityStrict(cmd.priority)
		if err != nil {
			return p, err
		}
		p.Priority = &pr
	}
	if c.IsSet("hours") {
		p.HoursSpent = &cmd.hours
	}
	if c.IsSet("description") {
		p.Description = &cmd.description
	}
	if c.IsSet("link") {
		p.ExternalLink = &cmd.link
	}
	if c.IsSet("revision") {
		p.ExpectedRevision = &cmd.revision
	}
	return p, nil
}

func (cmd *TaskCmd) runUpdate(ctx context.Context, c *cli.Command) error {
	id, err := argID(c, "taskflow task update <id> [flags]")
	if err != nil {
		return err
	}

	p, err := cmd.patch(c)
	if err != nil {
		return err
	}
	if p.IsEmpty() && c.IsSet("file") {
		if p, err = cmd.patchDoc.Read(); err != nil {
			return err
		}
	}

	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}
	rc.Select(id)

	updated, err := rc.Update(ctx, p)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.Write(c.Root().Writer, updated)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "updated %d (revision %d)\n", updated.ID, updated.Revision)
	return nil
}

func (cmd *TaskCmd) runArchive(ctx context.Context, c *cli.Command) error {
	id, err := argID(c, "taskflow task archive <id>")
	if err != nil {
		return err
	}
	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}
	rc.Select(id)

	if _, err := rc.Archive(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.Root().Writer, "archived")
	return nil
}

func (cmd *TaskCmd) runComment(ctx context.Context, c *cli.Command) error {
	id, err := argID(c, "taskflow task comment <id> <text>")
	if err != nil {
		return err
	}
	text := strings.Join(c.Args().Tail(), " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("usage: taskflow task comment <id> <text>")
	}

	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}
	rc.Select(id)

	if _, err := rc.Comment(ctx, text); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.Root().Writer, "commented")
	return nil
}
