package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"taskboard/internal/board"
	"taskboard/internal/dnd"
	"taskboard/internal/model"
)

var errTaskNotLoaded = errors.New("task not found in the loaded pages")

func (a *app) listCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:     "ls [column...]",
		Aliases: []string{"list"},
		Short:   "Show the board or some of its columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := parseColumns(args)
			if err != nil {
				return err
			}
			a.load(cmd.Context())
			a.list(a.out, search, cols)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show tasks whose title contains this text")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.load(cmd.Context())
			t, ok := a.board.FindTask(model.TaskID(args[0]))
			if !ok {
				return fmt.Errorf("#%s: %w", args[0], errTaskNotLoaded)
			}
			renderTask(a.out, t)
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var (
		form   board.TaskForm
		column string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task at the end of a column",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := model.ParseColumn(column)
			if err != nil {
				return err
			}
			form.Title = strings.Join(args, " ")
			form.Column = col
			a.load(cmd.Context())
			return a.add(cmd.Context(), form)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&column, "column", "c", string(model.ColumnBacklog), "Column to add the task to")
	bindFormFlags(cmd, &form)
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var form board.TaskForm
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the title, description, priority, assignee or tags of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := model.TaskID(args[0])
			a.load(ctx)
			current, ok := a.board.FindTask(id)
			if !ok {
				return fmt.Errorf("#%s: %w", id, errTaskNotLoaded)
			}

			merged := board.FormFromTask(current)
			fs := cmd.Flags()
			if fs.Changed("title") {
				merged.Title = form.Title
			}
			if fs.Changed("description") {
				merged.Description = form.Description
			}
			if fs.Changed("priority") {
				merged.Priority = form.Priority
			}
			if fs.Changed("assignee") {
				merged.Assignee = form.Assignee
			}
			if fs.Changed("tags") {
				merged.Tags = form.Tags
			}

			t, err := a.board.EditTask(ctx, id, merged)
			if err != nil {
				return describeError(err)
			}
			fmt.Fprintf(a.out, "✏️  Updated #%s %s\n", t.ID, t.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Title, "title", "", "New title")
	bindFormFlags(cmd, &form)
	return cmd
}

func bindFormFlags(cmd *cobra.Command, form *board.TaskForm) {
	fs := cmd.Flags()
	fs.StringVarP(&form.Description, "description", "d", "", "Task description")
	fs.StringVarP((*string)(&form.Priority), "priority", "p", "", "low, medium or high (default medium)")
	fs.StringVarP(&form.Assignee, "assignee", "a", "", "Person working on the task")
	fs.StringVarP(&form.Tags, "tags", "t", "", "Comma separated tags")
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <id> <column|task-id>",
		Aliases: []string{"move", "drag"},
		Short:   "Drop a task at the end of a column or onto another task",
		Long: `mv drags a task like the board does with the mouse.

Dropping on a column puts the task last. Dropping on a task puts it above the
first task, below the last one, or between the task and the one before it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.load(cmd.Context())
			return a.move(cmd.Context(), model.TaskID(args[0]), args[1])
		},
	}
}

func (a *app) removeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.load(cmd.Context())
			return a.remove(cmd.Context(), model.TaskID(args[0]), yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func (a *app) moreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "more <column>",
		Short: "Load the next page of a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := model.ParseColumn(args[0])
			if err != nil {
				return err
			}
			a.load(cmd.Context())
			return a.more(cmd.Context(), col, "")
		},
	}
}

func (a *app) list(w io.Writer, search string, cols []model.Column) {
	for _, col := range cols {
		renderColumn(w, a.board.Column(col, search), search)
	}
}

func (a *app) add(ctx context.Context, form board.TaskForm) error {
	t, err := a.board.CreateTask(ctx, form)
	if err != nil {
		return describeError(err)
	}
	fmt.Fprintf(a.out, "✅ Created #%s in %s\n", t.ID, t.Column.Title())
	return nil
}

// move resolves dest as a column or a task id and runs a full drag gesture
// with it.
func (a *app) move(ctx context.Context, id model.TaskID, dest string) error {
	t, ok := a.board.FindTask(id)
	if !ok {
		return fmt.Errorf("#%s: %w", id, errTaskNotLoaded)
	}

	target := dnd.TaskTarget(model.TaskID(dest))
	if col, err := model.ParseColumn(dest); err == nil {
		target = dnd.ColumnTarget(col)
	}

	engine := a.board.Drag()
	engine.DragStart(t)
	engine.DragOver(target)
	drop, err := engine.DragEnd(ctx, &target)
	if err != nil {
		return describeError(err)
	}
	if drop.Abandoned {
		fmt.Fprintf(a.out, "Nothing to drop on: %q is neither a column nor a loaded task\n", dest)
		return nil
	}
	fmt.Fprintf(a.out, "➡️  Moved #%s to %s (order %g)\n", id, drop.Column.Title(), drop.Order)
	return nil
}

func (a *app) remove(ctx context.Context, id model.TaskID, skipConfirm bool) error {
	if !skipConfirm {
		label := "#" + string(id)
		if t, ok := a.board.FindTask(id); ok {
			label += " " + t.Title
		}
		ok, err := a.confirm(fmt.Sprintf("Delete %s? (yes/no): ", label))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.out, "Cancelled.")
			return nil
		}
	}
	if err := a.board.DeleteTask(ctx, id); err != nil {
		return describeError(err)
	}
	fmt.Fprintf(a.out, "🗑️  Deleted #%s\n", id)
	return nil
}

func (a *app) more(ctx context.Context, col model.Column, search string) error {
	if err := a.board.LoadMore(ctx, col); err != nil {
		return describeError(err)
	}
	renderColumn(a.out, a.board.Column(col, search), search)
	return nil
}

func parseColumns(args []string) ([]model.Column, error) {
	if len(args) == 0 {
		return model.Columns, nil
	}
	cols := make([]model.Column, 0, len(args))
	for _, arg := range args {
		col, err := model.ParseColumn(arg)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// describeError turns a validation failure into a message naming the fields
// and leaves other errors as they are.
func describeError(err error) error {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		parts := make([]string, 0, len(verr.Fields))
		for _, name := range []string{"title", "column", "priority", "order"} {
			if msg, ok := verr.Fields[name]; ok {
				parts = append(parts, name+" "+msg)
			}
		}
		if len(parts) > 0 {
			return fmt.Errorf("invalid task: %s", strings.Join(parts, ", "))
		}
	}
	return err
}
