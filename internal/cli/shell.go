package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"taskboard/internal/board"
	"taskboard/internal/model"
	"taskboard/internal/theme"
)

var shellCommands = []string{
	"ls", "show", "add", "edit", "mv", "rm", "more", "search", "reload",
	"theme", "help", "quit",
}

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive board session",
		Long: `shell keeps one board open. The task lists stay cached between commands
and are refreshed after every change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			line.SetCompleter(completeShell)

			s := &shell{app: a, line: line}
			a.confirm = s.confirm
			return s.run(cmd.Context())
		},
	}
}

type shell struct {
	app    *app
	line   *liner.State
	search string
}

func shellHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".taskboard_history")
}

func (s *shell) run(ctx context.Context) error {
	if f, err := os.Open(shellHistoryFile()); err == nil {
		s.line.ReadHistory(f)
		f.Close()
	}
	defer s.saveHistory()

	out := s.app.out
	fmt.Fprintf(out, "board - %s\n", s.app.cfg.APIBaseURL)
	fmt.Fprintln(out, "Type 'help' for available commands.")
	fmt.Fprintln(out)

	s.app.load(ctx)
	s.app.list(out, s.search, model.Columns)

	for {
		input, err := s.line.Prompt("board> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nBye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		s.line.AppendHistory(input)

		quit, err := s.exec(ctx, input)
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
		if quit {
			fmt.Fprintln(out, "Bye!")
			return nil
		}
	}
}

// exec runs one shell line and reports whether the session should end.
func (s *shell) exec(ctx context.Context, input string) (bool, error) {
	a := s.app
	parts := strings.Fields(input)
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "exit", "quit", "q":
		return true, nil

	case "help", "?":
		s.printHelp()

	case "ls", "list":
		cols, err := parseColumns(args)
		if err != nil {
			return false, err
		}
		a.load(ctx)
		a.list(a.out, s.search, cols)

	case "show":
		if len(args) != 1 {
			return false, errors.New("usage: show <id>")
		}
		t, ok := a.board.FindTask(model.TaskID(args[0]))
		if !ok {
			return false, fmt.Errorf("#%s: %w", args[0], errTaskNotLoaded)
		}
		renderTask(a.out, t)

	case "add":
		if len(args) < 2 {
			return false, errors.New("usage: add <column> <title>")
		}
		col, err := model.ParseColumn(args[0])
		if err != nil {
			return false, err
		}
		return false, a.add(ctx, board.TaskForm{Title: strings.Join(args[1:], " "), Column: col})

	case "edit":
		if len(args) < 2 {
			return false, errors.New("usage: edit <id> <new title>")
		}
		id := model.TaskID(args[0])
		current, ok := a.board.FindTask(id)
		if !ok {
			return false, fmt.Errorf("#%s: %w", id, errTaskNotLoaded)
		}
		form := board.FormFromTask(current)
		form.Title = strings.Join(args[1:], " ")
		if _, err := a.board.EditTask(ctx, id, form); err != nil {
			return false, describeError(err)
		}
		fmt.Fprintf(a.out, "✏️  Updated #%s\n", id)

	case "mv", "move", "drag":
		if len(args) != 2 {
			return false, errors.New("usage: mv <id> <column|task-id>")
		}
		return false, a.move(ctx, model.TaskID(args[0]), args[1])

	case "rm", "delete":
		if len(args) != 1 {
			return false, errors.New("usage: rm <id>")
		}
		return false, a.remove(ctx, model.TaskID(args[0]), false)

	case "more":
		if len(args) != 1 {
			return false, errors.New("usage: more <column>")
		}
		col, err := model.ParseColumn(args[0])
		if err != nil {
			return false, err
		}
		return false, a.more(ctx, col, s.search)

	case "search", "find":
		s.search = strings.Join(args, " ")
		a.list(a.out, s.search, model.Columns)

	case "reload":
		cols, err := parseColumns(args)
		if err != nil {
			return false, err
		}
		for _, col := range cols {
			if err := a.board.Reload(ctx, col); err != nil {
				fmt.Fprintf(a.out, "⚠️  %s: %v\n", col, err)
			}
		}
		a.list(a.out, s.search, cols)

	case "theme":
		switch {
		case len(args) == 0:
			return false, a.showTheme(a.out)
		case args[0] == "list":
			return false, a.listThemes(a.out)
		default:
			return false, a.setTheme(a.out, args[0])
		}

	case "clear", "cls":
		fmt.Fprint(a.out, "\033[H\033[2J")

	default:
		fmt.Fprintf(a.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false, nil
}

func (s *shell) printHelp() {
	fmt.Fprint(s.app.out, `Commands:
  ls [column...]            show the board or some columns
  show <id>                 show one task
  add <column> <title>      create a task at the end of a column
  edit <id> <title>         rename a task
  mv <id> <column|task-id>  drop a task on a column or another task
  rm <id>                   delete a task
  more <column>             load the next page of a column
  search [text]             filter loaded tasks by title (empty clears)
  reload [column...]        refetch columns
  theme [name|list]         show, set or list themes
  quit                      leave the shell
`)
}

func (s *shell) confirm(prompt string) (bool, error) {
	answer, err := s.line.Prompt(prompt)
	if err != nil {
		return false, nil
	}
	return isYes(answer), nil
}

func (s *shell) saveHistory() {
	if path := shellHistoryFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			s.line.WriteHistory(f)
			f.Close()
		}
	}
}

func completeShell(line string) []string {
	parts := strings.Fields(line)
	trailing := strings.HasSuffix(line, " ")

	if len(parts) == 0 || (len(parts) == 1 && !trailing) {
		return withPrefix(line, "", shellCommands)
	}

	head := strings.Join(parts[:len(parts)-1], " ") + " "
	last := parts[len(parts)-1]
	if trailing {
		head, last = line, ""
	}

	var options []string
	switch strings.ToLower(parts[0]) {
	case "ls", "list", "more", "reload", "add", "mv", "move", "drag":
		for _, c := range model.Columns {
			options = append(options, string(c))
		}
	case "theme":
		options = append([]string{"list"}, theme.Themes...)
	}
	return withPrefix(last, head, options)
}

func withPrefix(prefix, head string, options []string) []string {
	var out []string
	for _, o := range options {
		if strings.HasPrefix(o, prefix) {
			out = append(out, head+o)
		}
	}
	return out
}

// promptConfirm asks on the terminal outside of the shell.
func promptConfirm(prompt string) (bool, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	answer, err := line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return isYes(answer), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
