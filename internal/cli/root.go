package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"taskboard/internal/apiclient"
	"taskboard/internal/board"
	"taskboard/internal/config"
	"taskboard/internal/mutation"
	"taskboard/internal/theme"
)

// clientFlags override the environment configuration for one invocation.
type clientFlags struct {
	apiURL          string
	timeout         time.Duration
	pageSize        int
	serverSearch    bool
	updateMethod    string
	themeFile       string
	rollbackDeletes bool
	serialize       bool
	debug           bool
}

func bindClientFlags(fs *pflag.FlagSet, f *clientFlags) {
	fs.StringVar(&f.apiURL, "api-url", "", "Task API base URL (default $KANBAN_API_BASE_URL)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Request timeout (default $KANBAN_API_TIMEOUT)")
	fs.IntVar(&f.pageSize, "page-size", 0, "Tasks per page (default $KANBAN_PAGE_SIZE)")
	fs.BoolVar(&f.serverSearch, "server-search", false, "Send search terms to the server as well")
	fs.StringVar(&f.updateMethod, "update-method", "", "HTTP method for updates: PATCH or PUT")
	fs.StringVar(&f.themeFile, "theme-file", "", "Preferences file holding the theme")
	fs.BoolVar(&f.rollbackDeletes, "rollback-deletes", false, "Restore a task locally when its delete fails")
	fs.BoolVar(&f.serialize, "serialize", false, "Reject a change to a task while another one is pending")
	fs.BoolVarP(&f.debug, "verbose", "v", false, "Enable debug logging")
}

// app is the state shared by every command of one invocation.
type app struct {
	flags   clientFlags
	errOut  io.Writer
	out     io.Writer
	cfg     *config.Config
	log     *logrus.Logger
	board   *board.Board
	themes  theme.Store
	confirm func(prompt string) (bool, error)
}

// NewRootCmd builds the command tree. Diagnostics go to errOut.
func NewRootCmd(errOut io.Writer) *cobra.Command {
	a := &app{errOut: errOut, confirm: promptConfirm}

	root := &cobra.Command{
		Use:   "board",
		Short: "Kanban board in the terminal",
		Long: `board shows and edits the tasks of a Kanban board served by a /tasks API.

Changes appear immediately and are rolled back when the server rejects them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	bindClientFlags(root.PersistentFlags(), &a.flags)

	root.AddCommand(
		a.listCmd(),
		a.showCmd(),
		a.addCmd(),
		a.editCmd(),
		a.moveCmd(),
		a.removeCmd(),
		a.moreCmd(),
		a.themeCmd(),
		a.shellCmd(),
	)
	return root
}

// Execute runs the root command against the process arguments.
func Execute(version string) error {
	root := NewRootCmd(os.Stderr)
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.out = cmd.OutOrStdout()

	cfg := config.Load()
	fs := cmd.Flags()
	if fs.Changed("api-url") {
		cfg.APIBaseURL = a.flags.apiURL
	}
	if fs.Changed("timeout") {
		cfg.APITimeout = a.flags.timeout
	}
	if fs.Changed("page-size") {
		if a.flags.pageSize <= 0 {
			return fmt.Errorf("--page-size must be positive, got %d", a.flags.pageSize)
		}
		cfg.PageSize = a.flags.pageSize
	}
	if fs.Changed("server-search") {
		cfg.ServerSearch = a.flags.serverSearch
	}
	if fs.Changed("update-method") {
		cfg.UpdateMethod = a.flags.updateMethod
	}
	if fs.Changed("theme-file") {
		cfg.ThemeFile = a.flags.themeFile
	}
	if a.flags.debug {
		cfg.Debug = true
	}
	a.cfg = cfg

	a.log = cfg.NewLogger(a.errOut)
	entry := logrus.NewEntry(a.log)

	client := apiclient.New(apiclient.Options{
		BaseURL:      cfg.APIBaseURL,
		Timeout:      cfg.APITimeout,
		ServerSearch: cfg.ServerSearch,
		UpdateMethod: cfg.UpdateMethod,
		Logger:       entry,
	})
	a.board = board.New(client, board.Options{
		PageSize: cfg.PageSize,
		Logger:   entry,
		Mutation: mutation.Options{
			RollbackFailedDeletes: a.flags.rollbackDeletes,
			SerializePerTask:      a.flags.serialize,
			FullUpdates:           strings.EqualFold(cfg.UpdateMethod, http.MethodPut),
		},
	})

	path := cfg.ThemeFile
	if path == "" {
		path = theme.DefaultPath()
	}
	a.themes = theme.Store{Path: path}
	return nil
}

// load fetches every column, reporting per-column failures without
// stopping: the failed columns render with a retry hint.
func (a *app) load(ctx context.Context) {
	if err := a.board.Load(ctx); err != nil {
		a.log.WithError(err).Debug("board load incomplete")
	}
}
