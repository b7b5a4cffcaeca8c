package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"taskboard/internal/theme"
)

func (a *app) themeCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "theme [name]",
		Short: "Show or change the board theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return a.listThemes(a.out)
			}
			if len(args) == 0 {
				return a.showTheme(a.out)
			}
			return a.setTheme(a.out, args[0])
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List available themes")
	return cmd
}

func (a *app) showTheme(w io.Writer) error {
	name, err := a.themes.Load()
	if err != nil {
		a.log.WithError(err).Warn("⚠️  Could not read preferences, using default theme")
	}
	fmt.Fprintln(w, name)
	return nil
}

func (a *app) setTheme(w io.Writer, name string) error {
	if err := a.themes.Save(name); err != nil {
		return err
	}
	fmt.Fprintf(w, "🎨 Theme set to %s\n", name)
	return nil
}

func (a *app) listThemes(w io.Writer) error {
	current, _ := a.themes.Load()
	for _, name := range theme.Themes {
		marker := "  "
		if name == current {
			marker = "* "
		}
		fmt.Fprintln(w, marker+name)
	}
	return nil
}
