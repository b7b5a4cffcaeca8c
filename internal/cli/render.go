package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"taskboard/internal/board"
	"taskboard/internal/model"
)

var columnIcons = map[model.Column]string{
	model.ColumnBacklog:    "📝",
	model.ColumnInProgress: "🚀",
	model.ColumnReview:     "👀",
	model.ColumnDone:       "✅",
}

func renderColumn(w io.Writer, v board.ColumnView, search string) {
	fmt.Fprintf(w, "%s %s (%d)\n", columnIcons[v.Column], v.Column.Title(), v.Total)

	switch {
	case v.Err != nil && !v.Loaded:
		fmt.Fprintf(w, "  ⚠️  failed to load: %v\n  run `ls %s` to retry\n\n", v.Err, v.Column)
		return
	case len(v.Tasks) == 0 && search != "":
		fmt.Fprintf(w, "  no loaded task matches %q\n", search)
	case len(v.Tasks) == 0:
		fmt.Fprintln(w, "  no tasks")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, t := range v.Tasks {
		fmt.Fprintf(tw, "  #%s\t%s\t%s\t%s\n", t.ID, priorityLabel(t.Priority), t.Title, taskMeta(t))
	}
	tw.Flush()

	if v.HasNext {
		fmt.Fprintf(w, "  more on the server, run `more %s`\n", v.Column)
	}
	fmt.Fprintln(w)
}

func renderTask(w io.Writer, t model.Task) {
	fmt.Fprintf(w, "#%s %s\n", t.ID, t.Title)
	fmt.Fprintf(w, "  column:   %s\n", t.Column.Title())
	fmt.Fprintf(w, "  order:    %g\n", t.Order)
	if t.Priority != "" {
		fmt.Fprintf(w, "  priority: %s\n", t.Priority)
	}
	if t.Assignee != "" {
		fmt.Fprintf(w, "  assignee: %s\n", t.Assignee)
	}
	if tags := t.TagList(); len(tags) > 0 {
		fmt.Fprintf(w, "  tags:     %s\n", strings.Join(tags, ", "))
	}
	if t.Description != "" {
		fmt.Fprintf(w, "\n  %s\n", t.Description)
	}
}

func priorityLabel(p model.Priority) string {
	if p == "" {
		return "-"
	}
	return "[" + string(p) + "]"
}

func taskMeta(t model.Task) string {
	var parts []string
	if t.Assignee != "" {
		parts = append(parts, "@"+t.Assignee)
	}
	for _, tag := range t.TagList() {
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}
