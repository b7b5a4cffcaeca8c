package model

import "fmt"

// Column is the workflow stage a task belongs to.
type Column string

const (
	ColumnBacklog    Column = "backlog"
	ColumnInProgress Column = "in-progress"
	ColumnReview     Column = "review"
	ColumnDone       Column = "done"
)

// Columns lists every stage in board order.
var Columns = []Column{ColumnBacklog, ColumnInProgress, ColumnReview, ColumnDone}

var columnTitles = map[Column]string{
	ColumnBacklog:    "Backlog",
	ColumnInProgress: "In Progress",
	ColumnReview:     "Review",
	ColumnDone:       "Done",
}

func (c Column) Valid() bool {
	_, ok := columnTitles[c]
	return ok
}

// Title is the human readable column heading.
func (c Column) Title() string {
	if t, ok := columnTitles[c]; ok {
		return t
	}
	return string(c)
}

func (c Column) String() string {
	return string(c)
}

// ParseColumn converts a column identifier into a Column.
func ParseColumn(s string) (Column, error) {
	c := Column(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown column %q", s)
	}
	return c, nil
}

// Priority is an optional task urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
