package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TaskID is an opaque task identifier assigned by the backend. Depending on the
// backend version it arrives as a JSON number or a JSON string.
type TaskID string

func (id *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

func (id TaskID) String() string {
	return string(id)
}

type Task struct {
	ID          TaskID     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Column      Column     `json:"column"`
	Priority    Priority   `json:"priority,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Tags        string     `json:"tags,omitempty"`
	Order       float64    `json:"order"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// TagList splits the comma separated tags, dropping empty entries.
func (t Task) TagList() []string {
	if t.Tags == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(t.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// SortByOrder sorts tasks by ascending order. Ties keep their existing
// relative position.
func SortByOrder(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Order < tasks[j].Order
	})
}

// CreateTaskPayload is the body of POST /tasks.
type CreateTaskPayload struct {
	Title       string     `json:"title" validate:"notblank"`
	Description string     `json:"description,omitempty"`
	Column      Column     `json:"column" validate:"required,oneof=backlog in-progress review done"`
	Priority    Priority   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Assignee    string     `json:"assignee,omitempty"`
	Tags        string     `json:"tags,omitempty"`
	Order       float64    `json:"order"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// Task builds the full record a create payload describes.
func (p CreateTaskPayload) Task(id TaskID) Task {
	return Task{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		Column:      p.Column,
		Priority:    p.Priority,
		Assignee:    p.Assignee,
		Tags:        p.Tags,
		Order:       p.Order,
		CreatedAt:   p.CreatedAt,
	}
}

// UpdateTaskPayload is a partial task. Nil fields are left untouched.
type UpdateTaskPayload struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,notblank"`
	Description *string    `json:"description,omitempty"`
	Column      *Column    `json:"column,omitempty" validate:"omitempty,oneof=backlog in-progress review done"`
	Priority    *Priority  `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Assignee    *string    `json:"assignee,omitempty"`
	Tags        *string    `json:"tags,omitempty"`
	Order       *float64   `json:"order,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Apply merges the payload over t and returns the result.
func (p UpdateTaskPayload) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Column != nil {
		t.Column = *p.Column
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.Tags != nil {
		t.Tags = *p.Tags
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.CreatedAt != nil {
		t.CreatedAt = p.CreatedAt
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = p.UpdatedAt
	}
	return t
}

// FullUpdate describes every field of t as an update payload, for backends
// that only accept PUT with a complete body.
func FullUpdate(t Task) UpdateTaskPayload {
	return UpdateTaskPayload{
		Title:       &t.Title,
		Description: &t.Description,
		Column:      &t.Column,
		Priority:    &t.Priority,
		Assignee:    &t.Assignee,
		Tags:        &t.Tags,
		Order:       &t.Order,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
