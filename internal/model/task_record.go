package model

import (
	"time"
)

// TaskRecord is the backend's persisted form of a Task.
type TaskRecord struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	Title       string  `gorm:"not null"`
	Description string
	Stage       string  `gorm:"not null;index"`
	Priority    string
	Assignee    string
	Tags        string
	SortOrder   float64 `gorm:"not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TaskRecord) TableName() string {
	return "tasks"
}

func (r TaskRecord) Task() Task {
	t := Task{
		ID:          TaskID(r.ID),
		Title:       r.Title,
		Description: r.Description,
		Column:      Column(r.Stage),
		Priority:    Priority(r.Priority),
		Assignee:    r.Assignee,
		Tags:        r.Tags,
		Order:       r.SortOrder,
	}
	if !r.CreatedAt.IsZero() {
		created := r.CreatedAt
		t.CreatedAt = &created
	}
	if !r.UpdatedAt.IsZero() {
		updated := r.UpdatedAt
		t.UpdatedAt = &updated
	}
	return t
}

// ApplyTask copies every field of t except the id onto the record.
func (r *TaskRecord) ApplyTask(t Task) {
	r.Title = t.Title
	r.Description = t.Description
	r.Stage = string(t.Column)
	r.Priority = string(t.Priority)
	r.Assignee = t.Assignee
	r.Tags = t.Tags
	r.SortOrder = t.Order
	if t.CreatedAt != nil {
		r.CreatedAt = *t.CreatedAt
	}
	if t.UpdatedAt != nil {
		r.UpdatedAt = *t.UpdatedAt
	}
}
