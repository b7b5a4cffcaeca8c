package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskboard/internal/model"
)

// TaskFilter selects and pages the task list.
type TaskFilter struct {
	Column model.Column
	// Query matches titles case-insensitively.
	Query string
	// Sort is a task field name, "-" prefixed for descending order.
	Sort    string
	Page    int
	PerPage int
}

// sortColumns maps API field names to table columns.
var sortColumns = map[string]string{
	"order":     "sort_order",
	"title":     "title",
	"priority":  "priority",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"id":        "id",
}

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// List returns one page of matching tasks and the number of matches over
// all pages. PerPage 0 returns every match.
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]model.TaskRecord, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if f.Column != "" {
			db = db.Where("stage = ?", string(f.Column))
		}
		if q := strings.TrimSpace(f.Query); q != "" {
			db = db.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(q)+"%")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.TaskRecord{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Scopes(filter).Order(orderClause(f.Sort))
	if f.PerPage > 0 {
		page := max(f.Page, 1)
		query = query.Offset((page - 1) * f.PerPage).Limit(f.PerPage)
	}

	var records []model.TaskRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func orderClause(sort string) string {
	desc := strings.HasPrefix(sort, "-")
	column, ok := sortColumns[strings.TrimPrefix(sort, "-")]
	if !ok {
		column, desc = "sort_order", false
	}
	if desc {
		return column + " DESC"
	}
	return column
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.TaskRecord, error) {
	var record model.TaskRecord
	result := r.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &record, nil
}

// Create stores a new task, assigning an id when it has none.
func (r *TaskRepository) Create(ctx context.Context, record *model.TaskRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// Save writes every field of an existing task. A missing row is
// ErrTaskNotFound, never an insert.
func (r *TaskRepository) Save(ctx context.Context, record *model.TaskRecord) error {
	result := r.db.WithContext(ctx).Model(record).Select("*").Updates(record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes a task by its ID
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&model.TaskRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
