package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
)

// Форматы ответа списка задач
const (
	EnvelopeArray   = "array"
	EnvelopeWrapped = "wrapped"
)

// TaskStore хранилище задач, которым пользуется обработчик
type TaskStore interface {
	List(ctx context.Context, f repository.TaskFilter) ([]model.TaskRecord, int64, error)
	GetByID(ctx context.Context, id string) (*model.TaskRecord, error)
	Create(ctx context.Context, record *model.TaskRecord) error
	Save(ctx context.Context, record *model.TaskRecord) error
	Delete(ctx context.Context, id string) error
}

var _ TaskStore = (*repository.TaskRepository)(nil)

type TaskHandler struct {
	store    TaskStore
	envelope string
	now      func() time.Time
}

func NewTaskHandler(store TaskStore, envelope string) *TaskHandler {
	if envelope != EnvelopeWrapped {
		envelope = EnvelopeArray
	}
	return &TaskHandler{store: store, envelope: envelope, now: time.Now}
}

// PageResponse представляет список задач в обертке json-server
type PageResponse struct {
	First int          `json:"first"`
	Prev  *int         `json:"prev"`
	Next  *int         `json:"next"`
	Last  int          `json:"last"`
	Pages int          `json:"pages"`
	Items int64        `json:"items"`
	Data  []model.Task `json:"data"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// List возвращает страницу задач
// @Summary      List tasks
// @Tags         Tasks
// @Produce      json
// @Param        column     query  string  false  "Column"
// @Param        q          query  string  false  "Title search"
// @Param        _page      query  int     false  "Page number"
// @Param        _per_page  query  int     false  "Page size"
// @Param        _sort      query  string  false  "Sort field, '-' for descending"
// @Success      200  {array}   model.Task
// @Failure      400  {object}  ErrorResponse
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	filter := repository.TaskFilter{
		Query: c.Query("q"),
		Sort:  c.DefaultQuery("_sort", "order"),
	}

	if col := c.Query("column"); col != "" {
		column, err := model.ParseColumn(col)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		filter.Column = column
	}

	var err error
	if filter.Page, err = queryInt(c, "_page"); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid _page"})
		return
	}
	if filter.PerPage, err = queryInt(c, "_per_page", "_limit"); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid _per_page"})
		return
	}
	// Страница без размера отдается по 10 задач, как в json-server
	if filter.Page > 0 && filter.PerPage == 0 {
		filter.PerPage = 10
	}

	records, total, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve tasks"})
		return
	}

	tasks := make([]model.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, r.Task())
	}

	if h.envelope == EnvelopeWrapped {
		c.JSON(http.StatusOK, wrapPage(tasks, total, filter.Page, filter.PerPage))
		return
	}

	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.JSON(http.StatusOK, tasks)
}

func wrapPage(tasks []model.Task, total int64, page, perPage int) PageResponse {
	page = max(page, 1)
	pages := 1
	if perPage > 0 && total > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}

	resp := PageResponse{First: 1, Last: pages, Pages: pages, Items: total, Data: tasks}
	if page > 1 {
		prev := page - 1
		resp.Prev = &prev
	}
	if page < pages {
		next := page + 1
		resp.Next = &next
	}
	return resp
}

// queryInt читает первый заданный параметр из names, отсутствующий дает 0
func queryInt(c *gin.Context, names ...string) (int, error) {
	for _, name := range names {
		if v := c.Query(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return 0, errors.New("invalid " + name)
			}
			return n, nil
		}
	}
	return 0, nil
}

// GetByID получает задачу по ID
// @Summary      Get a task
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  model.Task
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	record, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, record.Task())
}

// Create создает новую задачу
// @Summary      Create a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        task  body      model.CreateTaskPayload  true  "Task"
// @Success      201   {object}  model.Task
// @Failure      400   {object}  ErrorResponse
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	// Парсим запрос
	var req model.CreateTaskPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request"})
		return
	}
	if !h.validate(c, req) {
		return
	}

	task := req.Task("")
	if task.CreatedAt == nil {
		now := h.now()
		task.CreatedAt = &now
	}

	var record model.TaskRecord
	record.ApplyTask(task)

	// Сохраняем задачу в БД
	if err := h.store.Create(c.Request.Context(), &record); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, record.Task())
}

// Patch обновляет только переданные поля задачи
// @Summary      Update some task fields
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id    path      string                   true  "Task ID"
// @Param        task  body      model.UpdateTaskPayload  true  "Changed fields"
// @Success      200   {object}  model.Task
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /tasks/{id} [patch]
func (h *TaskHandler) Patch(c *gin.Context) {
	var req model.UpdateTaskPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request"})
		return
	}
	if !h.validate(c, req) {
		return
	}

	record, ok := h.load(c)
	if !ok {
		return
	}
	h.save(c, record, req.Apply(record.Task()))
}

// Replace заменяет задачу целиком, сохраняя ID и дату создания
// @Summary      Replace a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id    path      string                   true  "Task ID"
// @Param        task  body      model.CreateTaskPayload  true  "Task"
// @Success      200   {object}  model.Task
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Replace(c *gin.Context) {
	var req model.CreateTaskPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request"})
		return
	}
	if !h.validate(c, req) {
		return
	}

	record, ok := h.load(c)
	if !ok {
		return
	}

	existing := record.Task()
	task := req.Task(existing.ID)
	task.CreatedAt = existing.CreatedAt
	h.save(c, record, task)
}

// Delete удаляет задачу
// @Summary      Delete a task
// @Tags         Tasks
// @Param        id   path  string  true  "Task ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete task"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) load(c *gin.Context) (*model.TaskRecord, bool) {
	record, err := h.store.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Task not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve task"})
		return nil, false
	}
	return record, true
}

// save записывает задачу, проставляя дату изменения
func (h *TaskHandler) save(c *gin.Context, record *model.TaskRecord, task model.Task) {
	now := h.now()
	task.UpdatedAt = &now
	record.ApplyTask(task)

	if err := h.store.Save(c.Request.Context(), record); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update task"})
		return
	}
	c.JSON(http.StatusOK, record.Task())
}

func (h *TaskHandler) validate(c *gin.Context, payload any) bool {
	err := model.Validate(payload)
	if err == nil {
		return true
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: verr.Fields})
		return false
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	return false
}
