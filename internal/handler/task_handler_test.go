package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/internal/handler"
	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Мок хранилища задач
type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) List(ctx context.Context, f repository.TaskFilter) ([]model.TaskRecord, int64, error) {
	args := m.Called(ctx, f)
	records, _ := args.Get(0).([]model.TaskRecord)
	return records, args.Get(1).(int64), args.Error(2)
}

func (m *MockTaskStore) GetByID(ctx context.Context, id string) (*model.TaskRecord, error) {
	args := m.Called(ctx, id)
	record := args.Get(0)
	if record == nil {
		return nil, args.Error(1)
	}
	return record.(*model.TaskRecord), args.Error(1)
}

func (m *MockTaskStore) Create(ctx context.Context, record *model.TaskRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTaskStore) Save(ctx context.Context, record *model.TaskRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTaskStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var created = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func setupTest(envelope string) (*gin.Engine, *MockTaskStore) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	mockStore := new(MockTaskStore)
	taskHandler := handler.NewTaskHandler(mockStore, envelope)

	r.GET("/tasks", taskHandler.List)
	r.POST("/tasks", taskHandler.Create)
	r.GET("/tasks/:id", taskHandler.GetByID)
	r.PUT("/tasks/:id", taskHandler.Replace)
	r.PATCH("/tasks/:id", taskHandler.Patch)
	r.DELETE("/tasks/:id", taskHandler.Delete)
	return r, mockStore
}

func record(id, title, stage string, order float64) model.TaskRecord {
	return model.TaskRecord{ID: id, Title: title, Stage: stage, SortOrder: order, CreatedAt: created, UpdatedAt: created}
}

func serve(r *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestList_ArrayEnvelope(t *testing.T) {
	// Arrange
	router, mockStore := setupTest(handler.EnvelopeArray)
	filter := repository.TaskFilter{Column: model.ColumnBacklog, Sort: "order", Page: 2, PerPage: 5}
	mockStore.On("List", mock.Anything, filter).
		Return([]model.TaskRecord{record("a1", "Fix login", "backlog", 6)}, int64(11), nil)

	// Act
	resp := serve(router, http.MethodGet, "/tasks?column=backlog&_page=2&_per_page=5&_sort=order", nil)

	// Assert
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "11", resp.Header().Get("X-Total-Count"))

	var tasks []model.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, model.TaskID("a1"), tasks[0].ID)
	assert.Equal(t, model.ColumnBacklog, tasks[0].Column)
	assert.Equal(t, 6.0, tasks[0].Order)

	mockStore.AssertExpectations(t)
}

func TestList_WrappedEnvelope(t *testing.T) {
	router, mockStore := setupTest(handler.EnvelopeWrapped)
	filter := repository.TaskFilter{Sort: "order", Page: 2, PerPage: 5}
	mockStore.On("List", mock.Anything, filter).
		Return([]model.TaskRecord{record("a1", "Fix login", "backlog", 6)}, int64(11), nil)

	resp := serve(router, http.MethodGet, "/tasks?_page=2&_limit=5", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get("X-Total-Count"))

	var page handler.PageResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	assert.Equal(t, int64(11), page.Items)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, 3, page.Last)
	require.NotNil(t, page.Prev)
	require.NotNil(t, page.Next)
	assert.Equal(t, 1, *page.Prev)
	assert.Equal(t, 3, *page.Next)
	assert.Len(t, page.Data, 1)
}

func TestList_InvalidQuery(t *testing.T) {
	router, mockStore := setupTest(handler.EnvelopeArray)

	for _, target := range []string{"/tasks?column=archive", "/tasks?_page=two", "/tasks?_per_page=-1"} {
		resp := serve(router, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code, target)
	}
	mockStore.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestList_StoreError(t *testing.T) {
	router, mockStore := setupTest(handler.EnvelopeArray)
	mockStore.On("List", mock.Anything, mock.Anything).Return(nil, int64(0), errors.New("db down"))

	resp := serve(router, http.MethodGet, "/tasks", nil)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestGetByID_NotFound(t *testing.T) {
	router, mockStore := setupTest(handler.EnvelopeArray)
	mockStore.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrTaskNotFound)

	resp := serve(router, http.MethodGet, "/tasks/missing", nil)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.JSONEq(t, `{"error":"Task not found"}`, resp.Body.String())
}

func TestCreate_Success(t *testing.T) {
	// Arrange
	router, mockStore := setupTest(handler.EnvelopeArray)
	mockStore.On("Create", mock.Anything, mock.AnythingOfType("*model.TaskRecord")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.TaskRecord).ID = "new-id"
		}).
		Return(nil)

	// Act
	resp := serve(router, http.MethodPost, "/tasks", model.CreateTaskPayload{
		Title:    "Plan sprint",
		Column:   model.ColumnReview,
		Priority: model.PriorityLow,
		Order:    3,
	})

	// Assert
	assert.Equal(t, http.StatusCreated, resp.Code)

	var task model.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &task))
	assert.Equal(t, model.TaskID("new-id"), task.ID)
	assert.Equal(t, "Plan sprint", task.Title)
	assert.Equal(t, model.ColumnReview, task.Column)
	assert.Equal(t, 3.0, task.Order)
	assert.NotNil(t, task.CreatedAt)

	mockStore.AssertExpectations(t)
}

func TestCreate_ValidationFailed(t *testing.T) {
	router, mockStore := setupTest(handler.EnvelopeArray)

	resp := serve(router, http.MethodPost, "/tasks", map[string]any{"title": "  ", "column": "archive"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var body handler.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "is required", body.Fields["title"])
	assert.Contains(t, body.Fields, "column")
	mockStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPatch_MergesFields(t *testing.T) {
	// Arrange
	router, mockStore := setupTest(handler.EnvelopeArray)
	existing := record("a1", "Fix login", "backlog", 1)
	existing.Assignee = "sam"
	mockStore.On("GetByID", mock.Anything, "a1").Return(&existing, nil)
	mockStore.On("Save", mock.Anything, mock.AnythingOfType("*model.TaskRecord")).Return(nil)

	// Act
	resp := serve(router, http.MethodPatch, "/tasks/a1", map[string]any{"column": "review", "order": 2.5})

	// Assert
	assert.Equal(t, http.StatusOK, resp.Code)

	var task model.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &task))
	assert.Equal(t, model.ColumnReview, task.Column)
	assert.Equal(t, 2.5, task.Order)
	assert.Equal(t, "Fix login", task.Title)
	assert.Equal(t, "sam", task.Assignee)
	require.NotNil(t, task.UpdatedAt)
	assert.True(t, task.UpdatedAt.After(created))

	mockStore.AssertExpectations(t)
}

func TestPatch_NotFound(t *testing.T) {
	router, mockStore := setupTest(handler.EnvelopeArray)
	mockStore.On("GetByID", mock.Anything, "a9").Return(nil, repository.ErrTaskNotFound)

	resp := serve(router, http.MethodPatch, "/tasks/a9", map[string]any{"order": 1})

	assert.Equal(t, http.StatusNotFound, resp.Code)
	mockStore.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestReplace_KeepsIDAndCreatedAt(t *testing.T) {
	router, mockStore := setupTest(handler.EnvelopeArray)
	existing := record("a1", "Fix login", "backlog", 1)
	existing.Assignee = "sam"
	mockStore.On("GetByID", mock.Anything, "a1").Return(&existing, nil)
	mockStore.On("Save", mock.Anything, mock.AnythingOfType("*model.TaskRecord")).Return(nil)

	resp := serve(router, http.MethodPut, "/tasks/a1", model.CreateTaskPayload{
		Title:  "Fix SSO login",
		Column: model.ColumnDone,
		Order:  4,
	})

	assert.Equal(t, http.StatusOK, resp.Code)

	var task model.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &task))
	assert.Equal(t, model.TaskID("a1"), task.ID)
	assert.Equal(t, "Fix SSO login", task.Title)
	assert.Empty(t, task.Assignee)
	require.NotNil(t, task.CreatedAt)
	assert.True(t, task.CreatedAt.Equal(created))
}

func TestDelete(t *testing.T) {
	router, mockStore := setupTest(handler.EnvelopeArray)
	mockStore.On("Delete", mock.Anything, "a1").Return(nil)
	mockStore.On("Delete", mock.Anything, "a9").Return(repository.ErrTaskNotFound)

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/tasks/a1", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodDelete, "/tasks/a9", nil).Code)

	mockStore.AssertExpectations(t)
}
