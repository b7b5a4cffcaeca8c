package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/internal/apiclient"
	"taskboard/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc, opts apiclient.Options) (*apiclient.Client, *test.Hook) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger, hook := test.NewNullLogger()
	opts.BaseURL = srv.URL
	opts.Logger = logrus.NewEntry(logger)
	return apiclient.New(opts), hook
}

func TestFetchPage_SendsQueryAndNormalizes(t *testing.T) {
	// Arrange
	var got *http.Request
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("X-Total-Count", "11")
		_, _ = io.WriteString(w, twoTasks)
	}, apiclient.Options{})

	// Act
	page, err := client.FetchPage(context.Background(), model.ColumnBacklog, 1, 10, "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "/tasks", got.URL.Path)
	assert.Equal(t, "1", got.URL.Query().Get("_page"))
	assert.Equal(t, "10", got.URL.Query().Get("_per_page"))
	assert.Equal(t, "order", got.URL.Query().Get("_sort"))
	assert.Equal(t, "backlog", got.URL.Query().Get("column"))
	assert.False(t, got.URL.Query().Has("q"))
	assert.Equal(t, 11, page.Total)
	assert.Equal(t, 2, page.NextPage)
	assert.Len(t, page.Items, 2)
}

func TestFetchPage_FiltersFetchedItemsByTitle(t *testing.T) {
	var query string
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		w.Header().Set("X-Total-Count", "2")
		_, _ = io.WriteString(w, twoTasks)
	}, apiclient.Options{ServerSearch: true})

	page, err := client.FetchPage(context.Background(), model.ColumnBacklog, 1, 10, "WRITE")

	require.NoError(t, err)
	assert.Equal(t, "WRITE", query)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Write tests", page.Items[0].Title)
	assert.Equal(t, 2, page.Total, "total is the server count, not the filtered count")
}

func TestFetchPage_UnrecognizedShapeIsEmptyPage(t *testing.T) {
	client, hook := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"unexpected": true}`)
	}, apiclient.Options{})

	page, err := client.FetchPage(context.Background(), model.ColumnDone, 1, 10, "")

	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Total)
	assert.False(t, page.HasNext())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestCreate_PostsPayload(t *testing.T) {
	var body map[string]any
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 99, "title": "New", "column": "review", "order": 0}`)
	}, apiclient.Options{})

	task, err := client.Create(context.Background(), model.CreateTaskPayload{
		Title:  "New",
		Column: model.ColumnReview,
		Order:  0,
	})

	require.NoError(t, err)
	assert.Equal(t, model.TaskID("99"), task.ID)
	assert.Equal(t, "New", body["title"])
	assert.Equal(t, "review", body["column"])
	assert.Equal(t, 0.0, body["order"])
}

func TestUpdate_UsesConfiguredMethod(t *testing.T) {
	for _, method := range []string{http.MethodPatch, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			var gotMethod, gotPath string
			client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotMethod, gotPath = r.Method, r.URL.Path
				_, _ = io.WriteString(w, `{"id": "5", "title": "T", "column": "done", "order": 3}`)
			}, apiclient.Options{UpdateMethod: method})

			task, err := client.Update(context.Background(), "5", model.UpdateTaskPayload{Column: model.Ptr(model.ColumnDone)})

			require.NoError(t, err)
			assert.Equal(t, method, gotMethod)
			assert.Equal(t, "/tasks/5", gotPath)
			assert.Equal(t, model.ColumnDone, task.Column)
		})
	}
}

func TestServerError_CarriesMessage(t *testing.T) {
	// Arrange
	client, hook := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message": "database unavailable"}`)
	}, apiclient.Options{})

	// Act
	_, err := client.Update(context.Background(), "1", model.UpdateTaskPayload{Order: model.Ptr(2.0)})

	// Assert
	var serr *apiclient.ServerError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusInternalServerError, serr.Status)
	assert.Equal(t, "database unavailable", serr.Message)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "[API Error] PATCH")
}

func TestDelete_NotFound(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error": "Task not found"}`)
	}, apiclient.Options{})

	err := client.Delete(context.Background(), "404")

	assert.True(t, apiclient.IsNotFound(err))
}

func TestDelete_NoContent(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, apiclient.Options{})

	assert.NoError(t, client.Delete(context.Background(), "1"))
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, apiclient.Options{Timeout: 50 * time.Millisecond})
	defer close(release)

	_, err := client.FetchPage(context.Background(), model.ColumnBacklog, 1, 10, "")

	var nerr *apiclient.NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.True(t, nerr.Timeout())
}

func TestConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := apiclient.New(apiclient.Options{BaseURL: addr})
	_, err := client.Create(context.Background(), model.CreateTaskPayload{Title: "x", Column: model.ColumnBacklog})

	var nerr *apiclient.NetworkError
	assert.True(t, errors.As(err, &nerr))
}

func TestFilterByTitle(t *testing.T) {
	items := []model.Task{{Title: "Fix Login"}, {Title: "logout flow"}, {Title: "Docs"}}

	assert.Len(t, apiclient.FilterByTitle(items, "LOG"), 2)
	assert.Len(t, apiclient.FilterByTitle(items, "  "), 3)
	assert.Empty(t, apiclient.FilterByTitle(items, "missing"))
}

func TestUpdate_NoContentIsSuccess(t *testing.T) {
	client, hook := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}, apiclient.Options{})

	task, err := client.Update(context.Background(), "7", model.UpdateTaskPayload{Order: model.Ptr(2.0)})

	require.NoError(t, err)
	assert.Empty(t, task.ID)
	assert.Empty(t, hook.AllEntries())
}

func TestCreate_InvalidBodyIsServerError(t *testing.T) {
	// Arrange
	client, hook := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "<html>ok</html>")
	}, apiclient.Options{})

	// Act
	_, err := client.Create(context.Background(), model.CreateTaskPayload{Title: "x", Column: model.ColumnBacklog})

	// Assert
	var serr *apiclient.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusCreated, serr.Status)
	assert.Contains(t, serr.Message, "invalid task body")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "[API Error] POST")
}
