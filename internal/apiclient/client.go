package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskboard/internal/model"
)

const (
	DefaultBaseURL = "http://localhost:4000"
	DefaultTimeout = 10 * time.Second

	tasksPath = "/tasks"
)

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// ServerSearch sends the search term as the q parameter. The fetched page
	// is filtered client-side either way.
	ServerSearch bool
	// UpdateMethod is PATCH (default) or PUT.
	UpdateMethod string
	HTTPClient   *http.Client
	Logger       *logrus.Entry
}

// Client talks to the /tasks resource collection.
type Client struct {
	baseURL      string
	http         *http.Client
	serverSearch bool
	updateMethod string
	log          *logrus.Entry
}

func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	method := strings.ToUpper(opts.UpdateMethod)
	if method != http.MethodPut {
		method = http.MethodPatch
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Client{
		baseURL:      base,
		http:         hc,
		serverSearch: opts.ServerSearch,
		updateMethod: method,
		log:          logger.WithField("component", "apiclient"),
	}
}

// FetchPage loads one page of a column, sorted by order. A response shape
// the client does not recognise yields an empty page, not an error.
func (c *Client) FetchPage(ctx context.Context, column model.Column, page, pageSize int, search string) (model.Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	q := url.Values{}
	q.Set("_page", strconv.Itoa(page))
	q.Set("_per_page", strconv.Itoa(pageSize))
	q.Set("_sort", "order")
	q.Set("column", string(column))
	if search != "" && c.serverSearch {
		q.Set("q", search)
	}

	resp, err := c.do(ctx, http.MethodGet, tasksPath, q, nil)
	if err != nil {
		return model.Page{}, err
	}

	env := DecodeEnvelope(resp.body, resp.header)
	if env.Kind == Unrecognized {
		c.log.WithFields(logrus.Fields{
			"column": column,
			"page":   page,
		}).Warn("unrecognized task list response, treating page as empty")
	}

	result := env.Page(page, pageSize)
	result.Items = FilterByTitle(result.Items, search)
	return result, nil
}

// Create posts a new task and returns the server's record. A success
// without a body returns a zero Task.
func (c *Client) Create(ctx context.Context, payload model.CreateTaskPayload) (model.Task, error) {
	resp, err := c.do(ctx, http.MethodPost, tasksPath, nil, payload)
	if err != nil {
		return model.Task{}, err
	}
	return c.decodeTask(resp)
}

// Update sends a partial task with the configured method. A success without
// a body returns a zero Task.
func (c *Client) Update(ctx context.Context, id model.TaskID, payload model.UpdateTaskPayload) (model.Task, error) {
	resp, err := c.do(ctx, c.updateMethod, taskPath(id), nil, payload)
	if err != nil {
		return model.Task{}, err
	}
	return c.decodeTask(resp)
}

func (c *Client) Delete(ctx context.Context, id model.TaskID) error {
	_, err := c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
	return err
}

// response is a successful exchange.
type response struct {
	method string
	url    string
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) (response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return response{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		nerr := &NetworkError{Method: method, URL: target, Err: err}
		c.logFailure(method, target, err.Error())
		return response{}, nerr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		nerr := &NetworkError{Method: method, URL: target, Err: err}
		c.logFailure(method, target, err.Error())
		return response{}, nerr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &ServerError{
			Method:  method,
			URL:     target,
			Status:  resp.StatusCode,
			Message: errorMessage(body),
		}
		msg := serr.Message
		if msg == "" {
			msg = resp.Status
		}
		c.logFailure(method, target, msg)
		return response{}, serr
	}

	return response{method: method, url: target, status: resp.StatusCode, header: resp.Header, body: body}, nil
}

func (c *Client) logFailure(method, target, message string) {
	c.log.WithFields(logrus.Fields{
		"method": method,
		"url":    target,
	}).Errorf("[API Error] %s %s: %s", method, target, message)
}

func taskPath(id model.TaskID) string {
	return tasksPath + "/" + url.PathEscape(string(id))
}

// decodeTask reads the task a successful create or update returned. An
// empty body yields a zero Task; a body that is not a task is a
// *ServerError, since the server did answer but not with a task.
func (c *Client) decodeTask(resp response) (model.Task, error) {
	body := bytes.TrimSpace(resp.body)
	if len(body) == 0 {
		return model.Task{}, nil
	}

	var task model.Task
	if err := json.Unmarshal(body, &task); err != nil {
		serr := &ServerError{
			Method:  resp.method,
			URL:     resp.url,
			Status:  resp.status,
			Message: "invalid task body: " + err.Error(),
		}
		c.logFailure(resp.method, resp.url, serr.Message)
		return model.Task{}, serr
	}
	if task.ID == "" {
		var wrapped struct {
			Data *model.Task `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
			return *wrapped.Data, nil
		}
	}
	return task, nil
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// FilterByTitle keeps tasks whose title contains term, ignoring case. Only
// the given items are filtered; tasks on pages not yet fetched are not seen.
func FilterByTitle(items []model.Task, term string) []model.Task {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return items
	}
	out := make([]model.Task, 0, len(items))
	for _, t := range items {
		if strings.Contains(strings.ToLower(t.Title), term) {
			out = append(out, t)
		}
	}
	return out
}
