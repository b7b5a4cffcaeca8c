package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"taskboard/internal/apiclient"
	"taskboard/internal/dnd"
	"taskboard/internal/model"
	"taskboard/internal/mutation"
	"taskboard/internal/querycache"
)

const DefaultPageSize = 10

// Repository is the task backend the board reads from and writes to.
// *apiclient.Client satisfies it.
type Repository interface {
	mutation.Repository
	FetchPage(ctx context.Context, column model.Column, page, pageSize int, search string) (model.Page, error)
}

var _ Repository = (*apiclient.Client)(nil)

type Options struct {
	PageSize int
	Mutation mutation.Options
	Logger   *logrus.Entry
	Now      func() time.Time
}

// Board ties the task lists, the mutation coordinator and the drag engine
// together the way a board screen uses them.
type Board struct {
	repo     Repository
	cache    *querycache.Cache
	coord    *mutation.Coordinator
	drag     *dnd.Engine
	pageSize int
	log      *logrus.Entry
	now      func() time.Time
}

// ColumnView is what a column shows: its loaded tasks after the search
// filter, the server's total and whether more pages exist.
type ColumnView struct {
	Column  model.Column
	Tasks   []model.Task
	Total   int
	HasNext bool
	Loaded  bool
	Err     error
}

// TaskForm holds the fields a user edits in the task dialog.
type TaskForm struct {
	Title       string
	Description string
	Column      model.Column
	Priority    model.Priority
	Assignee    string
	Tags        string
}

func New(repo Repository, opts Options) *Board {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Mutation.Logger == nil {
		opts.Mutation.Logger = opts.Logger
	}
	if opts.Mutation.Now == nil {
		opts.Mutation.Now = opts.Now
	}

	b := &Board{
		repo:     repo,
		pageSize: opts.PageSize,
		log:      opts.Logger.WithField("component", "board"),
		now:      opts.Now,
	}
	b.cache = querycache.New(b.fetch,
		querycache.WithLogger(opts.Logger),
		querycache.WithClock(opts.Now),
	)
	b.coord = mutation.New(b.cache, repo, opts.Mutation)
	b.drag = dnd.New(b.cache, b.coord,
		dnd.WithLogger(opts.Logger),
		dnd.WithClock(opts.Now),
	)
	return b
}

// fetch loads pages without a search term: lists are cached per column and
// the search filter is applied when a column is viewed.
func (b *Board) fetch(ctx context.Context, key querycache.Key, page int) (model.Page, error) {
	return b.repo.FetchPage(ctx, key.Column, page, b.pageSize, "")
}

// Load fetches the first page of every column concurrently. A failing column
// does not cancel the others. Each failure is kept on its view and the first
// one is also returned.
func (b *Board) Load(ctx context.Context) error {
	var g errgroup.Group
	for _, col := range model.Columns {
		g.Go(func() error {
			if _, err := b.cache.Ensure(ctx, querycache.TasksKey(col)); err != nil {
				return fmt.Errorf("load %s: %w", col, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Reload refetches every loaded page of a column, e.g. after a failed fetch.
func (b *Board) Reload(ctx context.Context, col model.Column) error {
	key := querycache.TasksKey(col)
	b.cache.Invalidate(key, querycache.InvalidateOptions{})
	_, err := b.cache.Ensure(ctx, key)
	return err
}

// LoadMore appends the next page of a column when there is one.
func (b *Board) LoadMore(ctx context.Context, col model.Column) error {
	_, err := b.cache.FetchNextPage(ctx, querycache.TasksKey(col))
	return err
}

func (b *Board) Column(col model.Column, search string) ColumnView {
	key := querycache.TasksKey(col)
	view := ColumnView{Column: col, Err: b.cache.Status(key).Err}

	data, ok := b.cache.Read(key)
	if !ok {
		return view
	}
	tasks := data.Tasks()
	model.SortByOrder(tasks)

	view.Loaded = true
	view.Tasks = apiclient.FilterByTitle(tasks, search)
	view.Total = data.Total()
	view.HasNext = data.HasNext()
	return view
}

func (b *Board) Columns(search string) []ColumnView {
	views := make([]ColumnView, 0, len(model.Columns))
	for _, col := range model.Columns {
		views = append(views, b.Column(col, search))
	}
	return views
}

// FindTask looks a task up among the loaded pages of every column.
func (b *Board) FindTask(id model.TaskID) (model.Task, bool) {
	for _, col := range model.Columns {
		data, ok := b.cache.Read(querycache.TasksKey(col))
		if !ok {
			continue
		}
		if t, found := data.Find(id); found {
			return t, true
		}
	}
	return model.Task{}, false
}

// CreateTask validates the form and creates the task at the end of its
// column. Invalid input is returned as *model.ValidationError and nothing is
// sent.
func (b *Board) CreateTask(ctx context.Context, form TaskForm) (model.Task, error) {
	form = form.normalized()
	payload := model.CreateTaskPayload{
		Title:       form.Title,
		Description: form.Description,
		Column:      form.Column,
		Priority:    form.Priority,
		Assignee:    form.Assignee,
		Tags:        form.Tags,
	}
	if err := model.Validate(payload); err != nil {
		return model.Task{}, err
	}
	return b.coord.Create(ctx, payload)
}

// EditTask saves the dialog fields of an existing task.
func (b *Board) EditTask(ctx context.Context, id model.TaskID, form TaskForm) (model.Task, error) {
	form = form.normalized()
	now := b.now().UTC()
	payload := model.UpdateTaskPayload{
		Title:       &form.Title,
		Description: &form.Description,
		Priority:    &form.Priority,
		Assignee:    &form.Assignee,
		Tags:        &form.Tags,
		UpdatedAt:   &now,
	}
	if form.Column != "" {
		payload.Column = &form.Column
	}
	if err := model.Validate(payload); err != nil {
		return model.Task{}, err
	}
	return b.coord.Update(ctx, id, payload)
}

// MoveTask sends an explicit column and order for a task.
func (b *Board) MoveTask(ctx context.Context, id model.TaskID, col model.Column, order float64) (model.Task, error) {
	now := b.now().UTC()
	payload := model.UpdateTaskPayload{Column: &col, Order: &order, UpdatedAt: &now}
	if err := model.Validate(payload); err != nil {
		return model.Task{}, err
	}
	return b.coord.Update(ctx, id, payload)
}

func (b *Board) DeleteTask(ctx context.Context, id model.TaskID) error {
	return b.coord.Delete(ctx, id)
}

// Drag is the drag and drop engine bound to this board's cache.
func (b *Board) Drag() *dnd.Engine {
	return b.drag
}

// Cache exposes the task lists, mainly for tests and diagnostics.
func (b *Board) Cache() *querycache.Cache {
	return b.cache
}

// Wait blocks until background refetches finish.
func (b *Board) Wait() {
	b.cache.Wait()
}

// FormFromTask fills the dialog from a task, as the edit dialog does.
func FormFromTask(t model.Task) TaskForm {
	return TaskForm{
		Title:       t.Title,
		Description: t.Description,
		Column:      t.Column,
		Priority:    t.Priority,
		Assignee:    t.Assignee,
		Tags:        t.Tags,
	}
}

func (f TaskForm) normalized() TaskForm {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Assignee = strings.TrimSpace(f.Assignee)
	f.Tags = strings.TrimSpace(f.Tags)
	if f.Priority == "" {
		f.Priority = model.PriorityMedium
	}
	return f
}
