package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskboard/internal/model"
	"taskboard/internal/querycache"
)

var (
	// ErrMutationInFlight is returned by Begin when per-task serialization is
	// enabled and another mutation on the same task has not finished.
	ErrMutationInFlight = errors.New("mutation already in flight for task")

	// ErrMutationDone is returned when a finished mutation is used again.
	ErrMutationDone = errors.New("mutation already finalized")
)

// TempIDPrefix marks ids of tasks created locally and not yet confirmed.
const TempIDPrefix = "tmp-"

// Repository is the network side of a mutation.
type Repository interface {
	Create(ctx context.Context, payload model.CreateTaskPayload) (model.Task, error)
	Update(ctx context.Context, id model.TaskID, payload model.UpdateTaskPayload) (model.Task, error)
	Delete(ctx context.Context, id model.TaskID) error
}

type Options struct {
	// RollbackFailedDeletes restores a deleted task when the request fails.
	// Off by default: a failed delete is reported but stays removed locally.
	RollbackFailedDeletes bool
	// SerializePerTask rejects a mutation while another one on the same task
	// is still pending. Off by default, so racing updates resolve
	// last-write-wins.
	SerializePerTask bool
	// FullUpdates sends the whole merged task on update instead of the
	// partial payload, for backends that only accept PUT with every field.
	FullUpdates bool

	Logger *logrus.Entry
	Now    func() time.Time
	NewID  func() string
}

// Coordinator applies optimistic cache deltas around repository calls and
// reconciles or rolls them back once the call returns.
type Coordinator struct {
	cache querycache.Store
	repo  Repository
	opts  Options
	log   *logrus.Entry

	mu       sync.Mutex
	inFlight map[model.TaskID]struct{}
}

func New(cache querycache.Store, repo Repository, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Coordinator{
		cache:    cache,
		repo:     repo,
		opts:     opts,
		log:      opts.Logger.WithField("component", "mutation"),
		inFlight: make(map[model.TaskID]struct{}),
	}
}

// Begin captures the rollback snapshot of every cached task list.
func (c *Coordinator) Begin(kind Kind, id model.TaskID) (*Mutation, error) {
	m := &Mutation{Kind: kind, TaskID: id, release: func() {}}

	if c.opts.SerializePerTask && id != "" {
		c.mu.Lock()
		if _, busy := c.inFlight[id]; busy {
			c.mu.Unlock()
			return nil, fmt.Errorf("%s task %s: %w", kind, id, ErrMutationInFlight)
		}
		c.inFlight[id] = struct{}{}
		c.mu.Unlock()

		var once sync.Once
		m.release = func() {
			once.Do(func() {
				c.mu.Lock()
				delete(c.inFlight, id)
				c.mu.Unlock()
			})
		}
	}

	m.snapshot = c.cache.SnapshotAll(querycache.AllTasks())
	return m, nil
}

// ApplyCreate gives the new task the next order in its column and a
// temporary id, and shows it at the head of the column's first page. The
// returned payload carries the order to send.
func (c *Coordinator) ApplyCreate(m *Mutation, payload model.CreateTaskPayload) model.CreateTaskPayload {
	payload.Order = NextOrder(c.cache, payload.Column)
	if payload.CreatedAt == nil {
		now := c.opts.Now().UTC()
		payload.CreatedAt = &now
	}

	if m.TaskID == "" {
		m.TaskID = model.TaskID(TempIDPrefix + c.opts.NewID())
	}
	c.cache.Write(querycache.TasksKey(payload.Column), PrependTask(payload.Task(m.TaskID)))
	m.state = StateOptimistic

	c.log.WithFields(logrus.Fields{
		"task":   m.TaskID,
		"column": payload.Column,
		"order":  payload.Order,
	}).Debug("optimistic create applied")
	return payload
}

// ApplyUpdate moves or edits the task in every cached list: removed from
// lists of other columns, upserted into the list of its target column.
func (c *Coordinator) ApplyUpdate(m *Mutation, payload model.UpdateTaskPayload) {
	existing, found := locate(c.cache, m.TaskID)
	if !found {
		existing = model.Task{ID: m.TaskID}
	}
	full := payload.Apply(existing)
	full.ID = m.TaskID

	for _, key := range c.cache.Keys(querycache.AllTasks()) {
		if key.Column == full.Column {
			c.cache.Write(key, UpsertTask(m.TaskID, payload, full))
		} else {
			c.cache.Write(key, RemoveTask(m.TaskID))
		}
	}
	m.state = StateOptimistic

	c.log.WithFields(logrus.Fields{
		"task":   m.TaskID,
		"column": full.Column,
		"order":  full.Order,
		"known":  found,
	}).Debug("optimistic update applied")
}

// ApplyDelete removes the task from every cached list.
func (c *Coordinator) ApplyDelete(m *Mutation) {
	for _, key := range c.cache.Keys(querycache.AllTasks()) {
		c.cache.Write(key, RemoveTask(m.TaskID))
	}
	m.state = StateOptimistic
}

// Reconcile merges the server's record into every list holding it.
func (c *Coordinator) Reconcile(server model.Task) {
	if server.ID == "" {
		return
	}
	for _, key := range c.cache.Keys(querycache.AllTasks()) {
		c.cache.Write(key, MergeTask(server))
	}
}

// Finalize ends the mutation with the repository result. On success the
// server record is reconciled into the cache and the task lists are marked
// stale without refetching. On failure the snapshot is restored (deletes
// only when RollbackFailedDeletes is set) and the error is returned.
func (c *Coordinator) Finalize(m *Mutation, server model.Task, err error) error {
	if m.Done() {
		return ErrMutationDone
	}
	defer m.release()

	logger := c.log.WithFields(logrus.Fields{"task": m.TaskID, "kind": m.Kind})

	if err != nil {
		if m.Kind != KindDelete || c.opts.RollbackFailedDeletes {
			c.cache.Restore(m.snapshot)
			m.state = StateRolledBack
			logger.WithError(err).Warn("mutation failed, optimistic state rolled back")
		} else {
			m.state = StateFailed
			logger.WithError(err).Warn("delete failed, local removal kept")
		}
		return fmt.Errorf("%s task %s: %w", m.Kind, m.TaskID, err)
	}

	switch m.Kind {
	case KindCreate:
		if server.ID != "" {
			for _, key := range c.cache.Keys(querycache.AllTasks()) {
				c.cache.Write(key, ReplaceTask(m.TaskID, server))
			}
			m.TaskID = server.ID
		}
	case KindUpdate:
		c.Reconcile(server)
	}
	c.cache.Invalidate(querycache.AllTasks(), querycache.InvalidateOptions{Refetch: false})
	m.state = StateReconciled
	logger.Debug("mutation reconciled")
	return nil
}

// Create runs an optimistic create and returns the server's task.
func (c *Coordinator) Create(ctx context.Context, payload model.CreateTaskPayload) (model.Task, error) {
	m, err := c.Begin(KindCreate, "")
	if err != nil {
		return model.Task{}, err
	}
	payload = c.ApplyCreate(m, payload)
	m.state = StatePending

	task, err := c.repo.Create(ctx, payload)
	if err := c.Finalize(m, task, err); err != nil {
		return model.Task{}, err
	}
	if task.ID == "" {
		// Bodiless success: the optimistic record stands.
		if cached, ok := locate(c.cache, m.TaskID); ok {
			return cached, nil
		}
	}
	return task, nil
}

// Update runs an optimistic update (field edit, reorder or column move).
func (c *Coordinator) Update(ctx context.Context, id model.TaskID, payload model.UpdateTaskPayload) (model.Task, error) {
	m, err := c.Begin(KindUpdate, id)
	if err != nil {
		return model.Task{}, err
	}
	body := payload
	if c.opts.FullUpdates {
		if existing, ok := locate(c.cache, id); ok {
			body = model.FullUpdate(payload.Apply(existing))
		}
	}
	c.ApplyUpdate(m, payload)
	m.state = StatePending

	task, err := c.repo.Update(ctx, id, body)
	if err := c.Finalize(m, task, err); err != nil {
		return model.Task{}, err
	}
	if task.ID == "" {
		if cached, ok := locate(c.cache, id); ok {
			return cached, nil
		}
	}
	return task, nil
}

// Delete removes the task locally, then on the server.
func (c *Coordinator) Delete(ctx context.Context, id model.TaskID) error {
	m, err := c.Begin(KindDelete, id)
	if err != nil {
		return err
	}
	c.ApplyDelete(m)
	m.state = StatePending

	err = c.repo.Delete(ctx, id)
	return c.Finalize(m, model.Task{}, err)
}
