package dnd

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"taskboard/internal/model"
	"taskboard/internal/mutation"
	"taskboard/internal/querycache"
)

var ErrNoActiveTask = errors.New("no drag in progress")

// Updater submits the update a drop produces. *mutation.Coordinator
// satisfies it.
type Updater interface {
	Update(ctx context.Context, id model.TaskID, payload model.UpdateTaskPayload) (model.Task, error)
}

// Drop is the outcome of a finished gesture.
type Drop struct {
	TaskID model.TaskID
	Column model.Column
	Order  float64
	// Abandoned is set when the drop target could not be resolved and no
	// update was submitted.
	Abandoned bool
	// Task is the server's record after the update.
	Task model.Task
}

// Engine turns drag gestures into cache moves and task updates.
type Engine struct {
	cache   querycache.Store
	updater Updater
	now     func() time.Time
	log     *logrus.Entry

	mu     sync.Mutex
	active *model.Task
	// before is the task lists as they were at DragStart. snapped is set once
	// DragOver has written a provisional move into the cache.
	before  querycache.Snapshot
	snapped bool
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func New(cache querycache.Store, updater Updater, opts ...Option) *Engine {
	e := &Engine{
		cache:   cache,
		updater: updater,
		now:     time.Now,
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("component", "dnd")
	return e
}

var _ Updater = (*mutation.Coordinator)(nil)

// DragStart marks task as the one being dragged and remembers the task
// lists so a provisional move can be taken back.
func (e *Engine) DragStart(task model.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = &task
	e.before = e.cache.SnapshotAll(querycache.AllTasks())
	e.snapped = false
}

// Active returns the task being dragged, as last moved by DragOver.
func (e *Engine) Active() (model.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return model.Task{}, false
	}
	return *e.active, true
}

// DragOver moves the active task into the hovered column as soon as the
// pointer crosses into it, ahead of the drop. It reports whether the cache
// was changed. Hovering within the task's current column does nothing.
func (e *Engine) DragOver(target Target) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return false
	}
	col, ok := e.resolve(target)
	if !ok || col == e.active.Column {
		return false
	}

	moved := *e.active
	from := moved.Column
	moved.Column = col
	moved.Order = provisionalOrder(ColumnTasks(e.cache, col), target)

	e.cache.Write(querycache.TasksKey(from), mutation.RemoveTask(moved.ID))
	e.cache.Write(querycache.TasksKey(col), mutation.InsertBefore(moved, target.TaskID))
	e.active = &moved
	e.snapped = true

	e.log.WithFields(logrus.Fields{
		"task": moved.ID,
		"from": from,
		"to":   col,
	}).Debug("drag snapped to column")
	return true
}

// DragEnd drops the active task on target. A nil or unresolvable target
// abandons the gesture and takes back any provisional move. Otherwise an
// update carrying the target column, the computed order and a fresh
// updatedAt is always submitted; if it fails, the task lists return to their
// state at DragStart. The active task is cleared in every case.
func (e *Engine) DragEnd(ctx context.Context, target *Target) (Drop, error) {
	e.mu.Lock()
	active := e.active
	before, snapped := e.before, e.snapped
	e.active, e.before, e.snapped = nil, nil, false

	if active == nil {
		e.mu.Unlock()
		return Drop{}, ErrNoActiveTask
	}
	drop := Drop{TaskID: active.ID, Column: active.Column, Order: active.Order}

	var (
		col model.Column
		ok  bool
	)
	if target != nil {
		col, ok = e.resolve(*target)
	}
	if !ok {
		if snapped {
			e.cache.Restore(before)
		}
		e.mu.Unlock()
		drop.Abandoned = true
		return drop, nil
	}
	drop.Column = col
	if order, ok := ComputeOrder(ColumnTasks(e.cache, col), *target); ok {
		drop.Order = order
	}
	e.mu.Unlock()

	now := e.now().UTC()
	payload := model.UpdateTaskPayload{
		Column:    model.Ptr(drop.Column),
		Order:     model.Ptr(drop.Order),
		UpdatedAt: &now,
	}

	e.log.WithFields(logrus.Fields{
		"task":   drop.TaskID,
		"column": drop.Column,
		"order":  drop.Order,
	}).Debug("task dropped")

	task, err := e.updater.Update(ctx, drop.TaskID, payload)
	if err != nil {
		if snapped {
			e.cache.Restore(before)
		}
		return drop, err
	}
	drop.Task = task
	return drop, nil
}

// DragCancel ends the gesture without submitting anything and takes back
// any provisional move.
func (e *Engine) DragCancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapped {
		e.cache.Restore(e.before)
	}
	e.active, e.before, e.snapped = nil, nil, false
}

// provisionalOrder places a snapped task just above the hovered task, or at
// the end of the column when hovering the column body.
func provisionalOrder(sorted []model.Task, target Target) float64 {
	i := indexOf(sorted, target.TaskID)
	switch {
	case !target.OnTask() || i < 0:
		order, _ := ComputeOrder(sorted, ColumnTarget(""))
		return order
	case i == 0:
		return sorted[0].Order - 1
	default:
		return (sorted[i-1].Order + sorted[i].Order) / 2
	}
}

func (e *Engine) resolve(target Target) (model.Column, bool) {
	if !target.OnTask() {
		return target.Column, target.Column.Valid()
	}
	t, ok := findTask(e.cache, target.TaskID)
	if !ok || !t.Column.Valid() {
		return "", false
	}
	return t.Column, true
}
