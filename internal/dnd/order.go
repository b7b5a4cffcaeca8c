package dnd

import (
	"taskboard/internal/model"
	"taskboard/internal/querycache"
)

// Target is where a dragged task is hovering or was dropped: either a
// column body (TaskID empty) or another task.
type Target struct {
	Column model.Column
	TaskID model.TaskID
}

func ColumnTarget(c model.Column) Target {
	return Target{Column: c}
}

func TaskTarget(id model.TaskID) Target {
	return Target{TaskID: id}
}

// OnTask reports whether the target is a task rather than a column body.
func (t Target) OnTask() bool {
	return t.TaskID != ""
}

// ComputeOrder returns the order a task dropped on target takes, given the
// target column's loaded tasks sorted by order. A drop on the column body
// goes after the highest order (0 in an empty column). A drop on the task at
// index i goes one below the first task, one above the last task, or halfway
// between tasks i-1 and i. ok is false when the target task is not in sorted.
func ComputeOrder(sorted []model.Task, target Target) (order float64, ok bool) {
	if !target.OnTask() {
		if len(sorted) == 0 {
			return 0, true
		}
		highest := sorted[0].Order
		for _, t := range sorted[1:] {
			if t.Order > highest {
				highest = t.Order
			}
		}
		return highest + 1, true
	}

	i := indexOf(sorted, target.TaskID)
	switch {
	case i < 0:
		return 0, false
	case i == 0:
		return sorted[0].Order - 1, true
	case i == len(sorted)-1:
		return sorted[i].Order + 1, true
	default:
		return (sorted[i-1].Order + sorted[i].Order) / 2, true
	}
}

// ColumnTasks returns a column's loaded tasks sorted by order.
func ColumnTasks(store querycache.Store, c model.Column) []model.Task {
	data, ok := store.Read(querycache.TasksKey(c))
	if !ok {
		return nil
	}
	tasks := data.Tasks()
	model.SortByOrder(tasks)
	return tasks
}

func indexOf(tasks []model.Task, id model.TaskID) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// findTask looks id up in every cached task list.
func findTask(store querycache.Store, id model.TaskID) (model.Task, bool) {
	for _, key := range store.Keys(querycache.AllTasks()) {
		data, ok := store.Read(key)
		if !ok {
			continue
		}
		if t, found := data.Find(id); found {
			return t, true
		}
	}
	return model.Task{}, false
}
