package mutation

import (
	"taskboard/internal/model"
	"taskboard/internal/querycache"
)

// The functions below build cache updaters for the optimistic deltas. Each
// one is a pure function of the previous value: the old Data is cloned, never
// edited, so any sequence of them can be replayed or rolled back.

// PrependTask inserts t at the head of the first page and bumps its total.
func PrependTask(t model.Task) querycache.Updater {
	return func(old querycache.Data, ok bool) (querycache.Data, bool) {
		if !ok || len(old.Pages) == 0 {
			return old, ok
		}
		out := old.Clone()
		first := &out.Pages[0]
		first.Items = append([]model.Task{t}, first.Items...)
		first.Total++
		return out, true
	}
}

// RemoveTask drops id from every page. The first page's total is decremented
// only when something was removed.
func RemoveTask(id model.TaskID) querycache.Updater {
	return func(old querycache.Data, ok bool) (querycache.Data, bool) {
		if !ok {
			return old, ok
		}
		if _, found := old.Find(id); !found {
			return old, ok
		}
		out := old.Clone()
		for i := range out.Pages {
			out.Pages[i].Items = without(out.Pages[i].Items, id)
		}
		if len(out.Pages) > 0 && out.Pages[0].Total > 0 {
			out.Pages[0].Total--
		}
		return out, true
	}
}

// UpsertTask merges payload into every copy of id held by the entry. When
// the entry does not hold the task yet, full is inserted into the first page
// and the total is bumped. Pages are re-sorted by order afterwards.
func UpsertTask(id model.TaskID, payload model.UpdateTaskPayload, full model.Task) querycache.Updater {
	return func(old querycache.Data, ok bool) (querycache.Data, bool) {
		if !ok || len(old.Pages) == 0 {
			return old, ok
		}
		out := old.Clone()
		found := false
		for pi := range out.Pages {
			items := out.Pages[pi].Items
			for i := range items {
				if items[i].ID == id {
					items[i] = payload.Apply(items[i])
					found = true
				}
			}
		}
		if !found {
			out.Pages[0].Items = append(out.Pages[0].Items, full)
			out.Pages[0].Total++
		}
		for pi := range out.Pages {
			model.SortByOrder(out.Pages[pi].Items)
		}
		return out, true
	}
}

// MergeTask overwrites every copy of server.ID with the server's record.
// Applying it a second time changes nothing.
func MergeTask(server model.Task) querycache.Updater {
	return ReplaceTask(server.ID, server)
}

// ReplaceTask swaps the task stored under id for t, re-sorting the pages it
// touched. Used to turn a temporary create entry into the server's record.
func ReplaceTask(id model.TaskID, t model.Task) querycache.Updater {
	return func(old querycache.Data, ok bool) (querycache.Data, bool) {
		if !ok {
			return old, ok
		}
		if _, found := old.Find(id); !found {
			return old, ok
		}
		out := old.Clone()
		for pi := range out.Pages {
			items := out.Pages[pi].Items
			touched := false
			for i := range items {
				if items[i].ID == id {
					items[i] = t
					touched = true
				}
			}
			if touched {
				model.SortByOrder(items)
			}
		}
		return out, true
	}
}

// InsertBefore places t in front of the task before, or at the end of the
// last loaded page when before is empty or not loaded. The first page's
// total is bumped.
func InsertBefore(t model.Task, before model.TaskID) querycache.Updater {
	return func(old querycache.Data, ok bool) (querycache.Data, bool) {
		if !ok || len(old.Pages) == 0 {
			return old, ok
		}
		out := old.Clone()
		placed := false
		if before != "" {
			for pi := range out.Pages {
				items := out.Pages[pi].Items
				for i := range items {
					if items[i].ID == before {
						out.Pages[pi].Items = insertAt(items, i, t)
						placed = true
						break
					}
				}
				if placed {
					break
				}
			}
		}
		if !placed {
			last := &out.Pages[len(out.Pages)-1]
			last.Items = append(last.Items, t)
		}
		out.Pages[0].Total++
		return out, true
	}
}

func without(items []model.Task, id model.TaskID) []model.Task {
	out := make([]model.Task, 0, len(items))
	for _, t := range items {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func insertAt(items []model.Task, i int, t model.Task) []model.Task {
	out := make([]model.Task, 0, len(items)+1)
	out = append(out, items[:i]...)
	out = append(out, t)
	return append(out, items[i:]...)
}

// locate finds the first cached copy of id across every task list.
func locate(store querycache.Store, id model.TaskID) (model.Task, bool) {
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

// NextOrder is the order a task appended to column gets: one past the
// highest loaded order, or 0 for an empty column.
func NextOrder(store querycache.Store, column model.Column) float64 {
	data, ok := store.Read(querycache.TasksKey(column))
	if !ok {
		return 0
	}
	if highest, found := data.MaxOrder(); found {
		return highest + 1
	}
	return 0
}
