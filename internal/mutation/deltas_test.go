package mutation_test

import (
	"testing"

	"taskboard/internal/model"
	"taskboard/internal/mutation"
	"taskboard/internal/querycache"

	"github.com/stretchr/testify/assert"
)

func TestUpdatersIgnoreMissingEntries(t *testing.T) {
	updaters := []querycache.Updater{
		mutation.PrependTask(tk("1", model.ColumnBacklog, 0)),
		mutation.RemoveTask("1"),
		mutation.InsertBefore(tk("1", model.ColumnBacklog, 0), ""),
		mutation.MergeTask(tk("1", model.ColumnBacklog, 0)),
	}
	for _, fn := range updaters {
		_, ok := fn(querycache.Data{}, false)
		assert.False(t, ok)
	}
}

func TestUpdatersDoNotTouchInput(t *testing.T) {
	old := querycache.Data{Pages: []model.Page{pg(2, 0, tk("1", model.ColumnBacklog, 1), tk("2", model.ColumnBacklog, 2))}}

	mutation.RemoveTask("1")(old, true)
	mutation.PrependTask(tk("3", model.ColumnBacklog, 3))(old, true)
	mutation.UpsertTask("2", model.UpdateTaskPayload{Order: model.Ptr(0.0)}, model.Task{})(old, true)

	assert.Len(t, old.Pages[0].Items, 2)
	assert.Equal(t, 2, old.Pages[0].Total)
	assert.Equal(t, 2.0, old.Pages[0].Items[1].Order)
}

func TestInsertBefore(t *testing.T) {
	old := querycache.Data{Pages: []model.Page{
		pg(4, 2, tk("a", model.ColumnDone, 1), tk("b", model.ColumnDone, 2)),
		pg(4, 0, tk("c", model.ColumnDone, 3)),
	}}

	tests := []struct {
		name   string
		before model.TaskID
		want   []model.TaskID
	}{
		{"before first", "a", []model.TaskID{"x", "a", "b", "c"}},
		{"before task on second page", "c", []model.TaskID{"a", "b", "x", "c"}},
		{"no target appends", "", []model.TaskID{"a", "b", "c", "x"}},
		{"unknown target appends", "zzz", []model.TaskID{"a", "b", "c", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mutation.InsertBefore(tk("x", model.ColumnDone, 0), tt.before)(old, true)

			assert.True(t, ok)
			var order []model.TaskID
			for _, task := range got.Tasks() {
				order = append(order, task.ID)
			}
			assert.Equal(t, tt.want, order)
			assert.Equal(t, 5, got.Total())
		})
	}
}

func TestReplaceTaskSwapsTemporaryEntry(t *testing.T) {
	old := querycache.Data{Pages: []model.Page{pg(2, 0, tk("tmp-1", model.ColumnBacklog, 5), tk("a", model.ColumnBacklog, 1))}}

	got, _ := mutation.ReplaceTask("tmp-1", tk("77", model.ColumnBacklog, 5))(old, true)

	_, stillTemp := got.Find("tmp-1")
	assert.False(t, stillTemp)
	assert.Equal(t, model.TaskID("a"), got.Pages[0].Items[0].ID)
	assert.Equal(t, model.TaskID("77"), got.Pages[0].Items[1].ID)
	assert.Equal(t, 2, got.Total())
}
