package querycache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"taskboard/internal/model"
	"taskboard/internal/querycache"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(total, next int, tasks ...model.Task) model.Page {
	if tasks == nil {
		tasks = []model.Task{}
	}
	return model.Page{Items: tasks, Total: total, NextPage: next}
}

func task(id string, col model.Column, order float64) model.Task {
	return model.Task{ID: model.TaskID(id), Title: "task " + id, Column: col, Order: order}
}

func TestWrite_MissingKeyIsPassedThrough(t *testing.T) {
	cache := querycache.New(nil)
	key := querycache.TasksKey(model.ColumnBacklog)

	var sawOK bool
	_, ok := cache.Write(key, func(old querycache.Data, ok bool) (querycache.Data, bool) {
		sawOK = ok
		return old, ok
	})

	assert.False(t, sawOK)
	assert.False(t, ok)
	_, present := cache.Read(key)
	assert.False(t, present)
	assert.Empty(t, cache.Keys(querycache.AllTasks()))
}

func TestReadReturnsCopy(t *testing.T) {
	cache := querycache.New(nil)
	key := querycache.TasksKey(model.ColumnBacklog)
	cache.Set(key, querycache.Data{Pages: []model.Page{page(1, 0, task("1", model.ColumnBacklog, 1))}})

	got, ok := cache.Read(key)
	require.True(t, ok)
	got.Pages[0].Items[0].Title = "mutated"

	again, _ := cache.Read(key)
	assert.Equal(t, "task 1", again.Pages[0].Items[0].Title)
}

func TestSnapshotRestore_IsExact(t *testing.T) {
	// Arrange
	cache := querycache.New(nil)
	backlog := querycache.TasksKey(model.ColumnBacklog)
	done := querycache.TasksKey(model.ColumnDone)
	cache.Set(backlog, querycache.Data{Pages: []model.Page{
		page(12, 2, task("1", model.ColumnBacklog, 1), task("2", model.ColumnBacklog, 2)),
		page(12, 0, task("3", model.ColumnBacklog, 3)),
	}})
	cache.Set(done, querycache.Data{Pages: []model.Page{page(0, 0)}})
	before := cache.SnapshotAll(querycache.AllTasks())

	// Act
	for i := 0; i < 3; i++ {
		cache.Write(backlog, func(old querycache.Data, ok bool) (querycache.Data, bool) {
			out := old.Clone()
			out.Pages[0].Items = out.Pages[0].Items[1:]
			out.Pages[0].Total--
			return out, ok
		})
	}
	cache.Write(done, func(old querycache.Data, ok bool) (querycache.Data, bool) {
		out := old.Clone()
		out.Pages[0].Items = append(out.Pages[0].Items, task("2", model.ColumnDone, 0))
		out.Pages[0].Total++
		return out, ok
	})
	cache.Restore(before)

	// Assert
	after := cache.SnapshotAll(querycache.AllTasks())
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("restore mismatch (-before +after):\n%s", diff)
	}
}

func TestSnapshotAll_RespectsPrefix(t *testing.T) {
	cache := querycache.New(nil)
	cache.Set(querycache.TasksKey(model.ColumnBacklog), querycache.Data{})
	cache.Set(querycache.TasksKey(model.ColumnReview), querycache.Data{})
	cache.Set(querycache.Key{Kind: "labels"}, querycache.Data{})

	all := cache.SnapshotAll(querycache.AllTasks())
	one := cache.SnapshotAll(querycache.TasksKey(model.ColumnReview))

	assert.Len(t, all, 2)
	require.Len(t, one, 1)
	assert.Equal(t, model.ColumnReview, one[0].Key.Column)
}

func TestEnsure_FetchesOnceUntilInvalidated(t *testing.T) {
	// Arrange
	var calls int32
	cache := querycache.New(func(ctx context.Context, key querycache.Key, p int) (model.Page, error) {
		atomic.AddInt32(&calls, 1)
		return page(1, 0, task("1", key.Column, 1)), nil
	})
	key := querycache.TasksKey(model.ColumnInProgress)

	// Act
	_, err := cache.Ensure(context.Background(), key)
	require.NoError(t, err)
	_, err = cache.Ensure(context.Background(), key)
	require.NoError(t, err)

	cache.Invalidate(querycache.AllTasks(), querycache.InvalidateOptions{Refetch: false})
	assert.True(t, cache.Status(key).Stale)
	data, err := cache.Ensure(context.Background(), key)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.False(t, cache.Status(key).Stale)
	assert.Len(t, data.Tasks(), 1)
}

func TestInvalidate_WithoutRefetchKeepsData(t *testing.T) {
	var calls int32
	cache := querycache.New(func(ctx context.Context, key querycache.Key, p int) (model.Page, error) {
		atomic.AddInt32(&calls, 1)
		return page(0, 0), nil
	})
	key := querycache.TasksKey(model.ColumnDone)
	cache.Set(key, querycache.Data{Pages: []model.Page{page(1, 0, task("9", model.ColumnDone, 1))}})

	cache.Invalidate(querycache.AllTasks(), querycache.InvalidateOptions{})
	cache.Wait()

	data, _ := cache.Read(key)
	assert.Len(t, data.Tasks(), 1)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestInvalidate_RefetchReloadsLoadedPages(t *testing.T) {
	// Arrange
	var mu sync.Mutex
	var requested []int
	cache := querycache.New(func(ctx context.Context, key querycache.Key, p int) (model.Page, error) {
		mu.Lock()
		requested = append(requested, p)
		mu.Unlock()
		next := 0
		if p < 3 {
			next = p + 1
		}
		return page(25, next, task("p"+string(rune('0'+p)), key.Column, float64(p))), nil
	})
	key := querycache.TasksKey(model.ColumnBacklog)
	cache.Set(key, querycache.Data{Pages: []model.Page{page(25, 2), page(25, 3)}})

	// Act
	cache.Invalidate(querycache.AllTasks(), querycache.InvalidateOptions{Refetch: true})
	cache.Wait()

	// Assert
	assert.Equal(t, []int{1, 2}, requested)
	data, _ := cache.Read(key)
	assert.Len(t, data.Pages, 2)
	assert.False(t, cache.Status(key).Stale)
}

func TestFetchNextPage_Appends(t *testing.T) {
	cache := querycache.New(func(ctx context.Context, key querycache.Key, p int) (model.Page, error) {
		if p == 1 {
			return page(15, 2, task("1", key.Column, 1)), nil
		}
		return page(15, 0, task("2", key.Column, 2)), nil
	})
	key := querycache.TasksKey(model.ColumnReview)

	_, err := cache.Ensure(context.Background(), key)
	require.NoError(t, err)
	data, err := cache.FetchNextPage(context.Background(), key)
	require.NoError(t, err)

	assert.Len(t, data.Pages, 2)
	assert.False(t, data.HasNext())

	again, err := cache.FetchNextPage(context.Background(), key)
	require.NoError(t, err)
	assert.Len(t, again.Pages, 2, "exhausted list does not fetch again")
}

func TestEnsure_ErrorIsRecorded(t *testing.T) {
	boom := errors.New("boom")
	cache := querycache.New(func(ctx context.Context, key querycache.Key, p int) (model.Page, error) {
		return model.Page{}, boom
	})
	key := querycache.TasksKey(model.ColumnBacklog)

	_, err := cache.Ensure(context.Background(), key)

	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, cache.Status(key).Err, boom)
	assert.False(t, cache.Status(key).Present)
}

func TestNoFetcher(t *testing.T) {
	cache := querycache.New(nil)
	_, err := cache.Ensure(context.Background(), querycache.TasksKey(model.ColumnDone))
	assert.ErrorIs(t, err, querycache.ErrNoFetcher)
}

func TestData_Helpers(t *testing.T) {
	d := querycache.Data{Pages: []model.Page{
		page(3, 2, task("a", model.ColumnBacklog, 4), task("b", model.ColumnBacklog, -1)),
		page(3, 0, task("c", model.ColumnBacklog, 2.5)),
	}}

	highest, ok := d.MaxOrder()
	assert.True(t, ok)
	assert.Equal(t, 4.0, highest)
	assert.Equal(t, 3, d.Total())
	_, found := d.Find("c")
	assert.True(t, found)

	_, ok = querycache.Data{}.MaxOrder()
	assert.False(t, ok)
}
