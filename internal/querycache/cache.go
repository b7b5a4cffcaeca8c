package querycache

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"taskboard/internal/model"
)

// ErrNoFetcher is returned by fetch operations on a cache built without one.
var ErrNoFetcher = errors.New("querycache: no fetcher configured")

// Updater turns the current value of a key into the next one. ok is false
// when the key holds no value. Updaters must not modify old; return
// (old, ok) to leave the entry unchanged.
type Updater func(old Data, ok bool) (Data, bool)

// Fetcher loads one 1-based page of the list addressed by key.
type Fetcher func(ctx context.Context, key Key, page int) (model.Page, error)

// Store is the cache surface the mutation and drag layers depend on.
type Store interface {
	Read(key Key) (Data, bool)
	Write(key Key, fn Updater) (Data, bool)
	SnapshotAll(prefix Key) Snapshot
	Restore(s Snapshot)
	Invalidate(prefix Key, opts InvalidateOptions)
	Keys(prefix Key) []Key
}

// SnapshotEntry is one captured key and its value.
type SnapshotEntry struct {
	Key  Key
	Data Data
}

// Snapshot is the rollback state captured by SnapshotAll.
type Snapshot []SnapshotEntry

type InvalidateOptions struct {
	// Refetch reloads the stale entries in the background. Without it they
	// stay as they are until the next Ensure.
	Refetch bool
}

// Status describes the fetch state of a key.
type Status struct {
	Present   bool
	Stale     bool
	Err       error
	FetchedAt time.Time
}

type entry struct {
	data      Data
	present   bool
	stale     bool
	err       error
	fetchedAt time.Time
}

// Cache is an in-memory Store. Every write runs its updater under the cache
// lock, so writes never interleave.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*entry

	fetch  Fetcher
	flight singleflight.Group
	bg     sync.WaitGroup
	log    *logrus.Entry
	now    func() time.Time
}

type Option func(*Cache)

func WithLogger(l *logrus.Entry) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds an empty cache. fetch may be nil for a cache that is only
// written to directly.
func New(fetch Fetcher, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Key]*entry),
		fetch:   fetch,
		log:     logrus.NewEntry(logrus.StandardLogger()),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "querycache")
	return c
}

func (c *Cache) Read(key Key) (Data, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !e.present {
		return Data{}, false
	}
	return e.data.Clone(), true
}

func (c *Cache) Write(key Key, fn Updater) (Data, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key]
	var (
		old     Data
		present bool
	)
	if exists {
		old, present = e.data, e.present
	}

	next, ok := fn(old, present)
	if !ok {
		if exists {
			e.data, e.present = Data{}, false
		}
		return Data{}, false
	}

	if !exists {
		e = &entry{}
		c.entries[key] = e
	}
	e.data, e.present = next.Clone(), true
	return next.Clone(), true
}

// Set stores d under key, replacing any value.
func (c *Cache) Set(key Key, d Data) {
	c.Write(key, func(Data, bool) (Data, bool) { return d, true })
}

func (c *Cache) Keys(prefix Key) []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keysLocked(prefix)
}

func (c *Cache) keysLocked(prefix Key) []Key {
	var keys []Key
	for k, e := range c.entries {
		if e.present && k.Matches(prefix) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (c *Cache) SnapshotAll(prefix Key) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := c.keysLocked(prefix)
	snap := make(Snapshot, 0, len(keys))
	for _, k := range keys {
		snap = append(snap, SnapshotEntry{Key: k, Data: c.entries[k].data.Clone()})
	}
	return snap
}

// Restore writes every captured value back in one step.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, se := range s {
		e, ok := c.entries[se.Key]
		if !ok {
			e = &entry{}
			c.entries[se.Key] = e
		}
		e.data, e.present = se.Data.Clone(), true
	}
}

func (c *Cache) Invalidate(prefix Key, opts InvalidateOptions) {
	c.mu.Lock()
	var keys []Key
	for k, e := range c.entries {
		if k.Matches(prefix) {
			e.stale = true
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()

	if !opts.Refetch || c.fetch == nil {
		return
	}
	for _, k := range keys {
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			if _, err := c.refetch(context.Background(), k); err != nil {
				c.log.WithError(err).WithField("key", k.String()).Warn("background refetch failed")
			}
		}()
	}
}

// Wait blocks until background refetches started by Invalidate finish.
func (c *Cache) Wait() {
	c.bg.Wait()
}

func (c *Cache) Status(key Key) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return Status{}
	}
	return Status{Present: e.present, Stale: e.stale, Err: e.err, FetchedAt: e.fetchedAt}
}

// Ensure returns the cached value for key, fetching it first when it is
// missing or stale.
func (c *Cache) Ensure(ctx context.Context, key Key) (Data, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	fresh := ok && e.present && !e.stale
	c.mu.RUnlock()

	if fresh {
		data, _ := c.Read(key)
		return data, nil
	}
	return c.refetch(ctx, key)
}

// FetchNextPage appends the next page of key when there is one.
func (c *Cache) FetchNextPage(ctx context.Context, key Key) (Data, error) {
	if c.fetch == nil {
		return Data{}, ErrNoFetcher
	}

	data, ok := c.Read(key)
	if !ok {
		return c.Ensure(ctx, key)
	}
	next := data.NextPage()
	if next == 0 {
		return data, nil
	}

	v, err, _ := c.flight.Do(flightKey(key, next), func() (any, error) {
		return c.fetch(ctx, key, next)
	})
	if err != nil {
		c.recordError(key, err)
		return data, err
	}
	page := v.(model.Page)

	appended, _ := c.Write(key, func(old Data, ok bool) (Data, bool) {
		if !ok || old.NextPage() != next {
			// Another fetch or a refetch already moved past this page.
			return old, ok
		}
		out := old.Clone()
		out.Pages = append(out.Pages, page.Clone())
		return out, true
	})
	c.markFetched(key)
	return appended, nil
}

// refetch reloads every page currently loaded for key, at least the first.
func (c *Cache) refetch(ctx context.Context, key Key) (Data, error) {
	if c.fetch == nil {
		return Data{}, ErrNoFetcher
	}

	v, err, _ := c.flight.Do(flightKey(key, 0), func() (any, error) {
		loaded := 1
		if old, ok := c.Read(key); ok && len(old.Pages) > loaded {
			loaded = len(old.Pages)
		}

		var fresh Data
		for page := 1; page <= loaded; page++ {
			p, err := c.fetch(ctx, key, page)
			if err != nil {
				return nil, err
			}
			fresh.Pages = append(fresh.Pages, p)
			if !p.HasNext() {
				break
			}
		}
		return fresh, nil
	})
	if err != nil {
		c.recordError(key, err)
		old, _ := c.Read(key)
		return old, err
	}

	data := v.(Data)
	c.Set(key, data)
	c.markFetched(key)
	return data.Clone(), nil
}

func (c *Cache) recordError(key Key, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	e.err = err
}

func (c *Cache) markFetched(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.stale = false
		e.err = nil
		e.fetchedAt = c.now()
	}
}

func flightKey(key Key, page int) string {
	if page == 0 {
		return key.String() + "#all"
	}
	return key.String() + "#" + strconv.Itoa(page)
}
