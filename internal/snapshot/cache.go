package snapshot

import (
	"sync"
	"time"

	"prdash/internal/domain/pullrequest"

	"golang.org/x/exp/slices"
)

// View is what a viewer sees: the grouped records plus the ids currently
// being reconciled against the source.
type View struct {
	Groups      pullrequest.Snapshot   `json:"groups"`
	Reconciling []pullrequest.EntityID `json:"reconciling"`
}

// Cache holds the latest Snapshot. Every mutation runs as one synchronous
// read-compute-store step under the lock, so callers never observe a
// half-applied merge and no I/O may happen inside a mutation.
type Cache struct {
	mu          sync.Mutex
	current     pullrequest.Snapshot
	reconciling map[pullrequest.EntityID]int
	watchers    map[chan struct{}]struct{}
	now         func() time.Time
}

func New() *Cache {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		current:     pullrequest.Snapshot{},
		reconciling: make(map[pullrequest.EntityID]int),
		watchers:    make(map[chan struct{}]struct{}),
		now:         now,
	}
}

// Snapshot returns the latest Snapshot.
func (c *Cache) Snapshot() pullrequest.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

func (c *Cache) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]pullrequest.EntityID, 0, len(c.reconciling))
	for id := range c.reconciling {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return View{Groups: c.current, Reconciling: ids}
}

// Update applies fn to the latest Snapshot and stores the result.
func (c *Cache) Update(fn func(pullrequest.Snapshot) pullrequest.Snapshot) pullrequest.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = fn(c.current).WithDaysOpen(c.now())
	c.notify()

	return c.current
}

func (c *Cache) UpsertPlaceholder(repo string, r pullrequest.Record) pullrequest.Snapshot {
	return c.Update(func(s pullrequest.Snapshot) pullrequest.Snapshot {
		return s.UpsertPlaceholder(repo, r)
	})
}

func (c *Cache) Replace(repo string, r pullrequest.Record) pullrequest.Snapshot {
	return c.Update(func(s pullrequest.Snapshot) pullrequest.Snapshot {
		return s.Replace(repo, r)
	})
}

func (c *Cache) Remove(repo string, id pullrequest.EntityID) pullrequest.Snapshot {
	return c.Update(func(s pullrequest.Snapshot) pullrequest.Snapshot {
		return s.Remove(repo, id)
	})
}

func (c *Cache) InsertOrReplace(repo string, r pullrequest.Record) pullrequest.Snapshot {
	return c.Update(func(s pullrequest.Snapshot) pullrequest.Snapshot {
		return s.InsertOrReplace(repo, r)
	})
}

// Find looks up a record in the latest Snapshot.
func (c *Cache) Find(repo string, id pullrequest.EntityID) (pullrequest.Record, bool) {
	return c.Snapshot().Find(repo, id)
}

// BeginReconcile marks id as being reconciled. The returned func clears the
// mark; marks are counted so overlapping events for one id nest.
func (c *Cache) BeginReconcile(id pullrequest.EntityID) func() {
	c.mu.Lock()
	c.reconciling[id]++
	c.notify()
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()

			c.reconciling[id]--
			if c.reconciling[id] <= 0 {
				delete(c.reconciling, id)
			}
			c.notify()
		})
	}
}

// IsReconciling reports whether id is being reconciled.
func (c *Cache) IsReconciling(id pullrequest.EntityID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reconciling[id] > 0
}

// Watch returns a channel that receives a signal after each change. Signals
// coalesce: a slow reader sees at least one pending signal, not one per
// change. The returned func stops the watch.
func (c *Cache) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	c.watchers[ch] = struct{}{}
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.watchers, ch)
		c.mu.Unlock()
	}
}

func (c *Cache) notify() {
	for ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
