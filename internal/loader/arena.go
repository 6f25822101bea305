package loader

import (
	"sync"

	"prdash/internal/domain/pullrequest"
)

// Arena is the set of pull request ids a loader has already scheduled for
// enrichment. It lives as long as the loader that owns it.
type Arena struct {
	mu   sync.Mutex
	seen map[pullrequest.EntityID]struct{}
}

func NewArena() *Arena {
	return &Arena{seen: make(map[pullrequest.EntityID]struct{})}
}

// Mark records id and reports whether it was not seen before.
func (a *Arena) Mark(id pullrequest.EntityID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.seen[id]; ok {
		return false
	}
	a.seen[id] = struct{}{}

	return true
}

// Forget removes id so a later load schedules it again.
func (a *Arena) Forget(id pullrequest.EntityID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.seen, id)
}

func (a *Arena) Seen(id pullrequest.EntityID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.seen[id]
	return ok
}

func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.seen)
}

// Reset forgets every id.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seen = make(map[pullrequest.EntityID]struct{})
}
