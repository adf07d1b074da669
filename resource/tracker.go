// Package resource tracks which GPU resources are still read by submitted
// work and keeps retired resources alive as ghosts until that work is done.
//
// The submission side calls Reference for every resource a command batch
// reads and gets a Fence back. The completion side, usually another
// goroutine, calls Complete as fences signal. A ghost parked while its
// resource is referenced is released once the last fence covering it
// completes.
package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/eglimage/storage"
)

// Tracker errors.
var (
	// ErrGhostLimit is returned when no more ghosts can be recorded.
	ErrGhostLimit = errors.New("resource: ghost limit reached")

	// ErrTrackerClosed is returned when ghosting on a closed tracker.
	ErrTrackerClosed = errors.New("resource: tracker closed")
)

// DefaultMaxGhosts is the default number of ghosts a tracker can hold.
const DefaultMaxGhosts = 256

// ID identifies a resource. IDs are never reused.
type ID uint64

// Fence marks a point in the GPU command stream. Fences complete in order.
type Fence uint64

// Ghost is the retired state of a resource that in-flight work may still
// read. Block, if set, stays allocated until Release runs.
type Ghost struct {
	// Resource is the ID the resource had when it was retired.
	Resource ID

	// Label describes the ghost for logging.
	Label string

	// Block is the memory the ghost keeps alive, if any.
	Block *storage.Block

	// Release is called exactly once when the ghost is no longer needed.
	Release func()
}

// Config holds configuration for creating a Tracker.
type Config struct {
	// MaxGhosts limits outstanding ghosts.
	// Defaults to DefaultMaxGhosts if <= 0.
	MaxGhosts int
}

// Stats contains tracker counters.
type Stats struct {
	// Submitted is the last fence handed out.
	Submitted Fence

	// Completed is the last fence that signaled.
	Completed Fence

	// Pending is the number of ghosts waiting for their fence.
	Pending int

	// Ghosted and Released count ghosts over the tracker's lifetime.
	Ghosted  uint64
	Released uint64
}

type parked struct {
	ghost Ghost
	fence Fence
}

// Tracker records resource references and parks ghosts.
//
// Tracker is safe for concurrent use. Release functions run without the
// tracker lock held, so they may call back into the tracker.
type Tracker struct {
	mu sync.Mutex

	nextID    ID
	submitted Fence
	completed Fence
	lastUse   map[ID]Fence
	ghosts    []parked
	maxGhosts int

	ghosted  uint64
	released uint64
	closed   bool
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(config Config) *Tracker {
	maxGhosts := config.MaxGhosts
	if maxGhosts <= 0 {
		maxGhosts = DefaultMaxGhosts
	}
	return &Tracker{
		lastUse:   make(map[ID]Fence),
		maxGhosts: maxGhosts,
	}
}

// NewID returns a fresh resource ID.
func (t *Tracker) NewID() ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return t.nextID
}

// Reference records a command batch that reads the given resources and
// returns the fence that signals its completion.
func (t *Tracker) Reference(ids ...ID) Fence {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitted++
	for _, id := range ids {
		t.lastUse[id] = t.submitted
	}
	return t.submitted
}

// IsResourceNeeded reports whether submitted work that reads id has not
// completed yet.
func (t *Tracker) IsResourceNeeded(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUse[id] > t.completed
}

// Ghost parks g until every batch reading g.Resource has completed. A ghost
// of an idle resource is released immediately.
func (t *Tracker) Ghost(g Ghost) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTrackerClosed
	}
	if len(t.ghosts) >= t.maxGhosts {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d ghosts outstanding, retiring %s", ErrGhostLimit, len(t.ghosts), g.Label)
	}

	t.ghosted++
	fence := t.lastUse[g.Resource]
	if fence <= t.completed {
		delete(t.lastUse, g.Resource)
		t.released++
		t.mu.Unlock()
		release(g)
		return nil
	}
	t.ghosts = append(t.ghosts, parked{ghost: g, fence: fence})
	t.mu.Unlock()
	return nil
}

// Complete marks f and every earlier fence as signaled and releases the
// ghosts they were holding.
func (t *Tracker) Complete(f Fence) {
	t.mu.Lock()
	if f <= t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = min(f, t.submitted)
	for id, last := range t.lastUse {
		if last <= t.completed {
			delete(t.lastUse, id)
		}
	}

	var done []Ghost
	kept := t.ghosts[:0]
	for _, p := range t.ghosts {
		if p.fence <= t.completed {
			done = append(done, p.ghost)
		} else {
			kept = append(kept, p)
		}
	}
	clear(t.ghosts[len(kept):])
	t.ghosts = kept
	t.released += uint64(len(done))
	t.mu.Unlock()

	for _, g := range done {
		release(g)
	}
}

// Ghosts returns the ghosts still waiting for their fence.
func (t *Tracker) Ghosts() []Ghost {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Ghost, len(t.ghosts))
	for i, p := range t.ghosts {
		out[i] = p.ghost
	}
	return out
}

// Stats returns a snapshot of the tracker counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Submitted: t.submitted,
		Completed: t.completed,
		Pending:   len(t.ghosts),
		Ghosted:   t.ghosted,
		Released:  t.released,
	}
}

// Close releases every parked ghost as if the GPU had gone idle and
// rejects further ghosts. Close is safe to call multiple times.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.completed = t.submitted
	done := t.ghosts
	t.ghosts = nil
	clear(t.lastUse)
	t.released += uint64(len(done))
	t.mu.Unlock()

	for _, p := range done {
		release(p.ghost)
	}
}

func release(g Ghost) {
	if g.Release != nil {
		g.Release()
	}
}
