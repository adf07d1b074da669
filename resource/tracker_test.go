package resource

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/eglimage/storage"
)

func TestTracker_IsResourceNeeded(t *testing.T) {
	tr := NewTracker(Config{})
	a, b := tr.NewID(), tr.NewID()
	if a == b {
		t.Fatal("NewID returned a duplicate")
	}

	if tr.IsResourceNeeded(a) {
		t.Error("unreferenced resource reported as needed")
	}

	f1 := tr.Reference(a)
	f2 := tr.Reference(a, b)
	if !tr.IsResourceNeeded(a) || !tr.IsResourceNeeded(b) {
		t.Fatal("referenced resources not needed")
	}

	tr.Complete(f1)
	if !tr.IsResourceNeeded(a) {
		t.Error("a still read by the second batch")
	}

	tr.Complete(f2)
	if tr.IsResourceNeeded(a) || tr.IsResourceNeeded(b) {
		t.Error("resources needed after all fences completed")
	}
}

func TestTracker_GhostWaitsForFence(t *testing.T) {
	mem := storage.NewManager(storage.Config{})
	blk, _ := mem.Allocate(256, "tex")

	tr := NewTracker(Config{})
	id := tr.NewID()
	f := tr.Reference(id)

	var released atomic.Int32
	err := tr.Ghost(Ghost{
		Resource: id,
		Label:    "tex",
		Block:    blk,
		Release: func() {
			released.Add(1)
			mem.Free(blk)
		},
	})
	if err != nil {
		t.Fatalf("Ghost() error = %v", err)
	}

	if released.Load() != 0 || blk.Freed() {
		t.Fatal("ghost released while its fence is pending")
	}
	if gs := tr.Ghosts(); len(gs) != 1 || gs[0].Block != blk {
		t.Fatalf("Ghosts() = %+v", gs)
	}

	tr.Complete(f)
	tr.Complete(f)

	if released.Load() != 1 {
		t.Errorf("Release called %d times, want 1", released.Load())
	}
	if !blk.Freed() {
		t.Error("block not freed after fence completed")
	}
	if st := tr.Stats(); st.Pending != 0 || st.Ghosted != 1 || st.Released != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestTracker_GhostIdleReleasesNow(t *testing.T) {
	tr := NewTracker(Config{})
	id := tr.NewID()
	tr.Complete(tr.Reference(id))

	called := false
	if err := tr.Ghost(Ghost{Resource: id, Release: func() { called = true }}); err != nil {
		t.Fatalf("Ghost() error = %v", err)
	}
	if !called {
		t.Error("idle ghost not released immediately")
	}
	if len(tr.Ghosts()) != 0 {
		t.Error("idle ghost parked")
	}
}

func TestTracker_GhostLimit(t *testing.T) {
	tr := NewTracker(Config{MaxGhosts: 2})
	id := tr.NewID()
	tr.Reference(id)

	for range 2 {
		if err := tr.Ghost(Ghost{Resource: id}); err != nil {
			t.Fatalf("Ghost() error = %v", err)
		}
	}
	if err := tr.Ghost(Ghost{Resource: id}); !errors.Is(err, ErrGhostLimit) {
		t.Errorf("Ghost() error = %v, want ErrGhostLimit", err)
	}
}

func TestTracker_Close(t *testing.T) {
	tr := NewTracker(Config{})
	id := tr.NewID()
	tr.Reference(id)

	var n atomic.Int32
	for range 3 {
		_ = tr.Ghost(Ghost{Resource: id, Release: func() { n.Add(1) }})
	}

	tr.Close()
	tr.Close()

	if n.Load() != 3 {
		t.Errorf("released %d ghosts on Close, want 3", n.Load())
	}
	if err := tr.Ghost(Ghost{Resource: id}); !errors.Is(err, ErrTrackerClosed) {
		t.Errorf("Ghost() after Close error = %v, want ErrTrackerClosed", err)
	}
	if tr.IsResourceNeeded(id) {
		t.Error("resource needed after Close")
	}
}

// Release may re-enter the tracker; Complete must not hold the lock.
func TestTracker_ReleaseReentrant(t *testing.T) {
	tr := NewTracker(Config{})
	id := tr.NewID()
	f := tr.Reference(id)

	_ = tr.Ghost(Ghost{Resource: id, Release: func() { _ = tr.Stats() }})
	tr.Complete(f)
}

func TestTracker_CompleteFromAnotherGoroutine(t *testing.T) {
	tr := NewTracker(Config{})

	var wg sync.WaitGroup
	var released atomic.Int32
	fences := make(chan Fence, 16)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for f := range fences {
			tr.Complete(f)
		}
	}()

	for range 16 {
		id := tr.NewID()
		f := tr.Reference(id)
		if err := tr.Ghost(Ghost{Resource: id, Release: func() { released.Add(1) }}); err != nil {
			t.Errorf("Ghost() error = %v", err)
		}
		fences <- f
	}
	close(fences)
	wg.Wait()

	if released.Load() != 16 {
		t.Errorf("released %d ghosts, want 16", released.Load())
	}
}

func TestTracker_CompleteBeyondSubmitted(t *testing.T) {
	tr := NewTracker(Config{})
	tr.Complete(10)
	if st := tr.Stats(); st.Completed != 0 {
		t.Errorf("Completed = %d, want 0", st.Completed)
	}
}
