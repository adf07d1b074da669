// Package parallel runs row-band work for the layout translator on a fixed
// set of goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a fixed pool of goroutines fed from a shared queue.
//
// Thread safety: WorkerPool is safe for concurrent use. Work submitted after
// Close runs on the calling goroutine, so callers never lose a band.
type WorkerPool struct {
	workers int
	queue   chan func()
	done    chan struct{}
	wg      sync.WaitGroup

	// mu orders dispatch against Close: senders hold it shared, Close
	// exclusively, so nothing reaches the queue after the final drain.
	mu      sync.RWMutex
	running atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &WorkerPool{
		workers: workers,
		queue:   make(chan func(), max(workers*4, 8)),
		done:    make(chan struct{}),
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case fn := <-p.queue:
			fn()
		}
	}
}

// ExecuteAll runs every function and waits for all of them to return.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}
	if len(work) == 1 {
		work[0]()
		return
	}

	p.mu.RLock()
	if !p.running.Load() {
		p.mu.RUnlock()
		for _, fn := range work {
			fn()
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(work))
	for _, fn := range work {
		p.queue <- func() {
			defer wg.Done()
			fn()
		}
	}
	p.mu.RUnlock()
	wg.Wait()
}

// Bands splits [0, n) into at most Workers() contiguous ranges of at least
// minBand items and runs fn on each range in parallel.
func (p *WorkerPool) Bands(n, minBand int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if minBand < 1 {
		minBand = 1
	}
	count := min(p.workers, (n+minBand-1)/minBand)
	if count <= 1 {
		fn(0, n)
		return
	}

	size := (n + count - 1) / count
	work := make([]func(), 0, count)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		work = append(work, func() { fn(lo, hi) })
	}
	p.ExecuteAll(work)
}

// Close stops the workers. Close is safe to call multiple times and
// concurrently with ExecuteAll; work already queued still runs.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return
	}
	p.running.Store(false)
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()

	// Run whatever was queued before the workers saw done.
	for {
		select {
		case fn := <-p.queue:
			fn()
		default:
			return
		}
	}
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still dispatches to its workers.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
