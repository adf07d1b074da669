// Package storage provides a budgeted allocator for GPU-visible memory
// blocks.
//
// Every Block has a CPU view (Bytes) and a device virtual address
// (DevAddr). Textures, renderbuffers and imported external images all draw
// from one Manager, so the budget covers every surface a session owns.
package storage

import (
	"errors"
	"fmt"
	"sync"
)

// Storage errors.
var (
	// ErrBudgetExceeded is returned when an allocation would exceed the budget.
	ErrBudgetExceeded = errors.New("storage: memory budget exceeded")

	// ErrManagerClosed is returned when allocating from a closed manager.
	ErrManagerClosed = errors.New("storage: manager closed")

	// ErrInvalidSize is returned for allocations of zero or negative size.
	ErrInvalidSize = errors.New("storage: invalid allocation size")
)

// Default configuration values.
const (
	// DefaultBudgetBytes is the default memory budget (64 MiB).
	DefaultBudgetBytes = 64 << 20

	// DefaultAlignment is the default device address alignment.
	DefaultAlignment = 4096

	// DefaultBaseAddress is the first device address handed out.
	DefaultBaseAddress = 0x10000000
)

// Config holds configuration for creating a Manager.
type Config struct {
	// BudgetBytes is the maximum number of bytes allocated at once.
	// Defaults to DefaultBudgetBytes if <= 0.
	BudgetBytes int

	// Alignment is the device address and accounting granularity.
	// Defaults to DefaultAlignment if not a positive power of two.
	Alignment int

	// BaseAddress is the first device address.
	// Defaults to DefaultBaseAddress if 0.
	BaseAddress uint64
}

// Stats contains allocator statistics.
type Stats struct {
	// TotalBytes is the budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently allocated (aligned) size in bytes.
	UsedBytes uint64

	// PeakBytes is the highest UsedBytes seen.
	PeakBytes uint64

	// BlockCount is the number of live blocks.
	BlockCount int

	// Allocations and Frees count calls that succeeded.
	Allocations uint64
	Frees       uint64
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Storage[%d/%d KiB used, peak %d KiB, %d blocks]",
		s.UsedBytes/1024, s.TotalBytes/1024, s.PeakBytes/1024, s.BlockCount)
}

// Block is one allocation. Its CPU view and device address stay valid until
// the block is freed.
type Block struct {
	id      uint64
	label   string
	size    int
	charged uint64
	devAddr uint64
	owner   *Manager

	mu    sync.Mutex
	mem   []byte
	freed bool
}

// ID returns the allocation serial number, unique within its manager.
func (b *Block) ID() uint64 { return b.id }

// Label returns the debug label given at allocation.
func (b *Block) Label() string { return b.label }

// Size returns the requested size in bytes.
func (b *Block) Size() int { return b.size }

// DevAddr returns the device virtual address of the first byte.
func (b *Block) DevAddr() uint64 { return b.devAddr }

// Bytes returns the CPU view of the block, or nil once it has been freed.
func (b *Block) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mem
}

// Freed reports whether the block has been released.
func (b *Block) Freed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.freed
}

// String returns a short description for logging.
func (b *Block) String() string {
	return fmt.Sprintf("block#%d(%s, %d bytes @ %#x)", b.id, b.label, b.size, b.devAddr)
}

// release drops the memory. It reports false if the block was already freed.
func (b *Block) release() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return false
	}
	b.freed = true
	b.mem = nil
	return true
}

// Manager hands out blocks within a fixed budget.
//
// Manager is safe for concurrent use; blocks may be freed from the
// goroutine that retires GPU work.
type Manager struct {
	mu sync.Mutex

	budget    uint64
	alignment uint64
	nextAddr  uint64
	nextID    uint64

	used   uint64
	peak   uint64
	allocs uint64
	frees  uint64
	live   map[*Block]struct{}

	closed bool
}

// NewManager creates a manager with the given configuration.
func NewManager(config Config) *Manager {
	budget := config.BudgetBytes
	if budget <= 0 {
		budget = DefaultBudgetBytes
	}
	align := config.Alignment
	if align <= 0 || align&(align-1) != 0 {
		align = DefaultAlignment
	}
	base := config.BaseAddress
	if base == 0 {
		base = DefaultBaseAddress
	}

	//nolint:gosec // G115: budget and align are positive
	return &Manager{
		budget:    uint64(budget),
		alignment: uint64(align),
		nextAddr:  base,
		live:      make(map[*Block]struct{}),
	}
}

// Allocate reserves a zeroed block of size bytes.
func (m *Manager) Allocate(size int, label string) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d bytes for %q", ErrInvalidSize, size, label)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	//nolint:gosec // G115: size checked positive above
	charged := m.alignUp(uint64(size))
	if m.used+charged > m.budget {
		return nil, fmt.Errorf("%w: need %d bytes for %q, %d of %d in use",
			ErrBudgetExceeded, charged, label, m.used, m.budget)
	}

	m.nextID++
	b := &Block{
		id:      m.nextID,
		label:   label,
		size:    size,
		charged: charged,
		devAddr: m.nextAddr,
		owner:   m,
		mem:     make([]byte, size),
	}
	m.nextAddr += charged
	m.used += charged
	m.peak = max(m.peak, m.used)
	m.allocs++
	m.live[b] = struct{}{}
	return b, nil
}

// Free releases a block. Freeing nil, a block of another manager, or an
// already freed block is a no-op.
func (m *Manager) Free(b *Block) {
	if b == nil || b.owner != m {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !b.release() {
		return
	}
	delete(m.live, b)
	m.used -= b.charged
	m.frees++
}

// Contains reports whether b is a live block of this manager.
func (m *Manager) Contains(b *Block) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[b]
	return ok
}

// Stats returns a snapshot of the allocator counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TotalBytes:  m.budget,
		UsedBytes:   m.used,
		PeakBytes:   m.peak,
		BlockCount:  len(m.live),
		Allocations: m.allocs,
		Frees:       m.frees,
	}
}

// Close frees every live block and rejects further allocations.
// Close is safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for b := range m.live {
		b.release()
		m.used -= b.charged
		m.frees++
	}
	clear(m.live)
}

func (m *Manager) alignUp(n uint64) uint64 {
	return (n + m.alignment - 1) &^ (m.alignment - 1)
}
