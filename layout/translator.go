package layout

import "github.com/gogpu/eglimage/internal/parallel"

// parallelMinTexels is the smallest band, in elements, worth handing to
// another goroutine.
const parallelMinTexels = 1 << 14

// Translator converts between twiddled and linear layouts on a worker pool.
//
// Thread safety: Translator is safe for concurrent use. Its methods
// validate arguments exactly like Detile and Tile.
type Translator struct {
	pool *parallel.WorkerPool
}

// NewTranslator creates a translator with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewTranslator(workers int) *Translator {
	return &Translator{pool: parallel.NewWorkerPool(workers)}
}

// Workers returns the number of goroutines the translator uses.
func (t *Translator) Workers() int {
	return t.pool.Workers()
}

// Detile is the parallel form of the package-level Detile.
func (t *Translator) Detile(dst, src []byte, wlog2, hlog2, width, height, dstPitch, bytesPerElement int) {
	tab := prepare("Detile", dst, src, wlog2, hlog2, width, height, dstPitch, bytesPerElement)
	if tab == nil {
		return
	}
	t.pool.Bands(height, bandRows(width), func(lo, hi int) {
		detileRows(dst, src, tab, width, dstPitch, bytesPerElement, lo, hi)
	})
}

// Tile is the parallel form of the package-level Tile. Rows map to
// disjoint element sets, so bands never write the same bytes.
func (t *Translator) Tile(dst, src []byte, wlog2, hlog2, width, height, srcPitch, bytesPerElement int) {
	tab := prepare("Tile", src, dst, wlog2, hlog2, width, height, srcPitch, bytesPerElement)
	if tab == nil {
		return
	}
	t.pool.Bands(height, bandRows(width), func(lo, hi int) {
		tileRows(dst, src, tab, width, srcPitch, bytesPerElement, lo, hi)
	})
}

// Close stops the worker pool. Translations after Close run serially.
func (t *Translator) Close() {
	t.pool.Close()
}

func bandRows(width int) int {
	return max((parallelMinTexels+width-1)/width, 1)
}

// CachedTables returns the number of twiddle address tables held in memory.
func CachedTables() int {
	return tables.Len()
}
