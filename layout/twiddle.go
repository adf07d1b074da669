package layout

import (
	"fmt"

	"github.com/gogpu/eglimage/internal/cache"
)

// MaxTwiddleLog2 is the largest combined wlog2+hlog2 a twiddled surface
// may have; element indices must fit in 32 bits.
const MaxTwiddleLog2 = 30

// twiddleKey identifies one address table.
type twiddleKey struct {
	wlog2, hlog2 int
}

// twiddleTable holds the spread bit patterns of every column and row.
// The twiddled index of (x, y) is xs[x] | ys[y].
type twiddleTable struct {
	xs []uint32
	ys []uint32
}

// Streaming producers reuse a handful of sizes; 32 tables of a 2048×2048
// surface are 512 KiB.
var tables = cache.New[twiddleKey, *twiddleTable](32)

func lookupTable(wlog2, hlog2 int) *twiddleTable {
	k := twiddleKey{wlog2: wlog2, hlog2: hlog2}
	return tables.GetOrCreate(k, func() *twiddleTable { return buildTable(wlog2, hlog2) })
}

func buildTable(wlog2, hlog2 int) *twiddleTable {
	m := min(wlog2, hlog2)
	low := 1<<m - 1

	xs := make([]uint32, 1<<wlog2)
	for x := range xs {
		xs[x] = spread(uint32(x&low))<<1 | uint32(x>>m)<<(2*m)
	}
	ys := make([]uint32, 1<<hlog2)
	for y := range ys {
		ys[y] = spread(uint32(y&low)) | uint32(y>>m)<<(2*m)
	}
	return &twiddleTable{xs: xs, ys: ys}
}

// spread inserts a zero bit above each of the low 16 bits of v.
func spread(v uint32) uint32 {
	v &= 0xFFFF
	v = (v | v<<8) & 0x00FF00FF
	v = (v | v<<4) & 0x0F0F0F0F
	v = (v | v<<2) & 0x33333333
	v = (v | v<<1) & 0x55555555
	return v
}

// TwiddleIndex returns the element index of (x, y) in a twiddled surface of
// 2^wlog2 × 2^hlog2 elements.
func TwiddleIndex(x, y, wlog2, hlog2 int) int {
	m := min(wlog2, hlog2)
	low := 1<<m - 1
	idx := spread(uint32(x&low))<<1 | spread(uint32(y&low))
	return int(idx) | (x>>m)<<(2*m) | (y>>m)<<(2*m)
}

// TiledSize returns the byte size of a full twiddled surface.
func TiledSize(wlog2, hlog2, bytesPerElement int) int {
	return (1 << (wlog2 + hlog2)) * bytesPerElement
}

// Detile copies a width × height region of a twiddled surface of
// 2^wlog2 × 2^hlog2 elements into dst, whose rows are dstPitch bytes apart.
// bytesPerElement must be 2 or 4.
func Detile(dst, src []byte, wlog2, hlog2, width, height, dstPitch, bytesPerElement int) {
	tab := prepare("Detile", dst, src, wlog2, hlog2, width, height, dstPitch, bytesPerElement)
	if tab == nil {
		return
	}
	detileRows(dst, src, tab, width, dstPitch, bytesPerElement, 0, height)
}

// Tile is the inverse of Detile: it writes a width × height linear region
// whose rows are srcPitch bytes apart into a twiddled surface.
// Elements of dst outside the region are left untouched.
func Tile(dst, src []byte, wlog2, hlog2, width, height, srcPitch, bytesPerElement int) {
	tab := prepare("Tile", src, dst, wlog2, hlog2, width, height, srcPitch, bytesPerElement)
	if tab == nil {
		return
	}
	tileRows(dst, src, tab, width, srcPitch, bytesPerElement, 0, height)
}

// prepare validates a translation request and returns the address table,
// or nil when the region is empty. Contract violations panic.
func prepare(op string, linear, tiled []byte, wlog2, hlog2, width, height, pitch, bpe int) *twiddleTable {
	if bpe != 2 && bpe != 4 {
		panic(fmt.Sprintf("layout: %s: unsupported element size %d", op, bpe))
	}
	if wlog2 < 0 || hlog2 < 0 || wlog2+hlog2 > MaxTwiddleLog2 {
		panic(fmt.Sprintf("layout: %s: invalid surface size 2^%d x 2^%d", op, wlog2, hlog2))
	}
	if width < 0 || height < 0 || width > 1<<wlog2 || height > 1<<hlog2 {
		panic(fmt.Sprintf("layout: %s: region %dx%d outside 2^%d x 2^%d surface", op, width, height, wlog2, hlog2))
	}
	if width == 0 || height == 0 {
		return nil
	}
	if pitch < width*bpe {
		panic(fmt.Sprintf("layout: %s: pitch %d smaller than row of %d bytes", op, pitch, width*bpe))
	}
	if need := (height-1)*pitch + width*bpe; len(linear) < need {
		panic(fmt.Sprintf("layout: %s: linear buffer has %d bytes, need %d", op, len(linear), need))
	}

	tab := lookupTable(wlog2, hlog2)
	// xs and ys are monotonic with disjoint bits, so the last element of
	// the region has the highest address.
	if need := (int(tab.xs[width-1]|tab.ys[height-1]) + 1) * bpe; len(tiled) < need {
		panic(fmt.Sprintf("layout: %s: tiled buffer has %d bytes, need %d", op, len(tiled), need))
	}
	return tab
}

func detileRows(dst, src []byte, tab *twiddleTable, width, pitch, bpe, y0, y1 int) {
	xs := tab.xs[:width]
	switch bpe {
	case 2:
		for y := y0; y < y1; y++ {
			row := dst[y*pitch : y*pitch+width*2]
			yb := tab.ys[y]
			for x, xb := range xs {
				s := int(xb|yb) * 2
				row[2*x] = src[s]
				row[2*x+1] = src[s+1]
			}
		}
	case 4:
		for y := y0; y < y1; y++ {
			row := dst[y*pitch : y*pitch+width*4]
			yb := tab.ys[y]
			for x, xb := range xs {
				s := int(xb|yb) * 4
				copy(row[4*x:4*x+4], src[s:s+4])
			}
		}
	}
}

func tileRows(dst, src []byte, tab *twiddleTable, width, pitch, bpe, y0, y1 int) {
	xs := tab.xs[:width]
	switch bpe {
	case 2:
		for y := y0; y < y1; y++ {
			row := src[y*pitch : y*pitch+width*2]
			yb := tab.ys[y]
			for x, xb := range xs {
				d := int(xb|yb) * 2
				dst[d] = row[2*x]
				dst[d+1] = row[2*x+1]
			}
		}
	case 4:
		for y := y0; y < y1; y++ {
			row := src[y*pitch : y*pitch+width*4]
			yb := tab.ys[y]
			for x, xb := range xs {
				d := int(xb|yb) * 4
				copy(dst[d:d+4], row[4*x:4*x+4])
			}
		}
	}
}
