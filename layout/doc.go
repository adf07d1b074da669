// Package layout converts pixel data between the GPU's twiddled (Morton
// order) layout and linear row-major layout, and computes the strides and
// offsets the texture sampler expects.
//
// # Twiddled Layout
//
// A twiddled surface of 2^wlog2 × 2^hlog2 elements interleaves the low
// min(wlog2, hlog2) bits of y and x, y in the even bit positions and x in
// the odd ones. The remaining high bits of the larger dimension follow
// unchanged. Element (x, y) therefore lives at
//
//	TwiddleIndex(x, y, wlog2, hlog2) * bytesPerElement
//
// Only 2-byte and 4-byte elements can be translated. Any other element
// size, or a buffer too small for the requested region, is a programming
// error and panics.
//
// # Strides
//
// Linear surfaces sampled by the GPU pad each row. Widths below
// StrideRule.Threshold round up to FineAlign elements, wider rows to
// CoarseAlign elements:
//
//	layout.RowStride(130, 4) // 640: 130 rounds up to 160
//	layout.RowStride(10, 2)  // 24: 10 rounds up to 12
//
// # Parallel Translation
//
// Detile and Tile run on the calling goroutine. A Translator splits large
// surfaces into row bands and spreads them over a worker pool; it produces
// byte-identical output.
package layout
