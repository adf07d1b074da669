package layout

import (
	"errors"
	"fmt"
)

// ErrInvalidRule is returned when a stride or cube rule is malformed.
var ErrInvalidRule = errors.New("layout: invalid alignment rule")

// StrideRule is the sampler's row alignment rule for linear surfaces.
type StrideRule struct {
	// Threshold is the width, in elements, at which CoarseAlign takes over.
	// A zero threshold always uses CoarseAlign.
	Threshold int

	// FineAlign is the row alignment in elements below Threshold.
	FineAlign int

	// CoarseAlign is the row alignment in elements at or above Threshold.
	CoarseAlign int
}

// DefaultStrideRule matches the SGX texture address unit.
var DefaultStrideRule = StrideRule{Threshold: 64, FineAlign: 4, CoarseAlign: 32}

// Granularity returns the alignment, in elements, applied to a row of the
// given width.
func (r StrideRule) Granularity(width int) int {
	if width < r.Threshold {
		return r.FineAlign
	}
	return r.CoarseAlign
}

// RowStride returns the padded row size in bytes.
func (r StrideRule) RowStride(width, bytesPerElement int) int {
	return AlignUp(width, r.Granularity(width)) * bytesPerElement
}

// Validate checks that the rule yields strides that never shrink as the
// width grows.
func (r StrideRule) Validate() error {
	if !IsPow2(r.CoarseAlign) {
		return fmt.Errorf("%w: coarse alignment %d is not a power of two", ErrInvalidRule, r.CoarseAlign)
	}
	if r.Threshold < 0 {
		return fmt.Errorf("%w: negative threshold %d", ErrInvalidRule, r.Threshold)
	}
	if r.Threshold == 0 {
		return nil
	}
	if !IsPow2(r.FineAlign) {
		return fmt.Errorf("%w: fine alignment %d is not a power of two", ErrInvalidRule, r.FineAlign)
	}
	if r.FineAlign > r.CoarseAlign {
		return fmt.Errorf("%w: fine alignment %d exceeds coarse alignment %d",
			ErrInvalidRule, r.FineAlign, r.CoarseAlign)
	}
	if r.Threshold%r.FineAlign != 0 {
		return fmt.Errorf("%w: threshold %d is not a multiple of %d", ErrInvalidRule, r.Threshold, r.FineAlign)
	}
	return nil
}

// RowStride computes the padded row size in bytes using DefaultStrideRule.
func RowStride(width, bytesPerElement int) int {
	return DefaultStrideRule.RowStride(width, bytesPerElement)
}

// CubeRule describes how cube map faces are packed in one allocation.
type CubeRule struct {
	// NoAlignSize8bpp is the largest top-level width of a 1-byte format
	// whose faces are packed without padding.
	NoAlignSize8bpp int

	// NoAlignSize16bpp is the same limit for 2- and 4-byte formats.
	NoAlignSize16bpp int

	// FaceAlign is the byte alignment of each face once the limit is passed.
	FaceAlign int
}

// DefaultCubeRule matches the SGX texture address unit.
var DefaultCubeRule = CubeRule{NoAlignSize8bpp: 32, NoAlignSize16bpp: 16, FaceAlign: 2048}

// Validate reports whether the rule can be applied.
func (r CubeRule) Validate() error {
	if !IsPow2(r.FaceAlign) {
		return fmt.Errorf("%w: face alignment %d is not a power of two", ErrInvalidRule, r.FaceAlign)
	}
	if r.NoAlignSize8bpp < 0 || r.NoAlignSize16bpp < 0 {
		return fmt.Errorf("%w: negative cube size limit", ErrInvalidRule)
	}
	return nil
}

// FaceStride returns the byte distance between consecutive faces of a
// twiddled cube map with the given level count and top-level size.
// Faces of mipmapped cubes are padded to FaceAlign once the top level is
// wider than the no-align limit for the texel size.
func (r CubeRule) FaceStride(bytesPerTexel, levels, topW, topH int, mipmapped bool) int {
	stride := bytesPerTexel * MipOffset(levels, topW, topH)
	if mipmapped && ((bytesPerTexel == 1 && topW > r.NoAlignSize8bpp) || topW > r.NoAlignSize16bpp) {
		stride = AlignUp(stride, r.FaceAlign)
	}
	return stride
}
