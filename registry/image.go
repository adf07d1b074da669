// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package registry

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/layout"
	"github.com/gogpu/eglimage/storage"
)

// Handle is the opaque name of a registered image. Zero is never a valid
// handle.
type Handle uint32

// Image describes a pixel buffer shared between a producer and any number
// of consumers. An Image aliases memory; it is read-only once registered.
type Image struct {
	// Handle is the registry name of the image.
	Handle Handle

	// Width and Height are the dimensions in texels.
	Width  int
	Height int

	// Stride is the row pitch in bytes of a linear image, measured in
	// uncompressed texels for block formats.
	Stride int

	// Format is the pixel format of the buffer.
	Format format.PixelFormat

	// RGBOnly selects the opaque variant of a compressed format.
	RGBOnly bool

	// Tiled reports whether the buffer is twiddled rather than linear.
	Tiled bool

	// Block is the storage the image aliases, and Offset the byte offset of
	// the first texel within it.
	Block  *storage.Block
	Offset int

	// DevAddr is the device address of the first texel.
	DevAddr uint64

	// Sourced reports whether the image was extracted from a live texture
	// or renderbuffer, which holds a reference until it is repurposed.
	Sourced bool
}

// Pixels returns the bytes of the image, starting at its first texel, or
// nil if the block has been freed.
func (img *Image) Pixels() []byte {
	if img.Block == nil {
		return nil
	}
	mem := img.Block.Bytes()
	if mem == nil || img.Offset > len(mem) {
		return nil
	}
	return mem[img.Offset:]
}

// Extent returns the image size as a GPU extent.
func (img *Image) Extent() gputypes.Extent3D {
	//nolint:gosec // G115: dimensions are validated positive
	return gputypes.Extent3D{Width: uint32(img.Width), Height: uint32(img.Height), DepthOrArrayLayers: 1}
}

// ByteSize returns the number of bytes the image spans from its first
// texel.
func (img *Image) ByteSize() (int, error) {
	e, err := format.Lookup(img.Format)
	if err != nil {
		return 0, err
	}
	if img.Tiled {
		return layout.TiledSize(layout.FloorLog2(img.Width), layout.FloorLog2(img.Height), e.BytesPerElement), nil
	}
	w, h, stride := e.Shrink(img.Width, img.Height, img.Stride)
	return (h-1)*stride + w*e.BytesPerElement, nil
}

// String returns a short description for logging.
func (img *Image) String() string {
	layoutName := "linear"
	if img.Tiled {
		layoutName = "tiled"
	}
	return fmt.Sprintf("image#%d(%dx%d %v %s stride=%d)", img.Handle, img.Width, img.Height, img.Format, layoutName, img.Stride)
}
