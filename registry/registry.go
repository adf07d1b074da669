// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package registry holds the reference-counted table of shared images.
//
// An image is referenced by its handle until Destroy, by its source object
// while that object still exposes its memory, and once by every target it
// is bound to. When the last reference goes, the image's block is handed
// to the registry's Freer.
//
//	reg := registry.New(mem)
//	h, err := reg.Import(registry.ImportDesc{...})
//	if err := reg.Bind(h); err != nil { ... }
//	defer reg.Unbind(h)
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/layout"
	"github.com/gogpu/eglimage/storage"
)

// Registry errors.
var (
	// ErrUnknownHandle is returned for handles that were never registered
	// or have been destroyed.
	ErrUnknownHandle = errors.New("registry: unknown image handle")

	// ErrInvalidImage is returned when an import descriptor is malformed.
	ErrInvalidImage = errors.New("registry: invalid image")
)

// Freer releases image storage once the last reference is gone.
type Freer interface {
	Free(b *storage.Block)
}

// ImportDesc describes a buffer produced outside the GPU pipeline, such as
// a camera frame, a decoded video frame or a window-system surface.
type ImportDesc struct {
	Width   int
	Height  int
	Stride  int
	Format  format.PixelFormat
	RGBOnly bool
	Tiled   bool

	// Block holds the pixels; the registry owns it from now on.
	Block  *storage.Block
	Offset int
}

type entry struct {
	img       *Image
	refs      int
	targets   int
	sourced   bool
	destroyed bool
}

// Registry is the image table.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[Handle]*entry
	next    Handle
	freer   Freer
}

// New creates an empty registry that returns storage to freer.
// A nil freer leaves blocks to the garbage collector.
func New(freer Freer) *Registry {
	return &Registry{
		entries: make(map[Handle]*entry),
		freer:   freer,
	}
}

// Create registers an image filled in by populate. The handle is reserved
// first so populate can see it in img.Handle; populate runs without the
// registry lock. If populate fails, nothing is registered.
func (r *Registry) Create(populate func(img *Image) error) (Handle, error) {
	r.mu.Lock()
	r.next++
	h := r.next
	r.mu.Unlock()

	img := &Image{Handle: h}
	if err := populate(img); err != nil {
		return 0, err
	}
	img.Handle = h

	refs := 1
	if img.Sourced {
		refs++
	}

	r.mu.Lock()
	r.entries[h] = &entry{img: img, refs: refs, sourced: img.Sourced}
	r.mu.Unlock()
	return h, nil
}

// Import validates desc and registers it as a new image.
func (r *Registry) Import(desc ImportDesc) (Handle, error) {
	if err := validateImport(desc); err != nil {
		return 0, err
	}
	return r.Create(func(img *Image) error {
		*img = Image{
			Handle:  img.Handle,
			Width:   desc.Width,
			Height:  desc.Height,
			Stride:  desc.Stride,
			Format:  desc.Format,
			RGBOnly: desc.RGBOnly,
			Tiled:   desc.Tiled,
			Block:   desc.Block,
			Offset:  desc.Offset,
			//nolint:gosec // G115: offset validated non-negative
			DevAddr: desc.Block.DevAddr() + uint64(desc.Offset),
		}
		return nil
	})
}

func validateImport(d ImportDesc) error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidImage, d.Width, d.Height)
	}
	e, err := format.Lookup(d.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if d.Block == nil || d.Block.Freed() {
		return fmt.Errorf("%w: no storage", ErrInvalidImage)
	}
	if d.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrInvalidImage, d.Offset)
	}
	if d.Tiled {
		if e.Compressed() || !layout.IsPow2(d.Width) || !layout.IsPow2(d.Height) {
			return fmt.Errorf("%w: tiled %v image must be uncompressed and power-of-two, got %dx%d",
				ErrInvalidImage, d.Format, d.Width, d.Height)
		}
	} else if !e.Compressed() && d.Stride < d.Width*e.BytesPerElement {
		return fmt.Errorf("%w: stride %d shorter than a %d texel row", ErrInvalidImage, d.Stride, d.Width)
	}

	img := Image{Width: d.Width, Height: d.Height, Stride: d.Stride, Format: d.Format, Tiled: d.Tiled}
	need, _ := img.ByteSize()
	if have := d.Block.Size() - d.Offset; have < need {
		return fmt.Errorf("%w: %d bytes of storage, need %d", ErrInvalidImage, have, need)
	}
	return nil
}

// Lookup returns the image for h. Destroyed handles are not found.
func (r *Registry) Lookup(h Handle) (*Image, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[h]
	if !ok || e.destroyed {
		return nil, false
	}
	return e.img, true
}

// Bind adds a target reference to h.
func (r *Registry) Bind(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok || e.destroyed {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	e.refs++
	e.targets++
	return nil
}

// Unbind drops one target reference from h. Unbinding an image that is
// already gone, or has no targets left, is a no-op.
func (r *Registry) Unbind(h Handle) {
	r.drop(h, func(e *entry) bool {
		if e.targets == 0 {
			return false
		}
		e.targets--
		return true
	})
}

// ReleaseSource drops the source reference from h once the source object
// stops exposing the image memory.
func (r *Registry) ReleaseSource(h Handle) {
	r.drop(h, func(e *entry) bool {
		if !e.sourced {
			return false
		}
		e.sourced = false
		return true
	})
}

// Destroy drops the handle reference. The image stays alive for its
// remaining source and targets but can no longer be looked up or bound.
func (r *Registry) Destroy(h Handle) error {
	found := false
	r.drop(h, func(e *entry) bool {
		if e.destroyed {
			return false
		}
		e.destroyed = true
		found = true
		return true
	})
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return nil
}

// drop decrements the reference count of h if adjust agrees and frees the
// image once nothing references it.
func (r *Registry) drop(h Handle, adjust func(e *entry) bool) {
	r.mu.Lock()
	e, ok := r.entries[h]
	if !ok || !adjust(e) {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.entries, h)
	r.mu.Unlock()

	if r.freer != nil && e.img.Block != nil {
		r.freer.Free(e.img.Block)
	}
}

// Refs returns the reference count of h, or 0 if it is gone.
func (r *Registry) Refs(h Handle) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[h]; ok {
		return e.refs
	}
	return 0
}

// Targets returns the number of targets bound to h.
func (r *Registry) Targets(h Handle) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[h]; ok {
		return e.targets
	}
	return 0
}

// Len returns the number of images still alive, destroyed or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
