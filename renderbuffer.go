package eglimage

import (
	"fmt"

	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/registry"
	"github.com/gogpu/eglimage/resource"
)

// RenderbufferInfo is a snapshot of a renderbuffer's state.
type RenderbufferInfo struct {
	Name   uint32
	Format format.RenderFormat
	Width  int
	Height int

	// Stride is the row pitch in bytes.
	Stride int

	Role     Role
	Image    registry.Handle
	Resource resource.ID

	// HasStorage reports whether the renderbuffer currently has memory.
	HasStorage bool
}

type renderbuffer struct {
	backing

	name   uint32
	format format.RenderFormat
	width  int
	height int
	stride int
}

func (rb *renderbuffer) label() string {
	return fmt.Sprintf("renderbuffer %d", rb.name)
}

// CreateRenderbuffer creates a renderbuffer with storage of the given
// format and size and returns its name.
func (s *Session) CreateRenderbuffer(rf format.RenderFormat, width, height int) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}
	s.nextRenderbuffer++
	rb := &renderbuffer{name: s.nextRenderbuffer}
	rb.res = s.tracker.NewID()
	if err := s.renderbufferStorage(rb, rf, width, height); err != nil {
		s.nextRenderbuffer--
		return 0, err
	}
	s.renderbuffers[rb.name] = rb
	return rb.name, nil
}

// RenderbufferStorage replaces the renderbuffer's storage. A renderbuffer
// that is an image sibling leaves image sharing first.
func (s *Session) RenderbufferStorage(name uint32, rf format.RenderFormat, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rb, err := s.renderbuffer(name)
	if err != nil {
		return err
	}
	return s.renderbufferStorage(rb, rf, width, height)
}

func (s *Session) renderbufferStorage(rb *renderbuffer, rf format.RenderFormat, width, height int) error {
	if !rf.Valid() {
		return fmt.Errorf("%w: renderbuffer format %v", ErrInvalidEnum, rf)
	}
	maxSize := s.platform.MaxTextureSize
	if width <= 0 || height <= 0 || width > maxSize || height > maxSize {
		return fmt.Errorf("%w: renderbuffer size %dx%d outside 1..%d", ErrInvalidValue, width, height, maxSize)
	}

	stride := s.platform.Stride.RowStride(width, rf.BytesPerPixel())
	blk, err := s.storage.Allocate(stride*height, rb.label())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutOfMemory, rb.label(), err)
	}

	wasTarget := rb.bind.role == RoleTarget
	if _, err := s.retire(&rb.backing, rb.label()); err != nil {
		s.storage.Free(blk)
		return err
	}
	if wasTarget {
		s.stats.RenderbufferTargetsBound--
	}

	rb.format = rf
	rb.width = width
	rb.height = height
	rb.stride = stride
	rb.block = blk
	return nil
}

// DeleteRenderbuffer retires the renderbuffer's role and storage and
// forgets the name. Unknown names are ignored.
func (s *Session) DeleteRenderbuffer(name uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	rb, ok := s.renderbuffers[name]
	if !ok {
		return nil
	}
	wasTarget := rb.bind.role == RoleTarget
	if _, err := s.retire(&rb.backing, rb.label()); err != nil {
		return err
	}
	if wasTarget {
		s.stats.RenderbufferTargetsBound--
	}
	delete(s.renderbuffers, name)
	return nil
}

// Renderbuffer returns a snapshot of the named renderbuffer.
func (s *Session) Renderbuffer(name uint32) (RenderbufferInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rb, ok := s.renderbuffers[name]
	if !ok {
		return RenderbufferInfo{}, false
	}
	info := RenderbufferInfo{
		Name:       rb.name,
		Format:     rb.format,
		Width:      rb.width,
		Height:     rb.height,
		Stride:     rb.stride,
		Role:       rb.bind.role,
		Resource:   rb.res,
		HasStorage: rb.block != nil,
	}
	if rb.bind.image != nil {
		info.Image = rb.bind.image.Handle
	}
	return info, true
}

func (s *Session) renderbuffer(name uint32) (*renderbuffer, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	rb, ok := s.renderbuffers[name]
	if !ok {
		return nil, fmt.Errorf("%w: no renderbuffer %d", ErrInvalidValue, name)
	}
	return rb, nil
}
