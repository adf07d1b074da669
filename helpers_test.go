package eglimage

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/layout"
	"github.com/gogpu/eglimage/registry"
	"github.com/gogpu/eglimage/resource"
	"github.com/gogpu/eglimage/storage"
)

// fakeTracker is a scripted resource tracker.
type fakeTracker struct {
	next      resource.ID
	needed    map[resource.ID]bool
	failGhost bool
	ghosts    []resource.Ghost
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{needed: make(map[resource.ID]bool)}
}

func (f *fakeTracker) NewID() resource.ID {
	f.next++
	return f.next
}

func (f *fakeTracker) IsResourceNeeded(id resource.ID) bool {
	return f.needed[id]
}

func (f *fakeTracker) Ghost(g resource.Ghost) error {
	if f.failGhost {
		return resource.ErrGhostLimit
	}
	f.ghosts = append(f.ghosts, g)
	return nil
}

// releaseAll runs every recorded ghost's release, as GPU completion would.
func (f *fakeTracker) releaseAll() {
	for _, g := range f.ghosts {
		g.Release()
	}
	f.ghosts = nil
}

// failingStorage wraps a manager and can refuse allocations.
type failingStorage struct {
	*storage.Manager
	fail bool
}

func (f *failingStorage) Allocate(size int, label string) (*storage.Block, error) {
	if f.fail {
		return nil, storage.ErrBudgetExceeded
	}
	return f.Manager.Allocate(size, label)
}

// surfaceDevice is a device handle with a fixed surface format.
type surfaceDevice struct {
	NullDeviceHandle
	format gputypes.TextureFormat
}

func (d surfaceDevice) SurfaceFormat() gputypes.TextureFormat { return d.format }

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*13 + i>>8 + 1)
	}
	return b
}

// importLinear registers a w × h ABGR8888 image with a sampler-aligned
// stride, filled with pattern.
func importLinear(t *testing.T, s *Session, w, h int) registry.Handle {
	t.Helper()
	stride := layout.RowStride(w, 4)
	hdl, err := s.ImportBuffer(BufferDesc{Width: w, Height: h, Stride: stride, Format: format.ABGR8888}, pattern(stride*h))
	if err != nil {
		t.Fatalf("ImportBuffer(%dx%d) error = %v", w, h, err)
	}
	return hdl
}

// newFilledTexture creates a texture and uploads a distinct pattern to
// every face and level.
func newFilledTexture(t *testing.T, s *Session, desc TextureDesc) uint32 {
	t.Helper()
	name, err := s.CreateTexture(desc)
	if err != nil {
		t.Fatalf("CreateTexture(%+v) error = %v", desc, err)
	}
	levels := max(desc.Levels, 1)
	for f := range desc.Kind.faces() {
		for l := range levels {
			w, h := layout.LevelSize(desc.Width, desc.Height, l)
			data := pattern(desc.Format.LevelBytes(w, h))
			data[0] = byte(f<<4 | l)
			if err := s.TexImage(name, f, l, data); err != nil {
				t.Fatalf("TexImage(face %d, level %d) error = %v", f, l, err)
			}
		}
	}
	return name
}

func mustTexture(t *testing.T, s *Session, name uint32) TextureInfo {
	t.Helper()
	info, ok := s.Texture(name)
	if !ok {
		t.Fatalf("texture %d not found", name)
	}
	return info
}

func mustImage(t *testing.T, s *Session, h registry.Handle) *registry.Image {
	t.Helper()
	img, ok := s.Registry().Lookup(h)
	if !ok {
		t.Fatalf("image %d not found", h)
	}
	return img
}

func refs(s *Session, h registry.Handle) int {
	return s.Registry().(*registry.Registry).Refs(h)
}

func imageCount(s *Session) int {
	return s.Registry().(*registry.Registry).Len()
}
