package eglimage

import (
	"errors"
	"testing"

	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/layout"
	"github.com/gogpu/eglimage/registry"
	"github.com/gogpu/eglimage/storage"
)

// TestNewSessionWithCollaborators tests dependency injection of storage,
// tracker and registry.
func TestNewSessionWithCollaborators(t *testing.T) {
	mem := storage.NewManager(storage.Config{})
	defer mem.Close()
	tr := newFakeTracker()
	reg := registry.New(mem)

	s := NewSession(WithStorage(mem), WithTracker(tr), WithRegistry(reg))
	if s.Tracker() != tr {
		t.Error("tracker is not the injected fake")
	}
	if s.Registry() != reg {
		t.Error("registry is not the injected registry")
	}

	importLinear(t, s, 4, 4)
	if mem.Stats().BlockCount != 1 {
		t.Errorf("BlockCount = %d, want 1", mem.Stats().BlockCount)
	}

	// Close leaves injected storage open.
	s.Close()
	if _, err := mem.Allocate(16, "after close"); err != nil {
		t.Errorf("Allocate() after session Close error = %v", err)
	}
}

func TestWithPlatform_Defaults(t *testing.T) {
	tests := []struct {
		name string
		in   Platform
		want Platform
	}{
		{
			name: "zero",
			in:   Platform{},
			want: Platform{MaxTextureSize: DefaultMaxTextureSize, Stride: layout.DefaultStrideRule, Cube: layout.DefaultCubeRule},
		},
		{
			name: "invalid stride rule",
			in:   Platform{MaxTextureSize: 1024, Stride: layout.StrideRule{Threshold: 64, FineAlign: 3, CoarseAlign: 32}},
			want: Platform{MaxTextureSize: 1024, Stride: layout.DefaultStrideRule, Cube: layout.DefaultCubeRule},
		},
		{
			name: "custom",
			in: Platform{
				MaxTextureSize:   4096,
				Stride:           layout.StrideRule{Threshold: 32, FineAlign: 8, CoarseAlign: 64},
				Cube:             layout.CubeRule{NoAlignSize8bpp: 64, NoAlignSize16bpp: 32, FaceAlign: 4096},
				DisableTwiddling: true,
			},
			want: Platform{
				MaxTextureSize:   4096,
				Stride:           layout.StrideRule{Threshold: 32, FineAlign: 8, CoarseAlign: 64},
				Cube:             layout.CubeRule{NoAlignSize8bpp: 64, NoAlignSize16bpp: 32, FaceAlign: 4096},
				DisableTwiddling: true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(WithPlatform(tt.in))
			defer s.Close()
			if got := s.Platform(); got != tt.want {
				t.Errorf("Platform() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWithStorageConfig(t *testing.T) {
	s := NewSession(WithStorageConfig(storage.Config{BudgetBytes: 8192}))
	defer s.Close()

	importLinear(t, s, 16, 16)
	importLinear(t, s, 16, 16)
	stride := layout.RowStride(16, 4)
	if _, err := s.ImportBuffer(BufferDesc{Width: 16, Height: 16, Stride: stride, Format: format.ABGR8888}, pattern(stride*16)); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("ImportBuffer() beyond the budget error = %v, want ErrOutOfMemory", err)
	}
}

func TestWithWorkers(t *testing.T) {
	s := NewSession(WithWorkers(3))
	defer s.Close()
	if got := s.translator.Workers(); got != 3 {
		t.Errorf("Workers() = %d, want 3", got)
	}
}
