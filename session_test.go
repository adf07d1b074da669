package eglimage

import (
	"bytes"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/layout"
	"github.com/gogpu/eglimage/storage"
)

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession()
	defer s.Close()

	p := s.Platform()
	if p.MaxTextureSize != DefaultMaxTextureSize {
		t.Errorf("MaxTextureSize = %d, want %d", p.MaxTextureSize, DefaultMaxTextureSize)
	}
	if p.Stride != layout.DefaultStrideRule || p.Cube != layout.DefaultCubeRule {
		t.Errorf("Platform() = %+v", p)
	}
	if s.Registry() == nil || s.Tracker() == nil {
		t.Error("collaborators not created")
	}
}

func TestCreateTexture_Validation(t *testing.T) {
	s := NewSession()
	defer s.Close()

	tests := []struct {
		name string
		desc TextureDesc
		want error
	}{
		{"unknown kind", TextureDesc{Kind: TextureKind(9)}, ErrInvalidEnum},
		{"size without format", TextureDesc{Width: 4, Height: 4}, ErrInvalidValue},
		{"zero size", TextureDesc{Format: format.TexRGB565}, ErrInvalidValue},
		{"too wide", TextureDesc{Format: format.TexRGB565, Width: 4096, Height: 4}, ErrInvalidValue},
		{"too many levels", TextureDesc{Format: format.TexRGB565, Width: 8, Height: 8, Levels: 5}, ErrInvalidValue},
		{"mipmapped external", TextureDesc{Kind: TextureExternal, Format: format.TexRGB565, Width: 8, Height: 8, Levels: 2}, ErrInvalidValue},
		{"empty", TextureDesc{}, nil},
		{"full chain", TextureDesc{Format: format.TexRGB565, Width: 8, Height: 8, Levels: 4}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateTexture(tt.desc)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("CreateTexture() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateTexture() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateTexture_InternalFormat(t *testing.T) {
	s := NewSession()
	defer s.Close()

	tests := []struct {
		tf   *format.TextureFormat
		want format.InternalFormat
	}{
		{format.TexL8, format.InternalLuminance},
		{format.TexRGB565, format.InternalRGB},
		{format.TexPVRTC4RGB, format.InternalRGBPVRTC4},
	}
	for _, tt := range tests {
		t.Run(tt.tf.Name, func(t *testing.T) {
			name, err := s.CreateTexture(TextureDesc{Format: tt.tf, Width: 8, Height: 8})
			if err != nil {
				t.Fatalf("CreateTexture() error = %v", err)
			}
			if got := mustTexture(t, s, name).Internal; got != tt.want {
				t.Errorf("Internal = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestTexImage_Validation(t *testing.T) {
	s := NewSession()
	defer s.Close()

	name, _ := s.CreateTexture(TextureDesc{Kind: TextureCube, Format: format.TexRGB565, Width: 8, Height: 8, Levels: 2})
	empty, _ := s.CreateTexture(TextureDesc{})

	tests := []struct {
		name        string
		tex         uint32
		face, level int
		size        int
		want        error
	}{
		{"unknown texture", 999, 0, 0, 128, ErrInvalidValue},
		{"no format", empty, 0, 0, 128, ErrInvalidOperation},
		{"face out of range", name, 6, 0, 128, ErrInvalidValue},
		{"level out of range", name, 0, 2, 32, ErrInvalidValue},
		{"short data", name, 0, 0, 127, ErrInvalidValue},
		{"level 1", name, 5, 1, 32, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.TexImage(tt.tex, tt.face, tt.level, make([]byte, tt.size))
			if tt.want == nil {
				if err != nil {
					t.Fatalf("TexImage() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("TexImage() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMakeResident_Consistency(t *testing.T) {
	s := NewSession()
	defer s.Close()

	tests := []struct {
		name   string
		desc   TextureDesc
		upload bool
		want   error
		tiled  bool
	}{
		{"pow2 16bpp", TextureDesc{Format: format.TexRGB565, Width: 16, Height: 8, Levels: 2}, true, nil, true},
		{"npot single level", TextureDesc{Format: format.TexABGR8888, Width: 130, Height: 70}, true, nil, false},
		{"8bpp stays linear", TextureDesc{Format: format.TexL8, Width: 16, Height: 16}, true, nil, false},
		{"compressed stays linear", TextureDesc{Format: format.TexPVRTC4RGBA, Width: 32, Height: 32}, true, nil, false},
		{"missing levels", TextureDesc{Format: format.TexRGB565, Width: 16, Height: 16, Levels: 2}, false, ErrInvalidState, false},
		{"npot mip chain", TextureDesc{Format: format.TexRGB565, Width: 12, Height: 8, Levels: 2}, true, ErrInvalidState, false},
		{"npot compressed", TextureDesc{Format: format.TexPVRTC4RGBA, Width: 12, Height: 12}, true, ErrInvalidState, false},
		{"non-square cube", TextureDesc{Kind: TextureCube, Format: format.TexRGB565, Width: 16, Height: 8}, true, ErrInvalidState, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var name uint32
			if tt.upload {
				name = newFilledTexture(t, s, tt.desc)
			} else {
				name, _ = s.CreateTexture(tt.desc)
			}

			err := s.MakeResident(name)
			info := mustTexture(t, s, name)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("MakeResident() error = %v, want %v", err, tt.want)
				}
				if info.Consistency != Inconsistent || info.Resident {
					t.Errorf("texture = %+v", info)
				}
				return
			}
			if err != nil {
				t.Fatalf("MakeResident() error = %v", err)
			}
			if !info.Resident || info.Tiled != tt.tiled || info.Consistency != Consistent {
				t.Errorf("resident = %v, tiled = %v, consistency = %v", info.Resident, info.Tiled, info.Consistency)
			}

			for l := range max(tt.desc.Levels, 1) {
				w, h := layout.LevelSize(tt.desc.Width, tt.desc.Height, l)
				want := pattern(tt.desc.Format.LevelBytes(w, h))
				want[0] = byte(l)
				got, err := s.ReadPixels(name, 0, l)
				if err != nil {
					t.Fatalf("ReadPixels(level %d) error = %v", l, err)
				}
				if !bytes.Equal(got, want) {
					t.Errorf("level %d does not round-trip through storage", l)
				}
			}
		})
	}
}

func TestMakeResident_DisableTwiddling(t *testing.T) {
	s := NewSession(WithPlatform(Platform{DisableTwiddling: true}))
	defer s.Close()

	name := newFilledTexture(t, s, TextureDesc{Format: format.TexABGR8888, Width: 16, Height: 16})
	if err := s.MakeResident(name); err != nil {
		t.Fatalf("MakeResident() error = %v", err)
	}
	if mustTexture(t, s, name).Tiled {
		t.Error("texture twiddled with twiddling disabled")
	}
}

func TestPlanLayout_LevelOffsets(t *testing.T) {
	tests := []struct {
		name    string
		desc    TextureDesc
		tiled   bool
		offsets []int
		face    int
	}{
		// Twiddled levels follow the packed Morton chain.
		{"twiddled", TextureDesc{Format: format.TexRGB565, Width: 8, Height: 8, Levels: 2}, true, []int{0, 128}, 160},
		// Linear levels are back to back at their padded strides:
		// 4 rows of 192, then 2 rows of 72.
		{"linear", TextureDesc{Format: format.TexRGB565, Width: 66, Height: 4, Levels: 3}, false, []int{0, 768, 912}, 944},
		{"compressed", TextureDesc{Format: format.TexPVRTC4RGB, Width: 16, Height: 16, Levels: 2}, false, []int{0, 128}, 160},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession()
			defer s.Close()

			name, err := s.CreateTexture(tt.desc)
			if err != nil {
				t.Fatalf("CreateTexture() error = %v", err)
			}
			tex, err := s.texture(name)
			if err != nil {
				t.Fatalf("texture() error = %v", err)
			}
			s.planLayout(tex)
			if tex.tiled != tt.tiled {
				t.Errorf("tiled = %v, want %v", tex.tiled, tt.tiled)
			}
			if !slices.Equal(tex.levelOffsets, tt.offsets) {
				t.Errorf("levelOffsets = %v, want %v", tex.levelOffsets, tt.offsets)
			}
			if tex.faceStride != tt.face {
				t.Errorf("faceStride = %d, want %d", tex.faceStride, tt.face)
			}
		})
	}
}

func TestMakeResident_OutOfMemory(t *testing.T) {
	s := NewSession(WithStorageConfig(storage.Config{BudgetBytes: 4096}))
	defer s.Close()

	importLinear(t, s, 16, 16)
	name := newFilledTexture(t, s, TextureDesc{Format: format.TexABGR8888, Width: 8, Height: 8})
	err := s.MakeResident(name)
	if !errors.Is(err, ErrOutOfMemory) || !errors.Is(err, storage.ErrBudgetExceeded) {
		t.Fatalf("MakeResident() error = %v, want ErrOutOfMemory", err)
	}
	if GLError(err) != GLOutOfMemory {
		t.Errorf("GLError() = %#x, want GLOutOfMemory", GLError(err))
	}
	if mustTexture(t, s, name).Resident {
		t.Error("texture resident after failed allocation")
	}
}

func TestDeleteTexture(t *testing.T) {
	s := NewSession()
	defer s.Close()

	h := importLinear(t, s, 8, 8)
	name, _ := s.CreateTexture(TextureDesc{})
	if err := s.ImageTargetTexture(TargetTexture2D, name, h); err != nil {
		t.Fatalf("ImageTargetTexture() error = %v", err)
	}
	if err := s.DeleteTexture(name); err != nil {
		t.Fatalf("DeleteTexture() error = %v", err)
	}
	if _, ok := s.Texture(name); ok {
		t.Error("deleted texture still found")
	}
	if refs(s, h) != 1 {
		t.Errorf("Refs() = %d, want 1", refs(s, h))
	}
	st := s.Stats()
	if st.Textures != 0 || st.TextureTargetsBound != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if err := s.DeleteTexture(name); err != nil {
		t.Errorf("DeleteTexture(deleted) error = %v", err)
	}
}

func TestRenderbufferStorage_Validation(t *testing.T) {
	s := NewSession()
	defer s.Close()

	if _, err := s.CreateRenderbuffer(format.RenderFormat(1), 8, 8); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("unknown format error = %v, want ErrInvalidEnum", err)
	}
	if _, err := s.CreateRenderbuffer(format.RenderRGB565, 0, 8); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("zero width error = %v, want ErrInvalidValue", err)
	}
	if _, err := s.CreateRenderbuffer(format.RenderRGB565, 8, 4096); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("oversize error = %v, want ErrInvalidValue", err)
	}

	rb, err := s.CreateRenderbuffer(format.RenderRGB565, 8, 8)
	if err != nil {
		t.Fatalf("CreateRenderbuffer() error = %v", err)
	}
	if rb != 1 {
		t.Errorf("first renderbuffer name = %d, want 1", rb)
	}
	if err := s.RenderbufferStorage(99, format.RenderRGB565, 8, 8); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("unknown renderbuffer error = %v, want ErrInvalidValue", err)
	}

	// A source renderbuffer gives its storage to the image on respecification.
	h, err := s.CreateImage(SourceRenderbuffer, rb, 0)
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	blk := mustImage(t, s, h).Block
	if err := s.RenderbufferStorage(rb, format.RenderRGBA8, 4, 4); err != nil {
		t.Fatalf("RenderbufferStorage() error = %v", err)
	}
	info, _ := s.Renderbuffer(rb)
	if info.Role != RoleNone || info.Format != format.RenderRGBA8 || !info.HasStorage {
		t.Errorf("renderbuffer = %+v", info)
	}
	if blk.Freed() || refs(s, h) != 1 {
		t.Errorf("image storage freed = %v, refs = %d", blk.Freed(), refs(s, h))
	}

	if err := s.DeleteRenderbuffer(rb); err != nil {
		t.Fatalf("DeleteRenderbuffer() error = %v", err)
	}
	if _, ok := s.Renderbuffer(rb); ok {
		t.Error("deleted renderbuffer still found")
	}
}

func TestImportBuffer_Errors(t *testing.T) {
	s := NewSession()
	defer s.Close()

	tests := []struct {
		name string
		desc BufferDesc
		size int
	}{
		{"empty data", BufferDesc{Width: 4, Height: 4, Stride: 16, Format: format.ABGR8888}, 0},
		{"unsupported format", BufferDesc{Width: 4, Height: 4, Stride: 4, Format: format.L8}, 16},
		{"short stride", BufferDesc{Width: 4, Height: 4, Stride: 8, Format: format.ABGR8888}, 64},
		{"short data", BufferDesc{Width: 4, Height: 4, Stride: 16, Format: format.ABGR8888}, 60},
		{"npot tiled", BufferDesc{Width: 6, Height: 4, Stride: 24, Format: format.ABGR8888, Tiled: true}, 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ImportBuffer(tt.desc, make([]byte, tt.size))
			if !errors.Is(err, ErrBadParameter) {
				t.Fatalf("ImportBuffer() error = %v, want ErrBadParameter", err)
			}
			if EGLError(err) != EGLBadParameter {
				t.Errorf("EGLError() = %#x, want EGLBadParameter", EGLError(err))
			}
		})
	}
	if imageCount(s) != 0 {
		t.Errorf("%d images registered after failures", imageCount(s))
	}
}

func TestImportSurface(t *testing.T) {
	s := NewSession(WithDeviceHandle(surfaceDevice{format: gputypes.TextureFormatRGBA8Unorm}))
	defer s.Close()

	h, err := s.ImportSurface(8, 8, 32, pattern(256))
	if err != nil {
		t.Fatalf("ImportSurface() error = %v", err)
	}
	if img := mustImage(t, s, h); img.Format != format.ABGR8888 || img.Tiled {
		t.Errorf("image = %v", img)
	}

	null := NewSession()
	defer null.Close()
	if _, err := null.ImportSurface(8, 8, 32, pattern(256)); !errors.Is(err, ErrGenericError) {
		t.Errorf("ImportSurface() without a device error = %v, want ErrGenericError", err)
	}
}

func TestSession_Close(t *testing.T) {
	s := NewSession()

	src := newFilledTexture(t, s, TextureDesc{Format: format.TexABGR8888, Width: 8, Height: 8})
	h, err := s.CreateImage(SourceTexture2D, src, 0)
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	dst, _ := s.CreateTexture(TextureDesc{})
	if err := s.ImageTargetTexture(TargetTexture2D, dst, h); err != nil {
		t.Fatalf("ImageTargetTexture() error = %v", err)
	}
	blk := mustImage(t, s, h).Block

	s.Close()
	s.Close()

	if !blk.Freed() {
		t.Error("storage survived Close")
	}
	if refs(s, h) != 1 {
		t.Errorf("Refs() = %d after Close, want the handle only", refs(s, h))
	}
	if st := s.Stats(); st.Textures != 0 || st.TextureTargetsBound != 0 {
		t.Errorf("Stats() = %+v", st)
	}

	checks := map[string]error{}
	_, checks["CreateTexture"] = s.CreateTexture(TextureDesc{})
	_, checks["CreateRenderbuffer"] = s.CreateRenderbuffer(format.RenderRGB565, 4, 4)
	_, checks["CreateImage"] = s.CreateImage(SourceTexture2D, src, 0)
	_, checks["ImportBuffer"] = s.ImportBuffer(BufferDesc{}, nil)
	checks["ImageTargetTexture"] = s.ImageTargetTexture(TargetTexture2D, dst, h)
	checks["ImageTargetRenderbuffer"] = s.ImageTargetRenderbuffer(TargetRenderbuffer, 1, h)
	checks["DetachTexture"] = s.DetachTexture(dst, DetachPreserve)
	checks["DeleteTexture"] = s.DeleteTexture(dst)
	checks["DestroyImage"] = s.DestroyImage(h)
	for op, err := range checks {
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("%s after Close error = %v, want ErrSessionClosed", op, err)
		}
	}
}

func TestSession_Concurrent(t *testing.T) {
	s := NewSession(WithWorkers(2))
	defer s.Close()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := s.ImportBuffer(BufferDesc{Width: 16, Height: 16, Stride: 64, Format: format.ABGR8888}, pattern(1024))
			if err != nil {
				t.Errorf("worker %d: ImportBuffer() error = %v", i, err)
				return
			}
			name, _ := s.CreateTexture(TextureDesc{})
			if err := s.ImageTargetTexture(TargetTexture2D, name, h); err != nil {
				t.Errorf("worker %d: ImageTargetTexture() error = %v", i, err)
				return
			}
			if err := s.DetachTexture(name, DetachPreserve); err != nil {
				t.Errorf("worker %d: DetachTexture() error = %v", i, err)
			}
			_ = s.DestroyImage(h)
		}()
	}
	wg.Wait()

	st := s.Stats()
	if st.Textures != 8 || st.Materialized != 8 || st.TextureTargetsBound != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if imageCount(s) != 0 {
		t.Errorf("%d images alive, want 0", imageCount(s))
	}
}
