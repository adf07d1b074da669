package eglimage

import (
	"fmt"

	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/layout"
	"github.com/gogpu/eglimage/registry"
)

// Source selects the kind of object, and for cube maps the face, an image
// is created from.
type Source uint32

// Image sources.
const (
	SourceTexture2D            Source = 0x30B1
	SourceTextureCubePositiveX Source = 0x30B3
	SourceTextureCubeNegativeX Source = 0x30B4
	SourceTextureCubePositiveY Source = 0x30B5
	SourceTextureCubeNegativeY Source = 0x30B6
	SourceTextureCubePositiveZ Source = 0x30B7
	SourceTextureCubeNegativeZ Source = 0x30B8
	SourceRenderbuffer         Source = 0x30B9
)

// cubeFace returns the face index of a cube source.
func (src Source) cubeFace() (int, bool) {
	if src >= SourceTextureCubePositiveX && src <= SourceTextureCubeNegativeZ {
		return int(src - SourceTextureCubePositiveX), true
	}
	return 0, false
}

// BufferDesc describes pixels handed to ImportBuffer.
type BufferDesc struct {
	Width  int
	Height int

	// Stride is the row pitch in bytes of linear data.
	Stride int

	Format  format.PixelFormat
	RGBOnly bool

	// Tiled reports whether the data is already twiddled.
	Tiled bool
}

// CreateImage exposes a texture level or a renderbuffer as a new image.
// The object becomes the image's source until it is repurposed or
// detached.
func (s *Session) CreateImage(src Source, name uint32, level int) (registry.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}
	h, err := s.registry.Create(func(img *registry.Image) error {
		return s.extractSource(img, src, name, level)
	})
	if err != nil {
		return 0, err
	}
	Logger().Debug("eglimage: image created", "source", fmt.Sprintf("%#x", uint32(src)), "name", name, "level", level, "image", h)
	return h, nil
}

// ExtractSource fills img from a texture level or renderbuffer and makes
// the object img's source. It is the populate step of image creation for
// registries other than the session's own. On failure the object's role
// is unchanged.
func (s *Session) ExtractSource(img *registry.Image, src Source, name uint32, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	return s.extractSource(img, src, name, level)
}

func (s *Session) extractSource(img *registry.Image, src Source, name uint32, level int) error {
	switch {
	case src == SourceRenderbuffer:
		return s.extractRenderbuffer(img, name)
	case src == SourceTexture2D:
		return s.extractTexture(img, src, name, level)
	default:
		if _, ok := src.cubeFace(); ok {
			return s.extractTexture(img, src, name, level)
		}
		return fmt.Errorf("%w: image source %#x", ErrBadParameter, uint32(src))
	}
}

func (s *Session) extractTexture(img *registry.Image, src Source, name uint32, level int) error {
	if name == 0 {
		return fmt.Errorf("%w: texture name 0", ErrBadParameter)
	}
	t, ok := s.textures[name]
	if !ok {
		return fmt.Errorf("%w: no texture %d", ErrBadParameter, name)
	}
	if t.sibling() {
		return fmt.Errorf("%w: %s is an image %v", ErrBadAccess, t.label(), t.bind.role)
	}
	if s.checkConsistency(t) != Consistent {
		return fmt.Errorf("%w: %s", ErrInvalidState, t.label())
	}

	t.bind = binding{role: RoleSource, image: img}
	fail := func(err error) error {
		t.bind = binding{}
		return err
	}

	if level < 0 || level >= t.levels {
		return fail(fmt.Errorf("%w: level %d of %s with %d levels", ErrBadMatch, level, t.label(), t.levels))
	}
	if err := s.makeResident(t); err != nil {
		return fail(err)
	}

	face, cube := src.cubeFace()
	if cube != (t.kind == TextureCube) || t.kind == TextureExternal {
		return fail(fmt.Errorf("%w: source %#x from a %v texture", ErrBadParameter, uint32(src), t.kind))
	}

	pf, rgbOnly, err := format.Export(t.format)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %w", ErrGenericError, t.format.Name, err))
	}

	w, h := layout.LevelSize(t.width, t.height, level)
	offset := t.offset + face*t.faceStride + t.levelOffsets[level]
	img.Width = w
	img.Height = h
	img.Stride = t.strides[level]
	img.Format = pf
	img.RGBOnly = rgbOnly
	img.Tiled = t.tiled
	img.Block = t.block
	img.Offset = offset
	//nolint:gosec // G115: offset is non-negative
	img.DevAddr = t.block.DevAddr() + uint64(offset)
	img.Sourced = true
	return nil
}

func (s *Session) extractRenderbuffer(img *registry.Image, name uint32) error {
	if name == 0 {
		return fmt.Errorf("%w: renderbuffer name 0", ErrBadParameter)
	}
	rb, ok := s.renderbuffers[name]
	if !ok {
		return fmt.Errorf("%w: no renderbuffer %d", ErrBadParameter, name)
	}
	if rb.sibling() {
		return fmt.Errorf("%w: %s is an image %v", ErrBadAccess, rb.label(), rb.bind.role)
	}
	pf, _, err := format.Renderable(rb.format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGenericError, err)
	}
	if rb.block == nil {
		return fmt.Errorf("%w: %s has no storage", ErrBadParameter, rb.label())
	}

	img.Width = rb.width
	img.Height = rb.height
	img.Stride = rb.stride
	img.Format = pf
	img.Tiled = false
	img.Block = rb.block
	img.Offset = rb.offset
	//nolint:gosec // G115: offset is non-negative
	img.DevAddr = rb.block.DevAddr() + uint64(rb.offset)
	img.Sourced = true
	rb.bind = binding{role: RoleSource, image: img}
	return nil
}

// ImportBuffer copies data produced outside the GPU pipeline into new
// storage and registers it as an image.
func (s *Session) ImportBuffer(desc BufferDesc, data []byte) (registry.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}
	return s.importBuffer(desc, data)
}

func (s *Session) importBuffer(desc BufferDesc, data []byte) (registry.Handle, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty buffer", ErrBadParameter)
	}
	blk, err := s.storage.Allocate(len(data), "import")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	copy(blk.Bytes(), data)

	h, err := s.registry.Import(registry.ImportDesc{
		Width:   desc.Width,
		Height:  desc.Height,
		Stride:  desc.Stride,
		Format:  desc.Format,
		RGBOnly: desc.RGBOnly,
		Tiled:   desc.Tiled,
		Block:   blk,
	})
	if err != nil {
		s.storage.Free(blk)
		return 0, fmt.Errorf("%w: %w", ErrBadParameter, err)
	}
	Logger().Debug("eglimage: buffer imported", "image", h, "width", desc.Width, "height", desc.Height, "format", desc.Format)
	return h, nil
}

// ImportSurface registers a linear window-system surface as an image. The
// pixel format is the device's surface format.
func (s *Session) ImportSurface(width, height, stride int, data []byte) (registry.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}
	gf := s.device.SurfaceFormat()
	pf, ok := format.ByGPUFormat(gf)
	if !ok {
		return 0, fmt.Errorf("%w: surface format %v", ErrGenericError, gf)
	}
	return s.importBuffer(BufferDesc{Width: width, Height: height, Stride: stride, Format: pf}, data)
}

// DestroyImage drops the handle of image h. The image lives on while a
// source or target still refers to it.
func (s *Session) DestroyImage(h registry.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := s.registry.Destroy(h); err != nil {
		return fmt.Errorf("%w: %w", ErrBadParameter, err)
	}
	return nil
}
