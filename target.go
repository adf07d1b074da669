package eglimage

import (
	"fmt"

	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/registry"
)

// Target is the GL binding point an image is attached to.
type Target uint32

// Attachment targets.
const (
	TargetTexture2D       Target = 0x0DE1
	TargetTextureExternal Target = 0x8D65
	TargetRenderbuffer    Target = 0x8D41
)

// DetachMode says what happens to the image contents when a texture stops
// being an image target.
type DetachMode uint8

// Detach modes.
const (
	// DetachDiscard leaves the texture without data.
	DetachDiscard DetachMode = iota

	// DetachPreserve copies the image into the texture's own level 0.
	DetachPreserve
)

// ImageTargetTexture makes image h the storage of texture name. The
// texture's previous role and storage are retired first. On failure the
// texture keeps its previous role.
func (s *Session) ImageTargetTexture(target Target, name uint32, h registry.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	var kind TextureKind
	switch target {
	case TargetTexture2D:
		kind = Texture2D
	case TargetTextureExternal:
		kind = TextureExternal
	default:
		return fmt.Errorf("%w: texture target %#x", ErrInvalidEnum, uint32(target))
	}

	img, ok := s.registry.Lookup(h)
	if !ok {
		return fmt.Errorf("%w: unknown image %d", ErrInvalidOperation, h)
	}
	if err := s.checkImageSize(img); err != nil {
		return err
	}
	t, ok := s.textures[name]
	if !ok {
		return fmt.Errorf("%w: no texture %d", ErrInvalidOperation, name)
	}
	if t.kind != kind {
		return fmt.Errorf("%w: %s is a %v texture", ErrInvalidOperation, t.label(), t.kind)
	}
	entry, err := format.Lookup(img.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}
	if t.bind.role == RoleSource && t.bind.image.Handle == h {
		return fmt.Errorf("%w: %s is the source of image %d", ErrInvalidOperation, t.label(), h)
	}

	// Take the new reference before dropping the old one, so a failed
	// retirement can be undone.
	if err := s.registry.Bind(h); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}
	wasTarget := t.bind.role == RoleTarget
	if _, err := s.retire(&t.backing, t.label()); err != nil {
		s.registry.Unbind(h)
		return err
	}
	if wasTarget {
		s.stats.TextureTargetsBound--
	}

	tf, internal := entry.Resolve(img.RGBOnly)
	t.format = tf
	t.internal = internal
	t.width = img.Width
	t.height = img.Height
	t.resetHost(1)
	t.block = img.Block
	t.offset = img.Offset
	t.bind = binding{role: RoleTarget, image: img}
	t.resident = true
	t.tiled = img.Tiled
	t.levelOffsets = []int{0}
	t.strides = []int{img.Stride}
	t.faceStride = 0
	t.consistency = Consistent
	s.stats.TextureTargetsBound++

	Logger().Debug("eglimage: image target installed", "texture", name, "image", img, "internal", uint32(internal))
	return nil
}

// ImageTargetRenderbuffer makes image h the storage of renderbuffer name.
// Only linear images of a renderable format can back a renderbuffer. On
// failure the renderbuffer keeps its previous role.
func (s *Session) ImageTargetRenderbuffer(target Target, name uint32, h registry.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if target != TargetRenderbuffer {
		return fmt.Errorf("%w: renderbuffer target %#x", ErrInvalidEnum, uint32(target))
	}

	img, ok := s.registry.Lookup(h)
	if !ok {
		return fmt.Errorf("%w: unknown image %d", ErrInvalidValue, h)
	}
	if err := s.checkImageSize(img); err != nil {
		return err
	}
	rb, ok := s.renderbuffers[name]
	if !ok {
		return fmt.Errorf("%w: no renderbuffer %d", ErrInvalidOperation, name)
	}
	if img.Tiled {
		return fmt.Errorf("%w: tiled image %d cannot back a renderbuffer", ErrInvalidOperation, h)
	}
	rf, ok := format.RenderFormatOf(img.Format)
	if !ok {
		return fmt.Errorf("%w: %v is not renderable", ErrInvalidOperation, img.Format)
	}
	if rb.bind.role == RoleSource && rb.bind.image.Handle == h {
		return fmt.Errorf("%w: %s is the source of image %d", ErrInvalidOperation, rb.label(), h)
	}

	if err := s.registry.Bind(h); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}
	wasTarget := rb.bind.role == RoleTarget
	if _, err := s.retire(&rb.backing, rb.label()); err != nil {
		s.registry.Unbind(h)
		return err
	}
	if wasTarget {
		s.stats.RenderbufferTargetsBound--
	}

	rb.format = rf
	rb.width = img.Width
	rb.height = img.Height
	rb.stride = img.Stride
	rb.block = img.Block
	rb.offset = img.Offset
	rb.bind = binding{role: RoleTarget, image: img}
	s.stats.RenderbufferTargetsBound++

	Logger().Debug("eglimage: image target installed", "renderbuffer", name, "image", img)
	return nil
}

func (s *Session) checkImageSize(img *registry.Image) error {
	ext := img.Extent()
	//nolint:gosec // G115: MaxTextureSize is positive after defaulting
	maxSize := uint32(s.platform.MaxTextureSize)
	if ext.Width > maxSize || ext.Height > maxSize {
		return fmt.Errorf("%w: image %dx%d exceeds %d", ErrInvalidOperation, ext.Width, ext.Height, maxSize)
	}
	return nil
}

// DetachTexture ends the texture's part in image sharing.
//
// A target texture loses the image as storage; with DetachPreserve the
// image contents become the texture's level 0 first. A source texture
// gives its storage to the image; with DetachPreserve its current contents
// are read back as the uploaded data. Either way the texture is left
// non-resident with its consistency to be recomputed. Detaching a texture
// that is not an image sibling does nothing.
func (s *Session) DetachTexture(name uint32, mode DetachMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.texture(name)
	if err != nil {
		return err
	}
	role := t.bind.role
	if role == RoleNone {
		return nil
	}

	var saved [][][]byte
	if mode == DetachPreserve {
		saved = s.readBack(t)
	}

	if _, err := s.retire(&t.backing, t.label()); err != nil {
		return err
	}
	if role == RoleTarget {
		s.stats.TextureTargetsBound--
	}

	t.resident = false
	t.tiled = false
	if saved != nil {
		t.host = saved
		if role == RoleTarget {
			s.stats.Materialized++
		}
	} else if role == RoleTarget {
		t.resetHost(1)
	}
	t.consistency = ConsistencyUnknown
	return nil
}

// readBack decodes every face and level of t. It returns nil and logs a
// warning if any level cannot be read.
func (s *Session) readBack(t *texture) [][][]byte {
	out := make([][][]byte, t.kind.faces())
	for f := range out {
		out[f] = make([][]byte, t.levels)
		for l := range out[f] {
			data, err := s.readLevel(t, f, l)
			if err != nil {
				Logger().Warn("eglimage: contents not preserved", "texture", t.name, "err", err)
				return nil
			}
			out[f][l] = data
		}
	}
	return out
}

// DetachRenderbuffer ends the renderbuffer's part in image sharing. The
// renderbuffer is left without storage until RenderbufferStorage.
func (s *Session) DetachRenderbuffer(name uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rb, err := s.renderbuffer(name)
	if err != nil {
		return err
	}
	role := rb.bind.role
	if role == RoleNone {
		return nil
	}
	if _, err := s.retire(&rb.backing, rb.label()); err != nil {
		return err
	}
	if role == RoleTarget {
		s.stats.RenderbufferTargetsBound--
	}
	return nil
}
