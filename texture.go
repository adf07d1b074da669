package eglimage

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/layout"
	"github.com/gogpu/eglimage/registry"
	"github.com/gogpu/eglimage/resource"
	"github.com/gogpu/eglimage/storage"
)

// TextureKind is the binding point a texture was created for.
type TextureKind uint8

// Texture kinds.
const (
	Texture2D TextureKind = iota
	TextureCube
	TextureExternal
)

// String returns the kind name.
func (k TextureKind) String() string {
	switch k {
	case Texture2D:
		return "2D"
	case TextureCube:
		return "cube"
	case TextureExternal:
		return "external"
	default:
		return fmt.Sprintf("TextureKind(%d)", k)
	}
}

func (k TextureKind) faces() int {
	if k == TextureCube {
		return 6
	}
	return 1
}

// Consistency says whether a texture's levels form a complete, samplable
// mip chain.
type Consistency uint8

// Consistency states.
const (
	// ConsistencyUnknown means the state must be recomputed before use.
	ConsistencyUnknown Consistency = iota
	Consistent
	Inconsistent
)

// String returns the state name.
func (c Consistency) String() string {
	switch c {
	case ConsistencyUnknown:
		return "unknown"
	case Consistent:
		return "consistent"
	case Inconsistent:
		return "inconsistent"
	default:
		return fmt.Sprintf("Consistency(%d)", c)
	}
}

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Kind TextureKind

	// Format is the storage format. A nil format creates an empty texture
	// that only takes storage from an image; Width and Height must be 0.
	Format *format.TextureFormat

	// Width and Height are the top-level size in texels.
	Width  int
	Height int

	// Levels is the mip chain length. Defaults to 1 if <= 0.
	Levels int
}

// TextureInfo is a snapshot of a texture's state.
type TextureInfo struct {
	Name   uint32
	Kind   TextureKind
	Format *format.TextureFormat
	Width  int
	Height int
	Levels int

	// Internal is the internal format the texture is created with and
	// GPUFormat its WebGPU equivalent, if any.
	Internal  format.InternalFormat
	GPUFormat gputypes.TextureFormat

	// Role and Image describe the texture's part in image sharing. Image
	// is zero when Role is RoleNone.
	Role  Role
	Image registry.Handle

	// Resident reports whether the texture has GPU storage; Tiled whether
	// that storage is twiddled.
	Resident bool
	Tiled    bool

	// Consistency is the cached consistency state. It is
	// ConsistencyUnknown whenever it must be recomputed.
	Consistency Consistency

	// Resource is the ID submitted GPU work references the texture by.
	Resource resource.ID

	// Block and Offset locate the storage, which an image may own.
	Block  *storage.Block
	Offset int
}

type texture struct {
	backing

	name     uint32
	kind     TextureKind
	format   *format.TextureFormat
	internal format.InternalFormat
	width    int
	height   int
	levels   int

	// host holds the uploaded data of every face and level, tightly packed.
	host [][][]byte

	resident bool
	tiled    bool

	// Storage geometry, valid while resident.
	levelOffsets []int
	strides      []int
	faceStride   int

	consistency Consistency
}

func (t *texture) label() string {
	return fmt.Sprintf("texture %d", t.name)
}

func (t *texture) resetHost(levels int) {
	t.levels = levels
	t.host = make([][][]byte, t.kind.faces())
	for f := range t.host {
		t.host[f] = make([][]byte, levels)
	}
}

func (t *texture) info() TextureInfo {
	ti := TextureInfo{
		Name:        t.name,
		Kind:        t.kind,
		Format:      t.format,
		Width:       t.width,
		Height:      t.height,
		Levels:      t.levels,
		Internal:    t.internal,
		Role:        t.bind.role,
		Resident:    t.resident,
		Tiled:       t.tiled,
		Consistency: t.consistency,
		Resource:    t.res,
		Block:       t.block,
		Offset:      t.offset,
	}
	if t.format != nil {
		ti.GPUFormat = t.format.GPU
	}
	if t.bind.image != nil {
		ti.Image = t.bind.image.Handle
	}
	return ti
}

// CreateTexture creates a texture and returns its name.
func (s *Session) CreateTexture(desc TextureDesc) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}
	if desc.Kind > TextureExternal {
		return 0, fmt.Errorf("%w: texture kind %v", ErrInvalidEnum, desc.Kind)
	}
	levels := max(desc.Levels, 1)
	if desc.Format == nil {
		if desc.Width != 0 || desc.Height != 0 {
			return 0, fmt.Errorf("%w: sized texture without a format", ErrInvalidValue)
		}
	} else if err := s.checkTextureSize(desc, levels); err != nil {
		return 0, err
	}

	s.nextTexture++
	t := &texture{
		name:     s.nextTexture,
		kind:     desc.Kind,
		format:   desc.Format,
		internal: format.InternalOf(desc.Format),
		width:    desc.Width,
		height:   desc.Height,
	}
	t.res = s.tracker.NewID()
	t.resetHost(levels)
	s.textures[t.name] = t
	return t.name, nil
}

func (s *Session) checkTextureSize(desc TextureDesc, levels int) error {
	maxSize := s.platform.MaxTextureSize
	switch {
	case desc.Format.BytesPerTexel <= 0:
		return fmt.Errorf("%w: format %s has no storage size", ErrInvalidValue, desc.Format.Name)
	case desc.Width <= 0 || desc.Height <= 0 || desc.Width > maxSize || desc.Height > maxSize:
		return fmt.Errorf("%w: size %dx%d outside 1..%d", ErrInvalidValue, desc.Width, desc.Height, maxSize)
	case levels > layout.ComputeLevels(desc.Width, desc.Height):
		return fmt.Errorf("%w: %d levels for %dx%d", ErrInvalidValue, levels, desc.Width, desc.Height)
	case desc.Kind == TextureExternal && levels > 1:
		return fmt.Errorf("%w: external textures have one level", ErrInvalidValue)
	}
	return nil
}

// TexImage uploads tightly packed data for one face and level. A texture
// that is an image sibling leaves image sharing first, and resident
// storage is retired; both are ghosted if GPU work still reads them.
func (s *Session) TexImage(name uint32, face, level int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.texture(name)
	if err != nil {
		return err
	}
	if t.format == nil {
		return fmt.Errorf("%w: %s has no format", ErrInvalidOperation, t.label())
	}
	if face < 0 || face >= t.kind.faces() || level < 0 || level >= t.levels {
		return fmt.Errorf("%w: face %d level %d of %s", ErrInvalidValue, face, level, t.label())
	}
	w, h := layout.LevelSize(t.width, t.height, level)
	if want := t.format.LevelBytes(w, h); len(data) != want {
		return fmt.Errorf("%w: %d bytes for a %dx%d %s level, want %d",
			ErrInvalidValue, len(data), w, h, t.format.Name, want)
	}

	if t.sibling() || t.block != nil {
		wasTarget := t.bind.role == RoleTarget
		if _, err := s.retire(&t.backing, t.label()); err != nil {
			return err
		}
		if wasTarget {
			s.stats.TextureTargetsBound--
		}
		t.resident = false
	}

	t.host[face][level] = append([]byte(nil), data...)
	t.consistency = ConsistencyUnknown
	return nil
}

// MakeResident lays the texture's levels out in GPU storage.
func (s *Session) MakeResident(name uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.texture(name)
	if err != nil {
		return err
	}
	return s.makeResident(t)
}

// DeleteTexture retires the texture's role and storage and forgets the
// name. Unknown names are ignored.
func (s *Session) DeleteTexture(name uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	t, ok := s.textures[name]
	if !ok {
		return nil
	}
	wasTarget := t.bind.role == RoleTarget
	if _, err := s.retire(&t.backing, t.label()); err != nil {
		return err
	}
	if wasTarget {
		s.stats.TextureTargetsBound--
	}
	delete(s.textures, name)
	return nil
}

// Texture returns a snapshot of the named texture.
func (s *Session) Texture(name uint32) (TextureInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.textures[name]
	if !ok {
		return TextureInfo{}, false
	}
	return t.info(), true
}

// ReadPixels returns a tightly packed linear copy of one face and level:
// from GPU storage when resident, otherwise from the uploaded data.
func (s *Session) ReadPixels(name uint32, face, level int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.texture(name)
	if err != nil {
		return nil, err
	}
	if face < 0 || face >= t.kind.faces() || level < 0 || level >= t.levels {
		return nil, fmt.Errorf("%w: face %d level %d of %s", ErrInvalidValue, face, level, t.label())
	}
	if t.resident {
		return s.readLevel(t, face, level)
	}
	if data := t.host[face][level]; data != nil {
		return append([]byte(nil), data...), nil
	}
	return nil, fmt.Errorf("%w: %s face %d level %d has no data", ErrInvalidOperation, t.label(), face, level)
}

func (s *Session) texture(name uint32) (*texture, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	t, ok := s.textures[name]
	if !ok {
		return nil, fmt.Errorf("%w: no texture %d", ErrInvalidValue, name)
	}
	return t, nil
}

// checkConsistency recomputes the cached consistency state if needed.
func (s *Session) checkConsistency(t *texture) Consistency {
	if t.consistency == ConsistencyUnknown {
		t.consistency = t.computeConsistency()
	}
	return t.consistency
}

func (t *texture) computeConsistency() Consistency {
	if t.resident {
		return Consistent
	}
	if t.format == nil || t.width <= 0 || t.height <= 0 {
		return Inconsistent
	}
	if t.kind == TextureCube && t.width != t.height {
		return Inconsistent
	}
	npot := !layout.IsPow2(t.width) || !layout.IsPow2(t.height)
	if npot && (t.levels > 1 || t.format.Compressed()) {
		return Inconsistent
	}
	for _, levels := range t.host {
		for _, data := range levels {
			if data == nil {
				return Inconsistent
			}
		}
	}
	return Consistent
}

// useTwiddled reports whether t is stored in twiddled layout.
func (s *Session) useTwiddled(t *texture) bool {
	bpt := t.format.BytesPerTexel
	return !s.platform.DisableTwiddling &&
		!t.format.Compressed() &&
		(bpt == 2 || bpt == 4) &&
		layout.IsPow2(t.width) && layout.IsPow2(t.height)
}

// planLayout computes level offsets, row strides and the face stride.
func (s *Session) planLayout(t *texture) {
	bpt := t.format.BytesPerTexel
	t.tiled = s.useTwiddled(t)
	t.levelOffsets = make([]int, t.levels)
	t.strides = make([]int, t.levels)

	offset := 0
	for l := range t.levels {
		w, h := layout.LevelSize(t.width, t.height, l)
		t.strides[l] = s.platform.Stride.RowStride(w, bpt)
		if t.tiled {
			t.levelOffsets[l] = bpt * layout.MipOffset(l, t.width, t.height)
			continue
		}
		t.levelOffsets[l] = offset
		_, rows, stride := t.format.Shrink(w, h, t.strides[l])
		offset += rows * stride
	}

	switch {
	case !t.tiled:
		t.faceStride = offset
	case t.kind == TextureCube:
		t.faceStride = s.platform.Cube.FaceStride(bpt, t.levels, t.width, t.height, t.levels > 1)
	default:
		t.faceStride = bpt * layout.MipOffset(t.levels, t.width, t.height)
	}
}

// makeResident allocates storage for t and writes every uploaded level
// into it.
func (s *Session) makeResident(t *texture) error {
	if t.resident {
		return nil
	}
	if s.checkConsistency(t) != Consistent {
		return fmt.Errorf("%w: %s", ErrInvalidState, t.label())
	}

	s.planLayout(t)
	faces := t.kind.faces()
	blk, err := s.storage.Allocate(t.faceStride*faces, t.label())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutOfMemory, t.label(), err)
	}

	mem := blk.Bytes()
	bpt := t.format.BytesPerTexel
	for f := range faces {
		for l, data := range t.host[f] {
			w, h := layout.LevelSize(t.width, t.height, l)
			dst := mem[f*t.faceStride+t.levelOffsets[l]:]
			if t.tiled {
				s.translator.Tile(dst, data, layout.FloorLog2(w), layout.FloorLog2(h), w, h, w*bpt, bpt)
				continue
			}
			cols, rows, stride := t.format.Shrink(w, h, t.strides[l])
			layout.CopyRows(dst, stride, data, cols*bpt, rows, cols*bpt)
		}
	}

	t.block = blk
	t.offset = 0
	t.resident = true
	t.consistency = Consistent
	Logger().Debug("eglimage: texture resident", "texture", t.name, "bytes", blk.Size(), "tiled", t.tiled)
	return nil
}

// readLevel decodes one face and level of resident storage into a tightly
// packed linear buffer.
func (s *Session) readLevel(t *texture, face, level int) ([]byte, error) {
	mem := t.bytes()
	if mem == nil {
		return nil, fmt.Errorf("%w: %s storage released", ErrInvalidOperation, t.label())
	}
	bpt := t.format.BytesPerTexel
	w, h := layout.LevelSize(t.width, t.height, level)
	src := mem[face*t.faceStride+t.levelOffsets[level]:]
	out := make([]byte, t.format.LevelBytes(w, h))

	if t.tiled {
		if bpt != 2 && bpt != 4 {
			return nil, fmt.Errorf("%w: cannot detile %d-byte texels", ErrInvalidOperation, bpt)
		}
		s.translator.Detile(out, src, layout.FloorLog2(w), layout.FloorLog2(h), w, h, w*bpt, bpt)
		return out, nil
	}
	cols, rows, stride := t.format.Shrink(w, h, t.strides[level])
	layout.CopyLinear(out, src, rows, cols*bpt, stride)
	return out, nil
}
