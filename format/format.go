// Package format is the pixel format table shared by image sources, image
// targets and the layout translator.
//
// Every external image carries a [PixelFormat]. [Lookup] resolves it to an
// [Entry] holding the element size, the GL internal-format tag, the
// compressed-block shrink factors and the texture storage descriptor used
// when the image is materialized into a texture of its own.
package format

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Format table errors.
var (
	// ErrUnsupportedFormat is returned for pixel formats with no device-side
	// representation.
	ErrUnsupportedFormat = errors.New("format: unsupported pixel format")

	// ErrFormatMismatch is returned when a texture or renderbuffer format
	// cannot be expressed as an image pixel format.
	ErrFormatMismatch = errors.New("format: format mismatch")
)

// PixelFormat identifies the memory layout of one element of an image.
// Names follow the packed-word convention: ARGB8888 is a 32-bit word with
// alpha in the top byte, stored little-endian as B, G, R, A.
type PixelFormat uint8

const (
	// Unknown is the zero value and never valid.
	Unknown PixelFormat = iota

	RGB565
	ARGB4444
	ARGB1555
	ARGB8888
	ABGR8888
	XBGR8888

	// PVRTC2 is 2 bits per texel PVRTC, 8x4 texel blocks.
	PVRTC2
	// PVRTC4 is 4 bits per texel PVRTC, 4x4 texel blocks.
	PVRTC4
	// PVRTCII2 is 2 bits per texel PVRTC-II, 8x4 texel blocks.
	PVRTCII2
	// PVRTCII4 is 4 bits per texel PVRTC-II, 4x4 texel blocks.
	PVRTCII4
	// PVRTCIII is the ETC1 block format, 4x4 texel blocks, RGB only.
	PVRTCIII

	// NV12 is a two-plane YUV camera format. It has no GPU-side
	// equivalent and is rejected by Lookup.
	NV12

	// L8, A8 and A8L8 are texture-only formats. They can be stored and
	// sampled but never exported as images.
	L8
	A8
	A8L8

	pixelFormatCount
)

var pixelFormatNames = [pixelFormatCount]string{
	Unknown:  "Unknown",
	RGB565:   "RGB565",
	ARGB4444: "ARGB4444",
	ARGB1555: "ARGB1555",
	ARGB8888: "ARGB8888",
	ABGR8888: "ABGR8888",
	XBGR8888: "XBGR8888",
	PVRTC2:   "PVRTC2",
	PVRTC4:   "PVRTC4",
	PVRTCII2: "PVRTCII2",
	PVRTCII4: "PVRTCII4",
	PVRTCIII: "PVRTCIII",
	NV12:     "NV12",
	L8:       "L8",
	A8:       "A8",
	A8L8:     "A8L8",
}

// String returns the format name.
func (f PixelFormat) String() string {
	if f >= pixelFormatCount {
		return fmt.Sprintf("PixelFormat(%d)", f)
	}
	return pixelFormatNames[f]
}

// InternalFormat is the GL internal-format token a texture is created with.
type InternalFormat uint32

// Internal formats.
const (
	InternalAlpha          InternalFormat = 0x1906
	InternalRGB            InternalFormat = 0x1907
	InternalRGBA           InternalFormat = 0x1908
	InternalLuminance      InternalFormat = 0x1909
	InternalLuminanceAlpha InternalFormat = 0x190A
	InternalBGRA           InternalFormat = 0x80E1

	InternalRGBPVRTC4  InternalFormat = 0x8C00
	InternalRGBPVRTC2  InternalFormat = 0x8C01
	InternalRGBAPVRTC4 InternalFormat = 0x8C02
	InternalRGBAPVRTC2 InternalFormat = 0x8C03
	InternalETC1RGB8   InternalFormat = 0x8D64
)

// TextureFormat describes how a texture stores its texels.
// Descriptors are compared by pointer; use the package-level values.
type TextureFormat struct {
	// Name is a short human-readable label.
	Name string

	// Pixel is the layout of one stored element.
	Pixel PixelFormat

	// Export is the pixel format an image created from this texture
	// carries. Unknown means the texture cannot be an image source.
	Export PixelFormat

	// BytesPerTexel is the size of one addressable element: one texel for
	// uncompressed formats, one block for compressed ones.
	BytesPerTexel int

	// BlockW and BlockH are the texel dimensions of one element.
	BlockW, BlockH int

	// RGBOnly marks the RGB variant of a compressed format.
	RGBOnly bool

	// GPU is the equivalent WebGPU format, or TextureFormatUndefined.
	GPU gputypes.TextureFormat
}

// Compressed reports whether one element covers more than one texel.
func (t *TextureFormat) Compressed() bool {
	return t.BlockW > 1 || t.BlockH > 1
}

// Shrink converts a texel-addressed width, height and row stride into
// element-addressed ones, like Entry.Shrink.
func (t *TextureFormat) Shrink(width, height, stride int) (w, h, s int) {
	w = max(width/t.BlockW, 1)
	h = max(height/t.BlockH, 1)
	s = max(stride/t.BlockW, w*t.BytesPerTexel)
	return w, h, s
}

// LevelBytes returns the tightly packed size of a width × height level.
func (t *TextureFormat) LevelBytes(width, height int) int {
	w, h, _ := t.Shrink(width, height, 0)
	return w * h * t.BytesPerTexel
}

// Texture storage descriptors.
var (
	TexRGB565   = &TextureFormat{Name: "RGB565", Pixel: RGB565, Export: RGB565, BytesPerTexel: 2, BlockW: 1, BlockH: 1}
	TexARGB4444 = &TextureFormat{Name: "ARGB4444", Pixel: ARGB4444, Export: ARGB4444, BytesPerTexel: 2, BlockW: 1, BlockH: 1}
	TexARGB1555 = &TextureFormat{Name: "ARGB1555", Pixel: ARGB1555, Export: ARGB1555, BytesPerTexel: 2, BlockW: 1, BlockH: 1}
	TexARGB8888 = &TextureFormat{Name: "ARGB8888", Pixel: ARGB8888, Export: ARGB8888, BytesPerTexel: 4, BlockW: 1, BlockH: 1,
		GPU: gputypes.TextureFormatBGRA8Unorm}
	TexABGR8888 = &TextureFormat{Name: "ABGR8888", Pixel: ABGR8888, Export: ABGR8888, BytesPerTexel: 4, BlockW: 1, BlockH: 1,
		GPU: gputypes.TextureFormatRGBA8Unorm}
	// TexXBGR8888 stores RGB888 padded to 32 bits. The padding byte sits
	// where ABGR8888 keeps alpha, so the stored pixel format is ABGR8888.
	TexXBGR8888 = &TextureFormat{Name: "XBGR8888", Pixel: ABGR8888, Export: XBGR8888, BytesPerTexel: 4, BlockW: 1, BlockH: 1,
		GPU: gputypes.TextureFormatRGBA8Unorm}

	TexPVRTC2RGB    = &TextureFormat{Name: "PVRTC2 RGB", Pixel: PVRTC2, Export: PVRTC2, BytesPerTexel: 8, BlockW: 8, BlockH: 4, RGBOnly: true}
	TexPVRTC2RGBA   = &TextureFormat{Name: "PVRTC2 RGBA", Pixel: PVRTC2, Export: PVRTC2, BytesPerTexel: 8, BlockW: 8, BlockH: 4}
	TexPVRTC4RGB    = &TextureFormat{Name: "PVRTC4 RGB", Pixel: PVRTC4, Export: PVRTC4, BytesPerTexel: 8, BlockW: 4, BlockH: 4, RGBOnly: true}
	TexPVRTC4RGBA   = &TextureFormat{Name: "PVRTC4 RGBA", Pixel: PVRTC4, Export: PVRTC4, BytesPerTexel: 8, BlockW: 4, BlockH: 4}
	TexPVRTCII2RGB  = &TextureFormat{Name: "PVRTCII2 RGB", Pixel: PVRTCII2, Export: PVRTCII2, BytesPerTexel: 8, BlockW: 8, BlockH: 4, RGBOnly: true}
	TexPVRTCII2RGBA = &TextureFormat{Name: "PVRTCII2 RGBA", Pixel: PVRTCII2, Export: PVRTCII2, BytesPerTexel: 8, BlockW: 8, BlockH: 4}
	TexPVRTCII4RGB  = &TextureFormat{Name: "PVRTCII4 RGB", Pixel: PVRTCII4, Export: PVRTCII4, BytesPerTexel: 8, BlockW: 4, BlockH: 4, RGBOnly: true}
	TexPVRTCII4RGBA = &TextureFormat{Name: "PVRTCII4 RGBA", Pixel: PVRTCII4, Export: PVRTCII4, BytesPerTexel: 8, BlockW: 4, BlockH: 4}
	TexETC1RGB      = &TextureFormat{Name: "ETC1 RGB", Pixel: PVRTCIII, Export: PVRTCIII, BytesPerTexel: 8, BlockW: 4, BlockH: 4, RGBOnly: true}

	TexL8   = &TextureFormat{Name: "L8", Pixel: L8, BytesPerTexel: 1, BlockW: 1, BlockH: 1, GPU: gputypes.TextureFormatR8Unorm}
	TexA8   = &TextureFormat{Name: "A8", Pixel: A8, BytesPerTexel: 1, BlockW: 1, BlockH: 1, GPU: gputypes.TextureFormatR8Unorm}
	TexA8L8 = &TextureFormat{Name: "A8L8", Pixel: A8L8, BytesPerTexel: 2, BlockW: 1, BlockH: 1}
)

// Entry is one row of the image format table.
type Entry struct {
	// Format is the pixel format this entry describes.
	Format PixelFormat

	// BytesPerElement is the size of one texel, or of one block for
	// compressed formats.
	BytesPerElement int

	// Internal is the internal format of the RGBA (or only) variant.
	Internal InternalFormat

	// InternalRGB is the internal format of the RGB-only variant of a
	// compressed format. Zero for uncompressed formats.
	InternalRGB InternalFormat

	// NoCompressedToken marks formats that have no dedicated compressed
	// internal-format token and fall back to plain RGB/RGBA.
	NoCompressedToken bool

	// ShrinkW, ShrinkH and ShrinkStride divide width, height and row
	// stride to address blocks instead of texels. All 1 when uncompressed.
	ShrinkW, ShrinkH, ShrinkStride int

	// Storage and StorageRGB are the texture descriptors of the RGBA and
	// RGB-only variants. StorageRGB is nil when there is a single variant.
	Storage    *TextureFormat
	StorageRGB *TextureFormat

	// GPU is the equivalent WebGPU format, or TextureFormatUndefined.
	GPU gputypes.TextureFormat
}

// table holds one entry per supported image pixel format. A zero
// BytesPerElement marks an unsupported slot.
var table = [pixelFormatCount]Entry{
	RGB565: {
		Format: RGB565, BytesPerElement: 2, Internal: InternalRGB,
		ShrinkW: 1, ShrinkH: 1, ShrinkStride: 1,
		Storage: TexRGB565,
	},
	ARGB4444: {
		Format: ARGB4444, BytesPerElement: 2, Internal: InternalRGBA,
		ShrinkW: 1, ShrinkH: 1, ShrinkStride: 1,
		Storage: TexARGB4444,
	},
	ARGB1555: {
		Format: ARGB1555, BytesPerElement: 2, Internal: InternalRGBA,
		ShrinkW: 1, ShrinkH: 1, ShrinkStride: 1,
		Storage: TexARGB1555,
	},
	ARGB8888: {
		Format: ARGB8888, BytesPerElement: 4, Internal: InternalBGRA,
		ShrinkW: 1, ShrinkH: 1, ShrinkStride: 1,
		Storage: TexARGB8888, GPU: gputypes.TextureFormatBGRA8Unorm,
	},
	ABGR8888: {
		Format: ABGR8888, BytesPerElement: 4, Internal: InternalRGBA,
		ShrinkW: 1, ShrinkH: 1, ShrinkStride: 1,
		Storage: TexABGR8888, GPU: gputypes.TextureFormatRGBA8Unorm,
	},
	XBGR8888: {
		Format: XBGR8888, BytesPerElement: 4, Internal: InternalRGB,
		ShrinkW: 1, ShrinkH: 1, ShrinkStride: 1,
		Storage: TexXBGR8888, GPU: gputypes.TextureFormatRGBA8Unorm,
	},
	PVRTC2: {
		Format: PVRTC2, BytesPerElement: 8,
		Internal: InternalRGBAPVRTC2, InternalRGB: InternalRGBPVRTC2,
		ShrinkW: 8, ShrinkH: 4, ShrinkStride: 8,
		Storage: TexPVRTC2RGBA, StorageRGB: TexPVRTC2RGB,
	},
	PVRTC4: {
		Format: PVRTC4, BytesPerElement: 8,
		Internal: InternalRGBAPVRTC4, InternalRGB: InternalRGBPVRTC4,
		ShrinkW: 4, ShrinkH: 4, ShrinkStride: 4,
		Storage: TexPVRTC4RGBA, StorageRGB: TexPVRTC4RGB,
	},
	PVRTCII2: {
		Format: PVRTCII2, BytesPerElement: 8,
		Internal: InternalRGBA, InternalRGB: InternalRGB, NoCompressedToken: true,
		ShrinkW: 8, ShrinkH: 4, ShrinkStride: 8,
		Storage: TexPVRTCII2RGBA, StorageRGB: TexPVRTCII2RGB,
	},
	PVRTCII4: {
		Format: PVRTCII4, BytesPerElement: 8,
		Internal: InternalRGBA, InternalRGB: InternalRGB, NoCompressedToken: true,
		ShrinkW: 4, ShrinkH: 4, ShrinkStride: 4,
		Storage: TexPVRTCII4RGBA, StorageRGB: TexPVRTCII4RGB,
	},
	PVRTCIII: {
		Format: PVRTCIII, BytesPerElement: 8,
		Internal: InternalETC1RGB8, InternalRGB: InternalETC1RGB8,
		ShrinkW: 4, ShrinkH: 4, ShrinkStride: 4,
		Storage: TexETC1RGB, StorageRGB: TexETC1RGB,
	},
}

// Lookup returns the table entry for f.
func Lookup(f PixelFormat) (Entry, error) {
	if f >= pixelFormatCount || table[f].BytesPerElement == 0 {
		return Entry{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
	return table[f], nil
}

// Supported reports whether f has a table entry.
func Supported(f PixelFormat) bool {
	return f < pixelFormatCount && table[f].BytesPerElement != 0
}

// Compressed reports whether one element of the format is a block of texels.
func (e Entry) Compressed() bool {
	return e.ShrinkW > 1 || e.ShrinkH > 1
}

// Resolve selects the storage descriptor and internal format for the
// RGB-only or RGBA variant. rgbOnly is ignored for uncompressed formats.
func (e Entry) Resolve(rgbOnly bool) (*TextureFormat, InternalFormat) {
	if rgbOnly && e.StorageRGB != nil {
		return e.StorageRGB, e.InternalRGB
	}
	return e.Storage, e.Internal
}

// Shrink converts a texel-addressed width, height and row stride into
// block-addressed ones. Each result is at least 1, and the stride is never
// narrower than one row of blocks.
func (e Entry) Shrink(width, height, stride int) (w, h, s int) {
	w = max(width/e.ShrinkW, 1)
	h = max(height/e.ShrinkH, 1)
	s = max(stride/e.ShrinkStride, 1)
	s = max(s, w*e.BytesPerElement)
	return w, h, s
}

// RowBytes returns the tightly packed size of one row of blocks.
func (e Entry) RowBytes(width int) int {
	return max(width/e.ShrinkW, 1) * e.BytesPerElement
}

// Export returns the image pixel format a texture of format t exposes and
// whether it is the RGB-only variant of a compressed format.
func Export(t *TextureFormat) (PixelFormat, bool, error) {
	if t == nil || t.Export == Unknown {
		return Unknown, false, ErrFormatMismatch
	}
	if t.Compressed() {
		return t.Export, t.RGBOnly, nil
	}
	return t.Export, false, nil
}

// ByGPUFormat maps a WebGPU surface format to the image pixel format that
// stores it. When several formats share a GPU format, the one with alpha
// wins.
func ByGPUFormat(g gputypes.TextureFormat) (PixelFormat, bool) {
	if g == gputypes.TextureFormatUndefined {
		return Unknown, false
	}
	found := Unknown
	for f := range pixelFormatCount {
		e := &table[f]
		if e.BytesPerElement == 0 || e.GPU != g {
			continue
		}
		if found == Unknown || (table[found].Internal == InternalRGB && e.Internal != InternalRGB) {
			found = f
		}
	}
	return found, found != Unknown
}

// InternalOf returns the internal format a texture stored as t is created
// with.
func InternalOf(t *TextureFormat) InternalFormat {
	if t == nil {
		return 0
	}
	for i := range table {
		e := &table[i]
		switch {
		case e.BytesPerElement == 0:
		case e.StorageRGB == t:
			return e.InternalRGB
		case e.Storage == t:
			return e.Internal
		}
	}
	switch t.Pixel {
	case L8:
		return InternalLuminance
	case A8:
		return InternalAlpha
	case A8L8:
		return InternalLuminanceAlpha
	}
	return 0
}
