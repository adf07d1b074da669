package format

import "fmt"

// RenderFormat is the sized internal format a renderbuffer is allocated
// with.
type RenderFormat uint32

// Renderbuffer formats.
const (
	RenderRGBA4    RenderFormat = 0x8056
	RenderRGB5A1   RenderFormat = 0x8057
	RenderRGB565   RenderFormat = 0x8D62
	RenderRGB8     RenderFormat = 0x8051
	RenderRGBA8    RenderFormat = 0x8058
	RenderDepth16  RenderFormat = 0x81A5
	RenderStencil8 RenderFormat = 0x8D48
)

type renderInfo struct {
	name  string
	pixel PixelFormat // Unknown for formats that are never images
	bpp   int
}

var renderTable = map[RenderFormat]renderInfo{
	RenderRGB565:   {"RGB565", RGB565, 2},
	RenderRGBA4:    {"RGBA4", ARGB4444, 2},
	RenderRGB5A1:   {"RGB5_A1", ARGB1555, 2},
	RenderRGBA8:    {"RGBA8", ABGR8888, 4},
	RenderRGB8:     {"RGB8", XBGR8888, 4},
	RenderDepth16:  {"DEPTH_COMPONENT16", Unknown, 2},
	RenderStencil8: {"STENCIL_INDEX8", Unknown, 1},
}

// String returns the GL name of the format.
func (r RenderFormat) String() string {
	if info, ok := renderTable[r]; ok {
		return info.name
	}
	return fmt.Sprintf("RenderFormat(%#x)", uint32(r))
}

// Valid reports whether r is a known renderbuffer format.
func (r RenderFormat) Valid() bool {
	_, ok := renderTable[r]
	return ok
}

// BytesPerPixel returns the storage size of one renderbuffer pixel, or 0
// for unknown formats.
func (r RenderFormat) BytesPerPixel() int {
	return renderTable[r].bpp
}

// Renderable maps a renderbuffer format to the image pixel format it is
// exported as, together with the element size.
func Renderable(r RenderFormat) (PixelFormat, int, error) {
	info, ok := renderTable[r]
	if !ok {
		return Unknown, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, r)
	}
	if info.pixel == Unknown {
		return Unknown, 0, fmt.Errorf("%w: %v is not a color format", ErrFormatMismatch, r)
	}
	return info.pixel, info.bpp, nil
}

// RenderFormatOf returns the renderbuffer format that can alias an image
// of pixel format p.
func RenderFormatOf(p PixelFormat) (RenderFormat, bool) {
	switch p {
	case RGB565:
		return RenderRGB565, true
	case ARGB4444:
		return RenderRGBA4, true
	case ARGB1555:
		return RenderRGB5A1, true
	case ABGR8888:
		return RenderRGBA8, true
	case XBGR8888:
		return RenderRGB8, true
	default:
		return 0, false
	}
}
