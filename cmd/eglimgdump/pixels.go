package main

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/eglimage"
	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/layout"
)

// gradient draws a w × h test card.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x ^ y) & 0xFF),
				A: 0xFF,
			})
		}
	}
	return img
}

// pack converts src to pf and lays it out for import.
func pack(src image.Image, pf format.PixelFormat, tiled bool) (eglimage.BufferDesc, []byte, error) {
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(rgba, rgba.Bounds(), src, b.Min, xdraw.Src)

	w, h := b.Dx(), b.Dy()
	e, err := format.Lookup(pf)
	if err != nil {
		return eglimage.BufferDesc{}, nil, err
	}
	bpe := e.BytesPerElement
	tight := encode(rgba, pf)

	desc := eglimage.BufferDesc{Width: w, Height: h, Format: pf, Tiled: tiled}
	if !tiled {
		desc.Stride = layout.RowStride(w, bpe)
		data := make([]byte, desc.Stride*h)
		layout.CopyRows(data, desc.Stride, tight, w*bpe, h, w*bpe)
		return desc, data, nil
	}

	if !layout.IsPow2(w) || !layout.IsPow2(h) {
		return eglimage.BufferDesc{}, nil, fmt.Errorf("tiled import needs power-of-two size, got %dx%d", w, h)
	}
	wl, hl := layout.FloorLog2(w), layout.FloorLog2(h)
	desc.Stride = layout.RowStride(w, bpe)
	data := make([]byte, layout.TiledSize(wl, hl, bpe))
	layout.Tile(data, tight, wl, hl, w, h, w*bpe, bpe)
	return desc, data, nil
}

// encode packs rgba tightly in pf.
func encode(rgba *image.RGBA, pf format.PixelFormat) []byte {
	if pf == format.ABGR8888 {
		return append([]byte(nil), rgba.Pix...)
	}
	out := make([]byte, len(rgba.Pix)/2)
	for i := 0; i < len(rgba.Pix)/4; i++ {
		p := rgba.Pix[i*4:]
		v := uint16(p[0]>>3)<<11 | uint16(p[1]>>2)<<5 | uint16(p[2]>>3)
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

// unpack converts tightly packed pf pixels back to RGBA.
func unpack(pix []byte, pf format.PixelFormat, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if pf == format.ABGR8888 {
		copy(img.Pix, pix)
		return img
	}
	for i := range w * h {
		v := uint16(pix[2*i]) | uint16(pix[2*i+1])<<8
		r, g, b := uint8(v>>11), uint8(v>>5&0x3F), uint8(v&0x1F)
		img.Pix[4*i+0] = r<<3 | r>>2
		img.Pix[4*i+1] = g<<2 | g>>4
		img.Pix[4*i+2] = b<<3 | b>>2
		img.Pix[4*i+3] = 0xFF
	}
	return img
}
