// Command eglimgdump imports a PNG as a shared image, binds it to a
// texture, detaches the texture and writes what the texture preserved as a
// BMP. It exercises the layout translator and the binding state machine
// end to end.
package main

import (
	"flag"
	"image"
	"image/png"
	"log"
	"os"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/eglimage"
	"github.com/gogpu/eglimage/format"
	"github.com/gogpu/eglimage/storage"
)

func main() {
	var (
		input   = flag.String("input", "", "PNG to import (a generated gradient if empty)")
		output  = flag.String("output", "dump.bmp", "output file")
		pixfmt  = flag.String("format", "abgr8888", "image format: abgr8888 or rgb565")
		tiled   = flag.Bool("tiled", false, "import the pixels twiddled")
		scale   = flag.Int("scale", 1, "integer upscale of the output")
		maxSize = flag.Int("max-size", eglimage.DefaultMaxTextureSize, "device texture size limit")
		budget  = flag.Int("budget", storage.DefaultBudgetBytes, "storage budget in bytes")
		workers = flag.Int("workers", 0, "layout workers (0 = GOMAXPROCS)")
	)
	flag.Parse()

	src, err := loadImage(*input)
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}

	pf, ok := parseFormat(*pixfmt)
	if !ok {
		log.Fatalf("Unknown format %q", *pixfmt)
	}

	mem := storage.NewManager(storage.Config{BudgetBytes: *budget})
	defer mem.Close()

	s := eglimage.NewSession(
		eglimage.WithStorage(mem),
		eglimage.WithPlatform(eglimage.Platform{MaxTextureSize: *maxSize}),
		eglimage.WithWorkers(*workers),
	)
	defer s.Close()

	desc, data, err := pack(src, pf, *tiled)
	if err != nil {
		log.Fatalf("Failed to pack pixels: %v", err)
	}
	h, err := s.ImportBuffer(desc, data)
	if err != nil {
		log.Fatalf("Import failed (EGL %#x): %v", eglimage.EGLError(err), err)
	}

	tex, err := s.CreateTexture(eglimage.TextureDesc{Kind: eglimage.Texture2D})
	if err != nil {
		log.Fatalf("CreateTexture failed: %v", err)
	}
	if err := s.ImageTargetTexture(eglimage.TargetTexture2D, tex, h); err != nil {
		log.Fatalf("Attach failed (GL %#x): %v", eglimage.GLError(err), err)
	}
	if err := s.DestroyImage(h); err != nil {
		log.Fatalf("DestroyImage failed: %v", err)
	}
	if err := s.DetachTexture(tex, eglimage.DetachPreserve); err != nil {
		log.Fatalf("Detach failed: %v", err)
	}

	pix, err := s.ReadPixels(tex, 0, 0)
	if err != nil {
		log.Fatalf("ReadPixels failed: %v", err)
	}
	out := unpack(pix, pf, desc.Width, desc.Height)
	if *scale > 1 {
		out = upscale(out, *scale)
	}

	if err := writeBMP(*output, out); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	p := message.NewPrinter(language.English)
	st := s.Stats()
	ms := mem.Stats()
	log.Printf("Dump saved to %s (%dx%d %v, tiled=%v)\n", *output, out.Bounds().Dx(), out.Bounds().Dy(), pf, *tiled)
	log.Print(p.Sprintf("storage: %d bytes peak, %d allocations, %d frees", ms.PeakBytes, ms.Allocations, ms.Frees))
	log.Print(p.Sprintf("bindings: %d released, %d ghosted, %d materialized", st.Released, st.Ghosted, st.Materialized))
}

func loadImage(path string) (image.Image, error) {
	if path == "" {
		return gradient(256, 256), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

func parseFormat(s string) (format.PixelFormat, bool) {
	switch s {
	case "abgr8888":
		return format.ABGR8888, true
	case "rgb565":
		return format.RGB565, true
	default:
		return format.Unknown, false
	}
}

func upscale(src *image.RGBA, n int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*n, b.Dy()*n))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func writeBMP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
