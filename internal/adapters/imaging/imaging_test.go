package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, w, h int, fill func(x, y int) color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	path := filepath.Join(t.TempDir(), "shot.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func translucent(x, y int) color.Color { return color.NRGBA{R: 200, G: 10, B: 10, A: 40} }

func TestFitSize(t *testing.T) {
	cases := []struct{ w, h, edge, ww, wh int }{
		{2000, 1000, 256, 256, 128},
		{1000, 2000, 256, 128, 256},
		{100, 50, 256, 100, 50},
		{100, 50, -1, 100, 50},
		{4000, 1, 128, 128, 1},
	}
	for _, c := range cases {
		w, h := FitSize(c.w, c.h, c.edge)
		if w != c.ww || h != c.wh {
			t.Fatalf("FitSize(%d,%d,%d) = %dx%d, want %dx%d", c.w, c.h, c.edge, w, h, c.ww, c.wh)
		}
	}
}

func TestThumbnailIsOpaqueAndFits(t *testing.T) {
	path := writePNG(t, 600, 300, translucent)
	img, err := NewProcessor().Thumbnail(path, 256)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 256 || b.Dy() != 128 {
		t.Fatalf("unexpected size %v", b)
	}
	_, _, _, a := img.At(10, 10).RGBA()
	if a != 0xffff {
		t.Fatalf("alpha = %x, want opaque", a)
	}
}

func TestEncodeResponse(t *testing.T) {
	path := writePNG(t, 1024, 512, translucent)
	data, w, h, err := NewProcessor().EncodeResponse(path, 512)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if w != 512 || h != 256 {
		t.Fatalf("size %dx%d", w, h)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if img.Bounds().Dx() != 512 {
		t.Fatalf("payload width %d", img.Bounds().Dx())
	}

	_, w, h, err = NewProcessor().EncodeResponse(path, -1)
	if err != nil || w != 1024 || h != 512 {
		t.Fatalf("original size not kept: %dx%d %v", w, h, err)
	}
}

func TestSaveRightEye(t *testing.T) {
	left := color.NRGBA{R: 255, A: 255}
	right := color.NRGBA{B: 255, A: 255}
	path := writePNG(t, 40, 10, func(x, y int) color.Color {
		if x < 20 {
			return left
		}
		return right
	})
	out := filepath.Join(t.TempDir(), "shot_right.png")
	if err := NewProcessor().SaveRightEye(path, out); err != nil {
		t.Fatalf("crop: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Fatalf("crop size %v", img.Bounds())
	}
	r, _, b, _ := img.At(0, 0).RGBA()
	if r != 0 || b != 0xffff {
		t.Fatalf("crop must start at the right half, got r=%x b=%x", r, b)
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := NewProcessor().Thumbnail(filepath.Join(t.TempDir(), "nope.png"), 256); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
