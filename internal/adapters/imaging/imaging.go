package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// Processor does the bitmap work on finished captures: thumbnails, response
// payloads and the right-eye crop. Every output is fully opaque.
type Processor struct {
	scaler draw.Scaler
}

func NewProcessor() *Processor {
	return &Processor{scaler: draw.CatmullRom}
}

// Thumbnail fits the image at path into an edge×edge box.
func (p *Processor) Thumbnail(path string, edge int) (image.Image, error) {
	src, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return p.resize(src, edge), nil
}

// EncodeResponse returns the capture as base64 PNG, downscaled so its longest
// edge is at most maxEdge. maxEdge <= 0 keeps the original size.
func (p *Processor) EncodeResponse(path string, maxEdge int) (string, int, int, error) {
	src, err := decodeFile(path)
	if err != nil {
		return "", 0, 0, err
	}
	img := p.resize(src, maxEdge)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", 0, 0, fmt.Errorf("encode png: %w", err)
	}
	b := img.Bounds()
	return base64.StdEncoding.EncodeToString(buf.Bytes()), b.Dx(), b.Dy(), nil
}

// SaveRightEye writes the right half of a side-by-side stereo capture.
func (p *Processor) SaveRightEye(vrPath, outPath string) error {
	src, err := decodeFile(vrPath)
	if err != nil {
		return err
	}
	b := src.Bounds()
	half := image.Rect(b.Min.X+b.Dx()/2, b.Min.Y, b.Max.X, b.Max.Y)
	dst := opaqueCanvas(image.Rect(0, 0, half.Dx(), half.Dy()))
	draw.Draw(dst, dst.Bounds(), src, half.Min, draw.Over)
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	if err := png.Encode(f, dst); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", outPath, err)
	}
	return f.Close()
}

func (p *Processor) resize(src image.Image, edge int) *image.RGBA {
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), edge)
	dst := opaqueCanvas(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
		return dst
	}
	p.scaler.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// FitSize scales w×h down so the longest edge is at most edge, keeping the
// aspect ratio. It never upscales.
func FitSize(w, h, edge int) (int, int) {
	if edge <= 0 || (w <= edge && h <= edge) {
		return w, h
	}
	if w >= h {
		nh := h * edge / w
		if nh < 1 {
			nh = 1
		}
		return edge, nh
	}
	nw := w * edge / h
	if nw < 1 {
		nw = 1
	}
	return nw, edge
}

// opaqueCanvas is black with alpha 255; sources are composited over it.
func opaqueCanvas(r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(r)
	draw.Draw(dst, r, image.Black, image.Point{}, draw.Src)
	return dst
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
