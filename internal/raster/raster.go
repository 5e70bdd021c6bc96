// Package raster holds pixel arrays for geo-referenced images and implements
// sub-windowing between geo bounding boxes and pixel space.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/tiff"
)

// Raster is a row-major pixel array. Row 0 is the top of the image, which
// corresponds to the maximum-y edge of the raster's geo bounding box.
type Raster struct {
	Width  int
	Height int
	Bands  int
	Pix    []uint8
}

// New allocates a zeroed raster.
func New(width, height, bands int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Bands:  bands,
		Pix:    make([]uint8, width*height*bands),
	}
}

// At returns the value of band b at pixel (x, y).
func (r *Raster) At(x, y, b int) uint8 {
	return r.Pix[(y*r.Width+x)*r.Bands+b]
}

// Set writes the value of band b at pixel (x, y).
func (r *Raster) Set(x, y, b int, v uint8) {
	r.Pix[(y*r.Width+x)*r.Bands+b] = v
}

// Crop copies the half-open pixel rectangle [x1, x2) x [y1, y2), given in
// image coordinates with row 0 at the top.
func (r *Raster) Crop(x1, y1, x2, y2 int) (*Raster, error) {
	if x1 < 0 || y1 < 0 || x2 > r.Width || y2 > r.Height || x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("crop window (%d,%d)-(%d,%d) outside %dx%d raster", x1, y1, x2, y2, r.Width, r.Height)
	}
	out := New(x2-x1, y2-y1, r.Bands)
	rowLen := (x2 - x1) * r.Bands
	for y := y1; y < y2; y++ {
		src := (y*r.Width + x1) * r.Bands
		dst := (y - y1) * rowLen
		copy(out.Pix[dst:dst+rowLen], r.Pix[src:src+rowLen])
	}
	return out, nil
}

// FromImage converts a decoded image into a raster: grayscale images become
// single-band, everything else four-band RGBA.
func FromImage(img image.Image) *Raster {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if gray, ok := img.(*image.Gray); ok {
		out := New(w, h, 1)
		for y := 0; y < h; y++ {
			copy(out.Pix[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
		}
		return out
	}

	out := New(w, h, 4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cr, cg, cb, ca := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			base := (y*w + x) * 4
			out.Pix[base] = uint8(cr >> 8)
			out.Pix[base+1] = uint8(cg >> 8)
			out.Pix[base+2] = uint8(cb >> 8)
			out.Pix[base+3] = uint8(ca >> 8)
		}
	}
	return out
}

// Decode sniffs the payload format and decodes TIFF or PNG pixel data.
func Decode(data []byte) (*Raster, error) {
	var img image.Image
	var err error
	switch {
	case IsTIFF(data):
		img, err = tiff.Decode(bytes.NewReader(data))
	default:
		img, err = png.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode raster: %w", err)
	}
	return FromImage(img), nil
}

func IsTIFF(data []byte) bool {
	return len(data) >= 4 &&
		((data[0] == 'I' && data[1] == 'I' && data[2] == 42 && data[3] == 0) ||
			(data[0] == 'M' && data[1] == 'M' && data[2] == 0 && data[3] == 42))
}
