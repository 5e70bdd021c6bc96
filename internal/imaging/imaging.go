// Package imaging colours and merges classification masks and encodes them
// for task payloads.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"github.com/sentinel-hub/classification-app-backend/internal/raster"
)

// maskThreshold is the minimum band-0 value at which a legacy mask pixel
// counts as set.
const maskThreshold = 100

// RGB is an 8-bit colour triple.
type RGB [3]uint8

// HexToRGB parses colours such as "#1f77b4".
func HexToRGB(s string) (RGB, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid hex colour %q", s)
	}
	var out RGB
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return RGB{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

// ColorizeBinary paints pixels whose band-0 value equals 1 with the given
// colour, producing a 3-band image. Used for single-class vector masks.
func ColorizeBinary(mask *raster.Raster, rgb RGB) *raster.Raster {
	out := raster.New(mask.Width, mask.Height, 3)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y, 0) == 1 {
				out.Set(x, y, 0, rgb[0])
				out.Set(x, y, 1, rgb[1])
				out.Set(x, y, 2, rgb[2])
			}
		}
	}
	return out
}

// MergeMasks overlays several same-size masks into one 3-band image, painting
// each mask's set pixels with its colour. Later masks overwrite earlier ones.
func MergeMasks(masks []*raster.Raster, colors []RGB) (*raster.Raster, error) {
	if len(masks) == 0 {
		return nil, fmt.Errorf("no masks to merge")
	}
	if len(masks) != len(colors) {
		return nil, fmt.Errorf("got %d masks but %d colours", len(masks), len(colors))
	}
	base := masks[0]
	out := raster.New(base.Width, base.Height, 3)
	for i, mask := range masks {
		if mask.Width != base.Width || mask.Height != base.Height {
			return nil, fmt.Errorf("mask %d is %dx%d, expected %dx%d", i, mask.Width, mask.Height, base.Width, base.Height)
		}
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				if mask.At(x, y, 0) >= maskThreshold {
					out.Set(x, y, 0, colors[i][0])
					out.Set(x, y, 1, colors[i][1])
					out.Set(x, y, 2, colors[i][2])
				}
			}
		}
	}
	return out, nil
}

// EncodePNG encodes a raster as base64 PNG. Single-band images are
// replicated to grayscale RGB; 3- and 4-band images map to RGB(A).
func EncodePNG(r *raster.Raster) (string, error) {
	var img image.Image
	switch r.Bands {
	case 1:
		gray := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
		for y := 0; y < r.Height; y++ {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+r.Width], r.Pix[y*r.Width:(y+1)*r.Width])
		}
		img = gray
	case 3:
		rgba := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				rgba.SetRGBA(x, y, color.RGBA{r.At(x, y, 0), r.At(x, y, 1), r.At(x, y, 2), 255})
			}
		}
		img = rgba
	case 4:
		rgba := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
		for y := 0; y < r.Height; y++ {
			copy(rgba.Pix[y*rgba.Stride:y*rgba.Stride+4*r.Width], r.Pix[y*r.Width*4:(y+1)*r.Width*4])
		}
		img = rgba
	default:
		return "", fmt.Errorf("cannot encode %d-band raster as PNG", r.Bands)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
