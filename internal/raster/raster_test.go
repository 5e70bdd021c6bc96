package raster

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
)

// gridRaster builds a single-band raster whose pixel value encodes its
// image position as 10*row + col.
func gridRaster(w, h int) *Raster {
	r := New(w, h, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r.Set(x, y, 0, uint8(10*y+x))
		}
	}
	return r
}

func TestCrop(t *testing.T) {
	r := gridRaster(10, 10)

	crop, err := r.Crop(2, 3, 5, 7)
	assert.NoError(t, err)
	assert.Equal(t, 3, crop.Width)
	assert.Equal(t, 4, crop.Height)
	assert.Equal(t, uint8(32), crop.At(0, 0, 0))
	assert.Equal(t, uint8(64), crop.At(2, 3, 0))
}

func TestCropOutsideBounds(t *testing.T) {
	r := gridRaster(10, 10)

	_, err := r.Crop(-1, 0, 5, 5)
	assert.Error(t, err)
	_, err = r.Crop(0, 0, 11, 5)
	assert.Error(t, err)
	_, err = r.Crop(5, 5, 5, 8)
	assert.Error(t, err)
}

func TestFromImageGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.Pix[1*4+3] = 77

	r := FromImage(img)
	assert.Equal(t, 4, r.Width)
	assert.Equal(t, 3, r.Height)
	assert.Equal(t, 1, r.Bands)
	assert.Equal(t, uint8(77), r.At(3, 1, 0))
}

func TestFromImageRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 0, testColor{r: 10, g: 20, b: 30, a: 255})

	r := FromImage(img)
	assert.Equal(t, 4, r.Bands)
	assert.Equal(t, uint8(10), r.At(1, 0, 0))
	assert.Equal(t, uint8(20), r.At(1, 0, 1))
	assert.Equal(t, uint8(30), r.At(1, 0, 2))
	assert.Equal(t, uint8(255), r.At(1, 0, 3))
}

type testColor struct{ r, g, b, a uint8 }

func (c testColor) RGBA() (r, g, b, a uint32) {
	return uint32(c.r) * 0x101, uint32(c.g) * 0x101, uint32(c.b) * 0x101, uint32(c.a) * 0x101
}

func TestDecodePNGGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.Pix[2*4+1] = 200

	var buf bytes.Buffer
	assert.NoError(t, png.Encode(&buf, img))

	r, err := Decode(buf.Bytes())
	assert.NoError(t, err)
	assert.Equal(t, 4, r.Width)
	assert.Equal(t, 3, r.Height)
	assert.Equal(t, 1, r.Bands)
	assert.Equal(t, uint8(200), r.At(1, 2, 0))
}

func TestIsTIFF(t *testing.T) {
	assert.True(t, IsTIFF([]byte{'I', 'I', 42, 0, 0, 0, 0, 0}))
	assert.True(t, IsTIFF([]byte{'M', 'M', 0, 42, 0, 0, 0, 0}))
	assert.False(t, IsTIFF([]byte{0x89, 'P', 'N', 'G'}))
	assert.False(t, IsTIFF([]byte{'I', 'I'}))
}
