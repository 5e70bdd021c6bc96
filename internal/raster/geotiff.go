package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
)

// GeoTIFF tags carrying the geo transform.
const (
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoAsciiParams  = 34737
)

const (
	typeASCII  = 2
	typeDouble = 12
)

// DecodeGeoTIFF decodes a GeoTIFF mask and recovers its WGS84 bounding box
// from the tiepoint and pixel-scale tags. The pixel decoder in x/image/tiff
// does not expose private tags, so the first IFD is scanned directly.
func DecodeGeoTIFF(data []byte) (*Raster, geometry.BBox, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, geometry.BBox{}, fmt.Errorf("decode geotiff: %w", err)
	}
	r := FromImage(img)

	tags, err := scanIFD(data)
	if err != nil {
		return nil, geometry.BBox{}, err
	}

	ascii, ok := tags.ascii[tagGeoAsciiParams]
	if !ok || !strings.Contains(ascii, "WGS 84") {
		return nil, geometry.BBox{}, fmt.Errorf("geotiff is not in WGS84 (GeoAsciiParams %q)", ascii)
	}
	scale, ok := tags.doubles[tagModelPixelScale]
	if !ok || len(scale) < 2 {
		return nil, geometry.BBox{}, fmt.Errorf("geotiff has no pixel scale tag")
	}
	tiepoint, ok := tags.doubles[tagModelTiepoint]
	if !ok || len(tiepoint) < 6 {
		return nil, geometry.BBox{}, fmt.Errorf("geotiff has no tiepoint tag")
	}

	// Tiepoint gives the geo coordinates of the top-left pixel corner; y
	// decreases downward through the image.
	originX, originY := tiepoint[3], tiepoint[4]
	bbox := geometry.NewBBox(
		originX,
		originY-scale[1]*float64(r.Height),
		originX+scale[0]*float64(r.Width),
		originY,
		crs.WGS84,
	)
	return r, bbox, nil
}

type ifdTags struct {
	doubles map[uint16][]float64
	ascii   map[uint16]string
}

// scanIFD walks the first IFD of a classic TIFF and extracts DOUBLE and
// ASCII tag values.
func scanIFD(data []byte) (*ifdTags, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("truncated tiff header")
	}
	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a tiff file")
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("unsupported tiff version")
	}

	offset := order.Uint32(data[4:8])
	if int(offset)+2 > len(data) {
		return nil, fmt.Errorf("ifd offset outside file")
	}
	count := int(order.Uint16(data[offset : offset+2]))
	tags := &ifdTags{doubles: map[uint16][]float64{}, ascii: map[uint16]string{}}

	for i := 0; i < count; i++ {
		entry := int(offset) + 2 + i*12
		if entry+12 > len(data) {
			return nil, fmt.Errorf("truncated ifd entry")
		}
		tag := order.Uint16(data[entry : entry+2])
		typ := order.Uint16(data[entry+2 : entry+4])
		n := int(order.Uint32(data[entry+4 : entry+8]))

		switch typ {
		case typeDouble:
			valOffset := int(order.Uint32(data[entry+8 : entry+12]))
			if valOffset+8*n > len(data) {
				continue
			}
			vals := make([]float64, n)
			for j := 0; j < n; j++ {
				bits := order.Uint64(data[valOffset+8*j : valOffset+8*j+8])
				vals[j] = math.Float64frombits(bits)
			}
			tags.doubles[tag] = vals
		case typeASCII:
			var raw []byte
			if n <= 4 {
				raw = data[entry+8 : entry+8+n]
			} else {
				valOffset := int(order.Uint32(data[entry+8 : entry+12]))
				if valOffset+n > len(data) {
					continue
				}
				raw = data[valOffset : valOffset+n]
			}
			tags.ascii[tag] = strings.TrimRight(string(raw), "\x00")
		}
	}
	return tags, nil
}
