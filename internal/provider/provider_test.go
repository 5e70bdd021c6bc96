package provider

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
)

const tilePayload = `{
	"id": 4242,
	"pdiId": "S2A_OPER_MSI_L1C_TL_TEST",
	"sensingTime": "2017-05-01T10:20:30.123456",
	"coverArea": 12055600804.0,
	"coverGeometry": {
		"type": "Polygon",
		"coordinates": [[[0, 0], [10000, 0], [10000, 10000], [0, 10000], [0, 0]]]
	},
	"tileOrigin": {
		"coordinates": [499980.0, 5200020.0],
		"crs": {"properties": {"name": "urn:ogc:def:crs:EPSG::32633"}}
	}
}`

func TestIndexClientGetTileInfo(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(tilePayload))
	}))
	defer server.Close()

	client := NewIndexClient(server.URL, nil)
	info, err := client.GetTileInfo(context.Background(), 4242)
	assert.NoError(t, err)
	assert.Equal(t, "/4242", gotPath)
	assert.Equal(t, 4242, info.IndexID)
	assert.Equal(t, "S2A_OPER_MSI_L1C_TL_TEST", info.ESAID)
	assert.Equal(t, time.Date(2017, 5, 1, 10, 20, 30, 123456000, time.UTC), info.SensingTime)
	assert.Equal(t, crs.CRS(32633), info.CRS)
	assert.Equal(t, 499980.0, info.OriginX)
	assert.Equal(t, 5200020.0, info.OriginY)
	assert.InDelta(t, 12055600804.0, info.CoverArea, 1)
	assert.False(t, info.CoverGeometry.IsEmpty())
	assert.Equal(t, crs.CRS(32633), info.CoverGeometry.CRS)
}

func TestIndexClientGetArchiveSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lastTile", r.URL.Path)
		w.Write([]byte(`{"id": 31337}`))
	}))
	defer server.Close()

	size, err := NewIndexClient(server.URL, nil).GetArchiveSize(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 31337, size)
}

func TestIndexClientExternalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewIndexClient(server.URL, nil).GetTileInfo(context.Background(), 1)
	assert.ErrorIs(t, err, ErrExternalData)

	server.Close()
	_, err = NewIndexClient(server.URL, nil).GetTileInfo(context.Background(), 1)
	assert.ErrorIs(t, err, ErrExternalData)
}

func TestFeatureServiceClientQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "EPSG:4326", q.Get("crs"))
		assert.Equal(t, "2017-01-01", q.Get("from"))
		assert.Equal(t, "2017-12-31", q.Get("to"))
		assert.Equal(t, "0.200000", q.Get("maxcc"))
		w.Write([]byte(`{"features": [{
			"geometry": {"type": "Polygon", "coordinates": [[[14, 46], [15, 46], [15, 47], [14, 47], [14, 46]]]},
			"properties": {"id": "S2A_TEST", "crs": "EPSG:32633", "date": "2017-07-14", "area": 1.0}
		}]}`))
	}))
	defer server.Close()

	bbox := geometry.NewBBox(14.0, 46.0, 14.001, 46.001, crs.WGS84)
	from := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2017, 12, 31, 0, 0, 0, 0, time.UTC)

	tiles, err := NewFeatureServiceClient(server.URL).Query(context.Background(), bbox, from, to, 0.2)
	assert.NoError(t, err)
	assert.Len(t, tiles, 1)
	assert.Equal(t, "S2A_TEST", tiles[0].ESAID)
	// Native CRS from the properties, delivered geometry tagged with the
	// query CRS.
	assert.Equal(t, crs.CRS(32633), tiles[0].CRS)
	assert.Equal(t, crs.WGS84, tiles[0].CoverGeometry.CRS)
	assert.Equal(t, time.Date(2017, 7, 14, 0, 0, 0, 0, time.UTC), tiles[0].SensingTime)
}

const layerPayload = `{"features": [
	{"id": 1, "properties": {"TileId": 7}},
	{"@id": "https://layers.example/feature/55", "properties": {}},
	{"id": 3, "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}, "properties": {}}
]}`

func TestLayerClientListFeatures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/layers/1749/features", r.URL.Path)
		w.Write([]byte(layerPayload))
	}))
	defer server.Close()

	features, err := NewLayerClient(server.URL).ListFeatures(context.Background(), 1749, nil)
	assert.NoError(t, err)
	assert.Len(t, features, 3)
	assert.Equal(t, 1, features[0].ID)
	// Trailing number of the "@id" reference when the id field is absent.
	assert.Equal(t, 55, features[1].ID)
	assert.Equal(t, 3, features[2].ID)
	assert.Equal(t, crs.POPWeb, features[2].Geometry.CRS)
}

func TestLayerClientInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(layerPayload))
	}))
	defer server.Close()

	interval := [2]int{1, 2}
	features, err := NewLayerClient(server.URL).ListFeatures(context.Background(), 1749, &interval)
	assert.NoError(t, err)
	assert.Len(t, features, 1)
	assert.Equal(t, 55, features[0].ID)

	empty := [2]int{2, 2}
	features, err = NewLayerClient(server.URL).ListFeatures(context.Background(), 1749, &empty)
	assert.NoError(t, err)
	assert.Empty(t, features)
}

func TestRasterClientFetchPNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.Pix[4] = 9
	var buf bytes.Buffer
	assert.NoError(t, png.Encode(&buf, img))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	r, bbox, err := NewRasterClient().Fetch(context.Background(), server.URL)
	assert.NoError(t, err)
	assert.Nil(t, bbox)
	assert.Equal(t, 3, r.Width)
	assert.Equal(t, 2, r.Height)
	assert.Equal(t, uint8(9), r.At(1, 1, 0))
}

func TestDecodeRasterBlobRejectsBrokenTIFF(t *testing.T) {
	// TIFF magic with no valid structure must fail rather than fall back
	// to a lossy decode.
	_, _, err := DecodeRasterBlob([]byte{'I', 'I', 42, 0, 9, 9, 9, 9})
	assert.Error(t, err)
}
