package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const validCatalog = `
sources:
  - id: archive
    name: Cloud classification
    type: s2-l1c-archive
    window_width: 256
    window_height: 256
    resolution: 10
    buffer: 10
    layers:
      - title: Clouds
        classes:
          - title: Opaque clouds
            color: "#ffffff"
  - id: slovenia-2017
    name: Slovenia 2017
    type: region-time
    window_width: 128
    window_height: 128
    max_cloud_cover: 0.2
    time_from: "2017-01-01"
    time_to: "2017-12-31"
    aoi:
      type: Polygon
      coordinates: [[[13.3, 45.4], [16.6, 45.4], [16.6, 46.9], [13.3, 46.9], [13.3, 45.4]]]
  - id: water-bodies
    name: Water bodies
    type: vector-layer
    layer: 1749
    window_width: 512
    window_height: 512
    layers:
      - title: Water
        classes:
          - title: Water
            color: "#1f77b4"
`

func TestParseCatalog(t *testing.T) {
	catalog, err := Parse([]byte(validCatalog))
	assert.NoError(t, err)
	assert.Len(t, catalog.Sources, 3)

	archive := catalog.Get("archive")
	assert.NotNil(t, archive)
	assert.Equal(t, SourceArchive, archive.Type)
	assert.Equal(t, 256, archive.WindowWidth)
	assert.Equal(t, "Clouds", archive.Layers[0].Title)

	// Cloud cover distinguishes unset from an explicit limit.
	assert.Nil(t, archive.MaxCloudCover)
	slovenia := catalog.Get("slovenia-2017")
	assert.NotNil(t, slovenia.MaxCloudCover)
	assert.Equal(t, 0.2, *slovenia.MaxCloudCover)

	assert.Nil(t, catalog.Get("missing"))
}

func TestParseCatalogDuplicateID(t *testing.T) {
	doubled := validCatalog + `
  - id: archive
    name: Duplicate
    type: s2-l1c-archive
    window_width: 64
    window_height: 64
`
	_, err := Parse([]byte(doubled))
	assert.ErrorContains(t, err, "duplicate source id")
}

func TestParseCatalogRejectsUnknownType(t *testing.T) {
	bad := `
sources:
  - id: bad
    name: Bad
    type: mystery
    window_width: 64
    window_height: 64
`
	_, err := Parse([]byte(bad))
	assert.Error(t, err)
}

func TestParseCatalogRejectsBadColor(t *testing.T) {
	bad := `
sources:
  - id: bad
    name: Bad
    type: vector-layer
    layer: 1
    window_width: 64
    window_height: 64
    layers:
      - title: Water
        classes:
          - title: Water
            color: "blue"
`
	_, err := Parse([]byte(bad))
	assert.Error(t, err)
}

func TestAOIGeometry(t *testing.T) {
	catalog, err := Parse([]byte(validCatalog))
	assert.NoError(t, err)

	source := catalog.Get("slovenia-2017")
	aoi, err := source.AOIGeometry()
	assert.NoError(t, err)
	assert.False(t, aoi.IsEmpty())
	assert.InDelta(t, (16.6-13.3)*(46.9-45.4), aoi.Area(), 1e-9)

	_, err = catalog.Get("archive").AOIGeometry()
	assert.Error(t, err)
}

func TestTimeInterval(t *testing.T) {
	catalog, err := Parse([]byte(validCatalog))
	assert.NoError(t, err)

	from, to, err := catalog.Get("slovenia-2017").TimeInterval()
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2017, 12, 31, 0, 0, 0, 0, time.UTC), to)

	_, _, err = catalog.Get("archive").TimeInterval()
	assert.Error(t, err)
}
