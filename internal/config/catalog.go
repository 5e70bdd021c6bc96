// Package config loads the sampling source catalog.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/schema"
)

// SourceType identifies where a sampling source obtains its data.
type SourceType string

const (
	SourceArchive       SourceType = "s2-l1c-archive"
	SourceRegionTime    SourceType = "region-time"
	SourceVectorLayer   SourceType = "vector-layer"
	SourceLegacyResults SourceType = "legacy-results"
)

// Class is one labelled class of a layer, with its display colour.
type Class struct {
	Title string `yaml:"title" json:"title"`
	Color string `yaml:"color" json:"color"`
}

// Layer groups the classes presented together in the labelling UI.
type Layer struct {
	Title   string  `yaml:"title" json:"title"`
	Classes []Class `yaml:"classes" json:"classes"`
}

// Source describes one sampling source of the catalog.
type Source struct {
	ID           string     `yaml:"id" json:"id"`
	Name         string     `yaml:"name" json:"name"`
	Type         SourceType `yaml:"type" json:"type"`
	Description  string     `yaml:"description" json:"description,omitempty"`
	Layer        int        `yaml:"layer" json:"layer,omitempty"`
	WindowWidth  int        `yaml:"window_width" json:"window_width,omitempty"`
	WindowHeight int        `yaml:"window_height" json:"window_height,omitempty"`
	Resolution   float64    `yaml:"resolution" json:"resolution,omitempty"`
	Buffer       int        `yaml:"buffer" json:"buffer,omitempty"`
	// MaxCloudCover is nil when unset; an explicit 0 keeps only cloud-free
	// tiles.
	MaxCloudCover *float64       `yaml:"max_cloud_cover" json:"max_cloud_cover,omitempty"`
	TimeFrom      string         `yaml:"time_from" json:"time_from,omitempty"`
	TimeTo        string         `yaml:"time_to" json:"time_to,omitempty"`
	AOI           map[string]any `yaml:"aoi" json:"aoi,omitempty"`
	Layers        []Layer        `yaml:"layers" json:"layers,omitempty"`
}

// Catalog is the set of configured sampling sources, keyed by id.
type Catalog struct {
	Sources []*Source `yaml:"sources"`

	byID map[string]*Source
}

// Load reads and validates a YAML source catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog bytes.
func Parse(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	validator, err := schema.NewValidator(schema.SourceSchema)
	if err != nil {
		return nil, fmt.Errorf("source schema: %w", err)
	}

	catalog.byID = make(map[string]*Source, len(catalog.Sources))
	for _, source := range catalog.Sources {
		doc, err := toJSONMap(source)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", source.ID, err)
		}
		if err := validator.Validate(doc); err != nil {
			return nil, fmt.Errorf("source %q: %w", source.ID, err)
		}
		if _, dup := catalog.byID[source.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", source.ID)
		}
		catalog.byID[source.ID] = source
	}
	return &catalog, nil
}

// Get returns the source with the given id, or nil.
func (c *Catalog) Get(id string) *Source {
	return c.byID[id]
}

// AOIGeometry decodes the source's area of interest; it is delivered as
// GeoJSON in WGS84.
func (s *Source) AOIGeometry() (geometry.Geometry, error) {
	if len(s.AOI) == 0 {
		return geometry.Geometry{}, fmt.Errorf("source %q has no aoi", s.ID)
	}
	raw, err := json.Marshal(s.AOI)
	if err != nil {
		return geometry.Geometry{}, fmt.Errorf("source %q aoi: %w", s.ID, err)
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return geometry.Geometry{}, fmt.Errorf("source %q aoi: %w", s.ID, err)
	}
	return geometry.New(g.Geometry(), crs.WGS84), nil
}

// TimeInterval parses the source's sampling time interval.
func (s *Source) TimeInterval() (from, to time.Time, err error) {
	from, err = time.Parse("2006-01-02", s.TimeFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("source %q time_from: %w", s.ID, err)
	}
	to, err = time.Parse("2006-01-02", s.TimeTo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("source %q time_to: %w", s.ID, err)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("source %q: time_to must be after time_from", s.ID)
	}
	return from, to, nil
}

// toJSONMap round-trips a source through JSON so the schema validator sees
// plain maps.
func toJSONMap(s *Source) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
