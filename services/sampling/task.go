// Package sampling turns geographic regions into randomly placed labelling
// task windows. Each strategy draws one task per call; geometry and raster
// work is delegated to the internal geometry, sampler and raster packages.
package sampling

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
)

// LayerData is one rendered layer of a task: a base64 PNG keyed by the
// layer's display name.
type LayerData struct {
	Layer string `json:"layer"`
	Image string `json:"image"`
}

// Task is the sole artifact the sampling engine emits. It is immutable after
// creation and carries no lifecycle beyond being handed to the caller.
type Task struct {
	ID           string
	BBox         geometry.BBox
	AcqTime      time.Time
	WindowWidth  int
	WindowHeight int
	Data         []LayerData
	VectorData   []*geojson.Geometry

	// TileID and FeatureID record which external record produced the task.
	TileID    string
	FeatureID int
}

// newTask stamps a task with a fresh id.
func newTask(bbox geometry.BBox, acqTime time.Time, windowW, windowH int, data []LayerData) *Task {
	if data == nil {
		data = []LayerData{}
	}
	return &Task{
		ID:           uuid.NewString(),
		BBox:         bbox,
		AcqTime:      acqTime,
		WindowWidth:  windowW,
		WindowHeight: windowH,
		Data:         data,
	}
}

// windowSize mirrors the task bbox dimensions for older frontends that still
// read the nested object.
type windowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TaskPayload is the wire form of a task.
type TaskPayload struct {
	ID           string              `json:"id"`
	BBox         [4]float64          `json:"bbox"`
	CRS          int                 `json:"crs"`
	WindowWidth  int                 `json:"windowWidth"`
	WindowHeight int                 `json:"windowHeight"`
	Datetime     string              `json:"datetime"`
	Data         []LayerData         `json:"data"`
	VectorData   []*geojson.Geometry `json:"vectorData,omitempty"`
	Window       windowSize          `json:"window"`
}

// AppPayload encodes the task for transport. Geographic bboxes are emitted
// in (lat-min, lon-min, lat-max, lon-max) order, projected ones as
// (x-min, y-min, x-max, y-max); existing callers depend on this axis flip.
func (t *Task) AppPayload() TaskPayload {
	bbox := t.BBox.Coords()
	if t.BBox.CRS.IsGeographic() {
		bbox = [4]float64{bbox[1], bbox[0], bbox[3], bbox[2]}
	}
	return TaskPayload{
		ID:           t.ID,
		BBox:         bbox,
		CRS:          int(t.BBox.CRS),
		WindowWidth:  t.WindowWidth,
		WindowHeight: t.WindowHeight,
		Datetime:     t.AcqTime.Format("2006-01-02"),
		Data:         t.Data,
		VectorData:   t.VectorData,
		Window:       windowSize{Width: t.WindowWidth, Height: t.WindowHeight},
	}
}
