package cyclone

import (
	"encoding/json"
	"fmt"
)

// SatelliteLayer identifies a satellite product archived alongside a trajectory.
type SatelliteLayer string

const (
	LayerIR108 SatelliteLayer = "ir108"
	LayerRGB   SatelliteLayer = "rgb"
)

// BoundingBox is a geographic extent in EPSG:4326 degrees, ordered
// [minLon, minLat, maxLon, maxLat]. It describes the footprint of an
// already-projected image; it is never used to resample pixels.
type BoundingBox [4]float64

func (b BoundingBox) MinLon() float64 { return b[0] }
func (b BoundingBox) MinLat() float64 { return b[1] }
func (b BoundingBox) MaxLon() float64 { return b[2] }
func (b BoundingBox) MaxLat() float64 { return b[3] }

// Validate checks the box against plausible geographic ranges.
func (b BoundingBox) Validate() error {
	if b.MinLon() >= b.MaxLon() {
		return fmt.Errorf("minLon (%f) must be less than maxLon (%f)", b.MinLon(), b.MaxLon())
	}
	if b.MinLat() >= b.MaxLat() {
		return fmt.Errorf("minLat (%f) must be less than maxLat (%f)", b.MinLat(), b.MaxLat())
	}
	if b.MinLat() < -90 || b.MaxLat() > 90 {
		return fmt.Errorf("latitude out of range [-90, 90]: %f..%f", b.MinLat(), b.MaxLat())
	}
	if b.MinLon() < -180 || b.MaxLon() > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]: %f..%f", b.MinLon(), b.MaxLon())
	}
	return nil
}

// SatelliteImage references one archived satellite image and its footprint.
type SatelliteImage struct {
	File string      `json:"file"`
	BBox BoundingBox `json:"bbox"`
}

// SnapshotMetadata is one entry of the archive index: a time-stamped
// observation with a trajectory document and optional satellite imagery.
type SnapshotMetadata struct {
	Timestamp  int64           `json:"timestamp"` // unix seconds, UTC
	Trajectory string          `json:"trajectory"`
	IR108      *SatelliteImage `json:"ir108,omitempty"`
	RGB        *SatelliteImage `json:"rgb,omitempty"`
}

// Image returns the satellite image for the given layer, or nil.
func (m SnapshotMetadata) Image(layer SatelliteLayer) *SatelliteImage {
	switch layer {
	case LayerIR108:
		return m.IR108
	case LayerRGB:
		return m.RGB
	}
	return nil
}

// LoadedSnapshot is the parsed trajectory payload. Its schema belongs to the
// upstream weather service and is passed through opaquely.
type LoadedSnapshot struct {
	Meta SnapshotMetadata
	Data json.RawMessage
}
