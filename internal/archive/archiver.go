package archive

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swio-meteo/cyclone-archive/internal/cyclone"
)

// TrajectoryFetcher fetches the current cyclone trajectory document.
type TrajectoryFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// ImageFetcher fetches one satellite image for a layer over a bbox.
type ImageFetcher interface {
	FetchImage(ctx context.Context, layer cyclone.SatelliteLayer, bbox cyclone.BoundingBox) ([]byte, error)
}

// Archiver runs one fetch-and-store cycle: trajectory JSON plus satellite
// imagery into a timestamped run directory, then an index rebuild.
type Archiver struct {
	dir        string
	trajectory TrajectoryFetcher
	satellite  ImageFetcher
	layers     []cyclone.SatelliteLayer
	bbox       cyclone.BoundingBox

	// now is injectable for tests.
	now func() time.Time
}

func New(dir string, trajectory TrajectoryFetcher, satellite ImageFetcher, layers []cyclone.SatelliteLayer, bbox cyclone.BoundingBox) *Archiver {
	return &Archiver{
		dir:        dir,
		trajectory: trajectory,
		satellite:  satellite,
		layers:     layers,
		bbox:       bbox,
		now:        time.Now,
	}
}

// Run performs one archive cycle. A trajectory failure aborts the run;
// individual satellite layer failures only drop that layer from the entry.
func (a *Archiver) Run(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	ts := a.now().UTC().Unix()

	log.Printf("archive[%s]: starting run for t=%d", runID, ts)

	body, err := a.trajectory.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch trajectory: %w", err)
	}

	runDir := filepath.Join(a.dir, strconv.FormatInt(ts, 10))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(runDir, "trajectory.json"), body, 0644); err != nil {
		return fmt.Errorf("write trajectory: %w", err)
	}

	if err := a.bbox.Validate(); err != nil {
		log.Printf("archive[%s]: skipping satellite layers, invalid bbox: %v", runID, err)
	} else if a.satellite != nil {
		a.fetchLayers(ctx, runID, runDir)
	}

	if err := writeRunMeta(runDir, a.bbox); err != nil {
		return fmt.Errorf("write run metadata: %w", err)
	}

	if err := Rebuild(a.dir); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	log.Printf("archive[%s]: completed run for t=%d", runID, ts)
	return nil
}

// fetchLayers downloads all configured satellite layers concurrently.
// Failures are logged and the layer dropped; the run continues.
func (a *Archiver) fetchLayers(ctx context.Context, runID, runDir string) {
	var wg sync.WaitGroup
	for _, layer := range a.layers {
		layer := layer
		wg.Add(1)
		go func() {
			defer wg.Done()

			data, err := a.satellite.FetchImage(ctx, layer, a.bbox)
			if err != nil {
				log.Printf("archive[%s]: layer %s fetch failed: %v", runID, layer, err)
				return
			}

			path := filepath.Join(runDir, string(layer)+".png")
			if err := os.WriteFile(path, data, 0644); err != nil {
				log.Printf("archive[%s]: layer %s write failed: %v", runID, layer, err)
			}
		}()
	}
	wg.Wait()
}
