package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/swio-meteo/cyclone-archive/internal/common"
	"github.com/swio-meteo/cyclone-archive/internal/cyclone"
)

// IndexFile is the well-known index name at the archive root.
const IndexFile = "index.json"

// runMeta records per-run metadata the index walker cannot recover from the
// directory layout alone.
type runMeta struct {
	BBox cyclone.BoundingBox `json:"bbox"`
}

func writeRunMeta(runDir string, bbox cyclone.BoundingBox) error {
	data, err := json.Marshal(runMeta{BBox: bbox})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runDir, "meta.json"), data, 0644)
}

// Build walks the archive directory and assembles the metadata index,
// sorted ascending by timestamp. Run directories must be named by their
// unix-second timestamp and contain a trajectory.json; anything else is
// skipped silently so stray files never break the index.
func Build(dir string) ([]cyclone.SnapshotMetadata, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read archive directory: %w", err)
	}

	index := make([]cyclone.SnapshotMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ts, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue
		}

		runDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(runDir, "trajectory.json")); err != nil {
			continue
		}

		meta := cyclone.SnapshotMetadata{
			Timestamp:  ts,
			Trajectory: entry.Name() + "/trajectory.json",
		}

		bbox, haveBBox := readRunBBox(runDir)

		files, err := os.ReadDir(runDir)
		if err != nil {
			return nil, fmt.Errorf("read run directory %s: %w", runDir, err)
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".png" || !haveBBox {
				continue
			}
			img := &cyclone.SatelliteImage{
				File: entry.Name() + "/" + f.Name(),
				BBox: bbox,
			}
			switch {
			case common.HasAny(f.Name(), string(cyclone.LayerIR108)):
				meta.IR108 = img
			case common.HasAny(f.Name(), string(cyclone.LayerRGB)):
				meta.RGB = img
			}
		}

		index = append(index, meta)
	}

	sort.Slice(index, func(i, j int) bool {
		return index[i].Timestamp < index[j].Timestamp
	})

	return index, nil
}

// readRunBBox loads and validates the per-run bbox. Missing or implausible
// boxes drop the run's satellite layers rather than poisoning the map.
func readRunBBox(runDir string) (cyclone.BoundingBox, bool) {
	data, err := os.ReadFile(filepath.Join(runDir, "meta.json"))
	if err != nil {
		return cyclone.BoundingBox{}, false
	}
	var m runMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return cyclone.BoundingBox{}, false
	}
	if err := m.BBox.Validate(); err != nil {
		return cyclone.BoundingBox{}, false
	}
	return m.BBox, true
}

// Write persists the index atomically (temp file + rename) so readers never
// observe a partially written index.
func Write(dir string, index []cyclone.SnapshotMetadata) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "index-*.json")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp index: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, IndexFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// Rebuild regenerates the index from the archive directory contents.
func Rebuild(dir string) error {
	index, err := Build(dir)
	if err != nil {
		return err
	}
	return Write(dir, index)
}
