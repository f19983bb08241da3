package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/swio-meteo/cyclone-archive/internal/archive"
	"github.com/swio-meteo/cyclone-archive/internal/cyclone"
)

var (
	// ErrNotFound is returned when no snapshot exists at a requested index.
	ErrNotFound = errors.New("no snapshot at requested index")
)

// Index is the read side of the metadata store: an ordered, immutable
// collection of snapshot descriptors. It is loaded once per session; data
// appearing on disk afterwards is not picked up without a reload.
type Index struct {
	entries []cyclone.SnapshotMetadata
}

// NewIndex builds an Index from entries, sorting ascending by timestamp so
// positions are stable and chronological for the lifetime of the load.
func NewIndex(entries []cyclone.SnapshotMetadata) *Index {
	sorted := make([]cyclone.SnapshotMetadata, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return &Index{entries: sorted}
}

// LoadIndex reads the archive's index file from disk. A missing index file
// yields an empty Index, not an error: a fresh archive simply has no data yet.
func LoadIndex(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, archive.IndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return NewIndex(nil), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var entries []cyclone.SnapshotMetadata
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return NewIndex(entries), nil
}

// Len returns the number of descriptors.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// At returns the descriptor at position i.
func (ix *Index) At(i int) (cyclone.SnapshotMetadata, error) {
	if i < 0 || i >= len(ix.entries) {
		return cyclone.SnapshotMetadata{}, ErrNotFound
	}
	return ix.entries[i], nil
}

// Entries returns the full descriptor list in chronological order. Callers
// must treat it as read-only.
func (ix *Index) Entries() []cyclone.SnapshotMetadata {
	return ix.entries
}
