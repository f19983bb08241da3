package viewer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/swio-meteo/cyclone-archive/internal/store"
)

// SnapshotFetcher retrieves raw trajectory bytes for a metadata reference.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, ref string) ([]byte, error)
}

// ImageSource retrieves raw image bytes for an archived file reference.
type ImageSource interface {
	FetchImage(ctx context.Context, file string) ([]byte, error)
}

// IndexLoader loads the metadata index once per session.
type IndexLoader interface {
	LoadIndex(ctx context.Context) (*store.Index, error)
}

// ArchiveSource serves the viewer core straight from the local archive
// directory. References from the index are relative paths; anything trying
// to escape the archive root is rejected.
type ArchiveSource struct {
	Dir string
}

func (a ArchiveSource) LoadIndex(ctx context.Context) (*store.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return store.LoadIndex(a.Dir)
}

func (a ArchiveSource) FetchSnapshot(ctx context.Context, ref string) ([]byte, error) {
	return a.read(ctx, ref)
}

func (a ArchiveSource) FetchImage(ctx context.Context, file string) ([]byte, error) {
	return a.read(ctx, file)
}

func (a ArchiveSource) read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean("/" + ref)
	if strings.Contains(clean, "..") {
		return nil, fmt.Errorf("reference %q escapes archive root", ref)
	}
	return os.ReadFile(filepath.Join(a.Dir, clean))
}
