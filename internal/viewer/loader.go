package viewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/swio-meteo/cyclone-archive/internal/cyclone"
)

// Loader fetches and parses trajectory documents, memoized by the metadata's
// trajectory reference. Concurrent loads for the same reference share one
// underlying fetch; the cache is never evicted for the session.
type Loader struct {
	fetch SnapshotFetcher

	mu      sync.Mutex
	entries map[string]*loaderEntry
}

type loaderEntry struct {
	ready chan struct{} // closed when snap/err are set
	snap  cyclone.LoadedSnapshot
	err   error
}

func NewLoader(fetch SnapshotFetcher) *Loader {
	return &Loader{
		fetch:   fetch,
		entries: make(map[string]*loaderEntry),
	}
}

// Load returns the snapshot for meta, fetching at most once per reference.
// Fetch failures are not cached: waiters of the failed in-flight request all
// receive the error, but a later call retries. Retry policy itself belongs
// to the caller.
func (l *Loader) Load(ctx context.Context, meta cyclone.SnapshotMetadata) (cyclone.LoadedSnapshot, error) {
	key := meta.Trajectory

	l.mu.Lock()
	if e, ok := l.entries[key]; ok {
		l.mu.Unlock()
		select {
		case <-e.ready:
			return e.snap, e.err
		case <-ctx.Done():
			return cyclone.LoadedSnapshot{}, ctx.Err()
		}
	}

	e := &loaderEntry{ready: make(chan struct{})}
	l.entries[key] = e
	l.mu.Unlock()

	data, err := l.fetch.FetchSnapshot(ctx, key)
	if err != nil {
		e.err = fmt.Errorf("%w: %s: %v", ErrSnapshotLoad, key, err)
	} else {
		e.snap = cyclone.LoadedSnapshot{Meta: meta, Data: data}
	}
	close(e.ready)

	if e.err != nil {
		// Drop the failed entry so a later call can retry.
		l.mu.Lock()
		if l.entries[key] == e {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}

	return e.snap, e.err
}

// Cached reports whether a reference has already been loaded successfully.
func (l *Loader) Cached(ref string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[ref]
	if !ok {
		return false
	}
	select {
	case <-e.ready:
		return e.err == nil
	default:
		return false
	}
}
