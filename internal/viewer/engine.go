package viewer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/swio-meteo/cyclone-archive/internal/cyclone"
	"github.com/swio-meteo/cyclone-archive/internal/store"
)

// State is the engine's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoadingIndex
	StatePrefetching
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingIndex:
		return "loading_index"
	case StatePrefetching:
		return "prefetching"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Progress reports prefetch completion. Completed counts entries fully
// settled (success or failure), never sub-steps.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Failed    int `json:"failed"`
	Percent   int `json:"percent"`
}

func progressOf(completed, total, failed int) Progress {
	p := Progress{Completed: completed, Total: total, Failed: failed}
	if total > 0 {
		p.Percent = completed * 100 / total
	} else {
		p.Percent = 100
	}
	return p
}

// Event is one published state transition.
type Event struct {
	State        State
	Progress     Progress
	CurrentIndex int
	Err          error
}

// Engine drives the viewer protocol: load the index, pick the default
// snapshot nearest the lookback horizon, prefetch the recent window, then
// expose a navigable current snapshot. It owns all viewer state; the UI
// layer only subscribes to transitions or polls Status.
type Engine struct {
	source    IndexLoader
	loader    *Loader
	preloader *Preloader
	lookback  time.Duration

	// now is injectable for tests.
	now func() time.Time

	mu           sync.Mutex
	state        State
	index        *store.Index
	currentIndex int
	currentSnap  *cyclone.LoadedSnapshot
	progress     Progress
	err          error

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

func NewEngine(source IndexLoader, loader *Loader, preloader *Preloader, lookback time.Duration) *Engine {
	return &Engine{
		source:       source,
		loader:       loader,
		preloader:    preloader,
		lookback:     lookback,
		now:          time.Now,
		state:        StateIdle,
		index:        store.NewIndex(nil),
		currentIndex: -1,
		subs:         make(map[int]chan Event),
	}
}

// Subscribe returns a channel of state transitions and a cancel function.
// Slow subscribers miss intermediate events rather than blocking the engine.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) publish(ev Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Init runs the initialization protocol. An index load failure is fatal and
// surfaces as the Error state; an empty index completes successfully with no
// current snapshot. Prefetch failures are isolated per entry: the batch
// always completes and the failure count is part of the final progress.
func (e *Engine) Init(ctx context.Context) error {
	e.setState(ctx, func() {
		e.state = StateLoadingIndex
	})

	ix, err := e.source.LoadIndex(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrIndexLoad, err)
		e.setState(ctx, func() {
			e.state = StateError
			e.err = wrapped
		})
		return wrapped
	}

	if ix.Len() == 0 {
		e.setState(ctx, func() {
			e.index = ix
			e.state = StateReady
			e.currentIndex = -1
		})
		return nil
	}

	horizon := e.now().Add(-e.lookback).Unix()
	entries := ix.Entries()
	defIdx := defaultIndex(entries, horizon)

	var prefetch []int
	for i, m := range entries {
		if m.Timestamp >= horizon {
			prefetch = append(prefetch, i)
		}
	}

	e.setState(ctx, func() {
		e.index = ix
		e.state = StatePrefetching
		e.progress = progressOf(0, len(prefetch), 0)
	})

	e.prefetchAll(ctx, entries, prefetch)

	// Guaranteed cache hit when defaultIndex fell inside the prefetch
	// window; a fresh fetch otherwise.
	snap, err := e.loader.Load(ctx, entries[defIdx])
	if err != nil {
		e.setState(ctx, func() {
			e.state = StateError
			e.err = err
		})
		return err
	}

	e.setState(ctx, func() {
		e.state = StateReady
		e.currentIndex = defIdx
		e.currentSnap = &snap
	})
	return nil
}

// prefetchAll warms every entry of the prefetch window concurrently. Within
// one entry the snapshot loads before its images; across entries completion
// order is arbitrary. One result is collected per entry regardless of
// failure, and progress advances one step per settled entry.
func (e *Engine) prefetchAll(ctx context.Context, entries []cyclone.SnapshotMetadata, prefetch []int) {
	if len(prefetch) == 0 {
		return
	}

	results := make(chan error)
	for _, i := range prefetch {
		meta := entries[i]
		go func() {
			results <- e.prefetchEntry(ctx, meta)
		}()
	}

	completed, failed := 0, 0
	for range prefetch {
		err := <-results
		completed++
		if err != nil {
			failed++
			log.Printf("viewer: prefetch entry failed: %v", err)
		}
		p := progressOf(completed, len(prefetch), failed)
		e.setState(ctx, func() {
			e.progress = p
		})
	}
}

func (e *Engine) prefetchEntry(ctx context.Context, meta cyclone.SnapshotMetadata) error {
	if _, err := e.loader.Load(ctx, meta); err != nil {
		return err
	}
	var firstErr error
	for _, layer := range []cyclone.SatelliteLayer{cyclone.LayerIR108, cyclone.LayerRGB} {
		img := meta.Image(layer)
		if img == nil {
			continue
		}
		if err := e.preloader.Preload(ctx, img.File); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoadSnapshot navigates to the snapshot at position i. Out-of-range indices
// are a silent no-op. The current index updates synchronously so the UI can
// move its timeline cursor at once; the snapshot resolves in the background.
// A resolve failure leaves the last good snapshot in place, and a late
// result after further navigation is dropped.
func (e *Engine) LoadSnapshot(ctx context.Context, i int) {
	e.mu.Lock()
	meta, err := e.index.At(i)
	if err != nil {
		e.mu.Unlock()
		return
	}
	e.currentIndex = i
	state, idx := e.state, e.currentIndex
	e.mu.Unlock()

	e.publish(Event{State: state, CurrentIndex: idx})

	go func() {
		snap, err := e.loader.Load(ctx, meta)
		if err != nil {
			log.Printf("viewer: load snapshot %d failed: %v", i, err)
			return
		}
		e.setState(ctx, func() {
			if e.currentIndex != i {
				return
			}
			e.currentSnap = &snap
		})
	}()
}

// Snapshot loads the snapshot at position i directly (cache hit when it was
// prefetched). Used by the HTTP layer; does not move the current index.
func (e *Engine) Snapshot(ctx context.Context, i int) (cyclone.LoadedSnapshot, error) {
	e.mu.Lock()
	meta, err := e.index.At(i)
	e.mu.Unlock()
	if err != nil {
		return cyclone.LoadedSnapshot{}, err
	}
	return e.loader.Load(ctx, meta)
}

// Metadata returns the descriptor at position i.
func (e *Engine) Metadata(i int) (cyclone.SnapshotMetadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.At(i)
}

// Index returns the session's metadata index.
func (e *Engine) Index() *store.Index {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// Status is a point-in-time view of the engine for polling clients.
type Status struct {
	State        string   `json:"state"`
	Progress     Progress `json:"progress"`
	CurrentIndex int      `json:"currentIndex"`
	IndexSize    int      `json:"indexSize"`
	Error        string   `json:"error,omitempty"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		State:        e.state.String(),
		Progress:     e.progress,
		CurrentIndex: e.currentIndex,
		IndexSize:    e.index.Len(),
	}
	if e.err != nil {
		st.Error = e.err.Error()
	}
	return st
}

// Current returns the current snapshot, if one is published.
func (e *Engine) Current() (cyclone.LoadedSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentSnap == nil {
		return cyclone.LoadedSnapshot{}, false
	}
	return *e.currentSnap, true
}

// setState applies a mutation and publishes the resulting event, unless ctx
// was cancelled: results arriving after cancellation must not corrupt state.
func (e *Engine) setState(ctx context.Context, mutate func()) {
	if ctx.Err() != nil {
		return
	}
	e.mu.Lock()
	mutate()
	ev := Event{
		State:        e.state,
		Progress:     e.progress,
		CurrentIndex: e.currentIndex,
		Err:          e.err,
	}
	e.mu.Unlock()
	e.publish(ev)
}

// defaultIndex picks the entry nearest the horizon instant; ties break
// toward the earlier index in the ascending scan.
func defaultIndex(entries []cyclone.SnapshotMetadata, horizon int64) int {
	best := 0
	bestDiff := absDiff(entries[0].Timestamp, horizon)
	for i := 1; i < len(entries); i++ {
		if d := absDiff(entries[i].Timestamp, horizon); d < bestDiff {
			best = i
			bestDiff = d
		}
	}
	return best
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
