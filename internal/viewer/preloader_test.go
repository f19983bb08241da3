package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingImageSource struct {
	mu    sync.Mutex
	calls int
	data  []byte
	err   error
	delay time.Duration
}

func (c *countingImageSource) FetchImage(ctx context.Context, file string) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.data, nil
}

func (c *countingImageSource) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestPreloadCachesImage(t *testing.T) {
	src := &countingImageSource{data: testPNG()}
	p, err := NewPreloader(src, 4, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.Preload(context.Background(), "a/ir108.png"); err != nil {
		t.Fatalf("preload failed: %v", err)
	}
	if !p.Cached("a/ir108.png") {
		t.Fatal("expected image to be cached")
	}

	// Second preload is a cache hit.
	if err := p.Preload(context.Background(), "a/ir108.png"); err != nil {
		t.Fatalf("preload failed: %v", err)
	}
	if got := src.callCount(); got != 1 {
		t.Fatalf("expected one fetch, got %d", got)
	}
}

func TestPreloadFailsOnFetchError(t *testing.T) {
	src := &countingImageSource{err: errors.New("connection reset")}
	p, err := NewPreloader(src, 4, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	perr := p.Preload(context.Background(), "a/rgb.png")
	if !errors.Is(perr, ErrImagePreload) {
		t.Fatalf("expected ErrImagePreload, got %v", perr)
	}
	if p.Cached("a/rgb.png") {
		t.Fatal("failed preload must not populate cache")
	}
}

func TestPreloadFailsOnDecodeError(t *testing.T) {
	src := &countingImageSource{data: []byte("not a png")}
	p, err := NewPreloader(src, 4, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	perr := p.Preload(context.Background(), "a/ir108.png")
	if !errors.Is(perr, ErrImagePreload) {
		t.Fatalf("expected ErrImagePreload for undecodable bytes, got %v", perr)
	}
}

func TestPreloadTimesOutInsteadOfHanging(t *testing.T) {
	src := &countingImageSource{data: testPNG(), delay: time.Second}
	p, err := NewPreloader(src, 4, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	perr := p.Preload(context.Background(), "a/ir108.png")
	if !errors.Is(perr, ErrImagePreload) {
		t.Fatalf("expected ErrImagePreload on timeout, got %v", perr)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("preload did not respect its timeout")
	}
}
