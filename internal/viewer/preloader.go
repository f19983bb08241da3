package viewer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	_ "image/png"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Preloader warms satellite images ahead of display: the bytes are fetched,
// decode-checked, and kept in a bounded LRU so rendering never waits on the
// network. Each preload is bounded by a timeout; a stalled image falls back
// to "unavailable" instead of hanging its prefetch entry.
type Preloader struct {
	source  ImageSource
	timeout time.Duration
	cache   *lru.Cache[string, []byte]
}

func NewPreloader(source ImageSource, cacheSize int, timeout time.Duration) (*Preloader, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Preloader{
		source:  source,
		timeout: timeout,
		cache:   cache,
	}, nil
}

// Preload fetches and decode-checks the image behind file. Resolves nil once
// the image is usable; a network or decode failure is the caller's signal
// that the layer is unavailable. No retries.
func (p *Preloader) Preload(ctx context.Context, file string) error {
	if _, ok := p.cache.Get(file); ok {
		return nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	data, err := p.source.FetchImage(ctx, file)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrImagePreload, file, err)
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrImagePreload, file, err)
	}

	p.cache.Add(file, data)
	return nil
}

// Cached reports whether the image is already warmed.
func (p *Preloader) Cached(file string) bool {
	return p.cache.Contains(file)
}

// Image returns the warmed bytes, if present.
func (p *Preloader) Image(file string) ([]byte, bool) {
	return p.cache.Get(file)
}
