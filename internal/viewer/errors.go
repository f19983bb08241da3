package viewer

import "errors"

// Error kinds surfaced by the viewer core. Index load failures are fatal to
// initialization; snapshot and image failures during prefetch are isolated
// per entry; out-of-range navigation is silently ignored and has no error.
var (
	ErrIndexLoad    = errors.New("index load failed")
	ErrSnapshotLoad = errors.New("snapshot load failed")
	ErrImagePreload = errors.New("image preload failed")
)
