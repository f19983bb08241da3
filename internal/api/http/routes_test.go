package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/swio-meteo/cyclone-archive/internal/archive"
	"github.com/swio-meteo/cyclone-archive/internal/cyclone"
	"github.com/swio-meteo/cyclone-archive/internal/viewer"
)

// newTestApp builds an engine over dir and a Fiber app with the routes wired.
func newTestApp(t *testing.T, dir string) (*fiber.App, *viewer.Engine) {
	t.Helper()

	source := viewer.ArchiveSource{Dir: dir}
	preloader, err := viewer.NewPreloader(source, 8, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine := viewer.NewEngine(source, viewer.NewLoader(source), preloader, 48*time.Hour)
	if err := engine.Init(context.Background()); err != nil {
		t.Fatalf("engine init failed: %v", err)
	}

	app := fiber.New()
	RegisterRoutes(app, context.Background(), engine, "/data")
	return app, engine
}

// populateArchive writes one recent run with both satellite layers and
// rebuilds the index.
func populateArchive(t *testing.T, dir string) int64 {
	t.Helper()
	ts := time.Now().UTC().Unix() - 3600
	runDir := filepath.Join(dir, strconv.FormatInt(ts, 10))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "trajectory.json"), []byte(`{"track":[[55.5,-21.1]]}`), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	for _, layer := range []string{"ir108", "rgb"} {
		if err := os.WriteFile(filepath.Join(runDir, layer+".png"), buf.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
	}
	meta, _ := json.Marshal(map[string]any{"bbox": []float64{30, -35, 90, 5}})
	if err := os.WriteFile(filepath.Join(runDir, "meta.json"), meta, 0644); err != nil {
		t.Fatal(err)
	}
	if err := archive.Rebuild(dir); err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestStateEndpoint(t *testing.T) {
	app, _ := newTestApp(t, t.TempDir())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var st viewer.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("bad state body: %v", err)
	}
	if st.State != "ready" {
		t.Fatalf("expected ready, got %s", st.State)
	}
	if st.CurrentIndex != -1 {
		t.Fatalf("expected currentIndex -1 on empty archive, got %d", st.CurrentIndex)
	}
}

func TestIndexEndpointEmptyArray(t *testing.T) {
	app, _ := newTestApp(t, t.TempDir())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/index", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(bytes.TrimSpace(body)) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestSnapshotEndpointNotFound(t *testing.T) {
	app, _ := newTestApp(t, t.TempDir())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/0", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSnapshotEndpointBadIndex(t *testing.T) {
	app, _ := newTestApp(t, t.TempDir())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/abc", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSelectOutOfRangeStillAccepted(t *testing.T) {
	app, engine := newTestApp(t, t.TempDir())

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/select/99", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if st := engine.Status(); st.CurrentIndex != -1 {
		t.Fatalf("out-of-range select must not move the index, got %d", st.CurrentIndex)
	}
}

func TestSnapshotAndOverlayEndpoints(t *testing.T) {
	dir := t.TempDir()
	populateArchive(t, dir)
	app, _ := newTestApp(t, dir)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/0", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var snap struct {
		Metadata   cyclone.SnapshotMetadata `json:"metadata"`
		Trajectory json.RawMessage          `json:"trajectory"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("bad snapshot body: %v", err)
	}
	if len(snap.Trajectory) == 0 {
		t.Fatal("expected trajectory payload")
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/overlay/0/ir108", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var overlay struct {
		URL    string            `json:"url"`
		Bounds cyclone.MapBounds `json:"bounds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&overlay); err != nil {
		t.Fatalf("bad overlay body: %v", err)
	}
	if overlay.URL == "" || overlay.URL[0] != '/' {
		t.Fatalf("expected rooted overlay url, got %q", overlay.URL)
	}
	want := cyclone.OverlayBounds(cyclone.BoundingBox{30, -35, 90, 5})
	if overlay.Bounds != want {
		t.Fatalf("expected bounds %v, got %v", want, overlay.Bounds)
	}
}

func TestOverlayUnknownLayerRejected(t *testing.T) {
	dir := t.TempDir()
	populateArchive(t, dir)
	app, _ := newTestApp(t, dir)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/overlay/0/thermal", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
