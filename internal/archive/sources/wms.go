package sources

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/swio-meteo/cyclone-archive/internal/cyclone"
)

// earthRadius is the WGS84 semi-major axis used by EPSG:3857.
const earthRadius = 6378137.0

// Pixel dimensions requested per image. 0.05 deg/px keeps file sizes sane
// for basin-scale boxes; width/height derive from the bbox aspect ratio.
const degreesPerPixel = 0.05

// wmsLayerNames maps our archive layer ids to upstream WMS layer names.
var wmsLayerNames = map[cyclone.SatelliteLayer]string{
	cyclone.LayerIR108: "msg_ir108",
	cyclone.LayerRGB:   "msg_natural_rgb",
}

// SatelliteSource fetches satellite imagery from a WMS endpoint.
//
// The GetMap request uses CRS=EPSG:3857 so the returned pixels are already in
// the basemap projection and can be placed on a Web Mercator map without any
// client-side resampling. The degree bbox is only converted to metres for the
// request itself; callers keep the EPSG:4326 box as placement metadata.
type SatelliteSource struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewSatelliteSource(client *http.Client, baseURL string) *SatelliteSource {
	return &SatelliteSource{
		name:    "wms",
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuit("wms"),
	}
}

func (s *SatelliteSource) Name() string {
	return s.name
}

// FetchImage returns PNG bytes for the given layer over the degree bbox.
func (s *SatelliteSource) FetchImage(ctx context.Context, layer cyclone.SatelliteLayer, bbox cyclone.BoundingBox) ([]byte, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("wms url is not configured")
	}

	layerName, ok := wmsLayerNames[layer]
	if !ok {
		return nil, fmt.Errorf("no WMS layer mapping for %q", layer)
	}

	width := int(math.Round((bbox.MaxLon() - bbox.MinLon()) / degreesPerPixel))
	height := int(math.Round((bbox.MaxLat() - bbox.MinLat()) / degreesPerPixel))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("degenerate bbox %v", bbox)
	}

	minX, minY := toWebMercator(bbox.MinLon(), bbox.MinLat())
	maxX, maxY := toWebMercator(bbox.MaxLon(), bbox.MaxLat())

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("SERVICE", "WMS")
		values.Set("VERSION", "1.3.0")
		values.Set("REQUEST", "GetMap")
		values.Set("LAYERS", layerName)
		values.Set("CRS", "EPSG:3857")
		values.Set("BBOX", fmt.Sprintf("%f,%f,%f,%f", minX, minY, maxX, maxY))
		values.Set("WIDTH", fmt.Sprintf("%d", width))
		values.Set("HEIGHT", fmt.Sprintf("%d", height))
		values.Set("FORMAT", "image/png")
		values.Set("TRANSPARENT", "true")

		u := fmt.Sprintf("%s?%s", s.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// toWebMercator projects EPSG:4326 degrees to EPSG:3857 metres.
func toWebMercator(lon, lat float64) (x, y float64) {
	x = lon * math.Pi / 180 * earthRadius
	y = math.Log(math.Tan(math.Pi/4+lat*math.Pi/360)) * earthRadius
	return x, y
}
