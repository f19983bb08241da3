package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/swio-meteo/cyclone-archive/internal/cyclone"
)

type AppConfig struct {
	Port       string
	ArchiveDir string

	// Upstream endpoints. Empty TrajectoryURL disables the archive job
	// entirely (viewer-only mode over an existing archive).
	TrajectoryURL string
	WMSURL        string

	// Satellite layers to archive per run.
	Layers []cyclone.SatelliteLayer

	// Region of interest, degrees (EPSG:4326).
	RegionBBox cyclone.BoundingBox

	// FetchInterval controls how often the archive job runs.
	FetchInterval time.Duration

	// HTTPTimeout bounds every outbound upstream call.
	HTTPTimeout time.Duration

	// HorizonLookback selects the default snapshot and the prefetch window.
	HorizonLookback time.Duration

	// PreloadTimeout bounds each satellite image preload.
	PreloadTimeout time.Duration

	// ImageCacheSize is the number of preloaded images kept in memory.
	ImageCacheSize int
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.ArchiveDir = getenvDefault("ARCHIVE_DIR", "./data")
	cfg.TrajectoryURL = os.Getenv("TRAJECTORY_URL")
	cfg.WMSURL = os.Getenv("WMS_URL")

	interval, err := getenvDuration("FETCH_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	cfg.FetchInterval = interval

	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	cfg.HorizonLookback, err = getenvDuration("HORIZON_LOOKBACK", "48h")
	if err != nil {
		return nil, err
	}

	cfg.PreloadTimeout, err = getenvDuration("PRELOAD_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	cfg.ImageCacheSize = getenvInt("IMAGE_CACHE_SIZE", 64)

	layers, err := loadLayers()
	if err != nil {
		return nil, err
	}
	cfg.Layers = layers

	bbox, err := loadRegionBBox()
	if err != nil {
		return nil, err
	}
	cfg.RegionBBox = bbox

	return cfg, nil
}

func loadLayers() ([]cyclone.SatelliteLayer, error) {
	raw := getenvDefault("WMS_LAYERS", "ir108,rgb")
	var layers []cyclone.SatelliteLayer
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		switch cyclone.SatelliteLayer(name) {
		case cyclone.LayerIR108, cyclone.LayerRGB:
			layers = append(layers, cyclone.SatelliteLayer(name))
		default:
			return nil, fmt.Errorf("unknown satellite layer %q in WMS_LAYERS", name)
		}
	}
	return layers, nil
}

// loadRegionBBox parses REGION_BBOX as "minLon,minLat,maxLon,maxLat".
// Default covers the South-West Indian Ocean basin.
func loadRegionBBox() (cyclone.BoundingBox, error) {
	raw := getenvDefault("REGION_BBOX", "30,-35,90,5")
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return cyclone.BoundingBox{}, fmt.Errorf("REGION_BBOX must have 4 comma-separated values, got %q", raw)
	}
	var bbox cyclone.BoundingBox
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return cyclone.BoundingBox{}, fmt.Errorf("invalid REGION_BBOX value %q: %w", p, err)
		}
		bbox[i] = v
	}
	if err := bbox.Validate(); err != nil {
		return cyclone.BoundingBox{}, fmt.Errorf("invalid REGION_BBOX: %w", err)
	}
	return bbox, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	raw := getenvDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
