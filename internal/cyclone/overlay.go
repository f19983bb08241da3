package cyclone

import "strings"

// MapBounds is the corner-pair form map widgets expect:
// [[southLat, westLon], [northLat, eastLon]].
type MapBounds [2][2]float64

// OverlayBounds converts a degree bbox into map placement bounds. The image
// pixels behind the bbox are already projected to Web Mercator upstream; the
// map API positions them from degree corners, so this is a pure axis swap.
// Reprojecting here (or converting to metres) would double-transform the
// overlay and distort it against the basemap.
func OverlayBounds(b BoundingBox) MapBounds {
	return MapBounds{
		{b.MinLat(), b.MinLon()},
		{b.MaxLat(), b.MaxLon()},
	}
}

// ResourceURL joins an archived file reference onto the resource root.
func ResourceURL(root, file string) string {
	root = strings.TrimSuffix(root, "/")
	file = strings.TrimPrefix(file, "/")
	return root + "/" + file
}
