package cyclone

import "testing"

func TestOverlayBounds(t *testing.T) {
	got := OverlayBounds(BoundingBox{21.1, -41, 103, 21.1})
	want := MapBounds{{-41, 21.1}, {21.1, 103}}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOverlayBoundsNoClamping(t *testing.T) {
	// Out-of-range values must pass through untouched; validation belongs
	// to the producer, not the mapper.
	got := OverlayBounds(BoundingBox{-200, -95, 200, 95})
	want := MapBounds{{-95, -200}, {95, 200}}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestResourceURL(t *testing.T) {
	cases := []struct {
		root, file, want string
	}{
		{"/data", "1756000000/ir108.png", "/data/1756000000/ir108.png"},
		{"/data/", "/1756000000/trajectory.json", "/data/1756000000/trajectory.json"},
		{"https://example.org/archive", "1756000000/rgb.png", "https://example.org/archive/1756000000/rgb.png"},
	}
	for _, c := range cases {
		if got := ResourceURL(c.root, c.file); got != c.want {
			t.Errorf("ResourceURL(%q, %q) = %q, want %q", c.root, c.file, got, c.want)
		}
	}
}

func TestBoundingBoxValidate(t *testing.T) {
	valid := BoundingBox{30, -35, 90, 5}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error for valid bbox: %v", err)
	}

	bad := []BoundingBox{
		{90, -35, 30, 5},    // minLon >= maxLon
		{30, 5, 90, -35},    // minLat >= maxLat
		{30, -95, 90, 5},    // latitude out of range
		{-190, -35, 90, 5},  // longitude out of range
	}
	for _, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("expected error for bbox %v", b)
		}
	}
}
