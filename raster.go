// Package darkside renders a georeferenced radiance raster into a sparse
// XYZ tile pyramid of color-mapped PNG images.
package darkside

import "math"

// A CRSKind identifies the coordinate reference system of a raster's
// bounding box. It is resolved once when the raster is loaded and never
// re-inspected per pixel.
type CRSKind int

const (
	// Geographic is unprojected WGS84 latitude/longitude in degrees
	// (EPSG:4326). It is the default when the source metadata is
	// undetermined.
	Geographic CRSKind = iota
	// WebMercator is the spherical Web Mercator projection in meters
	// (EPSG:3857).
	WebMercator
)

func (k CRSKind) String() string {
	switch k {
	case WebMercator:
		return "EPSG:3857"
	default:
		return "EPSG:4326"
	}
}

// A BBox is an axis-aligned bounding box. Units are those of the CRS it was
// produced in: degrees for Geographic, meters for WebMercator.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// IsFinite reports whether all four edges are finite.
func (b BBox) IsFinite() bool {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// A Grid is a decoded single-band raster: Width×Height samples covering
// Bounds in the CRS identified by CRS. Row 0 is the northernmost row.
// A Grid is immutable after construction and safe for concurrent readers.
type Grid struct {
	Width   int
	Height  int
	Bounds  BBox
	CRS     CRSKind
	Samples []float32
}

// Sample returns the sample at pixel (x, y). Pixels outside the grid
// resolve to 0, the no-data value; callers never treat that as an error.
func (g *Grid) Sample(x, y int) float64 {
	if x < 0 || g.Width <= x || y < 0 || g.Height <= y {
		return 0
	}
	return float64(g.Samples[y*g.Width+x])
}
