package darkside

import "math"

const (
	// earthRadius is the sphere radius used by Web Mercator (EPSG:3857).
	earthRadius = 6378137.0

	// maxMercatorLatitude is the latitude at which the square Web Mercator
	// world ends. Latitudes beyond it are clamped.
	maxMercatorLatitude = 85.05112878

	// antimeridianTolerance is how close (in degrees) both longitudes of a
	// bounding box must sit to ±180° before the box is treated as a
	// wrapped-around antimeridian artifact.
	antimeridianTolerance = 0.01

	// narrowLonSpan/wideLatSpan detect bounding boxes whose longitude span
	// collapsed while the latitude span stayed continental. Calibrated for
	// the bounding-box quirks observed in VIIRS exports, not geometrically
	// derived; a genuinely narrow high-latitude raster would trip it.
	narrowLonSpan = 1.0
	wideLatSpan   = 10.0
)

// A Resolver converts between a raster's native coordinate space,
// geographic degrees, and raster pixel space. It is constructed once per
// grid from the resolved CRS kind.
type Resolver struct {
	grid *Grid
}

// NewResolver returns a Resolver for grid.
func NewResolver(grid *Grid) *Resolver {
	return &Resolver{grid: grid}
}

// GeographicBounds returns the grid's bounding box in geographic degrees
// (longitude in [-180,180], latitude clamped to the Mercator range),
// widened by the degenerate-geometry heuristics where needed.
func (r *Resolver) GeographicBounds() BBox {
	b := r.grid.Bounds
	var out BBox
	switch r.grid.CRS {
	case WebMercator:
		out.MinX = mercatorToLon(b.MinX)
		out.MaxX = mercatorToLon(b.MaxX)
		out.MinY = mercatorToLat(b.MinY)
		out.MaxY = mercatorToLat(b.MaxY)
	default:
		out.MinX = normalizeLon(b.MinX)
		out.MaxX = normalizeLon(b.MaxX)
		out.MinY = clampLat(b.MinY)
		out.MaxY = clampLat(b.MaxY)
	}
	return widenDegenerate(out)
}

// RasterIndex maps a geographic coordinate to a fractional pixel position
// in the grid. Results outside [0,Width)×[0,Height) are not an error;
// callers treat out-of-bounds pixels as no-data.
func (r *Resolver) RasterIndex(lon, lat float64) (float64, float64) {
	b := r.grid.Bounds
	x, y := lon, lat
	if r.grid.CRS == WebMercator {
		x = lonToMercator(lon)
		y = latToMercator(lat)
	}
	px := (x - b.MinX) / (b.MaxX - b.MinX) * float64(r.grid.Width)
	py := (b.MaxY - y) / (b.MaxY - b.MinY) * float64(r.grid.Height)
	return px, py
}

// widenDegenerate widens a geographic bounding box to the full longitude
// range when its longitudes look like a collapsed or wrapped-around
// artifact: both edges pinned to the same antimeridian side, east west of
// west (dateline straddle), or a sub-degree longitude span paired with a
// continental latitude span. Without this a malformed box yields an empty
// or single-column tile set.
func widenDegenerate(b BBox) BBox {
	nearPos := math.Abs(b.MinX-180) < antimeridianTolerance && math.Abs(b.MaxX-180) < antimeridianTolerance
	nearNeg := math.Abs(b.MinX+180) < antimeridianTolerance && math.Abs(b.MaxX+180) < antimeridianTolerance
	straddle := b.MinX > b.MaxX
	collapsed := b.MaxX-b.MinX < narrowLonSpan && b.MaxY-b.MinY > wideLatSpan
	if nearPos || nearNeg || straddle || collapsed {
		b.MinX = -180
		b.MaxX = 180
	}
	return b
}

func mercatorToLon(x float64) float64 {
	return x / earthRadius * (180 / math.Pi)
}

func mercatorToLat(y float64) float64 {
	lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * (180 / math.Pi)
	return clampLat(lat)
}

func lonToMercator(lon float64) float64 {
	return lon * (math.Pi / 180) * earthRadius
}

func latToMercator(lat float64) float64 {
	rad := clampLat(lat) * (math.Pi / 180)
	return earthRadius * math.Log(math.Tan(math.Pi/4+rad/2))
}

func clampLat(lat float64) float64 {
	return math.Max(-maxMercatorLatitude, math.Min(maxMercatorLatitude, lat))
}

// normalizeLon wraps a longitude into [-180,180].
func normalizeLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
