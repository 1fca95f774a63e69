package darkside

import (
	"fmt"
	"math"
)

// TileSize is the pixel width and height of every output tile.
const TileSize = 256

// fullWidthDivisor drives the full-width expansion heuristic in
// TileRangeAt: an X span narrower than 2^z/fullWidthDivisor tiles combined
// with a >10° latitude span is treated as a bounding-box distortion and
// expanded to the whole axis. Calibrated, not derived; see widenDegenerate.
const fullWidthDivisor = 64

// A TileCoord addresses one tile in the XYZ scheme: zoom Z with integer
// column X and row Y, 0 ≤ X,Y < 2^Z, origin top-left, Y increasing
// southward.
type TileCoord struct {
	Z int
	X int
	Y int
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// GeographicBounds returns the tile's edges in geographic degrees
// (MinY south, MaxY north). It is the exact inverse of the tile-index
// formulas: every (lon,lat) that maps to this tile lies inside the box.
func (t TileCoord) GeographicBounds() BBox {
	n := float64(int(1) << t.Z)
	return BBox{
		MinX: float64(t.X)/n*360 - 180,
		MaxX: float64(t.X+1)/n*360 - 180,
		MinY: tileEdgeLat(t.Y+1, n),
		MaxY: tileEdgeLat(t.Y, n),
	}
}

// tileEdgeLat returns the latitude of the northern edge of tile row y.
func tileEdgeLat(y int, n float64) float64 {
	return math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * (180 / math.Pi)
}

// A TileRange is an inclusive rectangle of tile indices at one zoom level.
type TileRange struct {
	Zoom int
	MinX int
	MaxX int
	MinY int
	MaxY int
}

// Count returns the number of tiles in the range.
func (r TileRange) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// TileRangeAt returns the tile rectangle covering the geographic bounding
// box bbox at the given zoom, clamped to the valid index range and widened
// by the full-width expansion heuristic.
func TileRangeAt(bbox BBox, zoom int) TileRange {
	n := int(1) << zoom
	r := TileRange{
		Zoom: zoom,
		MinX: clampTileIndex(lonToTileX(bbox.MinX, zoom), n),
		MaxX: clampTileIndex(lonToTileX(bbox.MaxX, zoom), n),
		MinY: clampTileIndex(latToTileY(bbox.MaxY, zoom), n),
		MaxY: clampTileIndex(latToTileY(bbox.MinY, zoom), n),
	}
	if r.MinX > r.MaxX {
		r.MinX, r.MaxX = r.MaxX, r.MinX
	}
	if r.MinY > r.MaxY {
		r.MinY, r.MaxY = r.MaxY, r.MinY
	}
	if r.MaxX-r.MinX < max(1, n/fullWidthDivisor) && bbox.MaxY-bbox.MinY > wideLatSpan {
		r.MinX = 0
		r.MaxX = n - 1
	}
	return r
}

// lonToTileX returns the tile column containing longitude lon at zoom z.
func lonToTileX(lon float64, z int) int {
	return int(math.Floor((lon + 180) / 360 * float64(int(1)<<z)))
}

// latToTileY returns the tile row containing latitude lat at zoom z.
// Non-finite latitude factors resolve to the pole-adjacent row.
func latToTileY(lat float64, z int) int {
	n := int(1) << z
	rad := clampLat(lat) * (math.Pi / 180)
	f := (1 - math.Asinh(math.Tan(rad))/math.Pi) / 2
	if math.IsNaN(f) {
		if lat > 0 {
			return 0
		}
		return n - 1
	}
	return int(math.Floor(f * float64(n)))
}

func clampTileIndex(i, n int) int {
	return max(0, min(i, n-1))
}
