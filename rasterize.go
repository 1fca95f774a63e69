package darkside

import (
	"image"
	"math"
)

// A GeneratedTile is the transient result of rendering one tile: the pixel
// buffer and whether any pixel came out non-transparent. It is owned by the
// caller until persisted or discarded.
type GeneratedTile struct {
	Coord     TileCoord
	Image     *image.NRGBA
	AnyOpaque bool
}

// A Rasterizer renders single output tiles from a grid. The grid, resolver
// and scale are read-only, so one Rasterizer may be shared by concurrent
// renders.
type Rasterizer struct {
	grid     *Grid
	resolver *Resolver
	scale    *ColorScale
}

// NewRasterizer returns a Rasterizer rendering grid through scale.
func NewRasterizer(grid *Grid, resolver *Resolver, scale *ColorScale) *Rasterizer {
	return &Rasterizer{
		grid:     grid,
		resolver: resolver,
		scale:    scale,
	}
}

// Render produces the TileSize×TileSize RGBA buffer for coord. Each output
// pixel's (lon,lat) is interpolated at the pixel center between the tile's
// geographic edges and inverse-mapped to the nearest grid sample. Nearest
// neighbor is deliberate: interpolation would soften hard radiance
// thresholds and blend no-data into data at region edges. Out-of-bounds
// samples read as no-data.
func (r *Rasterizer) Render(coord TileCoord) *GeneratedTile {
	bounds := coord.GeographicBounds()
	img := image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize))
	tile := &GeneratedTile{Coord: coord, Image: img}

	for py := 0; py < TileSize; py++ {
		lat := bounds.MaxY + (bounds.MinY-bounds.MaxY)*(float64(py)+0.5)/TileSize
		for px := 0; px < TileSize; px++ {
			lon := bounds.MinX + (bounds.MaxX-bounds.MinX)*(float64(px)+0.5)/TileSize
			gx, gy := r.resolver.RasterIndex(lon, lat)
			v := r.grid.Sample(floorIndex(gx), floorIndex(gy))
			c := r.scale.Lookup(v)
			i := img.PixOffset(px, py)
			img.Pix[i+0] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
			if c.A > 0 {
				tile.AnyOpaque = true
			}
		}
	}
	return tile
}

// floorIndex converts a fractional pixel position to a grid index,
// mapping non-finite positions out of range.
func floorIndex(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return -1
	}
	return int(math.Floor(f))
}
