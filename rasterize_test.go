package darkside

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

// uniformGrid returns a width×height geographic grid over bounds with
// every sample set to v.
func uniformGrid(width, height int, bounds BBox, v float32) *Grid {
	samples := make([]float32, width*height)
	for i := range samples {
		samples[i] = v
	}
	return &Grid{
		Width:   width,
		Height:  height,
		Bounds:  bounds,
		CRS:     Geographic,
		Samples: samples,
	}
}

func testScale(t *testing.T) *ColorScale {
	t.Helper()
	scale, err := BuildColorScale([]float32{1, 2, 3, 4, 5, 6})
	assert.NoError(t, err)
	return scale
}

func TestRasterizer_Render(t *testing.T) {
	grid := uniformGrid(10, 10, BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, 100)
	rasterizer := NewRasterizer(grid, NewResolver(grid), testScale(t))

	// Zoom 2 tile (2,1) spans lon [0,90], lat [0,66.5]; the grid covers
	// its south-west corner.
	tile := rasterizer.Render(TileCoord{Z: 2, X: 2, Y: 1})
	assert.True(t, tile.AnyOpaque)
	assert.Equal(t, TileSize, tile.Image.Rect.Dx())
	assert.Equal(t, TileSize, tile.Image.Rect.Dy())

	// A pixel inside the grid takes the top ramp color (100 exceeds every
	// break of the 1..6 scale).
	inside := tile.Image.NRGBAAt(5, 240)
	assert.Equal(t, rampColors[6], inside)

	// A pixel outside the grid is transparent no-data.
	outside := tile.Image.NRGBAAt(200, 100)
	assert.Equal(t, uint8(0), outside.A)
}

func TestRasterizer_Render_OutsideGrid(t *testing.T) {
	grid := uniformGrid(10, 10, BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, 100)
	rasterizer := NewRasterizer(grid, NewResolver(grid), testScale(t))

	// Zoom 2 tile (0,0) is the opposite side of the world.
	tile := rasterizer.Render(TileCoord{Z: 2, X: 0, Y: 0})
	assert.False(t, tile.AnyOpaque)
	for _, p := range tile.Image.Pix {
		assert.Equal(t, uint8(0), p)
	}
}

func TestRasterizer_Render_NoDataGrid(t *testing.T) {
	grid := uniformGrid(10, 10, BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, 0)
	rasterizer := NewRasterizer(grid, NewResolver(grid), testScale(t))

	tile := rasterizer.Render(TileCoord{Z: 2, X: 2, Y: 1})
	assert.False(t, tile.AnyOpaque)
}

func TestRasterizer_Render_WebMercatorGrid(t *testing.T) {
	grid := uniformGrid(64, 64, BBox{
		MinX: -webMercatorMax, MinY: -webMercatorMax,
		MaxX: webMercatorMax, MaxY: webMercatorMax,
	}, 100)
	grid.CRS = WebMercator
	rasterizer := NewRasterizer(grid, NewResolver(grid), testScale(t))

	// The grid covers the whole world, so the zoom 0 tile is fully opaque.
	tile := rasterizer.Render(TileCoord{Z: 0, X: 0, Y: 0})
	assert.True(t, tile.AnyOpaque)
	for i := 3; i < len(tile.Image.Pix); i += 4 {
		assert.Equal(t, rampColors[6].A, tile.Image.Pix[i])
	}
}
