package darkside

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
)

const webMercatorMax = 20037508.342789244

func TestResolver_GeographicBounds(t *testing.T) {
	for _, tc := range []struct {
		name     string
		grid     *Grid
		expected BBox
	}{
		{
			name:     "geographic_passthrough",
			grid:     &Grid{CRS: Geographic, Bounds: BBox{MinX: 20, MinY: 59, MaxX: 32, MaxY: 71}},
			expected: BBox{MinX: 20, MinY: 59, MaxX: 32, MaxY: 71},
		},
		{
			name:     "geographic_clamps_latitude",
			grid:     &Grid{CRS: Geographic, Bounds: BBox{MinX: 0, MinY: -90, MaxX: 20, MaxY: 90}},
			expected: BBox{MinX: 0, MinY: -maxMercatorLatitude, MaxX: 20, MaxY: maxMercatorLatitude},
		},
		{
			name: "webmercator_world",
			grid: &Grid{CRS: WebMercator, Bounds: BBox{
				MinX: -webMercatorMax, MinY: -webMercatorMax,
				MaxX: webMercatorMax, MaxY: webMercatorMax,
			}},
			expected: BBox{MinX: -180, MinY: -maxMercatorLatitude, MaxX: 180, MaxY: maxMercatorLatitude},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual := NewResolver(tc.grid).GeographicBounds()
			assert.True(t, math.Abs(actual.MinX-tc.expected.MinX) < 1e-6)
			assert.True(t, math.Abs(actual.MinY-tc.expected.MinY) < 1e-6)
			assert.True(t, math.Abs(actual.MaxX-tc.expected.MaxX) < 1e-6)
			assert.True(t, math.Abs(actual.MaxY-tc.expected.MaxY) < 1e-6)
		})
	}
}

func TestWidenDegenerate(t *testing.T) {
	fullWidth := func(b BBox) bool {
		return b.MinX == -180 && b.MaxX == 180
	}
	for _, tc := range []struct {
		name   string
		bbox   BBox
		widens bool
	}{
		{name: "pinned_positive_antimeridian", bbox: BBox{MinX: 179.995, MaxX: 180, MinY: 50, MaxY: 60}, widens: true},
		{name: "pinned_negative_antimeridian", bbox: BBox{MinX: -180, MaxX: -179.992, MinY: 50, MaxY: 60}, widens: true},
		{name: "dateline_straddle", bbox: BBox{MinX: 170, MaxX: -170, MinY: 50, MaxY: 60}, widens: true},
		{name: "collapsed_lon_wide_lat", bbox: BBox{MinX: 10, MaxX: 10.5, MinY: 40, MaxY: 60}, widens: true},
		{name: "normal_box", bbox: BBox{MinX: 20, MaxX: 32, MinY: 59, MaxY: 71}, widens: false},
		{name: "narrow_lon_narrow_lat", bbox: BBox{MinX: 10, MaxX: 10.5, MinY: 40, MaxY: 41}, widens: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			widened := widenDegenerate(tc.bbox)
			assert.Equal(t, tc.widens, fullWidth(widened))
			// Latitudes are never touched.
			assert.Equal(t, tc.bbox.MinY, widened.MinY)
			assert.Equal(t, tc.bbox.MaxY, widened.MaxY)
		})
	}
}

func TestNormalizeLon(t *testing.T) {
	for _, tc := range []struct {
		lon      float64
		expected float64
	}{
		{lon: 0, expected: 0},
		{lon: 180, expected: 180},
		{lon: -180, expected: -180},
		{lon: 190, expected: -170},
		{lon: -190, expected: 170},
		{lon: 360, expected: 0},
		{lon: 540, expected: -180},
	} {
		assert.True(t, math.Abs(normalizeLon(tc.lon)-tc.expected) < 1e-9)
	}
}

func TestResolver_RasterIndex_Geographic(t *testing.T) {
	grid := &Grid{
		Width:  100,
		Height: 50,
		CRS:    Geographic,
		Bounds: BBox{MinX: 20, MinY: 59, MaxX: 32, MaxY: 71},
	}
	resolver := NewResolver(grid)

	for _, tc := range []struct {
		lon, lat float64
		px, py   float64
	}{
		{lon: 20, lat: 71, px: 0, py: 0},
		{lon: 32, lat: 59, px: 100, py: 50},
		{lon: 26, lat: 65, px: 50, py: 25},
		// Out of range is allowed; callers treat it as no-data.
		{lon: 8, lat: 65, px: -100, py: 25},
	} {
		px, py := resolver.RasterIndex(tc.lon, tc.lat)
		assert.True(t, math.Abs(px-tc.px) < 1e-9)
		assert.True(t, math.Abs(py-tc.py) < 1e-9)
	}
}

func TestResolver_RasterIndex_WebMercator(t *testing.T) {
	grid := &Grid{
		Width:  100,
		Height: 100,
		CRS:    WebMercator,
		Bounds: BBox{
			MinX: -webMercatorMax, MinY: -webMercatorMax,
			MaxX: webMercatorMax, MaxY: webMercatorMax,
		},
	}
	resolver := NewResolver(grid)

	px, py := resolver.RasterIndex(0, 0)
	assert.True(t, math.Abs(px-50) < 1e-9)
	assert.True(t, math.Abs(py-50) < 1e-9)

	px, py = resolver.RasterIndex(-180, maxMercatorLatitude)
	assert.True(t, math.Abs(px-0) < 1e-6)
	assert.True(t, math.Abs(py-0) < 1e-6)
}

func TestMercatorInverse_RoundTrip(t *testing.T) {
	for _, lat := range []float64{-85, -45, 0, 30, 60, 85} {
		assert.True(t, math.Abs(mercatorToLat(latToMercator(lat))-lat) < 1e-9)
	}
	for _, lon := range []float64{-180, -90, 0, 90, 180} {
		assert.True(t, math.Abs(mercatorToLon(lonToMercator(lon))-lon) < 1e-9)
	}
}
