package darkside

import (
	"math"
	"math/rand"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestBuildColorScale_UniformBreaks(t *testing.T) {
	// 5000 samples striding to exactly the values 1..100.
	samples := make([]float32, 5000)
	for i := range samples {
		samples[i] = float32(i/50%100 + 1)
	}

	scale, err := BuildColorScale(samples)
	assert.NoError(t, err)
	assert.Equal(t, [6]float64{20, 40, 60, 80, 90, 98}, scale.Breaks())
}

func TestBuildColorScale_SmallInput(t *testing.T) {
	// Fewer than 50 samples are scanned exhaustively.
	scale, err := BuildColorScale([]float32{5, 1, 3, 2, 4})
	assert.NoError(t, err)
	assert.Equal(t, [6]float64{1, 2, 3, 4, 4, 4}, scale.Breaks())
}

func TestBuildColorScale_IgnoresNoData(t *testing.T) {
	samples := []float32{0, -5, float32(math.NaN()), float32(math.Inf(1)), 7, 7, 7}
	scale, err := BuildColorScale(samples)
	assert.NoError(t, err)
	assert.Equal(t, 7.0, scale.Breaks()[0])
}

func TestBuildColorScale_NoSamples(t *testing.T) {
	_, err := BuildColorScale(make([]float32, 1000))
	assert.IsError(t, err, ErrNoSamples)
}

func TestColorScale_NoDataTransparent(t *testing.T) {
	scale, err := BuildColorScale([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	assert.NoError(t, err)
	for _, v := range []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.Equal(t, uint8(0), scale.Lookup(v).A)
	}
}

func TestColorScale_HighValuesWhite(t *testing.T) {
	scale, err := BuildColorScale([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	assert.NoError(t, err)
	white := scale.Lookup(10000)
	assert.Equal(t, rampColors[6], white)
	assert.Equal(t, uint8(255), white.R)
	assert.Equal(t, uint8(255), white.G)
	assert.Equal(t, uint8(255), white.B)
}

func TestColorScale_MonotonicIndex(t *testing.T) {
	scale, err := BuildColorScale([]float32{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7})
	assert.NoError(t, err)

	r := rand.New(rand.NewSource(0))
	for i := 0; i < 1000; i++ {
		v1 := r.Float64() * 20
		v2 := r.Float64() * 20
		if v1 > v2 {
			v1, v2 = v2, v1
		}
		if v1 <= 0 {
			continue
		}
		assert.True(t, scale.Index(v1) <= scale.Index(v2))
	}
}

func TestColorScale_AlphaMonotonic(t *testing.T) {
	for i := 1; i < len(rampColors); i++ {
		assert.True(t, rampColors[i-1].A < rampColors[i].A)
	}
}

func TestFallbackColorScale(t *testing.T) {
	scale := FallbackColorScale()

	breaks := scale.Breaks()
	assert.Equal(t, 1000.0, breaks[5])
	for i := 1; i < len(breaks); i++ {
		assert.True(t, breaks[i-1] < breaks[i])
	}

	// Linear green to red, alpha rising from 0.3 to 0.9.
	first := scale.Lookup(breaks[0])
	assert.Equal(t, uint8(0), first.R)
	assert.Equal(t, uint8(128), first.G)
	last := scale.Lookup(2000)
	assert.Equal(t, uint8(255), last.R)
	assert.Equal(t, uint8(0), last.G)
	for i := 1; i < 7; i++ {
		assert.True(t, scale.colors[i-1].A < scale.colors[i].A)
	}

	assert.Equal(t, uint8(0), scale.Lookup(0).A)
}
