package darkside

import (
	"errors"
	"image/color"
	"math"
	"sort"
)

// ErrNoSamples is returned by BuildColorScale when the grid holds no
// positive finite values to derive quantiles from.
var ErrNoSamples = errors.New("no positive finite samples")

// rampColors is the fixed ordinal ramp, ascending radiance: dark green,
// green, yellow-green, gold, orange, red, white. Alpha rises monotonically
// from 0.35 to 0.95. The ordering is a design constant, not data-derived.
var rampColors = [7]color.NRGBA{
	{R: 0, G: 100, B: 0, A: 89},
	{R: 0, G: 128, B: 0, A: 115},
	{R: 154, G: 205, B: 50, A: 140},
	{R: 255, G: 215, B: 0, A: 166},
	{R: 255, G: 165, B: 0, A: 191},
	{R: 255, G: 0, B: 0, A: 217},
	{R: 255, G: 255, B: 255, A: 242},
}

// breakPercentiles are the quantiles at which the six break values are
// taken from the sorted sample set.
var breakPercentiles = [6]float64{0.20, 0.40, 0.60, 0.80, 0.90, 0.98}

// quantileSampleCap bounds how many values BuildColorScale collects from
// the grid; beyond it the stride grows instead.
const quantileSampleCap = 500000

// A ColorScale maps radiance values to ramp colors. Break i is the
// inclusive upper edge of color i; values above the last break take the
// last color. Values ≤0 or non-finite are no-data and map to transparent.
// A ColorScale is immutable and shared read-only across the whole run.
type ColorScale struct {
	breaks [6]float64
	colors [7]color.NRGBA
}

// Breaks returns the ascending break values.
func (s *ColorScale) Breaks() [6]float64 { return s.breaks }

// Lookup returns the ramp color for v. No-data values map to fully
// transparent black.
func (s *ColorScale) Lookup(v float64) color.NRGBA {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return color.NRGBA{}
	}
	for i, b := range s.breaks {
		if v <= b {
			return s.colors[i]
		}
	}
	return s.colors[len(s.colors)-1]
}

// Index returns the ordinal ramp index for a positive finite v. It is
// monotonic: v1 < v2 implies Index(v1) ≤ Index(v2).
func (s *ColorScale) Index(v float64) int {
	for i, b := range s.breaks {
		if v <= b {
			return i
		}
	}
	return len(s.colors) - 1
}

// BuildColorScale derives a quantile-based ColorScale from the grid
// samples. It strides over the band collecting positive finite values,
// sorts them, and places the six breaks at the fixed percentiles. It
// returns ErrNoSamples when nothing positive and finite was collected;
// callers should fall back to FallbackColorScale rather than abort.
func BuildColorScale(samples []float32) (*ColorScale, error) {
	total := len(samples)
	step := 1
	if total >= 50 {
		target := min(quantileSampleCap, total/50)
		step = max(1, total/target)
	}

	collected := make([]float64, 0, total/step+1)
	for i := 0; i < total; i += step {
		v := float64(samples[i])
		if v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			collected = append(collected, v)
		}
	}
	if len(collected) == 0 {
		return nil, ErrNoSamples
	}
	sort.Float64s(collected)

	s := &ColorScale{colors: rampColors}
	n := len(collected)
	for i, p := range breakPercentiles {
		s.breaks[i] = collected[int(math.Floor(p*float64(n-1)))]
	}
	return s, nil
}

// FallbackColorScale returns the deterministic scale used when the grid
// yields no usable samples: breaks evenly spaced over (0,1000] with a
// linear green→red ramp, alpha from 0.3 to 0.9.
func FallbackColorScale() *ColorScale {
	s := &ColorScale{}
	for i := range s.breaks {
		s.breaks[i] = 1000 * float64(i+1) / 6
	}
	for i := range s.colors {
		t := float64(i) / 6
		s.colors[i] = color.NRGBA{
			R: uint8(math.Round(255 * t)),
			G: uint8(math.Round(128 * (1 - t))),
			B: 0,
			A: uint8(math.Round(255 * (0.3 + 0.6*t))),
		}
	}
	return s
}
