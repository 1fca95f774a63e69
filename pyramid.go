package darkside

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tilesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "darkside_tiles_rendered_total",
		Help: "The total number of tiles rendered and written",
	})
	tilesSkippedExisting = promauto.NewCounter(prometheus.CounterOpts{
		Name: "darkside_tiles_skipped_existing_total",
		Help: "The total number of tiles skipped because the output file already existed",
	})
	tilesSkippedEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "darkside_tiles_skipped_empty_total",
		Help: "The total number of fully transparent tiles omitted from the output tree",
	})
	tilesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "darkside_tiles_failed_total",
		Help: "The total number of tiles that failed to encode or write",
	})
)

const (
	minZoomLimit = 0
	maxZoomLimit = 22
)

// A Config controls one pyramid run.
type Config struct {
	// MinZoom and MaxZoom bound the zoom levels rendered, inclusive. They
	// are clamped to [0,22] and swapped when inverted. Defaults 0 and 8.
	MinZoom int
	MaxZoom int
	// SkipExisting leaves tiles whose output file already exists untouched,
	// making a partial run resumable at tile granularity. A tile written
	// under an earlier color scale is not invalidated: re-quantizing on new
	// data requires a run without SkipExisting.
	SkipExisting bool
	// SkipEmpty omits fully transparent tiles from the tree and removes any
	// stale file left at their coordinate by a previous run. Default true.
	SkipEmpty bool
}

// DefaultConfig returns the default run configuration.
func DefaultConfig() Config {
	return Config{MinZoom: 0, MaxZoom: 8, SkipEmpty: true}
}

// normalize clamps the zoom range and swaps it when inverted.
func (c Config) normalize() Config {
	clamp := func(z int) int {
		return max(minZoomLimit, min(z, maxZoomLimit))
	}
	c.MinZoom = clamp(c.MinZoom)
	c.MaxZoom = clamp(c.MaxZoom)
	if c.MinZoom > c.MaxZoom {
		c.MinZoom, c.MaxZoom = c.MaxZoom, c.MinZoom
	}
	return c
}

// A TileStatus is the per-tile outcome of a pyramid run.
type TileStatus int

const (
	TileRendered TileStatus = iota
	TileSkippedExisting
	TileSkippedEmpty
	TileFailed
)

// A Summary aggregates per-tile outcomes over a whole run, so failures are
// observable by the caller instead of only appearing in the log.
type Summary struct {
	Rendered        int
	SkippedExisting int
	SkippedEmpty    int
	Failed          int
	SkippedZooms    []int
}

func (s *Summary) record(status TileStatus) {
	switch status {
	case TileRendered:
		s.Rendered++
		tilesRendered.Inc()
	case TileSkippedExisting:
		s.SkippedExisting++
		tilesSkippedExisting.Inc()
	case TileSkippedEmpty:
		s.SkippedEmpty++
		tilesSkippedEmpty.Inc()
	case TileFailed:
		s.Failed++
		tilesFailed.Inc()
	}
}

// An EncodeFunc encodes a rendered tile image. It defaults to png.Encode.
type EncodeFunc func(w io.Writer, img image.Image) error

// A PyramidWriter walks all zooms and tiles of a run, applies the skip
// policies, and persists the sparse {root}/{z}/{x}/{y}.png tree. Tiles are
// resolved one at a time; the tree left behind by an interrupted run is a
// valid partial pyramid that a SkipExisting run completes.
type PyramidWriter struct {
	root       string
	rasterizer *Rasterizer
	resolver   *Resolver
	encode     EncodeFunc
	logger     *slog.Logger
}

// A PyramidWriterOption sets an option on a PyramidWriter.
type PyramidWriterOption func(*PyramidWriter)

// NewPyramidWriter returns a PyramidWriter writing tiles rendered by
// rasterizer under root.
func NewPyramidWriter(root string, rasterizer *Rasterizer, resolver *Resolver, options ...PyramidWriterOption) *PyramidWriter {
	w := &PyramidWriter{
		root:       root,
		rasterizer: rasterizer,
		resolver:   resolver,
		encode:     func(out io.Writer, img image.Image) error { return png.Encode(out, img) },
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(w)
	}
	return w
}

func WithEncodeFunc(encode EncodeFunc) PyramidWriterOption {
	return func(w *PyramidWriter) {
		w.encode = encode
	}
}

func WithLogger(logger *slog.Logger) PyramidWriterOption {
	return func(w *PyramidWriter) {
		w.logger = logger
	}
}

// Run renders the pyramid described by config. A failure to encode or
// write a single tile is logged, counted, and skipped; the rest of the
// batch continues. Re-running with SkipExisting only fills gaps.
func (w *PyramidWriter) Run(config Config) (*Summary, error) {
	config = config.normalize()
	bounds := w.resolver.GeographicBounds()
	summary := &Summary{}

	for zoom := config.MinZoom; zoom <= config.MaxZoom; zoom++ {
		if !bounds.IsFinite() {
			summary.SkippedZooms = append(summary.SkippedZooms, zoom)
			w.logger.Warn("skipping zoom, non-finite bounds", "zoom", zoom)
			continue
		}
		tileRange := TileRangeAt(bounds, zoom)
		if degenerateRange(tileRange, bounds) {
			summary.SkippedZooms = append(summary.SkippedZooms, zoom)
			w.logger.Warn("skipping zoom, degenerate tile range", "zoom", zoom)
			continue
		}
		w.logger.Info("rendering zoom level",
			"zoom", zoom,
			"tiles", tileRange.Count(),
			"xRange", [2]int{tileRange.MinX, tileRange.MaxX},
			"yRange", [2]int{tileRange.MinY, tileRange.MaxY},
		)
		for x := tileRange.MinX; x <= tileRange.MaxX; x++ {
			for y := tileRange.MinY; y <= tileRange.MaxY; y++ {
				status := w.writeTile(TileCoord{Z: zoom, X: x, Y: y}, config)
				summary.record(status)
			}
		}
	}
	return summary, nil
}

// degenerateRange reports whether tileRange is the single [0,0] rectangle
// produced by collapsed input bounds rather than by a legitimately tiny
// extent. Zoom 0's only tile is [0,0], so the zoom itself exempts it.
func degenerateRange(tileRange TileRange, bounds BBox) bool {
	if tileRange.Zoom == 0 {
		return false
	}
	single := tileRange.MinX == 0 && tileRange.MaxX == 0 && tileRange.MinY == 0 && tileRange.MaxY == 0
	return single && (bounds.MaxX <= bounds.MinX || bounds.MaxY <= bounds.MinY)
}

// writeTile resolves one tile end to end.
func (w *PyramidWriter) writeTile(coord TileCoord, config Config) TileStatus {
	path := w.tilePath(coord)

	if config.SkipExisting {
		if _, err := os.Stat(path); err == nil {
			return TileSkippedExisting
		}
	}

	tile := w.rasterizer.Render(coord)

	if config.SkipEmpty && !tile.AnyOpaque {
		// Remove a stale non-empty tile from a previous run so the sparse
		// contract (no file means transparent) stays truthful.
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Error("removing stale empty tile", "tile", coord, "err", err)
			return TileFailed
		}
		return TileSkippedEmpty
	}

	if err := w.persist(path, tile); err != nil {
		w.logger.Error("writing tile", "tile", coord, "err", err)
		return TileFailed
	}
	return TileRendered
}

func (w *PyramidWriter) persist(path string, tile *GeneratedTile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := w.encode(file, tile.Image); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("encode %d/%d/%d: %w", tile.Coord.Z, tile.Coord.X, tile.Coord.Y, err)
	}
	return file.Close()
}

// tilePath returns {root}/{z}/{x}/{y}.png.
func (w *PyramidWriter) tilePath(coord TileCoord) string {
	return filepath.Join(w.root,
		strconv.Itoa(coord.Z),
		strconv.Itoa(coord.X),
		strconv.Itoa(coord.Y)+".png",
	)
}
