// Command darkside-tiler renders a radiance GeoTIFF into a sparse XYZ tile
// pyramid under an output directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/Anthony-Fi/darkside"
)

func envInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			return v
		}
	}
	return fallback
}

func run() error {
	_ = godotenv.Load()

	input := flag.String("input", os.Getenv("DARKSIDE_INPUT"), "path to radiance GeoTIFF")
	output := flag.String("output", os.Getenv("DARKSIDE_OUTPUT"), "tile output directory")
	minZoom := flag.Int("min-zoom", envInt("DARKSIDE_MIN_ZOOM", 0), "minimum zoom level")
	maxZoom := flag.Int("max-zoom", envInt("DARKSIDE_MAX_ZOOM", 8), "maximum zoom level")
	skipExisting := flag.Bool("skip-existing", envBool("DARKSIDE_SKIP_EXISTING", false), "leave existing tiles untouched")
	skipEmpty := flag.Bool("skip-empty", envBool("DARKSIDE_SKIP_EMPTY", true), "omit fully transparent tiles")
	flag.Parse()

	if *input == "" || *output == "" {
		return errors.New("syntax: darkside-tiler -input radiance.tif -output tiles/")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	geoTIFF, err := darkside.OpenGeoTIFF(os.DirFS(filepath.Dir(*input)), filepath.Base(*input))
	if err != nil {
		return fmt.Errorf("open %s: %w", *input, err)
	}
	defer geoTIFF.Close()

	grid, err := geoTIFF.Grid()
	if err != nil {
		return fmt.Errorf("read %s: %w", *input, err)
	}

	scale, err := darkside.BuildColorScale(grid.Samples)
	if err != nil {
		logger.Warn("no usable samples, using fallback color scale", "err", err)
		scale = darkside.FallbackColorScale()
	}

	resolver := darkside.NewResolver(grid)
	rasterizer := darkside.NewRasterizer(grid, resolver, scale)
	writer := darkside.NewPyramidWriter(*output, rasterizer, resolver,
		darkside.WithLogger(logger),
	)

	summary, err := writer.Run(darkside.Config{
		MinZoom:      *minZoom,
		MaxZoom:      *maxZoom,
		SkipExisting: *skipExisting,
		SkipEmpty:    *skipEmpty,
	})
	if err != nil {
		return err
	}

	fmt.Printf("rendered %d, skipped %d existing, %d empty, failed %d\n",
		summary.Rendered, summary.SkippedExisting, summary.SkippedEmpty, summary.Failed)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
