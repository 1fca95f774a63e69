// Command darkside-sample prints the radiance at a geographic coordinate.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/Anthony-Fi/darkside"
)

func run() error {
	_ = godotenv.Load()

	input := flag.String("input", os.Getenv("DARKSIDE_INPUT"), "path to radiance GeoTIFF")
	flag.Parse()

	if *input == "" || flag.NArg() != 2 {
		return errors.New("syntax: darkside-sample -input radiance.tif latitude longitude")
	}
	lat, err := strconv.ParseFloat(flag.Arg(0), 64)
	if err != nil {
		return err
	}
	lon, err := strconv.ParseFloat(flag.Arg(1), 64)
	if err != nil {
		return err
	}

	geoTIFF, err := darkside.OpenGeoTIFF(os.DirFS(filepath.Dir(*input)), filepath.Base(*input))
	if err != nil {
		return fmt.Errorf("open %s: %w", *input, err)
	}
	defer geoTIFF.Close()

	resolver := darkside.NewResolver(&darkside.Grid{
		Width:  geoTIFF.Width(),
		Height: geoTIFF.Height(),
		Bounds: geoTIFF.Bounds(),
		CRS:    geoTIFF.CRS(),
	})
	px, py := resolver.RasterIndex(lon, lat)
	radiance, err := geoTIFF.Sample(int(math.Floor(px)), int(math.Floor(py)))
	if err != nil {
		return err
	}
	fmt.Println(radiance)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
