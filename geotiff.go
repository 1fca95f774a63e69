package darkside

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/tiff/lzw"
)

var errShortRead = errors.New("short read")

// geokey identifiers used to resolve the source CRS.
const (
	geoKeyGTModelType  = 1024
	geoKeyProjectedCRS = 3072

	modelTypeProjected = 1

	epsgWebMercator = 3857
)

// A GeoTIFF is an open single-band radiance raster: tiled, LZW-compressed,
// 32-bit float samples, georeferenced by a pixel scale and a top-left
// tiepoint. Decoded blocks are held in an LRU cache so point queries do
// not keep the whole band resident; Grid assembles the resident band for a
// pyramid run.
type GeoTIFF struct {
	file         *os.File
	width        int
	height       int
	blockWidth   int
	blockHeight  int
	blocksAcross int
	blocksDown   int
	blockOffsets []uint64
	blockCounts  []uint64
	blockSamples int
	blockBytes   int
	noData       float32
	hasNoData    bool
	bounds       BBox
	crs          CRSKind
	blockCache   *lru.Cache[blockCoord, []float32]
	cacheSize    int
}

type blockCoord struct {
	c int
	r int
}

// A GeoTIFFOption sets an option on a GeoTIFF.
type GeoTIFFOption func(*GeoTIFF)

// WithBlockCacheSize sets how many decoded blocks the cache holds.
func WithBlockCacheSize(blocks int) GeoTIFFOption {
	return func(g *GeoTIFF) {
		g.cacheSize = blocks
	}
}

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal
// an IFD.
type geoTIFFIFD struct {
	ImageWidth                uint16    `tiff:"field,tag=256"`
	ImageLength               uint16    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// OpenGeoTIFF opens filename in fsys and reads its structure. The sample
// data itself is read lazily. Unsupported layouts return
// errors.ErrUnsupported; a missing file surfaces as fs.ErrNotExist so
// callers can treat it as the fatal input-unavailable class.
func OpenGeoTIFF(fsys fs.FS, filename string, options ...GeoTIFFOption) (*GeoTIFF, error) {
	g := &GeoTIFF{
		crs:       Geographic,
		cacheSize: 64,
	}
	for _, option := range options {
		option(g)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	osFile, isOSFile := file.(*os.File)
	if !isOSFile {
		_ = file.Close()
		return nil, errors.ErrUnsupported
	}
	g.file = osFile
	ok := false
	defer func() {
		if !ok {
			_ = g.file.Close()
		}
	}()

	tiffTIFF, err := tiff.Parse(g.file, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}
	if len(tiffTIFF.IFDs()) != 1 {
		return nil, fmt.Errorf("found %d IFDs, expected 1", len(tiffTIFF.IFDs()))
	}
	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	if ifd.BitsPerSample != 32 ||
		ifd.Compression != 5 ||
		ifd.SamplesPerPixel != 1 ||
		(ifd.PlanarConfiguration != 0 && ifd.PlanarConfiguration != 1) ||
		(ifd.Predictor != 0 && ifd.Predictor != 1) ||
		ifd.SampleFormat != 3 ||
		ifd.TileWidth == 0 || ifd.TileLength == 0 {
		return nil, errors.ErrUnsupported
	}

	g.width = int(ifd.ImageWidth)
	g.height = int(ifd.ImageLength)
	g.blockWidth = int(ifd.TileWidth)
	g.blockHeight = int(ifd.TileLength)
	g.blocksAcross = (g.width + g.blockWidth - 1) / g.blockWidth
	g.blocksDown = (g.height + g.blockHeight - 1) / g.blockHeight
	blocksPerImage := g.blocksAcross * g.blocksDown
	if len(ifd.TileByteCounts) != blocksPerImage || len(ifd.TileOffsets) != blocksPerImage {
		return nil, errors.New("incorrect number of tile byte counts or offsets")
	}
	g.blockOffsets = ifd.TileOffsets
	g.blockCounts = ifd.TileByteCounts
	g.blockSamples = g.blockWidth * g.blockHeight
	g.blockBytes = g.blockSamples * 4

	if nd := strings.TrimSpace(ifd.GDALNoData); nd != "" {
		noData, err := strconv.ParseFloat(nd, 64)
		if err == nil {
			g.noData = float32(noData)
			g.hasNoData = true
		}
	}

	bounds, err := georeference(ifd.ModelPixelScaleTag, ifd.ModelTiepointTag, g.width, g.height)
	if err != nil {
		return nil, err
	}
	g.bounds = bounds
	g.crs = resolveCRS(ifd.GeoKeyDirectoryTag)

	g.blockCache, err = lru.New[blockCoord, []float32](g.cacheSize)
	if err != nil {
		return nil, err
	}

	ok = true
	return g, nil
}

// georeference derives the native bounding box from the pixel scale and
// the top-left tiepoint.
func georeference(pixelScale, tiepoint []float64, width, height int) (BBox, error) {
	if len(pixelScale) != 3 || len(tiepoint) != 6 {
		return BBox{}, errors.ErrUnsupported
	}
	if tiepoint[0] != 0 || tiepoint[1] != 0 {
		return BBox{}, errors.ErrUnsupported
	}
	scaleX, scaleY := pixelScale[0], pixelScale[1]
	if scaleX <= 0 || scaleY <= 0 {
		return BBox{}, errors.ErrUnsupported
	}
	originX, originY := tiepoint[3], tiepoint[4]
	return BBox{
		MinX: originX,
		MaxY: originY,
		MaxX: originX + scaleX*float64(width),
		MinY: originY - scaleY*float64(height),
	}, nil
}

// resolveCRS detects the source CRS from the geokey directory. Only
// geographic WGS84 and spherical Web Mercator are distinguished; anything
// undetermined defaults to Geographic.
func resolveCRS(directory []uint16) CRSKind {
	if len(directory) < 4 || directory[0] != 1 {
		return Geographic
	}
	numberOfKeys := int(directory[3])
	if len(directory) < 4+4*numberOfKeys {
		return Geographic
	}
	keys := make(map[int]int, numberOfKeys)
	for i := 0; i < numberOfKeys; i++ {
		entry := directory[4+4*i : 4+4*(i+1)]
		// Location 0 means the value is stored inline in the directory.
		if entry[1] == 0 && entry[2] == 1 {
			keys[int(entry[0])] = int(entry[3])
		}
	}
	if keys[geoKeyGTModelType] == modelTypeProjected && keys[geoKeyProjectedCRS] == epsgWebMercator {
		return WebMercator
	}
	return Geographic
}

func (g *GeoTIFF) Close() error {
	return g.file.Close()
}

// Width returns the raster width in pixels.
func (g *GeoTIFF) Width() int { return g.width }

// Height returns the raster height in pixels.
func (g *GeoTIFF) Height() int { return g.height }

// Bounds returns the native bounding box.
func (g *GeoTIFF) Bounds() BBox { return g.bounds }

// CRS returns the resolved coordinate reference system.
func (g *GeoTIFF) CRS() CRSKind { return g.crs }

// Sample returns the sample at pixel (x, y), reading and caching the
// containing block on demand. Out-of-range pixels and no-data sentinels
// resolve to 0.
func (g *GeoTIFF) Sample(x, y int) (float64, error) {
	if x < 0 || g.width <= x || y < 0 || g.height <= y {
		return 0, nil
	}
	block := blockCoord{c: x / g.blockWidth, r: y / g.blockHeight}
	samples, err := g.blockSamplesCached(block)
	if err != nil {
		return 0, err
	}
	return g.sampleValue(samples[(y%g.blockHeight)*g.blockWidth+x%g.blockWidth]), nil
}

// Grid reads every block and assembles the fully resident grid used by a
// pyramid run. No-data sentinels become 0.
func (g *GeoTIFF) Grid() (*Grid, error) {
	samples := make([]float32, g.width*g.height)
	for r := 0; r < g.blocksDown; r++ {
		for c := 0; c < g.blocksAcross; c++ {
			blockSamples, err := g.blockSamplesCached(blockCoord{c: c, r: r})
			if err != nil {
				return nil, err
			}
			for by := 0; by < g.blockHeight; by++ {
				y := r*g.blockHeight + by
				if y >= g.height {
					break
				}
				rowWidth := min(g.blockWidth, g.width-c*g.blockWidth)
				for bx := 0; bx < rowWidth; bx++ {
					x := c*g.blockWidth + bx
					samples[y*g.width+x] = float32(g.sampleValue(blockSamples[by*g.blockWidth+bx]))
				}
			}
		}
	}
	return &Grid{
		Width:   g.width,
		Height:  g.height,
		Bounds:  g.bounds,
		CRS:     g.crs,
		Samples: samples,
	}, nil
}

// sampleValue maps the no-data sentinel and non-finite samples to 0.
func (g *GeoTIFF) sampleValue(s float32) float64 {
	if g.hasNoData && s == g.noData {
		return 0
	}
	v := float64(s)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (g *GeoTIFF) blockSamplesCached(block blockCoord) ([]float32, error) {
	if samples, ok := g.blockCache.Get(block); ok {
		return samples, nil
	}
	samples, err := g.readBlock(block)
	if err != nil {
		return nil, err
	}
	g.blockCache.Add(block, samples)
	return samples, nil
}

// readBlock reads, decompresses and decodes one block.
func (g *GeoTIFF) readBlock(block blockCoord) ([]float32, error) {
	index := block.c + g.blocksAcross*block.r
	count := g.blockCounts[index]
	offset := g.blockOffsets[index]
	compressed := make([]byte, count)
	switch n, err := g.file.ReadAt(compressed, int64(offset)); {
	case err != nil:
		return nil, err
	case n != int(count):
		return nil, errShortRead
	}

	data := make([]byte, g.blockBytes)
	r := lzw.NewReader(bytes.NewReader(compressed), lzw.MSB, 8)
	for bytesRead := 0; bytesRead < g.blockBytes; {
		n, err := r.Read(data[bytesRead:])
		if err != nil {
			return nil, err
		}
		bytesRead += n
	}

	samples := make([]float32, g.blockSamples)
	for i := 0; i < g.blockSamples; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return samples, nil
}
