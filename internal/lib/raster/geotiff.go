package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	tifflzw "golang.org/x/image/tiff/lzw"
)

// TIFF tags we consume. Anything else in the file is ignored.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionDeflateOld = 32946
	sampleFormatUint      = 1
	sampleFormatInt       = 2
	sampleFormatFloat     = 3
	geoKeyGeographicType  = 2048
	geoKeyProjectedCSType = 3072
)

// GeoTIFFOptions supplies georeferencing fallbacks for layers whose files
// omit a CRS code. The Solar API georeferences layers in the local UTM zone,
// so the request longitude is enough to recover it.
type GeoTIFFOptions struct {
	FallbackZone     int
	FallbackSouthern bool
}

// DecodeGeoTIFF decodes a Solar API layer file into an in-memory Grid with a
// WGS84 extent. It handles the containers those layers actually ship in:
// striped or tiled, chunky planar layout, uncompressed, deflate or LZW, with
// unsigned, signed or floating point samples.
func DecodeGeoTIFF(data []byte, opts GeoTIFFOptions) (*Grid, error) {
	d, err := newTIFFReader(data)
	if err != nil {
		return nil, err
	}

	width := int(d.uintVal(tagImageWidth, 0))
	height := int(d.uintVal(tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster dimensions %dx%d", width, height)
	}

	spp := int(d.uintVal(tagSamplesPerPixel, 1))
	bits := int(d.uintVal(tagBitsPerSample, 8))
	format := int(d.uintVal(tagSampleFormat, sampleFormatUint))
	if planar := d.uintVal(tagPlanarConfig, 1); planar != 1 {
		return nil, fmt.Errorf("unsupported planar configuration %d", planar)
	}
	if predictor := d.uintVal(tagPredictor, 1); predictor != 1 {
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}
	switch bits {
	case 8, 16, 32, 64:
	default:
		return nil, fmt.Errorf("unsupported sample depth %d bits", bits)
	}

	bands := make([][]float64, spp)
	for i := range bands {
		bands[i] = make([]float64, width*height)
	}

	if d.has(tagTileOffsets) {
		err = d.readTiles(bands, width, height, spp, bits, format)
	} else {
		err = d.readStrips(bands, width, height, spp, bits, format)
	}
	if err != nil {
		return nil, err
	}

	bound, err := d.bound(width, height, opts)
	if err != nil {
		return nil, err
	}

	return NewGrid(width, height, bands, d.noDataValue(), bound)
}

// tiffReader holds a parsed IFD plus the raw file
type tiffReader struct {
	data  []byte
	order binary.ByteOrder
	tags  map[uint16]tiffTag
}

type tiffTag struct {
	typ   uint16
	count uint32
	value []byte
}

func newTIFFReader(data []byte) (*tiffReader, error) {
	if len(data) < 8 {
		return nil, errors.New("truncated TIFF header")
	}

	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, errors.New("not a TIFF file")
	}
	if magic := order.Uint16(data[2:4]); magic != 42 {
		return nil, fmt.Errorf("unsupported TIFF variant (magic %d)", magic)
	}

	ifdOffset := order.Uint32(data[4:8])
	if int64(ifdOffset)+2 > int64(len(data)) {
		return nil, errors.New("IFD offset out of range")
	}

	count := int(order.Uint16(data[ifdOffset : ifdOffset+2]))
	entriesEnd := int64(ifdOffset) + 2 + int64(count)*12
	if entriesEnd > int64(len(data)) {
		return nil, errors.New("truncated IFD")
	}

	d := &tiffReader{data: data, order: order, tags: make(map[uint16]tiffTag, count)}
	for i := 0; i < count; i++ {
		entry := data[int(ifdOffset)+2+i*12:]
		tag := order.Uint16(entry[0:2])
		typ := order.Uint16(entry[2:4])
		n := order.Uint32(entry[4:8])

		size := typeSize(typ)
		if size == 0 {
			continue
		}
		total := int64(size) * int64(n)

		var value []byte
		if total <= 4 {
			value = entry[8 : 8+total]
		} else {
			offset := int64(order.Uint32(entry[8:12]))
			if offset+total > int64(len(data)) {
				return nil, fmt.Errorf("tag %d value out of range", tag)
			}
			value = data[offset : offset+total]
		}
		d.tags[tag] = tiffTag{typ: typ, count: n, value: value}
	}

	return d, nil
}

func typeSize(typ uint16) int {
	switch typ {
	case 1, 2, 6, 7: // byte, ascii, sbyte, undefined
		return 1
	case 3, 8: // short, sshort
		return 2
	case 4, 9, 11: // long, slong, float
		return 4
	case 5, 10, 12: // rational, srational, double
		return 8
	default:
		return 0
	}
}

func (d *tiffReader) has(tag uint16) bool {
	_, ok := d.tags[tag]
	return ok
}

// uintVal returns the first integer value of a tag, or def when absent
func (d *tiffReader) uintVal(tag uint16, def uint64) uint64 {
	vals := d.uintVals(tag)
	if len(vals) == 0 {
		return def
	}
	return vals[0]
}

// uintVals returns all integer values of a tag
func (d *tiffReader) uintVals(tag uint16) []uint64 {
	t, ok := d.tags[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, t.count)
	for i := uint32(0); i < t.count; i++ {
		switch t.typ {
		case 1, 6:
			out = append(out, uint64(t.value[i]))
		case 3, 8:
			out = append(out, uint64(d.order.Uint16(t.value[i*2:])))
		case 4, 9:
			out = append(out, uint64(d.order.Uint32(t.value[i*4:])))
		default:
			return nil
		}
	}
	return out
}

// doubleVals returns all values of a DOUBLE tag
func (d *tiffReader) doubleVals(tag uint16) []float64 {
	t, ok := d.tags[tag]
	if !ok || t.typ != 12 {
		return nil
	}
	out := make([]float64, 0, t.count)
	for i := uint32(0); i < t.count; i++ {
		out = append(out, math.Float64frombits(d.order.Uint64(t.value[i*8:])))
	}
	return out
}

// asciiVal returns an ASCII tag value with the trailing NUL stripped
func (d *tiffReader) asciiVal(tag uint16) string {
	t, ok := d.tags[tag]
	if !ok || t.typ != 2 {
		return ""
	}
	return strings.TrimRight(string(t.value), "\x00 ")
}

func (d *tiffReader) noDataValue() float64 {
	if s := d.asciiVal(tagGDALNoData); s != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	// A value no real sample takes
	return math.Inf(-1)
}

// segment decompresses one strip or tile
func (d *tiffReader) segment(offset, count uint64) ([]byte, error) {
	if offset+count > uint64(len(d.data)) {
		return nil, errors.New("strip or tile out of range")
	}
	raw := d.data[offset : offset+count]

	switch d.uintVal(tagCompression, compressionNone) {
	case compressionNone:
		return raw, nil
	case compressionDeflate, compressionDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("bad deflate stream: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case compressionLZW:
		lr := tifflzw.NewReader(bytes.NewReader(raw), tifflzw.MSB, 8)
		defer lr.Close()
		return io.ReadAll(lr)
	default:
		return nil, fmt.Errorf("unsupported compression %d", d.uintVal(tagCompression, 0))
	}
}

func (d *tiffReader) readStrips(bands [][]float64, width, height, spp, bits, format int) error {
	offsets := d.uintVals(tagStripOffsets)
	counts := d.uintVals(tagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return errors.New("missing strip layout")
	}
	rowsPerStrip := int(d.uintVal(tagRowsPerStrip, uint64(height)))
	if rowsPerStrip <= 0 {
		rowsPerStrip = height
	}

	bytesPerSample := bits / 8
	for i := range offsets {
		buf, err := d.segment(offsets[i], counts[i])
		if err != nil {
			return err
		}

		firstRow := i * rowsPerStrip
		lastRow := firstRow + rowsPerStrip
		if lastRow > height {
			lastRow = height
		}
		needed := (lastRow - firstRow) * width * spp * bytesPerSample
		if len(buf) < needed {
			return fmt.Errorf("strip %d holds %d bytes, want %d", i, len(buf), needed)
		}

		pos := 0
		for y := firstRow; y < lastRow; y++ {
			for x := 0; x < width; x++ {
				for s := 0; s < spp; s++ {
					bands[s][y*width+x] = d.sampleAt(buf, pos, bits, format)
					pos += bytesPerSample
				}
			}
		}
	}
	return nil
}

func (d *tiffReader) readTiles(bands [][]float64, width, height, spp, bits, format int) error {
	offsets := d.uintVals(tagTileOffsets)
	counts := d.uintVals(tagTileByteCounts)
	tileW := int(d.uintVal(tagTileWidth, 0))
	tileH := int(d.uintVal(tagTileLength, 0))
	if tileW <= 0 || tileH <= 0 || len(offsets) == 0 || len(offsets) != len(counts) {
		return errors.New("missing tile layout")
	}

	tilesAcross := (width + tileW - 1) / tileW
	bytesPerSample := bits / 8

	for i := range offsets {
		buf, err := d.segment(offsets[i], counts[i])
		if err != nil {
			return err
		}
		if len(buf) < tileW*tileH*spp*bytesPerSample {
			return fmt.Errorf("tile %d truncated", i)
		}

		originX := (i % tilesAcross) * tileW
		originY := (i / tilesAcross) * tileH
		for ty := 0; ty < tileH; ty++ {
			y := originY + ty
			if y >= height {
				break
			}
			for tx := 0; tx < tileW; tx++ {
				x := originX + tx
				if x >= width {
					continue
				}
				pos := (ty*tileW + tx) * spp * bytesPerSample
				for s := 0; s < spp; s++ {
					bands[s][y*width+x] = d.sampleAt(buf, pos+s*bytesPerSample, bits, format)
				}
			}
		}
	}
	return nil
}

// sampleAt decodes one sample from a decompressed segment
func (d *tiffReader) sampleAt(buf []byte, pos, bits, format int) float64 {
	switch bits {
	case 8:
		if format == sampleFormatInt {
			return float64(int8(buf[pos]))
		}
		return float64(buf[pos])
	case 16:
		v := d.order.Uint16(buf[pos:])
		if format == sampleFormatInt {
			return float64(int16(v))
		}
		return float64(v)
	case 32:
		v := d.order.Uint32(buf[pos:])
		switch format {
		case sampleFormatFloat:
			return float64(math.Float32frombits(v))
		case sampleFormatInt:
			return float64(int32(v))
		default:
			return float64(v)
		}
	case 64:
		v := d.order.Uint64(buf[pos:])
		if format == sampleFormatFloat {
			return math.Float64frombits(v)
		}
		return float64(v)
	}
	return 0
}

// bound derives the WGS84 extent from the file's georeferencing. Projected
// files carry an EPSG code in the geo key directory; when it is missing the
// fallback zone from the options applies.
func (d *tiffReader) bound(width, height int, opts GeoTIFFOptions) (orb.Bound, error) {
	scale := d.doubleVals(tagModelPixelScale)
	tiepoint := d.doubleVals(tagModelTiepoint)
	if len(scale) < 2 || len(tiepoint) < 6 {
		return orb.Bound{}, errors.New("missing georeferencing tags")
	}

	// Tiepoint maps raster (i, j) to model (x, y); model Y decreases with row
	originX := tiepoint[3] - tiepoint[0]*scale[0]
	originY := tiepoint[4] + tiepoint[1]*scale[1]
	minX := originX
	maxX := originX + scale[0]*float64(width)
	maxY := originY
	minY := originY - scale[1]*float64(height)

	zone, southern, geographic, err := d.crs(opts)
	if err != nil {
		return orb.Bound{}, err
	}
	if geographic {
		return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}, nil
	}

	west, south := math.Inf(1), math.Inf(1)
	east, north := math.Inf(-1), math.Inf(-1)
	for _, corner := range [][2]float64{{minX, minY}, {minX, maxY}, {maxX, minY}, {maxX, maxY}} {
		lat, lng, err := UTMToWGS84(corner[0], corner[1], zone, southern)
		if err != nil {
			return orb.Bound{}, err
		}
		west = math.Min(west, lng)
		east = math.Max(east, lng)
		south = math.Min(south, lat)
		north = math.Max(north, lat)
	}

	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}, nil
}

// crs resolves the coordinate reference system from the geo key directory
func (d *tiffReader) crs(opts GeoTIFFOptions) (zone int, southern, geographic bool, err error) {
	keys := d.uintVals(tagGeoKeyDirectory)
	// Directory header is 4 shorts, then 4 shorts per key
	for i := 4; i+3 < len(keys); i += 4 {
		keyID, tagLoc, value := keys[i], keys[i+1], keys[i+3]
		if tagLoc != 0 {
			continue
		}
		switch keyID {
		case geoKeyProjectedCSType:
			epsg := int(value)
			switch {
			case epsg >= 32601 && epsg <= 32660:
				return epsg - 32600, false, false, nil
			case epsg >= 32701 && epsg <= 32760:
				return epsg - 32700, true, false, nil
			default:
				return 0, false, false, fmt.Errorf("unsupported projected CRS EPSG:%d", epsg)
			}
		case geoKeyGeographicType:
			if value == 4326 {
				geographic = true
			}
		}
	}
	if geographic {
		return 0, false, true, nil
	}
	if opts.FallbackZone >= 1 && opts.FallbackZone <= 60 {
		return opts.FallbackZone, opts.FallbackSouthern, false, nil
	}
	return 0, false, false, errors.New("no CRS in file and no fallback zone")
}
