package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal TIFF writer for fixtures. Pixel data sits right after the header so
// StripOffsets is always 8; values wider than four bytes go after the IFD.

type tiffField struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

func shortsField(tag uint16, vals ...uint16) tiffField {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return tiffField{tag: tag, typ: 3, count: uint32(len(vals)), value: buf}
}

func longsField(tag uint16, vals ...uint32) tiffField {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return tiffField{tag: tag, typ: 4, count: uint32(len(vals)), value: buf}
}

func doublesField(tag uint16, vals ...float64) tiffField {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return tiffField{tag: tag, typ: 12, count: uint32(len(vals)), value: buf}
}

func asciiField(tag uint16, s string) tiffField {
	value := append([]byte(s), 0)
	return tiffField{tag: tag, typ: 2, count: uint32(len(value)), value: value}
}

func encodeTIFF(t *testing.T, pixels []byte, fields []tiffField) []byte {
	t.Helper()
	sort.Slice(fields, func(i, j int) bool { return fields[i].tag < fields[j].tag })

	ifdOffset := uint32(8 + len(pixels))
	externOffset := ifdOffset + 2 + uint32(len(fields))*12 + 4
	var extern bytes.Buffer

	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, binary.LittleEndian, uint16(42))
	binary.Write(&buf, binary.LittleEndian, ifdOffset)
	buf.Write(pixels)

	binary.Write(&buf, binary.LittleEndian, uint16(len(fields)))
	for _, f := range fields {
		binary.Write(&buf, binary.LittleEndian, f.tag)
		binary.Write(&buf, binary.LittleEndian, f.typ)
		binary.Write(&buf, binary.LittleEndian, f.count)
		if len(f.value) <= 4 {
			inline := make([]byte, 4)
			copy(inline, f.value)
			buf.Write(inline)
		} else {
			binary.Write(&buf, binary.LittleEndian, externOffset+uint32(extern.Len()))
			extern.Write(f.value)
		}
	}
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // no next IFD
	buf.Write(extern.Bytes())
	return buf.Bytes()
}

func float32Pixels(vals ...float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// fluxFixtureFields describes a 4x3 single band float32 layer georeferenced
// in UTM zone 10 north near Murphys, CA.
func fluxFixtureFields(pixelBytes int, extra ...tiffField) []tiffField {
	fields := []tiffField{
		shortsField(tagImageWidth, 4),
		shortsField(tagImageLength, 3),
		shortsField(tagBitsPerSample, 32),
		shortsField(tagSamplesPerPixel, 1),
		shortsField(tagSampleFormat, sampleFormatFloat),
		shortsField(tagRowsPerStrip, 3),
		longsField(tagStripOffsets, 8),
		longsField(tagStripByteCounts, uint32(pixelBytes)),
		doublesField(tagModelPixelScale, 0.1, 0.1, 0),
		doublesField(tagModelTiepoint, 0, 0, 0, 722400, 4220000, 0),
		asciiField(tagGDALNoData, "-9999"),
	}
	return append(fields, extra...)
}

func utmZone10Keys() tiffField {
	// Geo key directory header, then the projected CRS key for EPSG:32610
	return shortsField(tagGeoKeyDirectory, 1, 1, 0, 1, geoKeyProjectedCSType, 0, 1, 32610)
}

func TestDecodeGeoTIFF_Float32Strip(t *testing.T) {
	pixels := float32Pixels(
		100, 200, 300, 400,
		-9999, 600, 700, 800,
		900, 1000, 1100, 1200,
	)
	data := encodeTIFF(t, pixels, fluxFixtureFields(len(pixels), utmZone10Keys()))

	grid, err := DecodeGeoTIFF(data, GeoTIFFOptions{})
	require.NoError(t, err)

	assert.Equal(t, 4, grid.Width())
	assert.Equal(t, 3, grid.Height())
	assert.Equal(t, 1, grid.BandCount())
	assert.Equal(t, 100.0, grid.Sample(0, 0, 0))
	assert.Equal(t, -9999.0, grid.Sample(0, 0, 1))
	assert.Equal(t, 1200.0, grid.Sample(0, 3, 2))
	assert.Equal(t, -9999.0, grid.NoData())

	bound := grid.Bound()
	assert.Greater(t, bound.Min[1], 37.9, "south edge in the fixture's latitude band")
	assert.Less(t, bound.Max[1], 38.4)
	assert.Greater(t, bound.Min[0], -120.8, "west edge in the fixture's longitude band")
	assert.Less(t, bound.Max[0], -120.2)
	assert.Less(t, bound.Min[0], bound.Max[0])
	assert.Less(t, bound.Min[1], bound.Max[1])
}

func TestDecodeGeoTIFF_DeflateStrip(t *testing.T) {
	pixels := float32Pixels(
		100, 200, 300, 400,
		500, 600, 700, 800,
		900, 1000, 1100, 1200,
	)
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write(pixels)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	fields := fluxFixtureFields(compressed.Len(), utmZone10Keys(),
		shortsField(tagCompression, compressionDeflate))
	data := encodeTIFF(t, compressed.Bytes(), fields)

	grid, err := DecodeGeoTIFF(data, GeoTIFFOptions{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, grid.Sample(0, 0, 0))
	assert.Equal(t, 1200.0, grid.Sample(0, 3, 2))
}

func TestDecodeGeoTIFF_RGBInterleaved(t *testing.T) {
	// 2x2 chunky RGB bytes
	pixels := []byte{
		10, 20, 30, 40, 50, 60,
		70, 80, 90, 100, 110, 120,
	}
	fields := []tiffField{
		shortsField(tagImageWidth, 2),
		shortsField(tagImageLength, 2),
		shortsField(tagBitsPerSample, 8, 8, 8),
		shortsField(tagSamplesPerPixel, 3),
		shortsField(tagRowsPerStrip, 2),
		longsField(tagStripOffsets, 8),
		longsField(tagStripByteCounts, uint32(len(pixels))),
		doublesField(tagModelPixelScale, 0.1, 0.1, 0),
		doublesField(tagModelTiepoint, 0, 0, 0, 722400, 4220000, 0),
		utmZone10Keys(),
	}
	data := encodeTIFF(t, pixels, fields)

	grid, err := DecodeGeoTIFF(data, GeoTIFFOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, grid.BandCount())
	assert.Equal(t, 10.0, grid.Sample(0, 0, 0))
	assert.Equal(t, 50.0, grid.Sample(1, 1, 0))
	assert.Equal(t, 120.0, grid.Sample(2, 1, 1))
}

func TestDecodeGeoTIFF_FallbackZone(t *testing.T) {
	pixels := float32Pixels(
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
	)
	data := encodeTIFF(t, pixels, fluxFixtureFields(len(pixels)))

	_, err := DecodeGeoTIFF(data, GeoTIFFOptions{})
	assert.Error(t, err, "no CRS in the file and no fallback")

	grid, err := DecodeGeoTIFF(data, GeoTIFFOptions{FallbackZone: 10})
	require.NoError(t, err)
	bound := grid.Bound()
	assert.InDelta(t, 38.13, bound.Min[1], 0.2)
	assert.InDelta(t, -120.46, bound.Min[0], 0.3)
}

func TestDecodeGeoTIFF_GeographicCRS(t *testing.T) {
	pixels := float32Pixels(
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
	)
	fields := fluxFixtureFields(len(pixels),
		shortsField(tagGeoKeyDirectory, 1, 1, 0, 1, geoKeyGeographicType, 0, 1, 4326))
	// Degrees directly; origin at the northwest corner
	fields = replaceField(fields, doublesField(tagModelTiepoint, 0, 0, 0, -120.4610, 38.1330, 0))
	fields = replaceField(fields, doublesField(tagModelPixelScale, 0.0001, 0.0001, 0))
	data := encodeTIFF(t, pixels, fields)

	grid, err := DecodeGeoTIFF(data, GeoTIFFOptions{})
	require.NoError(t, err)
	bound := grid.Bound()
	assert.InDelta(t, -120.4610, bound.Min[0], 1e-9)
	assert.InDelta(t, 38.1330, bound.Max[1], 1e-9)
	assert.InDelta(t, -120.4610+0.0004, bound.Max[0], 1e-9)
	assert.InDelta(t, 38.1330-0.0003, bound.Min[1], 1e-9)
}

func replaceField(fields []tiffField, repl tiffField) []tiffField {
	for i, f := range fields {
		if f.tag == repl.tag {
			fields[i] = repl
			return fields
		}
	}
	return append(fields, repl)
}

func TestDecodeGeoTIFF_RejectsGarbage(t *testing.T) {
	_, err := DecodeGeoTIFF([]byte("PNG rather than TIFF"), GeoTIFFOptions{})
	assert.ErrorContains(t, err, "not a TIFF")

	_, err = DecodeGeoTIFF([]byte{'I', 'I'}, GeoTIFFOptions{})
	assert.Error(t, err)
}
