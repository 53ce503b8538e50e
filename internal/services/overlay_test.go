package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roofsight/roofsight/server/internal/cache"
	"github.com/roofsight/roofsight/server/internal/clients/solar"
	"github.com/roofsight/roofsight/server/internal/config"
	"github.com/roofsight/roofsight/server/internal/lib/raster"
)

// fakeLayerSource serves a canned layer listing and per-URL layer bytes
type fakeLayerSource struct {
	layers *solar.DataLayersResponse
	files  map[string][]byte
	err    error

	fetched []string
}

func (f *fakeLayerSource) DataLayers(ctx context.Context, lat, lng, radiusMeters float64) (*solar.DataLayersResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.layers, nil
}

func (f *fakeLayerSource) FetchLayer(ctx context.Context, layerURL string) ([]byte, error) {
	f.fetched = append(f.fetched, layerURL)
	data, ok := f.files[layerURL]
	if !ok {
		return nil, &solar.HTTPError{StatusCode: http.StatusNotFound}
	}
	return data, nil
}

// Minimal single-strip little-endian GeoTIFF writer for fixtures, just
// enough container for the service to decode

type layerField struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

func layerShorts(tag uint16, vals ...uint16) layerField {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return layerField{tag: tag, typ: 3, count: uint32(len(vals)), value: buf}
}

func layerLongs(tag uint16, vals ...uint32) layerField {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return layerField{tag: tag, typ: 4, count: uint32(len(vals)), value: buf}
}

func layerDoubles(tag uint16, vals ...float64) layerField {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return layerField{tag: tag, typ: 12, count: uint32(len(vals)), value: buf}
}

// encodeLayerTIFF writes interleaved float32 bands georeferenced in UTM zone
// 10 north near Murphys, CA
func encodeLayerTIFF(t *testing.T, width, height int, bands [][]float64) []byte {
	t.Helper()
	spp := len(bands)
	require.Greater(t, spp, 0)

	pixels := make([]byte, 0, width*height*spp*4)
	for i := 0; i < width*height; i++ {
		for _, band := range bands {
			require.Len(t, band, width*height)
			var word [4]byte
			binary.LittleEndian.PutUint32(word[:], math.Float32bits(float32(band[i])))
			pixels = append(pixels, word[:]...)
		}
	}

	bits := make([]uint16, spp)
	formats := make([]uint16, spp)
	for i := range bits {
		bits[i] = 32
		formats[i] = 3 // IEEE float
	}

	fields := []layerField{
		layerShorts(256, uint16(width)),
		layerShorts(257, uint16(height)),
		layerShorts(258, bits...),
		layerShorts(277, uint16(spp)),
		layerShorts(278, uint16(height)),
		layerLongs(273, 8),
		layerLongs(279, uint32(len(pixels))),
		layerShorts(339, formats...),
		layerDoubles(33550, 0.1, 0.1, 0),
		layerDoubles(33922, 0, 0, 0, 722400, 4220000, 0),
		layerShorts(34735, 1, 1, 0, 1, 3072, 0, 1, 32610),
	}
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
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write(extern.Bytes())
	return buf.Bytes()
}

func fluxBand() []float64 {
	return []float64{
		100, 200, 300, 400,
		500, 600, 700, 800,
		900, 1000, 1100, 1200,
	}
}

// halfMaskBand covers the left two columns and leaves the right two bare
func halfMaskBand() []float64 {
	return []float64{
		1, 1, 0, 0,
		1, 1, 0, 0,
		1, 1, 0, 0,
	}
}

func newOverlayTestService(t *testing.T, source *fakeLayerSource) *OverlayService {
	t.Helper()
	if source == nil {
		source = &fakeLayerSource{
			layers: &solar.DataLayersResponse{
				AnnualFluxURL:  "https://solar.googleapis.com/layers/flux",
				MonthlyFluxURL: "https://solar.googleapis.com/layers/monthly",
				MaskURL:        "https://solar.googleapis.com/layers/mask",
			},
			files: map[string][]byte{
				"https://solar.googleapis.com/layers/flux": encodeLayerTIFF(t, 4, 3, [][]float64{fluxBand()}),
				"https://solar.googleapis.com/layers/mask": encodeLayerTIFF(t, 4, 3, [][]float64{halfMaskBand()}),
			},
		}
	}
	return NewOverlayService(source, cache.New(), config.DefaultConfig())
}

func getRender(t *testing.T, service *OverlayService, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/overlay/render?"+query, nil)
	recorder := httptest.NewRecorder()
	service.HandleLayerRender(recorder, req)
	return recorder
}

func TestHandleLayerRender_PNG(t *testing.T) {
	service := newOverlayTestService(t, nil)

	recorder := getRender(t, service, "lat=38.1327&lng=-120.4606&layer=annualFlux&masked=false")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "image/png", recorder.Header().Get("Content-Type"))

	img, err := png.Decode(recorder.Body)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	_, _, _, a := img.At(1, 1).RGBA()
	assert.NotZero(t, a, "flux samples render opaque")

	bounds := strings.Split(recorder.Header().Get("X-Raster-Bounds"), ",")
	require.Len(t, bounds, 4)
	assert.True(t, strings.HasPrefix(bounds[0], "-120."), "west edge near the fixture's UTM footprint")
	assert.True(t, strings.HasPrefix(bounds[1], "38."), "south edge near the fixture's UTM footprint")
}

func TestHandleLayerRender_MaskClipsFlux(t *testing.T) {
	service := newOverlayTestService(t, nil)

	// masked defaults to true for flux layers
	recorder := getRender(t, service, "lat=38.1327&lng=-120.4606&layer=annualFlux")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	img, err := png.Decode(recorder.Body)
	require.NoError(t, err)

	_, _, _, covered := img.At(0, 1).RGBA()
	_, _, _, bare := img.At(3, 1).RGBA()
	assert.NotZero(t, covered, "pixels inside the roof mask stay visible")
	assert.Zero(t, bare, "pixels outside the roof mask go transparent")
}

func TestHandleLayerRender_MonthlyFluxMetadata(t *testing.T) {
	monthly := make([][]float64, 12)
	for i := range monthly {
		band := make([]float64, 12)
		for j := range band {
			band[j] = float64(i*100 + j)
		}
		monthly[i] = band
	}
	source := &fakeLayerSource{
		layers: &solar.DataLayersResponse{MonthlyFluxURL: "https://solar.googleapis.com/layers/monthly"},
		files: map[string][]byte{
			"https://solar.googleapis.com/layers/monthly": encodeLayerTIFF(t, 4, 3, monthly),
		},
	}
	service := newOverlayTestService(t, source)

	recorder := getRender(t, service, "lat=38.1327&lng=-120.4606&layer=monthlyFlux&month=5&format=json")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var info renderInfo
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &info))
	assert.Equal(t, "monthlyFlux", info.Layer)
	assert.Equal(t, 5, info.Band)
	assert.Equal(t, 4, info.Width)
	assert.Equal(t, 3, info.Height)
	assert.Less(t, info.Bounds.West, info.Bounds.East)
	assert.Less(t, info.Bounds.South, info.Bounds.North)
	assert.Len(t, info.Ring, 5, "closed ring around the raster extent")
}

func TestHandleLayerRender_BadRequests(t *testing.T) {
	service := newOverlayTestService(t, nil)

	assert.Equal(t, http.StatusBadRequest, getRender(t, service, "layer=annualFlux").Code,
		"lat and lng are required")
	assert.Equal(t, http.StatusBadRequest,
		getRender(t, service, "lat=38.1327&lng=-120.4606&layer=elevation").Code)
	assert.Equal(t, http.StatusBadRequest,
		getRender(t, service, "lat=38.1327&lng=-120.4606&palette=magma").Code)
	assert.Equal(t, http.StatusBadRequest,
		getRender(t, service, "lat=38.1327&lng=-120.4606&masked=perhaps").Code)
}

func TestHandleLayerRender_LayerUnavailable(t *testing.T) {
	service := newOverlayTestService(t, &fakeLayerSource{
		layers: &solar.DataLayersResponse{},
	})

	recorder := getRender(t, service, "lat=38.1327&lng=-120.4606&layer=hourlyShade")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHandleLayerRender_SolarErrorMapping(t *testing.T) {
	service := newOverlayTestService(t, &fakeLayerSource{err: solar.ErrAPIKeyNotConfigured})

	recorder := getRender(t, service, "lat=38.1327&lng=-120.4606")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func postPlacement(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	service := newOverlayTestService(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overlay/placement", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	service.HandleOverlayPlacement(recorder, req)
	return recorder
}

func TestHandleOverlayPlacement(t *testing.T) {
	// A bound centered exactly on the viewport center lands centered
	recorder := postPlacement(t, `{
		"centerLat": 38.1327, "centerLng": -120.4606, "zoom": 20, "imageSize": 640,
		"bounds": {"west": -120.4608, "south": 38.1325, "east": -120.4604, "north": 38.1329}
	}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var placement raster.Placement
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &placement))
	require.True(t, placement.Renderable)
	assert.Greater(t, placement.Width, 0.0)
	assert.Greater(t, placement.Height, 0.0)
	assert.InDelta(t, 320, placement.X+placement.Width/2, 1)
	assert.InDelta(t, 320, placement.Y+placement.Height/2, 1)
}

func TestHandleOverlayPlacement_DegenerateBounds(t *testing.T) {
	recorder := postPlacement(t, `{
		"centerLat": 38.1327, "centerLng": -120.4606, "zoom": 20, "imageSize": 640,
		"bounds": {"west": -120.4604, "south": 38.1329, "east": -120.4608, "north": 38.1325}
	}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var placement raster.Placement
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &placement))
	assert.False(t, placement.Renderable)
}

func TestHandleOverlayPlacement_BadViewport(t *testing.T) {
	recorder := postPlacement(t, `{"centerLat": 38.1327, "centerLng": -120.4606}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandlePalettes(t *testing.T) {
	service := newOverlayTestService(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/overlay/palettes", nil)
	recorder := httptest.NewRecorder()
	service.HandlePalettes(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var palettes []paletteInfo
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &palettes))
	require.Len(t, palettes, 4)
	assert.Equal(t, "iron", palettes[0].Name)
	assert.Equal(t, "00000A", palettes[0].Stops[0])
	assert.Equal(t, []string{"212121", "B3E5FC"}, palettes[3].Stops)
}
