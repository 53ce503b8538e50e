package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"github.com/roofsight/roofsight/server/internal/lib/geo"
	"github.com/roofsight/roofsight/server/internal/lib/segmentation"
)

func newTraceService(t *testing.T) *TraceService {
	t.Helper()
	geoUtils := geo.NewGeoUtils()
	manual := segmentation.NewManualProvider(geoUtils)
	coordinator := segmentation.NewCoordinator([]segmentation.Provider{manual})
	return NewTraceService(coordinator, geoUtils)
}

// rooftopCoords is a small quadrilateral over Murphys, CA
var rooftopCoords = [][]float64{
	{38.1327, -120.4606},
	{38.1327, -120.4604},
	{38.1329, -120.4604},
	{38.1329, -120.4606},
}

func encodedRooftop() string {
	return string(polyline.EncodeCoords(rooftopCoords))
}

func TestHandleTracePolyline(t *testing.T) {
	service := newTraceService(t)

	body, err := json.Marshal(polylineRequest{Polyline: encodedRooftop()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trace/polyline", strings.NewReader(string(body)))
	recorder := httptest.NewRecorder()
	service.HandleTracePolyline(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var session segmentation.SessionSnapshot
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &session))
	assert.Equal(t, segmentation.StatePopulated, session.State)
	assert.Equal(t, segmentation.MethodManual, session.Method)
	require.NotNil(t, session.Result)
	require.Len(t, session.Result.Segments, 1)
	assert.InDelta(t, 1.0, session.Result.Confidence, 0.001)
	// Roughly 17.5m x 22.2m at this latitude
	assert.InDelta(t, 390, session.Result.TotalAreaM2, 30)
}

func TestHandleTracePolyline_RejectedWhileInteractiveTraceOpen(t *testing.T) {
	service := newTraceService(t)
	conn := dialTraceSocket(t, service)

	// Open an interactive trace and put one point in it
	require.NoError(t, conn.WriteJSON(traceMessage{Action: "start", Lat: 38.1327, Lng: -120.4606}))
	readUpdate(t, conn)
	point := geo.Point{Latitude: 38.1327, Longitude: -120.4606}
	require.NoError(t, conn.WriteJSON(traceMessage{Action: "add", Point: &point}))
	readUpdate(t, conn)

	// A polyline submission must be refused, not spliced into the open trace
	body, err := json.Marshal(polylineRequest{Polyline: encodedRooftop()})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trace/polyline", strings.NewReader(string(body)))
	recorder := httptest.NewRecorder()
	service.HandleTracePolyline(recorder, req)
	assert.Equal(t, http.StatusConflict, recorder.Code, recorder.Body.String())

	// The interactive trace still holds exactly its own point
	require.NoError(t, conn.WriteJSON(traceMessage{Action: "undo"}))
	update := readUpdate(t, conn)
	require.Equal(t, "trace", update.Type, update.Error)
	assert.Empty(t, update.Points)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "cancel"}))
	update = readUpdate(t, conn)
	assert.Equal(t, "session", update.Type)
}

func TestHandleTracePolyline_TooFewPoints(t *testing.T) {
	service := newTraceService(t)

	encoded := string(polyline.EncodeCoords(rooftopCoords[:2]))
	body, err := json.Marshal(polylineRequest{Polyline: encoded})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trace/polyline", strings.NewReader(string(body)))
	recorder := httptest.NewRecorder()
	service.HandleTracePolyline(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleTracePolyline_InvalidEncoding(t *testing.T) {
	service := newTraceService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trace/polyline",
		strings.NewReader(`{"polyline": ""}`))
	recorder := httptest.NewRecorder()
	service.HandleTracePolyline(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleTracePolyline_MethodGuard(t *testing.T) {
	service := newTraceService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trace/polyline", nil)
	recorder := httptest.NewRecorder()
	service.HandleTracePolyline(recorder, req)
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func dialTraceSocket(t *testing.T, service *TraceService) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(service.HandleTraceSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) traceUpdate {
	t.Helper()
	var update traceUpdate
	require.NoError(t, conn.ReadJSON(&update))
	return update
}

func TestHandleTraceSocket_FullTrace(t *testing.T) {
	service := newTraceService(t)
	conn := dialTraceSocket(t, service)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "start", Lat: 38.1327, Lng: -120.4606}))
	update := readUpdate(t, conn)
	require.Equal(t, "trace", update.Type)
	assert.Empty(t, update.Points)

	for _, coord := range rooftopCoords {
		point := geo.Point{Latitude: coord[0], Longitude: coord[1]}
		require.NoError(t, conn.WriteJSON(traceMessage{Action: "add", Point: &point}))
		update = readUpdate(t, conn)
		require.Equal(t, "trace", update.Type, update.Error)
	}
	assert.Len(t, update.Points, 4)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "finish"}))
	update = readUpdate(t, conn)
	require.Equal(t, "session", update.Type, update.Error)
	require.NotNil(t, update.Session)
	assert.Equal(t, segmentation.StatePopulated, update.Session.State)
	require.NotNil(t, update.Session.Result)
	assert.InDelta(t, 390, update.Session.Result.TotalAreaM2, 30)
}

func TestHandleTraceSocket_UndoAndCancel(t *testing.T) {
	service := newTraceService(t)
	conn := dialTraceSocket(t, service)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "start", Lat: 38.1327, Lng: -120.4606}))
	readUpdate(t, conn)

	point := geo.Point{Latitude: 38.1327, Longitude: -120.4606}
	require.NoError(t, conn.WriteJSON(traceMessage{Action: "add", Point: &point}))
	update := readUpdate(t, conn)
	assert.Len(t, update.Points, 1)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "undo"}))
	update = readUpdate(t, conn)
	require.Equal(t, "trace", update.Type, update.Error)
	assert.Empty(t, update.Points)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "cancel"}))
	update = readUpdate(t, conn)
	require.Equal(t, "session", update.Type)
	require.NotNil(t, update.Session)
	assert.Equal(t, segmentation.StateFailed, update.Session.State)
	require.NotNil(t, update.Session.Result)
	assert.Equal(t, segmentation.ErrorCanceled, update.Session.Result.Error)
}

func TestHandleTraceSocket_FinishWithoutEnoughPoints(t *testing.T) {
	service := newTraceService(t)
	conn := dialTraceSocket(t, service)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "start", Lat: 38.1327, Lng: -120.4606}))
	readUpdate(t, conn)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "finish"}))
	update := readUpdate(t, conn)
	assert.Equal(t, "error", update.Type)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "cancel"}))
	update = readUpdate(t, conn)
	assert.Equal(t, "session", update.Type)
}

func TestHandleTraceSocket_ActionsWithoutTrace(t *testing.T) {
	service := newTraceService(t)
	conn := dialTraceSocket(t, service)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "finish"}))
	update := readUpdate(t, conn)
	assert.Equal(t, "error", update.Type)

	require.NoError(t, conn.WriteJSON(traceMessage{Action: "bogus"}))
	update = readUpdate(t, conn)
	assert.Equal(t, "error", update.Type)
}
