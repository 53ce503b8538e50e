package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roofsight/roofsight/server/internal/lib/geo"
	"github.com/roofsight/roofsight/server/internal/lib/segmentation"
)

// TraceService drives manual roof tracing, either interactively over a
// websocket or in one shot from an encoded polyline.
type TraceService struct {
	coordinator *segmentation.Coordinator
	geoUtils    geo.GeoUtils
	upgrader    websocket.Upgrader
}

// NewTraceService creates the manual tracing service
func NewTraceService(coordinator *segmentation.Coordinator, geoUtils geo.GeoUtils) *TraceService {
	return &TraceService{
		coordinator: coordinator,
		geoUtils:    geoUtils,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS is enforced at the server layer
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// polylineRequest submits a complete trace as an encoded polyline
type polylineRequest struct {
	Polyline string `json:"polyline"`
}

// HandleTracePolyline runs a manual segmentation from an encoded polyline.
// POST /api/v1/trace/polyline
func (s *TraceService) HandleTracePolyline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req polylineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	points, err := s.geoUtils.DecodePolyline(req.Polyline)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(points) < 3 {
		writeError(w, http.StatusBadRequest, "polyline must contain at least 3 points")
		return
	}

	session, err := s.runTrace(r.Context(), points)
	if err != nil {
		if errors.Is(err, segmentation.ErrAlreadyCalculating) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// runTrace feeds a complete point set through the manual provider so the
// polyline path and the interactive path share one code path
func (s *TraceService) runTrace(ctx context.Context, points []geo.Point) (segmentation.SessionSnapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runCtx, ready := segmentation.WithTracerDelivery(ctx)
	done := make(chan error, 1)
	go func() {
		_, err := s.coordinator.SegmentRoof(runCtx, segmentation.MethodManual, points[0].Latitude, points[0].Longitude)
		done <- err
	}()

	tracer, err := s.waitForTracer(ctx, ready, done)
	if err != nil {
		return segmentation.SessionSnapshot{}, err
	}

	for _, p := range points {
		if err := tracer.AddPoint(p); err != nil {
			tracer.Cancel()
			<-done
			return segmentation.SessionSnapshot{}, err
		}
	}
	if err := tracer.Finish(); err != nil {
		tracer.Cancel()
		<-done
		return segmentation.SessionSnapshot{}, err
	}

	if err := <-done; err != nil {
		return segmentation.SessionSnapshot{}, err
	}

	return s.coordinator.Session(), nil
}

// waitForTracer blocks until this run's tracer is delivered. The delivery
// channel belongs to the run alone, so a refused run (another run already in
// flight) surfaces its error here instead of adopting the other run's tracer.
func (s *TraceService) waitForTracer(ctx context.Context, ready <-chan *segmentation.Tracer, done <-chan error) (*segmentation.Tracer, error) {
	select {
	case tracer := <-ready:
		return tracer, nil
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return nil, errors.New("trace ended before it started")
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(2 * time.Second):
		return nil, errors.New("trace did not start")
	}
}

// traceMessage is one client command on the websocket
type traceMessage struct {
	Action string     `json:"action"` // "start" | "add" | "undo" | "finish" | "cancel"
	Lat    float64    `json:"lat,omitempty"`
	Lng    float64    `json:"lng,omitempty"`
	Point  *geo.Point `json:"point,omitempty"`
}

// traceUpdate is a server message on the websocket
type traceUpdate struct {
	Type    string                        `json:"type"` // "trace" | "session" | "error"
	Points  []geo.Point                   `json:"points,omitempty"`
	Session *segmentation.SessionSnapshot `json:"session,omitempty"`
	Error   string                        `json:"error,omitempty"`
}

// HandleTraceSocket runs an interactive trace over a websocket.
// GET /api/v1/trace (upgraded)
func (s *TraceService) HandleTraceSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		tracer *segmentation.Tracer
		done   chan error
	)

	for {
		var msg traceMessage
		if err := conn.ReadJSON(&msg); err != nil {
			// Client went away mid-trace: abandon it
			if tracer != nil {
				tracer.Cancel()
				<-done
			}
			return
		}

		switch msg.Action {
		case "start":
			if tracer != nil {
				s.sendError(conn, "trace already started")
				continue
			}
			runCtx, ready := segmentation.WithTracerDelivery(ctx)
			done = make(chan error, 1)
			go func(lat, lng float64) {
				_, err := s.coordinator.SegmentRoof(runCtx, segmentation.MethodManual, lat, lng)
				done <- err
			}(msg.Lat, msg.Lng)

			tracer, err = s.waitForTracer(ctx, ready, done)
			if err != nil {
				s.sendError(conn, err.Error())
				done = nil
				continue
			}
			s.sendTrace(conn, tracer)

		case "add":
			if tracer == nil || msg.Point == nil {
				s.sendError(conn, "no active trace or missing point")
				continue
			}
			if err := tracer.AddPoint(*msg.Point); err != nil {
				s.sendError(conn, err.Error())
				continue
			}
			s.sendTrace(conn, tracer)

		case "undo":
			if tracer == nil {
				s.sendError(conn, "no active trace")
				continue
			}
			if err := tracer.Undo(); err != nil {
				s.sendError(conn, err.Error())
				continue
			}
			s.sendTrace(conn, tracer)

		case "finish":
			if tracer == nil {
				s.sendError(conn, "no active trace")
				continue
			}
			if err := tracer.Finish(); err != nil {
				s.sendError(conn, err.Error())
				continue
			}
			<-done
			s.sendSession(conn)
			tracer, done = nil, nil

		case "cancel":
			if tracer == nil {
				s.sendError(conn, "no active trace")
				continue
			}
			tracer.Cancel()
			<-done
			s.sendSession(conn)
			tracer, done = nil, nil

		default:
			s.sendError(conn, "unknown action "+msg.Action)
		}
	}
}

func (s *TraceService) sendTrace(conn *websocket.Conn, tracer *segmentation.Tracer) {
	s.send(conn, traceUpdate{Type: "trace", Points: tracer.Points()})
}

func (s *TraceService) sendSession(conn *websocket.Conn) {
	session := s.coordinator.Session()
	s.send(conn, traceUpdate{Type: "session", Session: &session})
}

func (s *TraceService) sendError(conn *websocket.Conn, message string) {
	s.send(conn, traceUpdate{Type: "error", Error: message})
}

func (s *TraceService) send(conn *websocket.Conn, update traceUpdate) {
	if err := conn.WriteJSON(update); err != nil {
		log.Printf("Websocket write failed: %v", err)
	}
}
