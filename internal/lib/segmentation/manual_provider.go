package segmentation

import (
	"context"
	"errors"
	"sync"

	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

// ErrTraceInProgress indicates a second trace was started before the first
// finished
var ErrTraceInProgress = errors.New("a trace is already in progress")

// ManualProvider lets a person trace the roof outline point by point. Segment
// blocks until the trace is finished or canceled; the tracing surface
// (websocket handler, CLI, test) drives the same Tracer from another
// goroutine.
type ManualProvider struct {
	geoUtils geo.GeoUtils

	mu    sync.Mutex
	trace *Tracer
}

// Tracer accumulates traced points for one in-flight manual segmentation
type Tracer struct {
	provider *ManualProvider

	mu     sync.Mutex
	points []geo.Point
	done   chan traceOutcome
	closed bool
}

type traceOutcome struct {
	polygon  geo.Polygon
	canceled bool
}

// NewManualProvider creates the human-traced provider
func NewManualProvider(geoUtils geo.GeoUtils) *ManualProvider {
	return &ManualProvider{geoUtils: geoUtils}
}

type tracerDeliveryKey struct{}

// WithTracerDelivery arranges for the Tracer opened by a manual Segment call
// started under the returned context to be delivered on the channel. The
// channel is tied to that one run: if the run never reaches the provider (a
// coordinator refusal, say), nothing is ever delivered, so a driver can never
// end up holding another run's tracer.
func WithTracerDelivery(ctx context.Context) (context.Context, <-chan *Tracer) {
	ch := make(chan *Tracer, 1)
	return context.WithValue(ctx, tracerDeliveryKey{}, ch), ch
}

// Method identifies this provider
func (p *ManualProvider) Method() Method {
	return MethodManual
}

// Tracer returns the active trace, or nil when none is running
func (p *ManualProvider) Tracer() *Tracer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trace
}

// Segment opens a trace and blocks until it completes. The location arguments
// are advisory; the polygon is wholly operator-defined.
func (p *ManualProvider) Segment(ctx context.Context, lat, lng float64) *Result {
	p.mu.Lock()
	if p.trace != nil {
		p.mu.Unlock()
		return failure(MethodManual, ErrorBadRequest, ErrTraceInProgress.Error())
	}
	trace := &Tracer{
		provider: p,
		done:     make(chan traceOutcome, 1),
	}
	p.trace = trace
	p.mu.Unlock()

	if ch, ok := ctx.Value(tracerDeliveryKey{}).(chan *Tracer); ok {
		ch <- trace
	}

	defer func() {
		p.mu.Lock()
		if p.trace == trace {
			p.trace = nil
		}
		p.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		trace.close()
		return failure(MethodManual, ErrorCanceled, ctx.Err().Error())
	case outcome := <-trace.done:
		if outcome.canceled {
			return failure(MethodManual, ErrorCanceled, "trace canceled by operator")
		}
		return p.resultFrom(outcome.polygon)
	}
}

// resultFrom converts a finished trace into a segmentation result
func (p *ManualProvider) resultFrom(polygon geo.Polygon) *Result {
	segment := RoofSegment{
		Polygon: polygon,
		Center:  polygonCentroid(polygon),
		AreaM2:  p.geoUtils.PolygonArea(polygon),
	}

	return &Result{
		Method:      MethodManual,
		Segments:    []RoofSegment{segment},
		Outline:     polygon,
		TotalAreaM2: segment.AreaM2,
		Confidence:  ConfidenceManual,
	}
}

// AddPoint appends a vertex to the trace
func (t *Tracer) AddPoint(point geo.Point) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("trace already finished")
	}
	t.points = append(t.points, point)
	return nil
}

// Undo removes the most recently added vertex
func (t *Tracer) Undo() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("trace already finished")
	}
	if len(t.points) == 0 {
		return errors.New("no points to undo")
	}
	t.points = t.points[:len(t.points)-1]
	return nil
}

// Points returns a copy of the current trace
func (t *Tracer) Points() []geo.Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]geo.Point, len(t.points))
	copy(out, t.points)
	return out
}

// Finish closes the trace and releases the blocked Segment call. A polygon
// needs at least 3 vertices.
func (t *Tracer) Finish() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("trace already finished")
	}
	if len(t.points) < 3 {
		return errors.New("trace needs at least 3 points")
	}
	t.closed = true
	polygon := make(geo.Polygon, len(t.points))
	copy(polygon, t.points)
	t.done <- traceOutcome{polygon: polygon}
	return nil
}

// Cancel abandons the trace
func (t *Tracer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.done <- traceOutcome{canceled: true}
}

// close marks the trace dead after a context cancellation so late operator
// calls fail cleanly
func (t *Tracer) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}
