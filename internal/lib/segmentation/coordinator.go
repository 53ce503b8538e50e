package segmentation

import (
	"context"
	"fmt"
	"sync"

	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

// Coordinator errors callers branch on
var (
	ErrAlreadyCalculating = fmt.Errorf("a segmentation run is already in progress")
	ErrUnknownMethod      = fmt.Errorf("unknown segmentation method")
	ErrNoActiveResult     = fmt.Errorf("no populated segmentation result")
)

// Renderer is notified when a run lands a usable result, so a map overlay
// can redraw without polling the session. Called without the coordinator
// lock held.
type Renderer interface {
	RenderSession(SessionSnapshot)
}

// Coordinator owns the single active segmentation session. It serializes
// runs, keeps exclusion state across recalculations of the same result, and
// suppresses results from superseded runs: a run that was still in flight
// when the session was reset or restarted is discarded when it lands.
type Coordinator struct {
	providers map[Method]Provider

	mu         sync.Mutex
	generation uint64
	sess       *session
	renderer   Renderer
}

// NewCoordinator creates a coordinator over the given providers
func NewCoordinator(providers []Provider) *Coordinator {
	byMethod := make(map[Method]Provider, len(providers))
	for _, p := range providers {
		byMethod[p.Method()] = p
	}
	return &Coordinator{
		providers: byMethod,
		sess:      newSession(),
	}
}

// Provider exposes a registered provider, mainly so callers can reach the
// manual provider's tracer
func (c *Coordinator) Provider(method Method) (Provider, bool) {
	p, ok := c.providers[method]
	return p, ok
}

// SetRenderer registers the renderer notified after successful runs
func (c *Coordinator) SetRenderer(r Renderer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer = r
}

// SegmentRoof runs the named provider for a location. Returns
// ErrAlreadyCalculating while a run is in flight; callers decide whether to
// surface that or to Reset first. The provider executes without the lock
// held, so slow backends never block session reads.
func (c *Coordinator) SegmentRoof(ctx context.Context, method Method, lat, lng float64) (*Result, error) {
	provider, ok := c.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	c.mu.Lock()
	if c.sess.state == StateLoading {
		c.mu.Unlock()
		return nil, ErrAlreadyCalculating
	}
	c.generation++
	generation := c.generation
	c.sess = newSession()
	c.sess.state = StateLoading
	c.sess.method = method
	c.sess.location = geo.Point{Latitude: lat, Longitude: lng}
	c.mu.Unlock()

	result := provider.Segment(ctx, lat, lng)
	if box, ok := geo.PolygonBounds(result.Outline); ok {
		result.Bounds = &box
	}

	c.mu.Lock()

	// A reset or newer run superseded this one while the provider was
	// working; its result must not clobber the current session.
	if generation != c.generation {
		c.mu.Unlock()
		return result, nil
	}

	c.sess.result = result
	if result.Failed() {
		c.sess.state = StateFailed
	} else {
		c.sess.state = StatePopulated
	}

	snapshot := c.sess.snapshot()
	renderer := c.renderer
	c.mu.Unlock()

	if renderer != nil && !result.Failed() {
		renderer.RenderSession(snapshot)
	}

	return result, nil
}

// Session returns a snapshot of the current session
func (c *Coordinator) Session() SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.snapshot()
}

// IsCalculating reports whether a run is in flight
func (c *Coordinator) IsCalculating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.state == StateLoading
}

// Reset abandons the session. An in-flight run keeps executing but its
// result is discarded when it completes.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.sess = newSession()
}

// ToggleSegment flips the inclusion of one segment of the populated result
func (c *Coordinator) ToggleSegment(index int) (SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkSegmentIndex(index); err != nil {
		return SessionSnapshot{}, err
	}

	if _, off := c.sess.excluded[index]; off {
		delete(c.sess.excluded, index)
	} else {
		c.sess.excluded[index] = struct{}{}
	}

	return c.sess.snapshot(), nil
}

// SetSegmentIncluded sets the inclusion of one segment explicitly. Setting
// the state it is already in is a no-op.
func (c *Coordinator) SetSegmentIncluded(index int, included bool) (SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkSegmentIndex(index); err != nil {
		return SessionSnapshot{}, err
	}

	if included {
		delete(c.sess.excluded, index)
	} else {
		c.sess.excluded[index] = struct{}{}
	}

	return c.sess.snapshot(), nil
}

// IncludedAreaM2 is the summed area of the segments still included
func (c *Coordinator) IncludedAreaM2() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.includedArea()
}

func (c *Coordinator) checkSegmentIndex(index int) error {
	if c.sess.state != StatePopulated || c.sess.result == nil {
		return ErrNoActiveResult
	}
	if index < 0 || index >= len(c.sess.result.Segments) {
		return fmt.Errorf("segment index %d out of range [0, %d)", index, len(c.sess.result.Segments))
	}
	return nil
}
