package segmentation

import (
	"sort"

	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

// SessionState tracks where a segmentation session is in its lifecycle
type SessionState string

const (
	StateEmpty     SessionState = "empty"
	StateLoading   SessionState = "loading"
	StatePopulated SessionState = "populated"
	StateFailed    SessionState = "failed"
)

// SessionSnapshot is a point-in-time copy of the coordinator's session,
// safe to hand to HTTP handlers and encoders.
type SessionSnapshot struct {
	State           SessionState `json:"state"`
	Method          Method       `json:"method,omitempty"`
	Location        geo.Point    `json:"location"`
	Result          *Result      `json:"result,omitempty"`
	ExcludedIndices []int        `json:"excludedIndices"`
	IncludedAreaM2  float64      `json:"includedAreaM2"`
}

// session is the coordinator's mutable state. All access is guarded by the
// coordinator mutex.
type session struct {
	state    SessionState
	method   Method
	location geo.Point
	result   *Result
	excluded map[int]struct{}
}

func newSession() *session {
	return &session{
		state:    StateEmpty,
		excluded: make(map[int]struct{}),
	}
}

// includedArea sums the areas of segments not currently excluded
func (s *session) includedArea() float64 {
	if s.result == nil {
		return 0
	}
	total := 0.0
	for i, segment := range s.result.Segments {
		if _, off := s.excluded[i]; off {
			continue
		}
		total += segment.AreaM2
	}
	return total
}

// snapshot copies the session for external consumption
func (s *session) snapshot() SessionSnapshot {
	excluded := make([]int, 0, len(s.excluded))
	for i := range s.excluded {
		excluded = append(excluded, i)
	}
	sort.Ints(excluded)

	return SessionSnapshot{
		State:           s.state,
		Method:          s.method,
		Location:        s.location,
		Result:          s.result,
		ExcludedIndices: excluded,
		IncludedAreaM2:  s.includedArea(),
	}
}
