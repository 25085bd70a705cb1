// Package scheduler decides which stream produces the next packet.
package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xaionaro-go/avencmux/types"
)

// Candidate is a stream competing for the next encoding step.
type Candidate interface {
	IsActive() bool
	NextPTS() int64
	TimeBase() types.Rational
	MediaType() types.MediaType
}

// Priority breaks ties between candidates with equal presentation times:
// the lower value wins. Media types not present in the map lose to the
// ones present.
type Priority map[types.MediaType]int

// DefaultPriority prefers video over audio.
func DefaultPriority() Priority {
	return Priority{
		types.MediaTypeVideo: 0,
		types.MediaTypeAudio: 1,
	}
}

// ParsePriority parses a comma-separated list of media types, the first one
// winning ties, e.g. "audio,video".
func ParsePriority(s string) (Priority, error) {
	p := Priority{}
	for idx, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		mediaType, err := types.MediaTypeFromString(item)
		if err != nil {
			return nil, fmt.Errorf("unable to parse priority %q: %w", s, err)
		}
		if _, ok := p[mediaType]; ok {
			return nil, fmt.Errorf("unable to parse priority %q: %s is listed twice", s, mediaType)
		}
		p[mediaType] = idx
	}
	return p, nil
}

// Order returns the media types from the highest priority to the lowest.
func (p Priority) Order() []types.MediaType {
	result := make([]types.MediaType, 0, len(p))
	for mediaType := range p {
		result = append(result, mediaType)
	}
	sort.Slice(result, func(i, j int) bool {
		if p[result[i]] != p[result[j]] {
			return p[result[i]] < p[result[j]]
		}
		return result[i] < result[j]
	})
	return result
}

func (p Priority) String() string {
	order := p.Order()
	names := make([]string, 0, len(order))
	for _, mediaType := range order {
		names = append(names, mediaType.String())
	}
	return strings.Join(names, ",")
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p Priority) of(mediaType types.MediaType) int {
	if v, ok := p[mediaType]; ok {
		return v
	}
	return len(p)
}

// Select returns the index of the active candidate with the smallest next
// presentation time, compared exactly across time bases. Among equal times
// the one with the best priority wins, then the one declared first.
// It returns -1 if no candidate is active.
func Select[C Candidate](
	priority Priority,
	candidates []C,
) int {
	best := -1
	for idx, c := range candidates {
		if !c.IsActive() {
			continue
		}
		if best < 0 || less(priority, c, candidates[best]) {
			best = idx
		}
	}
	return best
}

// less reports whether a must go strictly before b; equal candidates keep
// the declaration order.
func less(priority Priority, a, b Candidate) bool {
	switch types.CompareTS(a.NextPTS(), a.TimeBase(), b.NextPTS(), b.TimeBase()) {
	case -1:
		return true
	case 1:
		return false
	}
	return priority.of(a.MediaType()) < priority.of(b.MediaType())
}
