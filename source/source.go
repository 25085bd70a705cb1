// Package source generates (or reads) the uncompressed frames that feed encoders.
package source

import (
	"context"

	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/types"
)

// Source produces frames until it is exhausted.
type Source interface {
	// NextFrame returns the next frame or types.ErrEndOfStream.
	// The returned frame is owned by the source and stays valid until the
	// next call; consumers who need it longer must take a reference.
	NextFrame(ctx context.Context) (*frame.Frame, error)

	// NextPTS is the timestamp of the frame the next call would produce.
	NextPTS() int64

	// TimeBase is the time base of NextPTS and of produced frames.
	TimeBase() types.Rational

	MediaType() types.MediaType
}

// Exhausted reports whether pts (in the time base tb) is at or past
// duration. The comparison is exact.
func Exhausted(pts int64, tb types.Rational, duration types.Rational) bool {
	// pts*tb.Num/tb.Den >= duration.Num/duration.Den
	return types.CompareTS(pts, tb, 1, duration) >= 0
}
