package source

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/types"
)

// VideoPattern generates a moving gradient: picture "i" depends on i only.
type VideoPattern struct {
	Width     int
	Height    int
	FrameRate types.Rational
	Duration  types.Rational

	timeBase  types.Rational
	index     int64
	frame     *frame.Frame
	exhausted bool
}

var _ Source = (*VideoPattern)(nil)

// NewVideoPattern returns a generator stamping frames in timeBase
// (frame "i" gets i/frameRate seconds). A zero duration never stops.
func NewVideoPattern(
	width, height int,
	frameRate types.Rational,
	timeBase types.Rational,
	duration types.Rational,
) (*VideoPattern, error) {
	if !frameRate.IsValid() {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid frame rate %s", frameRate))
	}
	if !timeBase.IsValid() {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid time base %s", timeBase))
	}
	f, err := frame.NewVideo(types.PixelFormatYUV420P, width, height)
	if err != nil {
		return nil, fmt.Errorf("unable to allocate the picture: %w", err)
	}
	return &VideoPattern{
		Width:     width,
		Height:    height,
		FrameRate: frameRate,
		Duration:  duration,
		timeBase:  timeBase,
		frame:     f,
	}, nil
}

func (s *VideoPattern) MediaType() types.MediaType {
	return types.MediaTypeVideo
}

func (s *VideoPattern) TimeBase() types.Rational {
	return s.timeBase
}

func (s *VideoPattern) NextPTS() int64 {
	return types.Rescale(s.index, s.FrameRate.Reverse(), s.timeBase)
}

func (s *VideoPattern) IsExhausted() bool {
	if !s.exhausted && !s.Duration.IsZero() && Exhausted(s.NextPTS(), s.timeBase, s.Duration) {
		s.exhausted = true
	}
	return s.exhausted
}

func (s *VideoPattern) NextFrame(ctx context.Context) (*frame.Frame, error) {
	if s.IsExhausted() {
		return nil, types.ErrEndOfStream
	}

	if err := s.frame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("unable to make the picture writable: %w", err)
	}
	FillPattern(s.frame, s.index)
	s.frame.PTS = s.NextPTS()
	s.frame.TimeBase = s.timeBase
	s.index++
	logger.Tracef(ctx, "generated %s", s.frame)
	return s.frame, nil
}

// FillPattern paints picture number index into a writable YUV420P frame:
// Y = x+y+3i, Cb = 128+y+2i, Cr = 64+x+5i (all modulo 256).
func FillPattern(f *frame.Frame, index int64) {
	planes := f.Planes()
	i := int(index)

	luma, ls := planes[0], f.Linesize(0)
	for y := range f.Height {
		for x := range f.Width {
			luma[y*ls+x] = byte(x + y + i*3)
		}
	}

	cb, cr, cs := planes[1], planes[2], f.Linesize(1)
	for y := range f.Height / 2 {
		for x := range f.Width / 2 {
			cb[y*cs+x] = byte(128 + y + i*2)
			cr[y*cs+x] = byte(64 + x + i*5)
		}
	}
}
