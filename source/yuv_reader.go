package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/types"
)

// YUVReader reads raw tightly packed YUV420P pictures. A trailing
// incomplete picture is padded with zeros.
type YUVReader struct {
	Reader    io.Reader
	FrameRate types.Rational

	timeBase  types.Rational
	index     int64
	frame     *frame.Frame
	exhausted bool
}

var _ Source = (*YUVReader)(nil)

func NewYUVReader(
	r io.Reader,
	width, height int,
	frameRate types.Rational,
	timeBase types.Rational,
) (*YUVReader, error) {
	if !frameRate.IsValid() || !timeBase.IsValid() {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid frame rate %s or time base %s", frameRate, timeBase))
	}
	f, err := frame.NewVideo(types.PixelFormatYUV420P, width, height)
	if err != nil {
		return nil, fmt.Errorf("unable to allocate the picture: %w", err)
	}
	return &YUVReader{
		Reader:    r,
		FrameRate: frameRate,
		timeBase:  timeBase,
		frame:     f,
	}, nil
}

func (s *YUVReader) MediaType() types.MediaType {
	return types.MediaTypeVideo
}

func (s *YUVReader) TimeBase() types.Rational {
	return s.timeBase
}

func (s *YUVReader) NextPTS() int64 {
	return types.Rescale(s.index, s.FrameRate.Reverse(), s.timeBase)
}

func (s *YUVReader) NextFrame(ctx context.Context) (*frame.Frame, error) {
	if s.exhausted {
		return nil, types.ErrEndOfStream
	}
	if err := s.frame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("unable to make the picture writable: %w", err)
	}

	var total int
	planes := s.frame.Planes()
	for idx, plane := range planes {
		n, err := io.ReadFull(s.Reader, plane)
		total += n
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, types.WithKind(types.ErrResource, fmt.Errorf("unable to read picture %d: %w", s.index, err))
		}
		s.exhausted = true
		if total == 0 {
			return nil, types.ErrEndOfStream
		}
		clear(plane[n:])
		for _, rest := range planes[idx+1:] {
			clear(rest)
		}
		break
	}

	s.frame.PTS = s.NextPTS()
	s.frame.TimeBase = s.timeBase
	s.index++
	return s.frame, nil
}
