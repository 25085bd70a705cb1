package avencmux

import (
	"fmt"

	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/resampler"
	"github.com/xaionaro-go/avencmux/scheduler"
	"github.com/xaionaro-go/avencmux/source"
	"github.com/xaionaro-go/avencmux/types"
)

type StreamState int

const (
	StreamStateDeclared = StreamState(iota)
	StreamStateActive
	StreamStateRetired
)

func (s StreamState) String() string {
	switch s {
	case StreamStateDeclared:
		return "declared"
	case StreamStateActive:
		return "active"
	case StreamStateRetired:
		return "retired"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// Stream is one logical output stream: the generator feeding it, the
// optional rate converter, the encoder and its position on the timeline.
type Stream struct {
	// Index is the index of the stream in the container.
	Index     int
	Encoder   *codec.Encoder
	Converter *resampler.Converter
	Source    source.Source

	// SamplesCount is the amount of audio samples submitted to the encoder.
	SamplesCount int64

	mediaType         types.MediaType
	state             StreamState
	timeBase          types.Rational
	containerTimeBase types.Rational
	nextPTS           int64

	// audio regrouping to the encoder frame size; set only when the
	// converter output has to be re-chunked
	frameSize int
	fifo      *audio.FIFO
	frame     *frame.Frame
}

var _ scheduler.Candidate = (*Stream)(nil)

func newStream(mediaType types.MediaType, encoder *codec.Encoder) *Stream {
	return &Stream{
		Index:     NoStream,
		Encoder:   encoder,
		mediaType: mediaType,
		state:     StreamStateDeclared,
		timeBase:  encoder.Parameters().TimeBase,
	}
}

func (s *Stream) String() string {
	return fmt.Sprintf("%s#%d", s.mediaType, s.Index)
}

func (s *Stream) State() StreamState {
	return s.state
}

func (s *Stream) IsActive() bool {
	return s.state == StreamStateActive
}

// NextPTS is the presentation time of the next frame to encode, in TimeBase.
func (s *Stream) NextPTS() int64 {
	return s.nextPTS
}

// TimeBase is the encoder time base.
func (s *Stream) TimeBase() types.Rational {
	return s.timeBase
}

// ContainerTimeBase is the time base the container chose for the stream.
// It is known only after the header is written.
func (s *Stream) ContainerTimeBase() types.Rational {
	return s.containerTimeBase
}

func (s *Stream) MediaType() types.MediaType {
	return s.mediaType
}

// enableRegrouping makes the stream re-chunk the samples into frames of
// the encoder frame size before submitting them.
func (s *Stream) enableRegrouping(format audio.PCMFormat, frameSize int) error {
	f, err := audio.NewFrame(format, frameSize)
	if err != nil {
		return fmt.Errorf("unable to allocate a frame of %d samples: %w", frameSize, err)
	}
	s.frameSize = frameSize
	s.fifo = audio.NewFIFO(format)
	s.frame = f
	return nil
}

// stampAudio sets the timestamp of f from the samples submitted so far
// and advances the counters by its samples.
func (s *Stream) stampAudio(f *frame.Frame) {
	sampleTB := types.R(1, int64(f.SampleRate))
	f.PTS = types.Rescale(s.SamplesCount, sampleTB, s.timeBase)
	f.TimeBase = s.timeBase
	s.SamplesCount += int64(f.NbSamples)
	s.nextPTS = types.Rescale(s.SamplesCount, sampleTB, s.timeBase)
}

// advanceVideo moves NextPTS past the picture just submitted.
func (s *Stream) advanceVideo() {
	s.nextPTS = s.Source.NextPTS()
}

func (s *Stream) release() {
	if s.frame != nil {
		s.frame.Unref()
		s.frame = nil
	}
	s.fifo = nil
}
