package codec

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
)

const (
	// SoftwareDefaultFrameSize is the audio frame size the software engine
	// negotiates when none is requested (the one of AAC).
	SoftwareDefaultFrameSize = 1024
)

var pcmCodecs = map[string]types.SampleFormat{
	"pcm_u8":    types.SampleFormatU8,
	"pcm_s16le": types.SampleFormatS16,
	"pcm_s32le": types.SampleFormatS32,
	"pcm_f32le": types.SampleFormatFLT,
	"pcm_f64le": types.SampleFormatDBL,
}

// PCMCodecName returns the name of the raw PCM codec storing sampleFormat.
func PCMCodecName(sampleFormat types.SampleFormat) (string, bool) {
	for name, f := range pcmCodecs {
		if f == sampleFormat.Packed() {
			return name, true
		}
	}
	return "", false
}

type SoftwareConfig struct {
	// Delay is the amount of frames the encoder holds before emitting
	// the first packet.
	Delay int
}

// Software is a pure-Go engine for the raw codecs ("pcm_*" and "rawvideo").
// Frames are held by reference until their packets are emitted.
type Software struct {
	Config SoftwareConfig
}

var _ Engine = Software{}

func NewSoftware(cfg SoftwareConfig) Software {
	return Software{Config: cfg}
}

func (s Software) Open(
	ctx context.Context,
	params Parameters,
) (_ret Context, _err error) {
	logger.Debugf(ctx, "Software.Open: %s", params)
	defer func() { logger.Debugf(ctx, "/Software.Open: %s: %v", params, _err) }()

	if err := params.Validate(); err != nil {
		return nil, types.WithKind(types.ErrConfiguration, err)
	}
	switch params.Family() {
	case FamilyPCM:
		sampleFormat, ok := pcmCodecs[params.CodecName]
		if !ok {
			return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unknown PCM codec %q", params.CodecName))
		}
		if params.SampleFormat == types.SampleFormatNone {
			params.SampleFormat = sampleFormat
		}
		if params.SampleFormat != sampleFormat {
			return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("codec %s requires sample format %s, but got %s", params.CodecName, sampleFormat, params.SampleFormat))
		}
		if params.FrameSize == 0 {
			params.FrameSize = SoftwareDefaultFrameSize
		}
		params.BitRate = int64(params.SampleRate) * int64(params.PCMFormat().BytesPerFrame()) * 8
	case FamilyRawVideo:
		if params.PixelFormat != types.PixelFormatYUV420P {
			return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("rawvideo supports only yuv420p, but got %s", params.PixelFormat))
		}
	default:
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("codec %q is not supported by the software engine", params.CodecName))
	}
	if s.Config.Delay < 0 {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid delay %d", s.Config.Delay))
	}
	params.TimeBase = params.DefaultTimeBase()
	params.ExtraData = nil
	return &softwareEncoder{
		params: params,
		delay:  s.Config.Delay,
	}, nil
}

type softwareEncoder struct {
	params      Parameters
	delay       int
	queue       []*frame.Frame
	frameIndex  int64
	endOfStream bool
	closed      bool
}

func (e *softwareEncoder) Parameters() Parameters {
	return e.params
}

func (e *softwareEncoder) SubmitFrame(ctx context.Context, f *frame.Frame) error {
	if e.closed {
		return fmt.Errorf("the encoder is closed")
	}
	if e.endOfStream {
		return types.ErrEndOfStream
	}
	if f == nil {
		e.endOfStream = true
		return nil
	}
	if len(e.queue) > e.delay {
		return types.ErrWouldBlock
	}
	if err := e.checkFrame(f); err != nil {
		return err
	}
	e.queue = append(e.queue, f.Ref())
	return nil
}

func (e *softwareEncoder) checkFrame(f *frame.Frame) error {
	if f.MediaType != e.params.MediaType {
		return fmt.Errorf("expected a %s frame, but got %s", e.params.MediaType, f.MediaType)
	}
	switch e.params.MediaType {
	case types.MediaTypeAudio:
		if audio.FormatOf(f) != e.params.PCMFormat() {
			return fmt.Errorf("expected %s, but got %s", e.params.PCMFormat(), audio.FormatOf(f))
		}
		if f.NbSamples > e.params.FrameSize {
			return fmt.Errorf("the frame has %d samples, while the frame size is %d", f.NbSamples, e.params.FrameSize)
		}
	case types.MediaTypeVideo:
		if f.Width != e.params.Width || f.Height != e.params.Height || f.PixelFormat != e.params.PixelFormat {
			return fmt.Errorf("expected %dx%d %s, but got %dx%d %s", e.params.Width, e.params.Height, e.params.PixelFormat, f.Width, f.Height, f.PixelFormat)
		}
	}
	if f.TimeBase.IsValid() && f.TimeBase != e.params.TimeBase {
		return fmt.Errorf("the frame time base %s differs from the encoder time base %s", f.TimeBase, e.params.TimeBase)
	}
	return nil
}

func (e *softwareEncoder) RetrievePacket(ctx context.Context) (*packet.Packet, error) {
	if e.closed {
		return nil, fmt.Errorf("the encoder is closed")
	}
	if len(e.queue) == 0 || (len(e.queue) <= e.delay && !e.endOfStream) {
		if e.endOfStream {
			return nil, types.ErrEndOfStream
		}
		return nil, types.ErrWouldBlock
	}

	f := e.queue[0]
	e.queue = e.queue[1:]
	defer frame.Release(f)

	pkt := packet.Get()
	pkt.MediaType = e.params.MediaType
	pkt.TimeBase = e.params.TimeBase
	pkt.PTS = f.PTS
	pkt.DTS = f.PTS
	switch e.params.MediaType {
	case types.MediaTypeAudio:
		pkt.Data = append(pkt.Data[:0], audio.Interleaved(f)...)
		pkt.Duration = types.Rescale(int64(f.NbSamples), types.R(1, int64(f.SampleRate)), e.params.TimeBase)
		pkt.Key = true
	case types.MediaTypeVideo:
		pkt.Data = pkt.Data[:0]
		for _, plane := range f.Bytes() {
			pkt.Data = append(pkt.Data, plane...)
		}
		pkt.Duration = types.Rescale(1, e.params.FrameRate.Reverse(), e.params.TimeBase)
		pkt.Key = e.params.GOPSize <= 1 || e.frameIndex%int64(e.params.GOPSize) == 0
	}
	e.frameIndex++
	return pkt, nil
}

func (e *softwareEncoder) Close(ctx context.Context) error {
	for _, f := range e.queue {
		frame.Release(f)
	}
	e.queue = nil
	e.closed = true
	return nil
}
