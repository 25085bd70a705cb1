package avencmux

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/output"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/resampler"
	"github.com/xaionaro-go/avencmux/scheduler"
	"github.com/xaionaro-go/avencmux/source"
	"github.com/xaionaro-go/avencmux/types"
)

const (
	// VariableFrameSize is the amount of samples per audio frame used with
	// encoders accepting frames of any size.
	VariableFrameSize = 10000
)

type MuxConfig struct {
	Output string `yaml:"output"`

	// Format is the container format name; empty means guessing it from
	// Output.
	Format   string         `yaml:"format,omitempty"`
	Duration types.Rational `yaml:"duration"`

	// Video and Audio describe the encoders; nil disables the stream.
	Video *codec.Parameters `yaml:"video,omitempty"`
	Audio *codec.Parameters `yaml:"audio,omitempty"`

	// SourceSampleFormat is the sample format of the generated audio; it
	// is converted if the encoder wants another one.
	SourceSampleFormat types.SampleFormat `yaml:"source_sample_format,omitempty"`

	// Priority breaks ties between streams ready at the same time,
	// e.g. "video,audio".
	Priority scheduler.Priority `yaml:"priority,omitempty"`

	// DiscardNonMonotonic drops packets breaking the per-stream DTS order
	// instead of failing.
	DiscardNonMonotonic bool `yaml:"discard_non_monotonic,omitempty"`
}

func DefaultMuxConfig() MuxConfig {
	return MuxConfig{
		Output:   "output.flv",
		Duration: types.R(5, 1),
		Video: &codec.Parameters{
			CodecName:   "libx264",
			BitRate:     400000,
			Width:       352,
			Height:      288,
			PixelFormat: types.PixelFormatYUV420P,
			FrameRate:   types.R(25, 1),
			GOPSize:     25,
		},
		Audio: &codec.Parameters{
			CodecName:     "aac",
			BitRate:       64000,
			SampleRate:    44100,
			ChannelLayout: types.ChannelLayoutStereo,
		},
		SourceSampleFormat: types.SampleFormatS16,
		Priority:           scheduler.DefaultPriority(),
	}
}

// SoftwareMuxConfig is DefaultMuxConfig with the codecs of the software
// encoding engine.
func SoftwareMuxConfig() MuxConfig {
	cfg := DefaultMuxConfig()
	cfg.Video.CodecName = "rawvideo"
	cfg.Audio.CodecName = "pcm_s16le"
	return cfg
}

func (cfg MuxConfig) validate(engines Engines) error {
	if cfg.Output == "" {
		return fmt.Errorf("the output is not set")
	}
	if !cfg.Duration.IsValid() {
		return fmt.Errorf("invalid duration %s", cfg.Duration)
	}
	if cfg.Video == nil && cfg.Audio == nil {
		return fmt.Errorf("no streams are configured")
	}
	if engines.Encoder == nil || engines.Output == nil {
		return fmt.Errorf("the encoding and the output engines are required")
	}
	return nil
}

type StreamReport struct {
	Index             int
	MediaType         types.MediaType
	Codec             string
	EncoderTimeBase   types.Rational
	ContainerTimeBase types.Rational
	Frames            uint64
	Packets           uint64
	Duration          time.Duration
}

type MuxReport struct {
	Output     string
	Streams    []StreamReport
	Statistics types.Statistics
	Elapsed    time.Duration
}

type muxer struct {
	config   MuxConfig
	engines  Engines
	closer   *astikit.Closer
	writer   *output.Writer
	streams  []*Stream
	counters types.Counters
}

// Mux encodes a synthetic picture and a synthetic tone for the configured
// duration and muxes them into the output, interleaving the streams by
// presentation time. Everything acquired is released before returning,
// also when the run is aborted (the trailer is written only on success).
// Failures are reported as *StageError.
func Mux(
	ctx context.Context,
	cfg MuxConfig,
	engines Engines,
) (_ret *MuxReport, _err error) {
	logger.Debugf(ctx, "Mux: '%s'", cfg.Output)
	defer func() { logger.Debugf(ctx, "/Mux: '%s': %v", cfg.Output, _err) }()

	if err := cfg.validate(engines); err != nil {
		return nil, newStageError(StageOpenOutput, nil, types.WithKind(types.ErrConfiguration, err))
	}
	if cfg.SourceSampleFormat == types.SampleFormatNone {
		cfg.SourceSampleFormat = types.SampleFormatS16
	}
	if cfg.Priority == nil {
		cfg.Priority = scheduler.DefaultPriority()
	}

	m := &muxer{
		config:  cfg,
		engines: engines,
		closer:  astikit.NewCloser(),
	}
	defer func() {
		if err := m.closer.Close(); err != nil {
			logger.Errorf(ctx, "unable to release the resources: %v", err)
			if _err == nil {
				_err = newStageError(StageFinalize, nil, types.WithKind(types.ErrResource, err))
			}
		}
	}()

	startedAt := time.Now()
	if err := m.setup(ctx); err != nil {
		return nil, err
	}
	if err := m.loop(ctx); err != nil {
		return nil, err
	}
	if err := m.writer.Finalize(ctx); err != nil {
		return nil, newStageError(StageFinalize, nil, err)
	}

	report := m.report()
	report.Elapsed = time.Since(startedAt)
	logger.Infof(ctx, "muxed '%s': %s", cfg.Output, report)
	return report, nil
}

func setupError(stage Stage, mediaType types.MediaType, err error) *StageError {
	return &StageError{
		Stage:     stage,
		Stream:    NoStream,
		MediaType: mediaType,
		Err:       err,
	}
}

func (m *muxer) setup(ctx context.Context) error {
	container, err := m.engines.Output.Open(ctx, m.config.Output, m.config.Format)
	if err != nil {
		return newStageError(StageOpenOutput, nil, err)
	}
	m.writer = output.NewWriter(container)
	m.writer.DiscardNonMonotonic = m.config.DiscardNonMonotonic
	m.closer.AddWithError(func() error {
		return m.writer.Close(ctx)
	})

	if m.config.Video != nil {
		if err := m.addVideo(logger.CtxWithField(ctx, "media_type", types.MediaTypeVideo), *m.config.Video); err != nil {
			return err
		}
	}
	if m.config.Audio != nil {
		if err := m.addAudio(logger.CtxWithField(ctx, "media_type", types.MediaTypeAudio), *m.config.Audio); err != nil {
			return err
		}
	}

	if err := m.writer.WriteHeader(ctx); err != nil {
		return newStageError(StageWriteHeader, nil, err)
	}
	for _, s := range m.streams {
		s.containerTimeBase = m.writer.StreamTimeBase(s.Index)
		s.state = StreamStateActive
		logger.Debugf(ctx, "stream %s: %s; container time base: %s", s, s.Encoder.Parameters(), s.containerTimeBase)
	}
	return nil
}

func (m *muxer) openEncoder(
	ctx context.Context,
	params codec.Parameters,
) (*codec.Encoder, error) {
	params.GlobalHeader = m.writer.NeedsGlobalHeader()
	enc, err := codec.NewEncoder(ctx, m.engines.Encoder, params)
	if err != nil {
		return nil, setupError(StageOpenEncoder, params.MediaType, err)
	}
	m.closer.AddWithError(func() error {
		return enc.Close(ctx)
	})
	return enc, nil
}

func (m *muxer) addVideo(
	ctx context.Context,
	params codec.Parameters,
) error {
	params.MediaType = types.MediaTypeVideo
	if !params.TimeBase.IsValid() && params.FrameRate.IsValid() {
		params.TimeBase = params.FrameRate.Reverse()
	}
	enc, err := m.openEncoder(ctx, params)
	if err != nil {
		return err
	}
	s := newStream(types.MediaTypeVideo, enc)

	final := enc.Parameters()
	if final.PixelFormat != types.PixelFormatYUV420P {
		return setupError(StageSetupSource, s.mediaType, types.WithKind(types.ErrConfiguration, fmt.Errorf("the encoder wants pixel format %s, but only %s pictures are generated", final.PixelFormat, types.PixelFormatYUV420P)))
	}
	src, err := source.NewVideoPattern(final.Width, final.Height, final.FrameRate, s.timeBase, m.config.Duration)
	if err != nil {
		return setupError(StageSetupSource, s.mediaType, err)
	}
	s.Source = src
	s.nextPTS = src.NextPTS()
	return m.declare(ctx, s)
}

func (m *muxer) addAudio(
	ctx context.Context,
	params codec.Parameters,
) error {
	params.MediaType = types.MediaTypeAudio
	if !params.TimeBase.IsValid() && params.SampleRate > 0 {
		params.TimeBase = types.R(1, int64(params.SampleRate))
	}
	enc, err := m.openEncoder(ctx, params)
	if err != nil {
		return err
	}
	s := newStream(types.MediaTypeAudio, enc)

	final := enc.Parameters()
	frameSize := final.FrameSize
	if frameSize == 0 {
		frameSize = VariableFrameSize
	}
	encoderFormat := final.PCMFormat()
	sourceFormat := audio.PCMFormat{
		SampleFormat:  m.config.SourceSampleFormat,
		SampleRate:    final.SampleRate,
		ChannelLayout: final.ChannelLayout,
	}
	if sourceFormat != encoderFormat {
		if m.engines.Resampler == nil {
			return setupError(StageConfigureResample, s.mediaType, types.WithKind(types.ErrConfiguration, fmt.Errorf("%s has to be converted to %s, but no resampling engine is set", sourceFormat, encoderFormat)))
		}
		conv, err := resampler.NewConverter(ctx, m.engines.Resampler, sourceFormat, encoderFormat, frameSize)
		if err != nil {
			return setupError(StageConfigureResample, s.mediaType, err)
		}
		m.closer.AddWithError(func() error {
			return conv.Close(ctx)
		})
		s.Converter = conv
		if err := s.enableRegrouping(encoderFormat, frameSize); err != nil {
			return setupError(StageConfigureResample, s.mediaType, types.WithKind(types.ErrResource, err))
		}
		m.closer.Add(s.release)
	}

	src, err := source.NewAudioSine(source.ToneSweep(), sourceFormat, frameSize, m.config.Duration)
	if err != nil {
		return setupError(StageSetupSource, s.mediaType, err)
	}
	s.Source = src
	return m.declare(ctx, s)
}

func (m *muxer) declare(ctx context.Context, s *Stream) error {
	idx, err := m.writer.AddStream(ctx, s.Encoder.Parameters(), s.Encoder.Context())
	if err != nil {
		return setupError(StageDeclareStream, s.mediaType, err)
	}
	s.Index = idx
	m.streams = append(m.streams, s)
	return nil
}

func (m *muxer) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return newStageError(StageEncode, nil, err)
		}
		idx := scheduler.Select(m.config.Priority, m.streams)
		if idx < 0 {
			return nil
		}
		if err := m.step(ctx, m.streams[idx]); err != nil {
			return err
		}
	}
}

// step moves one frame of s through the pipeline; once the source is
// exhausted it flushes the stream and retires it.
func (m *muxer) step(ctx context.Context, s *Stream) error {
	f, err := s.Source.NextFrame(ctx)
	switch {
	case errors.Is(err, types.ErrEndOfStream):
		return m.finish(ctx, s)
	case err != nil:
		return newStageError(StageGenerate, s, err)
	}
	m.counters.FramesGenerated.Increment(s.mediaType, uint64(f.Size()))

	switch s.mediaType {
	case types.MediaTypeVideo:
		s.advanceVideo()
		return m.encode(ctx, s, f)
	default:
		if s.Converter == nil {
			s.stampAudio(f)
			return m.encode(ctx, s, f)
		}
		out, call, err := s.Converter.Convert(ctx, f)
		if err != nil {
			return newStageError(StageResample, s, err)
		}
		logger.Tracef(ctx, "%s: converted: %+v", s, call)
		if err := s.fifo.Write(out); err != nil {
			return newStageError(StageResample, s, types.WithKind(types.ErrProcessing, err))
		}
		return m.encodeBuffered(ctx, s, false)
	}
}

// encodeBuffered submits the regrouped samples frame by frame; with
// partial set the remainder smaller than a frame is submitted too.
func (m *muxer) encodeBuffered(
	ctx context.Context,
	s *Stream,
	partial bool,
) error {
	for s.fifo.Size() >= s.frameSize || (partial && s.fifo.Size() > 0) {
		if err := s.frame.MakeWritable(); err != nil {
			return newStageError(StageResample, s, err)
		}
		if _, err := s.fifo.Read(s.frame, s.frameSize); err != nil {
			return newStageError(StageResample, s, types.WithKind(types.ErrProcessing, err))
		}
		s.stampAudio(s.frame)
		if err := m.encode(ctx, s, s.frame); err != nil {
			return err
		}
	}
	return nil
}

func (m *muxer) encode(
	ctx context.Context,
	s *Stream,
	f *frame.Frame,
) error {
	pkts, err := s.Encoder.Submit(ctx, f)
	if err != nil {
		releasePackets(pkts)
		return newStageError(StageEncode, s, err)
	}
	if f != nil {
		m.counters.FramesEncoded.Increment(s.mediaType, uint64(f.Size()))
	}
	return m.write(ctx, s, pkts)
}

func (m *muxer) write(
	ctx context.Context,
	s *Stream,
	pkts []*packet.Packet,
) error {
	for idx, pkt := range pkts {
		m.counters.PacketsEncoded.Increment(s.mediaType, uint64(len(pkt.Data)))
		if err := m.writer.WritePacket(ctx, s.Index, pkt); err != nil {
			releasePackets(pkts[idx+1:])
			return newStageError(StageWrite, s, err)
		}
	}
	return nil
}

func (m *muxer) finish(ctx context.Context, s *Stream) (_err error) {
	logger.Debugf(ctx, "finish: %s", s)
	defer func() { logger.Debugf(ctx, "/finish: %s: %v", s, _err) }()

	if s.Converter != nil {
		out, call, err := s.Converter.Drain(ctx)
		if err != nil {
			return newStageError(StageResample, s, err)
		}
		logger.Debugf(ctx, "%s: drained the converter: %+v", s, call)
		if err := s.fifo.Write(out); err != nil {
			return newStageError(StageResample, s, types.WithKind(types.ErrProcessing, err))
		}
		if err := m.encodeBuffered(ctx, s, true); err != nil {
			return err
		}
	}
	if err := m.encode(ctx, s, nil); err != nil {
		return err
	}
	if err := m.writer.FinishStream(ctx, s.Index); err != nil {
		return newStageError(StageWrite, s, err)
	}
	s.state = StreamStateRetired
	return nil
}

func releasePackets(pkts []*packet.Packet) {
	for _, pkt := range pkts {
		packet.Pool.Put(pkt)
	}
}

func (m *muxer) report() *MuxReport {
	stats := m.counters.ToStats()
	stats.PacketsWritten = m.writer.PacketsWritten.ToStats()
	report := &MuxReport{
		Output:     m.config.Output,
		Statistics: stats,
	}
	for _, s := range m.streams {
		report.Streams = append(report.Streams, StreamReport{
			Index:             s.Index,
			MediaType:         s.mediaType,
			Codec:             s.Encoder.Parameters().CodecName,
			EncoderTimeBase:   s.timeBase,
			ContainerTimeBase: s.containerTimeBase,
			Frames:            s.Encoder.FramesCount(),
			Packets:           s.Encoder.PacketsCount(),
			Duration:          tsDuration(s.nextPTS, s.timeBase),
		})
	}
	return report
}

func tsDuration(ts int64, tb types.Rational) time.Duration {
	return time.Duration(types.Rescale(ts, tb, types.R(1, int64(time.Second))))
}
