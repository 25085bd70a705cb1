package source

import (
	"context"
	"fmt"
	"math"

	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/types"
)

type SineConfig struct {
	Frequency                   float64 `yaml:"frequency"`
	FrequencyIncrementPerSecond float64 `yaml:"frequency_increment_per_second"`
	Amplitude                   float64 `yaml:"amplitude"`
}

// ToneSweep is a 110Hz tone rising by 110Hz every second.
func ToneSweep() SineConfig {
	return SineConfig{
		Frequency:                   110,
		FrequencyIncrementPerSecond: 110,
		Amplitude:                   10000.0 / 32768.0,
	}
}

// ToneA440 is a flat full scale 440Hz tone.
func ToneA440() SineConfig {
	return SineConfig{
		Frequency: 440,
		Amplitude: 1,
	}
}

// AudioSine generates a sine wave whose phase increment itself grows by a
// constant every sample, the same value on every channel.
type AudioSine struct {
	Config    SineConfig
	Format    audio.PCMFormat
	FrameSize int
	Duration  types.Rational

	t         float64
	tincr     float64
	tincr2    float64
	nextPTS   int64
	frame     *frame.Frame
	samples   []float64
	exhausted bool
}

var _ Source = (*AudioSine)(nil)

// NewAudioSine returns a generator of frames of frameSize samples that stops
// once the next timestamp reaches duration (a zero duration never stops).
func NewAudioSine(
	cfg SineConfig,
	format audio.PCMFormat,
	frameSize int,
	duration types.Rational,
) (*AudioSine, error) {
	if err := format.Validate(); err != nil {
		return nil, types.WithKind(types.ErrConfiguration, err)
	}
	if frameSize <= 0 {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid frame size %d", frameSize))
	}
	f, err := audio.NewFrame(format, frameSize)
	if err != nil {
		return nil, fmt.Errorf("unable to allocate the frame: %w", err)
	}
	rate := float64(format.SampleRate)
	return &AudioSine{
		Config:    cfg,
		Format:    format,
		FrameSize: frameSize,
		Duration:  duration,
		tincr:     2 * math.Pi * cfg.Frequency / rate,
		tincr2:    2 * math.Pi * cfg.FrequencyIncrementPerSecond / rate / rate,
		frame:     f,
		samples:   make([]float64, frameSize),
	}, nil
}

func (s *AudioSine) MediaType() types.MediaType {
	return types.MediaTypeAudio
}

func (s *AudioSine) TimeBase() types.Rational {
	return types.R(1, int64(s.Format.SampleRate))
}

func (s *AudioSine) NextPTS() int64 {
	return s.nextPTS
}

// IsExhausted reports whether the generator will not produce frames anymore.
func (s *AudioSine) IsExhausted() bool {
	if !s.exhausted && !s.Duration.IsZero() && Exhausted(s.nextPTS, s.TimeBase(), s.Duration) {
		s.exhausted = true
	}
	return s.exhausted
}

func (s *AudioSine) NextFrame(ctx context.Context) (*frame.Frame, error) {
	if s.IsExhausted() {
		return nil, types.ErrEndOfStream
	}

	if err := s.frame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("unable to make the frame writable: %w", err)
	}

	for i := range s.samples {
		s.samples[i] = s.Config.Amplitude * math.Sin(s.t)
		s.t += s.tincr
		s.tincr += s.tincr2
	}
	s.frame.NbSamples = s.FrameSize
	for ch := range s.Format.Channels() {
		if err := audio.FillSamples(s.frame, ch, s.samples); err != nil {
			return nil, types.WithKind(types.ErrProcessing, fmt.Errorf("unable to fill channel %d: %w", ch, err))
		}
	}
	s.frame.PTS = s.nextPTS
	s.frame.TimeBase = s.TimeBase()
	s.nextPTS += int64(s.FrameSize)
	logger.Tracef(ctx, "generated %s", s.frame)
	return s.frame, nil
}
