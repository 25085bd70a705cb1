package avencmux

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/resampler"
	"github.com/xaionaro-go/avencmux/source"
	"github.com/xaionaro-go/avencmux/types"
)

type ResampleConfig struct {
	Input     audio.PCMFormat   `yaml:"input"`
	Output    audio.PCMFormat   `yaml:"output"`
	ChunkSize int               `yaml:"chunk_size"`
	Duration  types.Rational    `yaml:"duration"`
	Tone      source.SineConfig `yaml:"tone"`

	// OnCall is called after every conversion step (the final drain included).
	OnCall func(resampler.ConvertCall) `yaml:"-"`
}

func DefaultResampleConfig() ResampleConfig {
	return ResampleConfig{
		Input: audio.PCMFormat{
			SampleFormat:  types.SampleFormatDBL,
			SampleRate:    48000,
			ChannelLayout: types.ChannelLayoutStereo,
		},
		Output: audio.PCMFormat{
			SampleFormat:  types.SampleFormatS16,
			SampleRate:    44100,
			ChannelLayout: types.ChannelLayoutStereo,
		},
		ChunkSize: 1024,
		Duration:  types.R(10, 1),
		Tone:      source.ToneA440(),
	}
}

func (cfg ResampleConfig) validate() error {
	if err := cfg.Input.Validate(); err != nil {
		return fmt.Errorf("invalid input format: %w", err)
	}
	if err := cfg.Output.Validate(); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}
	if cfg.Output.SampleFormat.IsPlanar() {
		return fmt.Errorf("the output is raw interleaved PCM, so the output sample format cannot be planar (%s)", cfg.Output.SampleFormat)
	}
	if cfg.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk size %d", cfg.ChunkSize)
	}
	if !cfg.Duration.IsValid() {
		return fmt.Errorf("invalid duration %s", cfg.Duration)
	}
	return nil
}

type ResampleReport struct {
	Calls         int
	InputSamples  int64
	OutputSamples int64
	Reallocations int
	Capacity      int
	BytesWritten  uint64

	// PlaybackHint is a command playing the written raw audio.
	PlaybackHint string
}

// PlaybackHint returns the ffplay command playing raw audio of the format
// stored at path.
func PlaybackHint(format audio.PCMFormat, path string) string {
	return fmt.Sprintf("ffplay -f %s -ac %d -ar %d %s", format.SampleFormat.RawFormatName(), format.Channels(), format.SampleRate, path)
}

// Resample converts a generated tone and writes the converted samples as
// raw interleaved PCM into w (nil w only measures). The buffered remainder
// is flushed at the end.
func Resample(
	ctx context.Context,
	cfg ResampleConfig,
	engine resampler.Engine,
	w io.Writer,
) (_ret *ResampleReport, _err error) {
	logger.Debugf(ctx, "Resample: %s -> %s", cfg.Input, cfg.Output)
	defer func() { logger.Debugf(ctx, "/Resample: %s -> %s: %v", cfg.Input, cfg.Output, _err) }()

	if err := cfg.validate(); err != nil {
		return nil, newStageError(StageConfigureResample, nil, types.WithKind(types.ErrConfiguration, err))
	}
	if engine == nil {
		return nil, newStageError(StageConfigureResample, nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("the resampling engine is not set")))
	}

	closer := astikit.NewCloser()
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Errorf(ctx, "unable to release the resampler: %v", err)
			if _err == nil {
				_err = newStageError(StageFinalize, nil, types.WithKind(types.ErrResource, err))
			}
		}
	}()

	src, err := source.NewAudioSine(cfg.Tone, cfg.Input, cfg.ChunkSize, cfg.Duration)
	if err != nil {
		return nil, newStageError(StageSetupSource, nil, err)
	}
	conv, err := resampler.NewConverter(ctx, engine, cfg.Input, cfg.Output, cfg.ChunkSize)
	if err != nil {
		return nil, newStageError(StageConfigureResample, nil, err)
	}
	closer.AddWithError(func() error {
		return conv.Close(ctx)
	})

	report := &ResampleReport{
		PlaybackHint: PlaybackHint(cfg.Output, "<output>"),
	}
	emit := func(out *frame.Frame, call resampler.ConvertCall) error {
		report.Calls++
		if cfg.OnCall != nil {
			cfg.OnCall(call)
		}
		if w == nil || out.NbSamples == 0 {
			return nil
		}
		n, err := w.Write(audio.Interleaved(out))
		report.BytesWritten += uint64(n)
		if err != nil {
			return newStageError(StageWrite, nil, types.WithKind(types.ErrResource, fmt.Errorf("unable to write %d samples: %w", out.NbSamples, err)))
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, newStageError(StageResample, nil, err)
		}
		in, err := src.NextFrame(ctx)
		if errors.Is(err, types.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, newStageError(StageGenerate, nil, err)
		}
		out, call, err := conv.Convert(ctx, in)
		if err != nil {
			return nil, newStageError(StageResample, nil, err)
		}
		logger.Tracef(ctx, "in:%d out:%d", call.InputSamples, call.Produced)
		if err := emit(out, call); err != nil {
			return nil, err
		}
	}

	out, call, err := conv.Drain(ctx)
	if err != nil {
		return nil, newStageError(StageResample, nil, err)
	}
	if err := emit(out, call); err != nil {
		return nil, err
	}

	report.InputSamples = conv.TotalIn()
	report.OutputSamples = conv.TotalOut()
	report.Reallocations = conv.Reallocations()
	report.Capacity = conv.Capacity()
	logger.Infof(ctx, "resampled: %s", report)
	return report, nil
}
