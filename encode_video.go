package avencmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/source"
	"github.com/xaionaro-go/avencmux/types"
)

type EncodeVideoConfig struct {
	Video codec.Parameters `yaml:"video"`

	// Duration limits the synthetic pattern; it is ignored when Input is set.
	Duration types.Rational `yaml:"duration"`

	// Input provides raw YUV420P pictures; nil means the synthetic pattern.
	Input io.Reader `yaml:"-"`
}

// DefaultVideoTuning returns the encoder knobs used by default for codecName.
func DefaultVideoTuning(codecName string) codec.Tuning {
	t := codec.Tuning{
		Preset:  "medium",
		Tune:    "zerolatency",
		Profile: "main",
	}
	if codecName == "libx265" {
		t.CodecParams = "keyint=25:frame-threads=4"
	}
	return t
}

func DefaultEncodeVideoConfig() EncodeVideoConfig {
	const codecName = "libx264"
	return EncodeVideoConfig{
		Video: codec.Parameters{
			MediaType:   types.MediaTypeVideo,
			CodecName:   codecName,
			BitRate:     3000000,
			Width:       1280,
			Height:      720,
			PixelFormat: types.PixelFormatYUV420P,
			FrameRate:   types.R(25, 1),
			GOPSize:     25,
			Tuning:      DefaultVideoTuning(codecName),
		},
		Duration: types.R(5, 1),
	}
}

type EncodeVideoReport struct {
	Codec      string
	TimeBase   types.Rational
	Frames     uint64
	Packets    uint64
	KeyPackets uint64
	Bytes      uint64

	// NALHistogram and RandomAccessUnits are collected for H.264/H.265 only.
	NALHistogram      codec.NALHistogram
	RandomAccessUnits uint64

	Duration   time.Duration
	BitRate    float64
	EncodeTime time.Duration
}

// NALTypes returns the NAL unit types met, sorted by name.
func (r *EncodeVideoReport) NALTypes() []string {
	result := make([]string, 0, len(r.NALHistogram))
	for typ := range r.NALHistogram {
		result = append(result, typ)
	}
	sort.Strings(result)
	return result
}

// AverageFrameTime is the encoding wall-clock time per frame.
func (r *EncodeVideoReport) AverageFrameTime() time.Duration {
	if r.Frames == 0 {
		return 0
	}
	return r.EncodeTime / time.Duration(r.Frames)
}

// EncodeVideo encodes pictures into an elementary stream written into w
// (nil w only measures), timing every encoder call.
func EncodeVideo(
	ctx context.Context,
	cfg EncodeVideoConfig,
	engine codec.Engine,
	w io.Writer,
) (_ret *EncodeVideoReport, _err error) {
	logger.Debugf(ctx, "EncodeVideo: %s", cfg.Video)
	defer func() { logger.Debugf(ctx, "/EncodeVideo: %s: %v", cfg.Video, _err) }()

	if engine == nil {
		return nil, setupError(StageOpenEncoder, types.MediaTypeVideo, types.WithKind(types.ErrConfiguration, fmt.Errorf("the encoding engine is not set")))
	}
	if cfg.Input == nil && !cfg.Duration.IsValid() {
		return nil, setupError(StageSetupSource, types.MediaTypeVideo, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid duration %s", cfg.Duration)))
	}

	params := cfg.Video
	params.MediaType = types.MediaTypeVideo
	if !params.TimeBase.IsValid() {
		params.TimeBase = codec.VideoTimeBase(params.CodecName, params.FrameRate)
	}

	closer := astikit.NewCloser()
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Errorf(ctx, "unable to release the encoder: %v", err)
			if _err == nil {
				_err = newStageError(StageFinalize, nil, types.WithKind(types.ErrResource, err))
			}
		}
	}()

	enc, err := codec.NewEncoder(ctx, engine, params)
	if err != nil {
		return nil, setupError(StageOpenEncoder, types.MediaTypeVideo, err)
	}
	closer.AddWithError(func() error {
		return enc.Close(ctx)
	})
	s := newStream(types.MediaTypeVideo, enc)
	s.Index = 0

	final := enc.Parameters()
	if final.PixelFormat != types.PixelFormatYUV420P {
		return nil, newStageError(StageSetupSource, s, types.WithKind(types.ErrConfiguration, fmt.Errorf("the encoder wants pixel format %s, but only %s input is supported", final.PixelFormat, types.PixelFormatYUV420P)))
	}
	if cfg.Input != nil {
		s.Source, err = source.NewYUVReader(cfg.Input, final.Width, final.Height, final.FrameRate, s.timeBase)
	} else {
		s.Source, err = source.NewVideoPattern(final.Width, final.Height, final.FrameRate, s.timeBase, cfg.Duration)
	}
	if err != nil {
		return nil, newStageError(StageSetupSource, s, err)
	}

	report := &EncodeVideoReport{
		Codec:        final.CodecName,
		TimeBase:     s.timeBase,
		NALHistogram: codec.NALHistogram{},
	}
	encode := func(f *frame.Frame) error {
		startedAt := time.Now()
		pkts, err := enc.Submit(ctx, f)
		elapsed := time.Since(startedAt)
		report.EncodeTime += elapsed
		if err != nil {
			releasePackets(pkts)
			return newStageError(StageEncode, s, err)
		}
		if f != nil {
			report.Frames++
			logger.Debugf(ctx, "frame pts:%d: encode time: %s", f.PTS, elapsed)
		}
		return collectPackets(ctx, s, report, pkts, w)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, newStageError(StageEncode, s, err)
		}
		f, err := s.Source.NextFrame(ctx)
		if errors.Is(err, types.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, newStageError(StageGenerate, s, err)
		}
		if err := encode(f); err != nil {
			return nil, err
		}
	}
	if err := encode(nil); err != nil {
		return nil, err
	}

	report.Duration = tsDuration(s.Source.NextPTS(), s.timeBase)
	if seconds := report.Duration.Seconds(); seconds > 0 {
		report.BitRate = float64(report.Bytes) * 8 / seconds
	}
	logger.Infof(ctx, "encoded: %s", report)
	return report, nil
}

func collectPackets(
	ctx context.Context,
	s *Stream,
	report *EncodeVideoReport,
	pkts []*packet.Packet,
	w io.Writer,
) error {
	defer releasePackets(pkts)
	family := s.Encoder.Parameters().Family()
	for _, pkt := range pkts {
		report.Packets++
		report.Bytes += uint64(len(pkt.Data))
		if pkt.Key {
			report.KeyPackets++
		}
		logger.Tracef(ctx, "packet: %s", pkt)

		switch family {
		case codec.FamilyH264, codec.FamilyH265:
			units, randomAccess, err := codec.InspectAccessUnit(pkt.Data, family)
			if err != nil {
				return newStageError(StageEncode, s, types.WithKind(types.ErrProcessing, err))
			}
			report.NALHistogram.Add(units)
			if randomAccess {
				report.RandomAccessUnits++
			}
		}

		if w == nil {
			continue
		}
		if _, err := w.Write(pkt.Data); err != nil {
			return newStageError(StageWrite, s, types.WithKind(types.ErrResource, err))
		}
	}
	return nil
}
