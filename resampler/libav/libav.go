// Package libav implements resampler.Engine on top of libswresample.
package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/avconv"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/internal"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/resampler"
)

type Engine struct{}

var _ resampler.Engine = Engine{}

func New() Engine {
	return Engine{}
}

func (Engine) Configure(
	ctx context.Context,
	in, out audio.PCMFormat,
) (_ret resampler.Context, _err error) {
	logger.Debugf(ctx, "Configure: %s -> %s", in, out)
	defer func() { logger.Debugf(ctx, "/Configure: %s -> %s: %v", in, out, _err) }()

	swrCtx := astiav.AllocSoftwareResampleContext()
	if swrCtx == nil {
		return nil, fmt.Errorf("cannot alloc SoftwareResampleContext")
	}
	internal.SetFinalizerFree(ctx, swrCtx)

	srcFrame := astiav.AllocFrame()
	internal.SetFinalizerFree(ctx, srcFrame)
	dstFrame := astiav.AllocFrame()
	internal.SetFinalizerFree(ctx, dstFrame)

	return &resampleContext{
		in:       in,
		out:      out,
		swrCtx:   swrCtx,
		srcFrame: srcFrame,
		dstFrame: dstFrame,
	}, nil
}

type resampleContext struct {
	in, out     audio.PCMFormat
	swrCtx      *astiav.SoftwareResampleContext
	srcFrame    *astiav.Frame
	dstFrame    *astiav.Frame
	dstCapacity int

	// configured is set once libswresample has configured itself from the
	// first converted frames; until then it holds no samples.
	configured bool
}

func (r *resampleContext) Delay(base int) int64 {
	if r.swrCtx == nil || !r.configured {
		return 0
	}
	return r.swrCtx.Delay(int64(base))
}

func (r *resampleContext) Convert(
	ctx context.Context,
	dst *frame.Frame,
	dstCapacity int,
	src *frame.Frame,
	srcCount int,
) (_ret int, _err error) {
	logger.Tracef(ctx, "Convert: %d -> %d", srcCount, dstCapacity)
	defer func() { logger.Tracef(ctx, "/Convert: %d -> %d: %d %v", srcCount, dstCapacity, _ret, _err) }()

	if r.swrCtx == nil {
		return 0, fmt.Errorf("the context is closed")
	}
	if src == nil && !r.configured {
		return 0, nil
	}

	if err := r.prepareDestination(dstCapacity); err != nil {
		return 0, err
	}

	var in *astiav.Frame
	if src != nil {
		if src.NbSamples != srcCount {
			return 0, fmt.Errorf("partial frames are not supported: %d != %d", srcCount, src.NbSamples)
		}
		if err := avconv.FrameToLibav(r.srcFrame, src); err != nil {
			return 0, fmt.Errorf("unable to copy the input: %w", err)
		}
		in = r.srcFrame
	}
	if err := r.swrCtx.ConvertFrame(in, r.dstFrame); err != nil {
		return 0, fmt.Errorf("cannot convert frame: %w", err)
	}
	r.configured = true
	if err := avconv.AudioFromLibav(dst, r.dstFrame); err != nil {
		return 0, fmt.Errorf("unable to copy the output: %w", err)
	}
	return r.dstFrame.NbSamples(), nil
}

func (r *resampleContext) prepareDestination(capacity int) error {
	if capacity != r.dstCapacity {
		r.dstFrame.Unref()
		r.dstFrame.SetNbSamples(capacity)
		r.dstFrame.SetChannelLayout(avconv.ChannelLayout(r.out.ChannelLayout))
		r.dstFrame.SetSampleFormat(avconv.SampleFormat(r.out.SampleFormat))
		r.dstFrame.SetSampleRate(r.out.SampleRate)
		if err := r.dstFrame.AllocBuffer(0); err != nil {
			return fmt.Errorf("cannot alloc buffer for %d samples: %w", capacity, err)
		}
		r.dstCapacity = capacity
	}
	if err := r.dstFrame.MakeWritable(); err != nil {
		return fmt.Errorf("unable to make the output frame writable: %w", err)
	}
	// the conversion overwrites nb_samples with the amount of produced samples
	r.dstFrame.SetNbSamples(capacity)
	return nil
}

func (r *resampleContext) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()

	// all of that will be automatically freed by finalizers
	r.swrCtx = nil
	r.srcFrame = nil
	r.dstFrame = nil
	return nil
}
