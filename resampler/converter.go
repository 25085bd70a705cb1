package resampler

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/types"
)

// ConvertCall describes a single conversion step.
type ConvertCall struct {
	InputSamples int
	Delay        int64
	Capacity     int
	Produced     int
	Reallocated  bool
}

// Converter wraps a conversion Context with a destination buffer that grows
// to fit the worst-case output of every call (engine delay included).
type Converter struct {
	Input  audio.PCMFormat
	Output audio.PCMFormat

	engine        Context
	dst           *frame.Frame
	capacity      int
	drained       bool
	reallocations int
	totalIn       int64
	totalOut      int64
}

// NewConverter configures the engine and preallocates the destination for
// input chunks of chunkSize samples.
func NewConverter(
	ctx context.Context,
	engine Engine,
	in, out audio.PCMFormat,
	chunkSize int,
) (_ret *Converter, _err error) {
	logger.Debugf(ctx, "NewConverter: %s -> %s (chunk: %d)", in, out, chunkSize)
	defer func() { logger.Debugf(ctx, "/NewConverter: %s -> %s: %v", in, out, _err) }()

	if err := in.Validate(); err != nil {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid input format: %w", err))
	}
	if err := out.Validate(); err != nil {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid output format: %w", err))
	}
	if chunkSize < 0 {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid chunk size %d", chunkSize))
	}

	c := &Converter{
		Input:  in,
		Output: out,
	}
	engineCtx, err := engine.Configure(ctx, in, out)
	if err != nil {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unable to configure the conversion %s -> %s: %w", in, out, err))
	}

	c.capacity = int(types.RescaleRnd(int64(chunkSize), int64(out.SampleRate), int64(in.SampleRate), types.RoundUp))
	dst, err := audio.NewFrame(out, c.capacity)
	if err != nil {
		if closeErr := engineCtx.Close(ctx); closeErr != nil {
			logger.Errorf(ctx, "unable to close the conversion context: %v", closeErr)
		}
		return nil, types.WithKind(types.ErrResource, fmt.Errorf("unable to allocate the destination: %w", err))
	}
	c.dst = dst
	c.engine = engineCtx
	return c, nil
}

// Capacity is the current destination capacity in samples.
func (c *Converter) Capacity() int {
	return c.capacity
}

func (c *Converter) Reallocations() int {
	return c.reallocations
}

func (c *Converter) TotalIn() int64 {
	return c.totalIn
}

func (c *Converter) TotalOut() int64 {
	return c.totalOut
}

// Convert converts all the samples of in. The returned frame is owned by
// the converter and is valid until the next call; it may contain fewer
// samples than the capacity (including zero).
func (c *Converter) Convert(
	ctx context.Context,
	in *frame.Frame,
) (_ret *frame.Frame, _call ConvertCall, _err error) {
	logger.Tracef(ctx, "Convert")
	defer func() { logger.Tracef(ctx, "/Convert: %+v %v", _call, _err) }()

	if in == nil {
		return nil, ConvertCall{}, types.WithKind(types.ErrProcessing, fmt.Errorf("no input frame; use Drain to flush"))
	}
	if f := audio.FormatOf(in); f != c.Input {
		return nil, ConvertCall{}, types.WithKind(types.ErrProcessing, fmt.Errorf("input frame format %s does not match the configured %s", f, c.Input))
	}
	return c.convert(ctx, in, in.NbSamples)
}

// Drain flushes the samples buffered in the engine. It may be called only once.
func (c *Converter) Drain(
	ctx context.Context,
) (_ret *frame.Frame, _call ConvertCall, _err error) {
	logger.Debugf(ctx, "Drain")
	defer func() { logger.Debugf(ctx, "/Drain: %+v %v", _call, _err) }()
	return c.convert(ctx, nil, 0)
}

func (c *Converter) convert(
	ctx context.Context,
	in *frame.Frame,
	n int,
) (*frame.Frame, ConvertCall, error) {
	if c.drained {
		return nil, ConvertCall{}, types.WithKind(types.ErrProcessing, fmt.Errorf("the converter is already drained"))
	}
	if c.engine == nil {
		return nil, ConvertCall{}, types.WithKind(types.ErrProcessing, fmt.Errorf("the converter is closed"))
	}
	if in == nil {
		c.drained = true
	}

	call := ConvertCall{InputSamples: n}
	call.Delay = c.engine.Delay(c.Input.SampleRate)
	required := int(types.RescaleRnd(call.Delay+int64(n), int64(c.Output.SampleRate), int64(c.Input.SampleRate), types.RoundUp))
	if required > c.capacity {
		logger.Debugf(ctx, "growing the destination: %d -> %d samples", c.capacity, required)
		dst, err := audio.NewFrame(c.Output, required)
		if err != nil {
			return nil, call, types.WithKind(types.ErrResource, fmt.Errorf("unable to reallocate the destination for %d samples: %w", required, err))
		}
		c.dst.Unref()
		c.dst = dst
		c.capacity = required
		c.reallocations++
		call.Reallocated = true
	}
	call.Capacity = c.capacity

	if err := c.dst.MakeWritable(); err != nil {
		return nil, call, types.WithKind(types.ErrResource, fmt.Errorf("unable to make the destination writable: %w", err))
	}
	c.dst.NbSamples = c.capacity

	produced, err := c.engine.Convert(ctx, c.dst, c.capacity, in, n)
	if err != nil {
		return nil, call, types.WithKind(types.ErrProcessing, fmt.Errorf("unable to convert %d samples: %w", n, err))
	}
	if produced < 0 || produced > c.capacity {
		return nil, call, types.WithKind(types.ErrProcessing, fmt.Errorf("the engine reported %d samples for a destination of %d", produced, c.capacity))
	}
	call.Produced = produced

	c.dst.NbSamples = produced
	c.dst.PTS = c.totalOut
	c.dst.TimeBase = types.R(1, int64(c.Output.SampleRate))
	c.totalIn += int64(n)
	c.totalOut += int64(produced)
	return c.dst, call, nil
}

func (c *Converter) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()

	if c.dst != nil {
		c.dst.Unref()
		c.dst = nil
	}
	if c.engine == nil {
		return nil
	}
	err := c.engine.Close(ctx)
	c.engine = nil
	return err
}
