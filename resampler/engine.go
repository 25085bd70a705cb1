// Package resampler converts PCM audio between sample rates, sample formats
// and channel layouts.
package resampler

import (
	"context"

	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/frame"
)

// Engine creates conversion contexts.
type Engine interface {
	Configure(ctx context.Context, in, out audio.PCMFormat) (Context, error)
}

// Context is a configured conversion.
type Context interface {
	// Delay returns how much input is buffered inside the context, expressed
	// in units of 1/base seconds and rounded up.
	Delay(base int) int64

	// Convert consumes srcCount samples of src (src == nil flushes the
	// buffered remainder) and writes at most dstCapacity samples into dst.
	// It returns the amount of samples written.
	Convert(ctx context.Context, dst *frame.Frame, dstCapacity int, src *frame.Frame, srcCount int) (int, error)

	Close(ctx context.Context) error
}
