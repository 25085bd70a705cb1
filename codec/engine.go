// Package codec drives encoders: it defines the engine contract, the
// stream encoder state machine, and a pure-Go engine for raw formats.
package codec

import (
	"context"

	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/packet"
)

// Engine opens encoders.
type Engine interface {
	Open(ctx context.Context, params Parameters) (Context, error)
}

// Context is an opened encoder.
type Context interface {
	// SubmitFrame hands a frame over; nil signals the end of the stream.
	// It returns types.ErrWouldBlock if packets must be retrieved first.
	// The encoder must take its own reference of a frame it retains.
	SubmitFrame(ctx context.Context, f *frame.Frame) error

	// RetrievePacket returns the next ready packet, types.ErrWouldBlock if
	// more input is needed, or types.ErrEndOfStream once fully drained.
	RetrievePacket(ctx context.Context) (*packet.Packet, error)

	// Parameters returns the negotiated parameters (time base, frame size,
	// extradata, ...).
	Parameters() Parameters

	Close(ctx context.Context) error
}
