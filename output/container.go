// Package output writes encoded packets into containers while keeping the
// streams interleaved by decoding time.
package output

import (
	"context"

	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
)

// Engine opens containers.
type Engine interface {
	// Open opens the container at url; formatHint may be empty, then the
	// format is guessed from the url.
	Open(ctx context.Context, url string, formatHint string) (Container, error)
}

// Container is an opened output.
type Container interface {
	// DeclareStream adds a stream described by the final parameters of its
	// encoder. The encoder itself is passed as source, so that engines
	// sharing a backend with it can copy its parameters directly.
	DeclareStream(ctx context.Context, params codec.Parameters, source codec.Context) (int, error)

	// NeedsGlobalHeader reports whether the encoders must put the stream
	// headers into the extradata.
	NeedsGlobalHeader() bool

	WriteHeader(ctx context.Context) error

	// StreamTimeBase returns the time base chosen for the stream; it is
	// final only after WriteHeader.
	StreamTimeBase(streamIndex int) types.Rational

	// WritePacket writes a packet with timestamps already in StreamTimeBase.
	WritePacket(ctx context.Context, pkt *packet.Packet) error

	WriteTrailer(ctx context.Context) error
	Close(ctx context.Context) error

	// Interleaves reports whether the container reorders packets across
	// streams on its own.
	Interleaves() bool
}
