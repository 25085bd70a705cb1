package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
	"github.com/xaionaro-go/xsync"
)

const (
	// DefaultMaxDrainAttempts bounds the amount of RetrievePacket calls
	// made while flushing an encoder at the end of the stream.
	DefaultMaxDrainAttempts = 1 << 16

	maxSubmitRetries = 8
)

type State int

const (
	StateOpen = State(iota)
	StateAccepting
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateAccepting:
		return "accepting"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Encoder wraps an encoder Context with the stream lifecycle:
// open -> accepting (frames in, packets out) -> draining (after the end
// of the stream was signaled) -> closed.
type Encoder struct {
	MaxDrainAttempts int

	locker        xsync.Mutex
	engine        Context
	params        Parameters
	state         State
	endOfStream   bool
	framesCount   uint64
	packetsCount  uint64
	bytesProduced uint64
}

func NewEncoder(
	ctx context.Context,
	engine Engine,
	params Parameters,
) (_ret *Encoder, _err error) {
	logger.Debugf(ctx, "NewEncoder: %s", params)
	defer func() { logger.Debugf(ctx, "/NewEncoder: %s: %v", params, _err) }()

	if err := params.Validate(); err != nil {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid parameters of %s: %w", params.CodecName, err))
	}
	engineCtx, err := engine.Open(ctx, params)
	if err != nil {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unable to open encoder %s: %w", params.CodecName, err))
	}
	e := &Encoder{
		MaxDrainAttempts: DefaultMaxDrainAttempts,
		engine:           engineCtx,
		params:           engineCtx.Parameters(),
		state:            StateOpen,
	}
	logger.Debugf(ctx, "negotiated parameters: %s", e.params)
	return e, nil
}

// Parameters returns the final negotiated parameters.
func (e *Encoder) Parameters() Parameters {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &e.locker, func() Parameters {
		return e.params
	})
}

// Context returns the engine context the encoder drives.
func (e *Encoder) Context() Context {
	return e.engine
}

func (e *Encoder) State() State {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &e.locker, func() State {
		return e.state
	})
}

func (e *Encoder) FramesCount() uint64 {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &e.locker, func() uint64 {
		return e.framesCount
	})
}

func (e *Encoder) PacketsCount() uint64 {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &e.locker, func() uint64 {
		return e.packetsCount
	})
}

// Submit hands a frame to the encoder and returns every packet that became
// ready. A nil frame signals the end of the stream: the encoder is then
// drained completely, all the remaining packets are returned and the
// encoder moves to the closed state.
func (e *Encoder) Submit(
	ctx context.Context,
	f *frame.Frame,
) (_ret []*packet.Packet, _err error) {
	logger.Tracef(ctx, "Submit: %v", f)
	defer func() { logger.Tracef(ctx, "/Submit: %d packets, %v", len(_ret), _err) }()
	return xsync.DoA2R2(ctx, &e.locker, e.submit, ctx, f)
}

func (e *Encoder) submit(
	ctx context.Context,
	f *frame.Frame,
) ([]*packet.Packet, error) {
	if e.endOfStream || e.state == StateClosed {
		return nil, types.WithKind(types.ErrProcessing, fmt.Errorf("%s: a submission after the end of the stream", e.params.CodecName))
	}
	if f == nil {
		return e.drain(ctx)
	}
	e.state = StateAccepting

	var result []*packet.Packet
	for attempt := 0; ; attempt++ {
		err := e.engine.SubmitFrame(ctx, f)
		if err == nil {
			break
		}
		if !errors.Is(err, types.ErrWouldBlock) {
			return result, types.WithKind(types.ErrProcessing, fmt.Errorf("%s: unable to submit a frame: %w", e.params.CodecName, err))
		}
		if attempt >= maxSubmitRetries {
			return result, types.WithKind(types.ErrProcessing, fmt.Errorf("%s: the encoder keeps refusing input", e.params.CodecName))
		}
		logger.Tracef(ctx, "the encoder wants its output to be retrieved first")
		pkts, err := e.retrieveReady(ctx)
		result = append(result, pkts...)
		if err != nil {
			return result, err
		}
	}
	e.framesCount++

	pkts, err := e.retrieveReady(ctx)
	result = append(result, pkts...)
	return result, err
}

// retrieveReady reads packets until the engine wants more input.
func (e *Encoder) retrieveReady(ctx context.Context) ([]*packet.Packet, error) {
	e.state = StateDraining
	defer func() {
		if e.state == StateDraining && !e.endOfStream {
			e.state = StateAccepting
		}
	}()

	var result []*packet.Packet
	for {
		pkt, err := e.engine.RetrievePacket(ctx)
		switch {
		case err == nil:
			result = append(result, e.stamp(pkt))
		case errors.Is(err, types.ErrWouldBlock):
			return result, nil
		case errors.Is(err, types.ErrEndOfStream):
			return result, types.WithKind(types.ErrProcessing, fmt.Errorf("%s: the encoder ended the stream on its own", e.params.CodecName))
		default:
			return result, types.WithKind(types.ErrProcessing, fmt.Errorf("%s: unable to retrieve a packet: %w", e.params.CodecName, err))
		}
	}
}

func (e *Encoder) drain(ctx context.Context) (_ret []*packet.Packet, _err error) {
	logger.Debugf(ctx, "drain: %s", e.params.CodecName)
	defer func() { logger.Debugf(ctx, "/drain: %s: %d packets: %v", e.params.CodecName, len(_ret), _err) }()

	e.endOfStream = true
	e.state = StateDraining
	if err := e.engine.SubmitFrame(ctx, nil); err != nil && !errors.Is(err, types.ErrEndOfStream) {
		return nil, types.WithKind(types.ErrProcessing, fmt.Errorf("%s: unable to signal the end of the stream: %w", e.params.CodecName, err))
	}

	var result []*packet.Packet
	for attempt := 0; attempt < e.MaxDrainAttempts; attempt++ {
		pkt, err := e.engine.RetrievePacket(ctx)
		switch {
		case err == nil:
			result = append(result, e.stamp(pkt))
		case errors.Is(err, types.ErrEndOfStream):
			e.state = StateClosed
			return result, nil
		case errors.Is(err, types.ErrWouldBlock):
			logger.Debugf(ctx, "%s: would-block while draining", e.params.CodecName)
		default:
			return result, types.WithKind(types.ErrProcessing, fmt.Errorf("%s: unable to drain: %w", e.params.CodecName, err))
		}
	}
	return result, types.WithKind(types.ErrProcessing, fmt.Errorf("%s: the encoder was not drained after %d attempts", e.params.CodecName, e.MaxDrainAttempts))
}

func (e *Encoder) stamp(pkt *packet.Packet) *packet.Packet {
	if !pkt.TimeBase.IsValid() {
		pkt.TimeBase = e.params.TimeBase
	}
	pkt.MediaType = e.params.MediaType
	e.packetsCount++
	e.bytesProduced += uint64(len(pkt.Data))
	return pkt
}

func (e *Encoder) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close: %s", e.params.CodecName)
	defer func() { logger.Debugf(ctx, "/Close: %s: %v", e.params.CodecName, _err) }()
	return xsync.DoA1R1(ctx, &e.locker, e.close, ctx)
}

func (e *Encoder) close(ctx context.Context) error {
	e.state = StateClosed
	if e.engine == nil {
		return nil
	}
	err := e.engine.Close(ctx)
	e.engine = nil
	return err
}
