package output

import (
	"context"
	"fmt"

	"github.com/go-ng/container/heap"
	"github.com/go-ng/xsort"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
)

const (
	DefaultMaxQueueLength = 4096
)

type OutputStream struct {
	Index    int
	Params   codec.Parameters
	TimeBase types.Rational
	LastDTS  typing.Optional[int64]
	Finished bool

	queuedDTSs *xsort.OrderedAsc[int64]
}

// Writer commits packets of several streams to a Container in the order of
// their decoding time. If the container does not interleave on its own,
// packets are held back until every unfinished stream has one queued.
type Writer struct {
	// DiscardNonMonotonic drops packets with a DTS not greater than the
	// previous one of the same stream instead of failing.
	DiscardNonMonotonic bool

	// MaxQueueLength bounds the reorder queue; when it is full the oldest
	// packet is committed regardless of the other streams.
	MaxQueueLength int

	PacketsWritten types.CountersSubSection

	locker           xsync.Mutex
	container        Container
	streams          []*OutputStream
	queue            queueItems
	sequence         uint64
	emptyQueuesCount int
	headerWritten    bool
	finalized        bool
	closed           bool
}

func NewWriter(container Container) *Writer {
	return &Writer{
		MaxQueueLength: DefaultMaxQueueLength,
		container:      container,
	}
}

func (w *Writer) Container() Container {
	return w.container
}

// NeedsGlobalHeader reports whether the encoders feeding the writer must be
// opened with a global header.
func (w *Writer) NeedsGlobalHeader() bool {
	return w.container.NeedsGlobalHeader()
}

// AddStream declares a stream with the final parameters of its encoder.
// It must be called before WriteHeader.
func (w *Writer) AddStream(
	ctx context.Context,
	params codec.Parameters,
	source codec.Context,
) (_ret int, _err error) {
	logger.Debugf(ctx, "AddStream: %s", params)
	defer func() { logger.Debugf(ctx, "/AddStream: %s: %d: %v", params, _ret, _err) }()
	return xsync.DoA3R2(ctx, &w.locker, w.addStream, ctx, params, source)
}

func (w *Writer) addStream(
	ctx context.Context,
	params codec.Parameters,
	source codec.Context,
) (int, error) {
	if w.headerWritten {
		return -1, types.WithKind(types.ErrConfiguration, fmt.Errorf("unable to add a stream after the header is written"))
	}
	logger.TraceDump(ctx, "stream parameters", params)
	idx, err := w.container.DeclareStream(ctx, params, source)
	if err != nil {
		return -1, types.WithKind(types.ErrResource, fmt.Errorf("unable to declare a %s stream: %w", params.MediaType, err))
	}
	if idx != len(w.streams) {
		return -1, fmt.Errorf("internal error: the container assigned index %d, expected %d", idx, len(w.streams))
	}
	w.streams = append(w.streams, &OutputStream{
		Index:      idx,
		Params:     params,
		TimeBase:   params.TimeBase,
		queuedDTSs: &xsort.OrderedAsc[int64]{},
	})
	w.emptyQueuesCount++
	return idx, nil
}

func (w *Writer) Streams() []OutputStream {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &w.locker, func() []OutputStream {
		result := make([]OutputStream, 0, len(w.streams))
		for _, s := range w.streams {
			result = append(result, *s)
		}
		return result
	})
}

func (w *Writer) StreamTimeBase(streamIndex int) types.Rational {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &w.locker, func() types.Rational {
		if streamIndex < 0 || streamIndex >= len(w.streams) {
			return types.Rational{}
		}
		return w.streams[streamIndex].TimeBase
	})
}

func (w *Writer) WriteHeader(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "WriteHeader")
	defer func() { logger.Debugf(ctx, "/WriteHeader: %v", _err) }()
	return xsync.DoA1R1(ctx, &w.locker, w.writeHeader, ctx)
}

func (w *Writer) writeHeader(ctx context.Context) error {
	if w.headerWritten {
		return fmt.Errorf("the header is already written")
	}
	if len(w.streams) == 0 {
		return types.WithKind(types.ErrConfiguration, fmt.Errorf("no streams declared"))
	}
	if err := w.container.WriteHeader(ctx); err != nil {
		return types.WithKind(types.ErrResource, fmt.Errorf("unable to write the header: %w", err))
	}
	w.headerWritten = true
	for _, s := range w.streams {
		s.TimeBase = w.container.StreamTimeBase(s.Index)
		if !s.TimeBase.IsValid() {
			return types.WithKind(types.ErrConfiguration, fmt.Errorf("the container chose an invalid time base %s for stream %d", s.TimeBase, s.Index))
		}
		logger.Debugf(ctx, "stream %d (%s): time base %s -> %s", s.Index, s.Params.MediaType, s.Params.TimeBase, s.TimeBase)
	}
	return nil
}

// WritePacket takes the ownership of the packet: timestamps are rescaled
// into the time base of the stream, then the packet is either written
// immediately or queued for reordering. Written packets go back to the pool.
func (w *Writer) WritePacket(
	ctx context.Context,
	streamIndex int,
	pkt *packet.Packet,
) (_err error) {
	logger.Tracef(ctx, "WritePacket: %d: %s", streamIndex, pkt)
	defer func() { logger.Tracef(ctx, "/WritePacket: %d: %v", streamIndex, _err) }()
	return xsync.DoA3R1(ctx, &w.locker, w.writePacket, ctx, streamIndex, pkt)
}

func (w *Writer) writePacket(
	ctx context.Context,
	streamIndex int,
	pkt *packet.Packet,
) error {
	if !w.headerWritten {
		packet.Pool.Put(pkt)
		return types.WithKind(types.ErrProcessing, fmt.Errorf("the header is not written yet"))
	}
	if w.finalized {
		packet.Pool.Put(pkt)
		return types.WithKind(types.ErrProcessing, fmt.Errorf("the output is already finalized"))
	}
	if streamIndex < 0 || streamIndex >= len(w.streams) {
		packet.Pool.Put(pkt)
		return types.WithKind(types.ErrProcessing, fmt.Errorf("invalid stream index %d", streamIndex))
	}
	s := w.streams[streamIndex]
	if s.Finished {
		packet.Pool.Put(pkt)
		return types.WithKind(types.ErrProcessing, fmt.Errorf("stream %d is already finished", streamIndex))
	}

	if !pkt.TimeBase.IsValid() {
		pkt.TimeBase = s.Params.TimeBase
	}
	pkt.RescaleTS(s.TimeBase)
	pkt.StreamIndex = s.Index
	pkt.MediaType = s.Params.MediaType
	if pkt.DTS != packet.NoPTSValue && pkt.PTS != packet.NoPTSValue && pkt.DTS > pkt.PTS {
		logger.Errorf(ctx, "DTS (%d) is greater than PTS (%d), setting DTS = PTS", pkt.DTS, pkt.PTS)
		pkt.DTS = pkt.PTS
	}

	if dts := pkt.OrderingTS(); dts != packet.NoPTSValue {
		if s.LastDTS.IsSet() && dts <= s.LastDTS.Get() {
			err := fmt.Errorf("stream %d (%s): DTS %d is not greater than the previous one %d", s.Index, s.Params.MediaType, dts, s.LastDTS.Get())
			packet.Pool.Put(pkt)
			if w.DiscardNonMonotonic {
				logger.Errorf(ctx, "%v; ignoring the packet", err)
				return nil
			}
			return types.WithKind(types.ErrProcessing, err)
		}
		s.LastDTS = typing.Opt(dts)
	}

	if w.container.Interleaves() {
		return w.commit(ctx, pkt)
	}
	return w.enqueue(ctx, s, pkt)
}

func (w *Writer) enqueue(
	ctx context.Context,
	s *OutputStream,
	pkt *packet.Packet,
) error {
	if w.MaxQueueLength > 0 && len(w.queue) >= w.MaxQueueLength {
		logger.Warnf(ctx, "the queue is full, committing the oldest packet to make space")
		if err := w.commitOne(ctx); err != nil {
			packet.Pool.Put(pkt)
			return err
		}
	}

	heap.Push(&w.queue, queueItem{Packet: pkt, Sequence: w.sequence})
	w.sequence++
	if len(*s.queuedDTSs) == 0 {
		w.emptyQueuesCount--
	}
	heap.Push(s.queuedDTSs, pkt.OrderingTS())
	return w.commitReady(ctx)
}

// commitReady commits queued packets while every unfinished stream has at
// least one of them queued.
func (w *Writer) commitReady(ctx context.Context) error {
	for w.emptyQueuesCount == 0 && len(w.queue) > 0 {
		if err := w.commitOne(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) commitOne(ctx context.Context) error {
	item := heap.Pop(&w.queue)
	s := w.streams[item.Packet.StreamIndex]
	dts := heap.Pop(s.queuedDTSs)
	if dts != item.Packet.OrderingTS() {
		logger.Errorf(ctx, "internal error: the stream %d queue is out of sync: %d != %d", s.Index, dts, item.Packet.OrderingTS())
	}
	if len(*s.queuedDTSs) == 0 && !s.Finished {
		w.emptyQueuesCount++
	}
	return w.commit(ctx, item.Packet)
}

func (w *Writer) commit(
	ctx context.Context,
	pkt *packet.Packet,
) error {
	defer packet.Pool.Put(pkt)
	mediaType, size := pkt.MediaType, len(pkt.Data)
	if err := w.container.WritePacket(ctx, pkt); err != nil {
		return types.WithKind(types.ErrProcessing, fmt.Errorf("unable to write %s: %w", pkt, err))
	}
	w.PacketsWritten.Increment(mediaType, uint64(size))
	return nil
}

// FinishStream marks the stream as fully drained: the writer stops waiting
// for its packets.
func (w *Writer) FinishStream(
	ctx context.Context,
	streamIndex int,
) (_err error) {
	logger.Debugf(ctx, "FinishStream: %d", streamIndex)
	defer func() { logger.Debugf(ctx, "/FinishStream: %d: %v", streamIndex, _err) }()
	return xsync.DoA2R1(ctx, &w.locker, w.finishStream, ctx, streamIndex)
}

func (w *Writer) finishStream(
	ctx context.Context,
	streamIndex int,
) error {
	if streamIndex < 0 || streamIndex >= len(w.streams) {
		return fmt.Errorf("invalid stream index %d", streamIndex)
	}
	s := w.streams[streamIndex]
	if s.Finished {
		return nil
	}
	s.Finished = true
	if len(*s.queuedDTSs) == 0 {
		w.emptyQueuesCount--
	}
	return w.commitReady(ctx)
}

// Finalize commits whatever is still queued and writes the trailer.
func (w *Writer) Finalize(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Finalize")
	defer func() { logger.Debugf(ctx, "/Finalize: %v", _err) }()
	return xsync.DoA1R1(ctx, &w.locker, w.finalize, ctx)
}

func (w *Writer) finalize(ctx context.Context) error {
	if w.finalized {
		return nil
	}
	if !w.headerWritten {
		return types.WithKind(types.ErrProcessing, fmt.Errorf("the header is not written"))
	}
	for _, s := range w.streams {
		if !s.Finished {
			logger.Warnf(ctx, "finalizing while stream %d is not finished", s.Index)
		}
	}
	for len(w.queue) > 0 {
		if err := w.commitOne(ctx); err != nil {
			return err
		}
	}
	w.finalized = true
	if err := w.container.WriteTrailer(ctx); err != nil {
		return types.WithKind(types.ErrResource, fmt.Errorf("unable to write the trailer: %w", err))
	}
	return nil
}

// Close releases the queued packets and closes the container; it does not
// write the trailer.
func (w *Writer) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	return xsync.DoA1R1(ctx, &w.locker, w.close, ctx)
}

func (w *Writer) close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	for _, item := range w.queue {
		packet.Pool.Put(item.Packet)
	}
	w.queue = nil
	return w.container.Close(ctx)
}
