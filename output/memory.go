package output

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
	"github.com/xaionaro-go/xsync"
)

// GuessFormat returns the container format name implied by the extension
// of url, or an empty string.
func GuessFormat(url string) string {
	switch strings.ToLower(path.Ext(url)) {
	case ".flv":
		return "flv"
	case ".mkv", ".mka":
		return "matroska"
	case ".webm":
		return "webm"
	case ".ts", ".m2ts":
		return "mpegts"
	case ".mp4", ".m4a":
		return "mp4"
	case ".mov":
		return "mov"
	}
	return ""
}

// Memory is an Engine keeping everything written in memory. It chooses
// stream time bases the way the real muxers of the same format do.
type Memory struct {
	// StrictOrder makes WritePacket fail on packets going back in time
	// across streams.
	StrictOrder bool

	// Interleave makes the containers report that they reorder packets on
	// their own (they do not), so that the Writer passes packets through.
	Interleave bool

	locker     xsync.Mutex
	containers []*MemoryContainer
}

var _ Engine = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Open(
	ctx context.Context,
	url string,
	formatHint string,
) (_ret Container, _err error) {
	logger.Debugf(ctx, "Open: '%s' '%s'", url, formatHint)
	defer func() { logger.Debugf(ctx, "/Open: '%s' '%s': %v", url, formatHint, _err) }()
	format := formatHint
	if format == "" {
		format = GuessFormat(url)
	}
	c := &MemoryContainer{
		URL:         url,
		Format:      format,
		strictOrder: m.StrictOrder,
		interleave:  m.Interleave,
	}
	m.locker.Do(ctx, func() {
		m.containers = append(m.containers, c)
	})
	return c, nil
}

// Containers returns every container opened so far.
func (m *Memory) Containers() []*MemoryContainer {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &m.locker, func() []*MemoryContainer {
		return append([]*MemoryContainer(nil), m.containers...)
	})
}

type MemoryStream struct {
	Params   codec.Parameters
	TimeBase types.Rational
}

type MemoryContainer struct {
	URL    string
	Format string

	locker         xsync.Mutex
	strictOrder    bool
	interleave     bool
	streams        []MemoryStream
	packets        []packet.Packet
	headerWritten  bool
	trailerWritten bool
	closed         bool
}

var _ Container = (*MemoryContainer)(nil)

func (c *MemoryContainer) DeclareStream(
	ctx context.Context,
	params codec.Parameters,
	_ codec.Context,
) (int, error) {
	return xsync.DoR2(ctx, &c.locker, func() (int, error) {
		if c.headerWritten {
			return -1, fmt.Errorf("the header is already written")
		}
		if !params.TimeBase.IsValid() {
			return -1, fmt.Errorf("invalid time base %s", params.TimeBase)
		}
		c.streams = append(c.streams, MemoryStream{
			Params:   params,
			TimeBase: params.TimeBase,
		})
		return len(c.streams) - 1, nil
	})
}

func (c *MemoryContainer) NeedsGlobalHeader() bool {
	switch c.Format {
	case "mp4", "mov", "matroska", "webm", "flv":
		return true
	}
	return false
}

func (c *MemoryContainer) Interleaves() bool {
	return c.interleave
}

func (c *MemoryContainer) timeBaseFor(s MemoryStream) types.Rational {
	switch c.Format {
	case "flv", "matroska", "webm":
		return types.R(1, 1000)
	case "mpegts":
		return types.R(1, 90000)
	case "mp4", "mov":
		if s.Params.MediaType == types.MediaTypeAudio {
			return types.R(1, int64(s.Params.SampleRate))
		}
		return types.R(1, 12800)
	}
	return s.Params.TimeBase
}

func (c *MemoryContainer) WriteHeader(ctx context.Context) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		if c.headerWritten {
			return fmt.Errorf("the header is already written")
		}
		if c.closed {
			return fmt.Errorf("the container is closed")
		}
		for idx := range c.streams {
			c.streams[idx].TimeBase = c.timeBaseFor(c.streams[idx])
		}
		c.headerWritten = true
		return nil
	})
}

func (c *MemoryContainer) StreamTimeBase(streamIndex int) types.Rational {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() types.Rational {
		if streamIndex < 0 || streamIndex >= len(c.streams) {
			return types.Rational{}
		}
		return c.streams[streamIndex].TimeBase
	})
}

func (c *MemoryContainer) WritePacket(
	ctx context.Context,
	pkt *packet.Packet,
) error {
	return xsync.DoA2R1(ctx, &c.locker, c.writePacket, ctx, pkt)
}

func (c *MemoryContainer) writePacket(
	ctx context.Context,
	pkt *packet.Packet,
) error {
	switch {
	case !c.headerWritten:
		return fmt.Errorf("the header is not written")
	case c.trailerWritten:
		return fmt.Errorf("the trailer is already written")
	case pkt.StreamIndex < 0 || pkt.StreamIndex >= len(c.streams):
		return fmt.Errorf("invalid stream index %d", pkt.StreamIndex)
	}
	if tb := c.streams[pkt.StreamIndex].TimeBase; pkt.TimeBase != tb {
		return fmt.Errorf("the packet is in time base %s, but the stream is in %s", pkt.TimeBase, tb)
	}
	if c.strictOrder && len(c.packets) > 0 {
		prev := &c.packets[len(c.packets)-1]
		if types.CompareTS(pkt.OrderingTS(), pkt.TimeBase, prev.OrderingTS(), prev.TimeBase) < 0 {
			return fmt.Errorf("%s goes before the previously written %s", pkt, prev)
		}
	}
	var stored packet.Packet
	packet.CopyWritable(&stored, pkt)
	c.packets = append(c.packets, stored)
	return nil
}

func (c *MemoryContainer) WriteTrailer(ctx context.Context) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		if !c.headerWritten {
			return fmt.Errorf("the header is not written")
		}
		if c.trailerWritten {
			return fmt.Errorf("the trailer is already written")
		}
		c.trailerWritten = true
		return nil
	})
}

func (c *MemoryContainer) Close(ctx context.Context) error {
	c.locker.Do(ctx, func() {
		c.closed = true
	})
	return nil
}

func (c *MemoryContainer) Streams() []MemoryStream {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() []MemoryStream {
		return append([]MemoryStream(nil), c.streams...)
	})
}

// Packets returns copies of the written packets in the order of writing.
func (c *MemoryContainer) Packets() []packet.Packet {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() []packet.Packet {
		return append([]packet.Packet(nil), c.packets...)
	})
}

func (c *MemoryContainer) HeaderWritten() bool {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() bool {
		return c.headerWritten
	})
}

func (c *MemoryContainer) TrailerWritten() bool {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() bool {
		return c.trailerWritten
	})
}

func (c *MemoryContainer) IsClosed() bool {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() bool {
		return c.closed
	})
}
