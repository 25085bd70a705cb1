// Package mpegts implements output.Engine producing MPEG-TS files without
// libavformat.
package mpegts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/output"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
	"github.com/xaionaro-go/xsync"
)

var TimeBase = types.R(1, 90000)

const (
	firstPID = 0x0100
)

type Engine struct{}

var _ output.Engine = Engine{}

func New() Engine {
	return Engine{}
}

func (Engine) Open(
	ctx context.Context,
	url string,
	formatHint string,
) (_ret output.Container, _err error) {
	logger.Debugf(ctx, "Open: '%s'", url)
	defer func() { logger.Debugf(ctx, "/Open: '%s': %v", url, _err) }()
	if formatHint != "" && formatHint != "mpegts" {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unsupported format '%s'", formatHint))
	}
	f, err := os.Create(url)
	if err != nil {
		return nil, types.WithKind(types.ErrResource, fmt.Errorf("unable to create '%s': %w", url, err))
	}
	return NewContainer(f), nil
}

type stream struct {
	Params codec.Parameters
	Track  *mpegts.Track
}

// Container writes MPEG-TS into an io.WriteCloser.
type Container struct {
	locker        xsync.Mutex
	file          io.WriteCloser
	buffer        *bufio.Writer
	writer        *mpegts.Writer
	streams       []stream
	headerWritten bool
	closed        bool
}

var _ output.Container = (*Container)(nil)

func NewContainer(w io.WriteCloser) *Container {
	return &Container{
		file:   w,
		buffer: bufio.NewWriter(w),
	}
}

func (c *Container) NeedsGlobalHeader() bool {
	return false
}

func (c *Container) Interleaves() bool {
	return false
}

func (c *Container) DeclareStream(
	ctx context.Context,
	params codec.Parameters,
	_ codec.Context,
) (int, error) {
	return xsync.DoR2(ctx, &c.locker, func() (int, error) {
		if c.headerWritten {
			return -1, fmt.Errorf("the header is already written")
		}
		trackCodec, err := trackCodecFor(params)
		if err != nil {
			return -1, types.WithKind(types.ErrConfiguration, err)
		}
		c.streams = append(c.streams, stream{
			Params: params,
			Track: &mpegts.Track{
				PID:   uint16(firstPID + len(c.streams)),
				Codec: trackCodec,
			},
		})
		return len(c.streams) - 1, nil
	})
}

func trackCodecFor(params codec.Parameters) (mpegts.Codec, error) {
	switch params.Family() {
	case codec.FamilyH264:
		return &mpegts.CodecH264{}, nil
	case codec.FamilyH265:
		return &mpegts.CodecH265{}, nil
	case codec.FamilyOpus:
		return &mpegts.CodecOpus{ChannelCount: params.ChannelLayout.Channels()}, nil
	case codec.FamilyAAC:
		var config mpeg4audio.AudioSpecificConfig
		if len(params.ExtraData) > 0 {
			if err := config.Unmarshal(params.ExtraData); err != nil {
				return nil, fmt.Errorf("unable to parse the AAC extradata: %w", err)
			}
		} else {
			config = mpeg4audio.AudioSpecificConfig{
				Type:         mpeg4audio.ObjectTypeAACLC,
				SampleRate:   params.SampleRate,
				ChannelCount: params.ChannelLayout.Channels(),
			}
		}
		return &mpegts.CodecMPEG4Audio{Config: config}, nil
	}
	return nil, fmt.Errorf("MPEG-TS cannot carry codec '%s'", params.CodecName)
}

func (c *Container) WriteHeader(ctx context.Context) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		if c.headerWritten {
			return fmt.Errorf("the header is already written")
		}
		tracks := make([]*mpegts.Track, 0, len(c.streams))
		for _, s := range c.streams {
			tracks = append(tracks, s.Track)
		}
		c.writer = &mpegts.Writer{
			W:      c.buffer,
			Tracks: tracks,
		}
		if err := c.writer.Initialize(); err != nil {
			return fmt.Errorf("unable to initialize the MPEG-TS writer: %w", err)
		}
		c.headerWritten = true
		return nil
	})
}

func (c *Container) StreamTimeBase(streamIndex int) types.Rational {
	return TimeBase
}

func (c *Container) WritePacket(
	ctx context.Context,
	pkt *packet.Packet,
) error {
	return xsync.DoA2R1(ctx, &c.locker, c.writePacket, ctx, pkt)
}

func (c *Container) writePacket(
	ctx context.Context,
	pkt *packet.Packet,
) error {
	if !c.headerWritten {
		return fmt.Errorf("the header is not written")
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(c.streams) {
		return fmt.Errorf("invalid stream index %d", pkt.StreamIndex)
	}
	if pkt.TimeBase != TimeBase {
		return fmt.Errorf("expected time base %s, but got %s", TimeBase, pkt.TimeBase)
	}
	s := c.streams[pkt.StreamIndex]
	pts, dts := pkt.PTS, pkt.DTS
	if dts == packet.NoPTSValue {
		dts = pts
	}

	switch s.Track.Codec.(type) {
	case *mpegts.CodecH264, *mpegts.CodecH265:
		var au h264.AnnexB
		if err := au.Unmarshal(pkt.Data); err != nil {
			return fmt.Errorf("unable to split the access unit: %w", err)
		}
		if _, ok := s.Track.Codec.(*mpegts.CodecH265); ok {
			return c.writer.WriteH265(s.Track, pts, dts, au)
		}
		return c.writer.WriteH264(s.Track, pts, dts, au)
	case *mpegts.CodecMPEG4Audio:
		return c.writer.WriteMPEG4Audio(s.Track, pts, [][]byte{pkt.Data})
	case *mpegts.CodecOpus:
		return c.writer.WriteOpus(s.Track, pts, [][]byte{pkt.Data})
	}
	return fmt.Errorf("unexpected track codec %T", s.Track.Codec)
}

func (c *Container) WriteTrailer(ctx context.Context) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		if !c.headerWritten {
			return fmt.Errorf("the header is not written")
		}
		return c.buffer.Flush()
	})
}

func (c *Container) Close(ctx context.Context) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		if c.closed {
			return nil
		}
		c.closed = true
		return errors.Join(c.buffer.Flush(), c.file.Close())
	})
}
