// Package libav implements output.Engine on top of libavformat.
package libav

import (
	"context"
	"fmt"
	"net/url"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/avencmux/avconv"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/output"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
	"github.com/xaionaro-go/xsync"
)

// DefaultFormat is used when the format can be guessed neither from the
// hint nor from the URL.
const DefaultFormat = "flv"

// CodecParametersSource is implemented by encoders able to fill libav codec
// parameters directly (see codec/libav).
type CodecParametersSource interface {
	ToCodecParameters(*astiav.CodecParameters) error
}

type Engine struct {
	// Options are passed to the IO context and to the header writer.
	Options codec.DictionaryItems
}

var _ output.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{}
}

func formatFromScheme(scheme string) string {
	switch scheme {
	case "rtmp", "rtmps":
		return "flv"
	case "srt", "udp":
		return "mpegts"
	case "rtsp":
		return "rtsp"
	default:
		return ""
	}
}

func (e *Engine) Open(
	ctx context.Context,
	urlString string,
	formatHint string,
) (_ret output.Container, _err error) {
	logger.Debugf(ctx, "Open(ctx, '%s', '%s')", urlString, formatHint)
	defer func() { logger.Debugf(ctx, "/Open(ctx, '%s', '%s'): %v", urlString, formatHint, _err) }()
	if urlString == "" {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("the provided URL is empty"))
	}

	formatName := formatHint
	if formatName == "" {
		if u, err := url.Parse(urlString); err == nil {
			formatName = formatFromScheme(u.Scheme)
		}
	}

	c := &Container{
		URL:    urlString,
		closer: astikit.NewCloser(),
	}
	defer func() {
		if _err != nil {
			_ = c.Close(ctx)
		}
	}()

	formatContext, err := astiav.AllocOutputFormatContext(nil, formatName, urlString)
	if err != nil || formatContext == nil {
		logger.Debugf(ctx, "unable to guess the format of '%s' (%v), falling back to '%s'", urlString, err, DefaultFormat)
		formatContext, err = astiav.AllocOutputFormatContext(nil, DefaultFormat, urlString)
	}
	if err != nil {
		return nil, types.WithKind(types.ErrResource, fmt.Errorf("allocating output format context failed using URL '%s': %w", urlString, err))
	}
	if formatContext == nil {
		return nil, types.WithKind(types.ErrResource, fmt.Errorf("unable to allocate the output format context"))
	}
	c.formatContext = formatContext
	c.closer.Add(formatContext.Free)
	c.FormatName = formatContext.OutputFormat().Name()
	logger.Debugf(ctx, "output format name: '%s'", c.FormatName)

	if len(e.Options) > 0 {
		c.dictionary = astiav.NewDictionary()
		c.closer.Add(c.dictionary.Free)
		for _, opt := range e.Options {
			logger.Debugf(ctx, "output.Dictionary['%s'] = '%s'", opt.Key, opt.Value)
			if err := c.dictionary.Set(opt.Key, opt.Value, 0); err != nil {
				return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unable to set option '%s': %w", opt.Key, err))
			}
		}
	}

	if formatContext.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		return c, nil
	}
	logger.Tracef(ctx, "destination '%s' is a file", urlString)

	ioContext, err := astiav.OpenIOContext(
		urlString,
		astiav.NewIOContextFlags(astiav.IOContextFlagWrite),
		nil,
		c.dictionary,
	)
	if err != nil {
		return nil, types.WithKind(types.ErrResource, fmt.Errorf("unable to open IO context (URL: '%s'): %w", urlString, err))
	}
	c.closer.AddWithError(ioContext.Close)
	formatContext.SetPb(ioContext)
	return c, nil
}

// Container is an opened libavformat output.
type Container struct {
	URL        string
	FormatName string

	locker        xsync.Mutex
	formatContext *astiav.FormatContext
	dictionary    *astiav.Dictionary
	streams       []*astiav.Stream
	mediaTypes    []types.MediaType
	outputPacket  *astiav.Packet
	headerWritten bool
	closer        *astikit.Closer
}

var _ output.Container = (*Container)(nil)

func (c *Container) NeedsGlobalHeader() bool {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() bool {
		if c.formatContext == nil {
			return false
		}
		return c.formatContext.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader)
	})
}

// Interleaves is true: packets go through av_interleaved_write_frame.
func (c *Container) Interleaves() bool {
	return true
}

func (c *Container) DeclareStream(
	ctx context.Context,
	params codec.Parameters,
	source codec.Context,
) (int, error) {
	return xsync.DoA3R2(ctx, &c.locker, c.declareStream, ctx, params, source)
}

func (c *Container) declareStream(
	ctx context.Context,
	params codec.Parameters,
	source codec.Context,
) (_ret int, _err error) {
	logger.Debugf(ctx, "declareStream: %s", params)
	defer func() { logger.Debugf(ctx, "/declareStream: %s: %d %v", params, _ret, _err) }()
	if c.formatContext == nil {
		return -1, fmt.Errorf("the container is closed")
	}
	if c.headerWritten {
		return -1, fmt.Errorf("the header is already written")
	}

	stream := c.formatContext.NewStream(nil)
	if stream == nil {
		return -1, types.WithKind(types.ErrResource, fmt.Errorf("unable to allocate a stream"))
	}
	if src, ok := source.(CodecParametersSource); ok {
		if err := src.ToCodecParameters(stream.CodecParameters()); err != nil {
			return -1, fmt.Errorf("unable to copy the codec parameters from the encoder: %w", err)
		}
	} else {
		if err := fillCodecParameters(stream.CodecParameters(), params); err != nil {
			return -1, err
		}
	}
	stream.SetTimeBase(avconv.Rational(params.TimeBase))
	switch c.FormatName {
	case "flv":
		logger.Debugf(ctx, "this is a FLV output, setting CodecTag to zero")
		stream.CodecParameters().SetCodecTag(0)
	}
	logger.Debugf(ctx, "new output stream: %d: %s: %s", stream.Index(), stream.CodecParameters().MediaType(), stream.CodecParameters().CodecID())

	c.streams = append(c.streams, stream)
	c.mediaTypes = append(c.mediaTypes, params.MediaType)
	return stream.Index(), nil
}

func fillCodecParameters(cp *astiav.CodecParameters, params codec.Parameters) error {
	encoder := astiav.FindEncoderByName(params.CodecName)
	if encoder == nil {
		return types.WithKind(types.ErrConfiguration, fmt.Errorf("libav does not know codec '%s'", params.CodecName))
	}
	cp.SetCodecID(encoder.ID())
	cp.SetMediaType(avconv.MediaType(params.MediaType))
	cp.SetBitRate(params.BitRate)
	switch params.MediaType {
	case types.MediaTypeVideo:
		cp.SetWidth(params.Width)
		cp.SetHeight(params.Height)
		cp.SetPixelFormat(avconv.PixelFormat(params.PixelFormat))
	case types.MediaTypeAudio:
		cp.SetSampleRate(params.SampleRate)
		cp.SetChannelLayout(avconv.ChannelLayout(params.ChannelLayout))
		cp.SetSampleFormat(avconv.SampleFormat(params.SampleFormat))
	}
	if len(params.ExtraData) > 0 {
		if err := cp.SetExtraData(params.ExtraData); err != nil {
			return fmt.Errorf("unable to set the extradata: %w", err)
		}
	}
	return nil
}

func (c *Container) WriteHeader(ctx context.Context) error {
	return xsync.DoA1R1(ctx, &c.locker, c.writeHeader, ctx)
}

func (c *Container) writeHeader(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "writeHeader")
	defer func() { logger.Debugf(ctx, "/writeHeader: %v", _err) }()
	if c.formatContext == nil {
		return fmt.Errorf("the container is closed")
	}
	if err := c.formatContext.WriteHeader(c.dictionary); err != nil {
		return fmt.Errorf("unable to write the header: %w", err)
	}
	c.headerWritten = true
	c.outputPacket = astiav.AllocPacket()
	c.closer.Add(c.outputPacket.Free)
	for _, stream := range c.streams {
		logger.Debugf(ctx, "stream %d time base: %s", stream.Index(), stream.TimeBase())
	}
	return nil
}

func (c *Container) StreamTimeBase(streamIndex int) types.Rational {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() types.Rational {
		if streamIndex < 0 || streamIndex >= len(c.streams) {
			return types.Rational{}
		}
		return avconv.RationalFromLibav(c.streams[streamIndex].TimeBase())
	})
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
	if !c.headerWritten || c.formatContext == nil {
		return fmt.Errorf("the header is not written")
	}
	if err := avconv.PacketToLibav(c.outputPacket, pkt); err != nil {
		return err
	}
	logger.Tracef(ctx, "writing %s", pkt)
	if err := c.formatContext.WriteInterleavedFrame(c.outputPacket); err != nil {
		return fmt.Errorf("unable to write the packet (pts:%d, dts:%d, dur:%d) for %s stream %d: %w",
			pkt.PTS, pkt.DTS, pkt.Duration, c.mediaTypes[pkt.StreamIndex], pkt.StreamIndex, err)
	}
	return nil
}

func (c *Container) WriteTrailer(ctx context.Context) error {
	return xsync.DoA1R1(ctx, &c.locker, c.writeTrailer, ctx)
}

func (c *Container) writeTrailer(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "writing the trailer")
	defer func() { logger.Debugf(ctx, "wrote the trailer, result: %v", _err) }()
	if !c.headerWritten || c.formatContext == nil {
		return fmt.Errorf("the header is not written")
	}
	return c.formatContext.WriteTrailer()
}

func (c *Container) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	return xsync.DoR1(ctx, &c.locker, func() error {
		if c.closer == nil {
			return nil
		}
		err := c.closer.Close()
		c.closer = nil
		c.formatContext = nil
		c.dictionary = nil
		c.streams = nil
		c.outputPacket = nil
		return err
	})
}
