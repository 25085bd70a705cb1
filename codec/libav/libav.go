// Package libav implements codec.Engine on top of libavcodec.
package libav

import (
	"context"
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/avencmux/avconv"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
	"github.com/xaionaro-go/xsync"
)

type Engine struct{}

var _ codec.Engine = Engine{}

func New() Engine {
	return Engine{}
}

func (Engine) Open(
	ctx context.Context,
	params codec.Parameters,
) (_ret codec.Context, _err error) {
	logger.Debugf(ctx, "Open: %s", params)
	defer func() { logger.Debugf(ctx, "/Open: %s: %v", params, _err) }()

	c := &Encoder{
		closer: astikit.NewCloser(),
	}
	defer func() {
		if _err != nil {
			logger.Debugf(ctx, "got an error, closing the encoder: %v", _err)
			_ = c.Close(ctx)
		}
	}()

	c.codec = astiav.FindEncoderByName(params.CodecName)
	if c.codec == nil {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unable to find an encoder using name '%s'", params.CodecName))
	}
	ctx = logger.CtxWithField(ctx, "codec_id", c.codec.ID())

	c.codecContext = astiav.AllocCodecContext(c.codec)
	if c.codecContext == nil {
		return nil, types.WithKind(types.ErrResource, fmt.Errorf("unable to allocate codec context"))
	}
	c.closer.Add(c.codecContext.Free)

	options := astiav.NewDictionary()
	c.closer.Add(options.Free)
	for _, item := range params.Tuning.DictionaryItems(params.CodecName) {
		logger.Debugf(ctx, "option '%s' = '%s'", item.Key, item.Value)
		if err := options.Set(item.Key, item.Value, 0); err != nil {
			return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unable to set option '%s' to '%s': %w", item.Key, item.Value, err))
		}
	}

	timeBase := params.DefaultTimeBase()
	switch params.MediaType {
	case types.MediaTypeVideo:
		c.codecContext.SetWidth(params.Width)
		c.codecContext.SetHeight(params.Height)
		c.codecContext.SetPixelFormat(avconv.PixelFormat(params.PixelFormat))
		c.codecContext.SetFramerate(avconv.Rational(params.FrameRate))
		c.codecContext.SetGopSize(params.GOPSize)
		c.codecContext.SetMaxBFrames(params.MaxBFrames)
	case types.MediaTypeAudio:
		c.codecContext.SetChannelLayout(avconv.ChannelLayout(params.ChannelLayout))
		c.codecContext.SetSampleRate(params.SampleRate)
		sampleFormat := avconv.SampleFormat(params.SampleFormat)
		if sampleFormat == astiav.SampleFormatNone {
			if v := c.codec.SampleFormats(); len(v) > 0 {
				sampleFormat = v[0]
			}
		}
		c.codecContext.SetSampleFormat(sampleFormat)
	default:
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unsupported media type %s", params.MediaType))
	}
	if params.BitRate > 0 {
		c.codecContext.SetBitRate(params.BitRate)
	}
	if v := params.Tuning.RCMaxRate; v > 0 {
		c.codecContext.SetRateControlMaxRate(v)
	}
	if v := params.Tuning.RCMinRate; v > 0 {
		c.codecContext.SetRateControlMinRate(v)
	}
	if v := params.Tuning.RCBufferSize; v > 0 {
		c.codecContext.SetRateControlBufferSize(v)
	}
	if v := params.Tuning.Refs; v > 0 {
		if err := options.Set("refs", fmt.Sprintf("%d", v), 0); err != nil {
			return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unable to set refs: %w", err))
		}
	}
	if params.GlobalHeader {
		c.codecContext.SetFlags(c.codecContext.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}
	logger.Debugf(ctx, "time_base == %v", timeBase)
	c.codecContext.SetTimeBase(avconv.Rational(timeBase))

	logger.Tracef(ctx, "c.codecContext.Open(%#+v, %#+v)", c.codec, options)
	if err := c.codecContext.Open(c.codec, options); err != nil {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unable to open codec context: %w", err))
	}

	c.inputFrame = astiav.AllocFrame()
	c.closer.Add(c.inputFrame.Free)
	c.outputPacket = astiav.AllocPacket()
	c.closer.Add(c.outputPacket.Free)

	negotiated, err := c.negotiatedParameters(params)
	if err != nil {
		return nil, types.WithKind(types.ErrConfiguration, err)
	}
	c.params = negotiated
	return c, nil
}

// Encoder is an opened libavcodec encoder.
type Encoder struct {
	locker       xsync.Mutex
	codec        *astiav.Codec
	codecContext *astiav.CodecContext
	inputFrame   *astiav.Frame
	outputPacket *astiav.Packet
	params       codec.Parameters
	closer       *astikit.Closer
}

var _ codec.Context = (*Encoder)(nil)

func (c *Encoder) negotiatedParameters(requested codec.Parameters) (codec.Parameters, error) {
	r := requested
	r.TimeBase = avconv.RationalFromLibav(c.codecContext.TimeBase())
	r.BitRate = c.codecContext.BitRate()
	if extraData := c.codecContext.ExtraData(); len(extraData) > 0 {
		r.ExtraData = append([]byte(nil), extraData...)
	}
	if r.MediaType == types.MediaTypeAudio {
		sampleFormat, err := avconv.SampleFormatFromLibav(c.codecContext.SampleFormat())
		if err != nil {
			return r, err
		}
		r.SampleFormat = sampleFormat
		r.FrameSize = c.codecContext.FrameSize()
		if r.FrameSize == 0 {
			// variable frame size codecs (like PCM) accept any amount
			r.FrameSize = codec.SoftwareDefaultFrameSize
		}
	}
	return r, nil
}

func (c *Encoder) Parameters() codec.Parameters {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() codec.Parameters {
		return c.params
	})
}

// CodecContext returns the underlying context; it is nil after Close.
func (c *Encoder) CodecContext() *astiav.CodecContext {
	return xsync.DoR1(xsync.WithNoLogging(context.TODO(), true), &c.locker, func() *astiav.CodecContext {
		return c.codecContext
	})
}

func (c *Encoder) ToCodecParameters(cp *astiav.CodecParameters) error {
	return xsync.DoA1R1(context.TODO(), &c.locker, c.toCodecParametersLocked, cp)
}

func (c *Encoder) toCodecParametersLocked(cp *astiav.CodecParameters) (_err error) {
	if c.codecContext == nil {
		return fmt.Errorf("c.codecContext == nil")
	}
	return c.codecContext.ToCodecParameters(cp)
}

func (c *Encoder) SubmitFrame(ctx context.Context, f *frame.Frame) error {
	return xsync.DoA2R1(ctx, &c.locker, c.submitFrameLocked, ctx, f)
}

func (c *Encoder) submitFrameLocked(ctx context.Context, f *frame.Frame) error {
	if c.codecContext == nil {
		return fmt.Errorf("the encoder is closed")
	}
	if f == nil {
		return convertError(c.codecContext.SendFrame(nil))
	}
	if err := avconv.FrameToLibav(c.inputFrame, f); err != nil {
		return fmt.Errorf("unable to copy the frame: %w", err)
	}
	if f.TimeBase.IsValid() && f.TimeBase != c.params.TimeBase {
		c.inputFrame.SetPts(types.Rescale(f.PTS, f.TimeBase, c.params.TimeBase))
	}
	return convertError(c.codecContext.SendFrame(c.inputFrame))
}

func (c *Encoder) RetrievePacket(ctx context.Context) (*packet.Packet, error) {
	return xsync.DoA1R2(ctx, &c.locker, c.retrievePacketLocked, ctx)
}

func (c *Encoder) retrievePacketLocked(ctx context.Context) (*packet.Packet, error) {
	if c.codecContext == nil {
		return nil, fmt.Errorf("the encoder is closed")
	}
	if err := c.codecContext.ReceivePacket(c.outputPacket); err != nil {
		return nil, convertError(err)
	}
	defer c.outputPacket.Unref()
	return avconv.PacketFromLibav(c.outputPacket, c.params.MediaType, c.params.TimeBase), nil
}

func convertError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, astiav.ErrEagain):
		return types.ErrWouldBlock
	case errors.Is(err, astiav.ErrEof):
		return types.ErrEndOfStream
	default:
		return err
	}
}

func (c *Encoder) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	return xsync.DoA1R1(ctx, &c.locker, c.closeLocked, ctx)
}

func (c *Encoder) closeLocked(ctx context.Context) error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	c.codecContext = nil
	c.inputFrame = nil
	c.outputPacket = nil
	return err
}
