// Package matroska implements output.Engine producing Matroska/WebM files
// without libavformat.
package matroska

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/logger"
	"github.com/xaionaro-go/avencmux/output"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// TimeBase is the one of the default TimecodeScale (1ms).
var TimeBase = types.R(1, 1000)

const (
	trackTypeVideo = 1
	trackTypeAudio = 2
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
	switch formatHint {
	case "", "matroska", "webm":
	default:
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("unsupported format '%s'", formatHint))
	}
	f, err := os.Create(url)
	if err != nil {
		return nil, types.WithKind(types.ErrResource, fmt.Errorf("unable to create '%s': %w", url, err))
	}
	return NewContainer(ctx, f), nil
}

// closeNotifier reports when the block writers are done with the file.
type closeNotifier struct {
	io.WriteCloser
	done chan struct{}
	err  error
}

func (w *closeNotifier) Close() error {
	w.err = w.WriteCloser.Close()
	close(w.done)
	return w.err
}

// Container writes Matroska into an io.WriteCloser. Blocks are written by
// ebml-go's writer goroutine; Close waits for it to finish.
type Container struct {
	locker        xsync.Mutex
	file          *closeNotifier
	tracks        []webm.TrackEntry
	writers       []webm.BlockWriteCloser
	fatalErr      atomic.Error
	headerWritten bool
	closed        bool
	ctx           context.Context
}

var _ output.Container = (*Container)(nil)

func NewContainer(ctx context.Context, w io.WriteCloser) *Container {
	return &Container{
		file: &closeNotifier{WriteCloser: w, done: make(chan struct{})},
		ctx:  ctx,
	}
}

func (c *Container) NeedsGlobalHeader() bool {
	return true
}

func (c *Container) Interleaves() bool {
	return false
}

// CodecID returns the Matroska codec identifier for the stream.
func CodecID(params codec.Parameters) (string, error) {
	switch params.Family() {
	case codec.FamilyH264:
		return "V_MPEG4/ISO/AVC", nil
	case codec.FamilyH265:
		return "V_MPEGH/ISO/HEVC", nil
	case codec.FamilyAAC:
		return "A_AAC", nil
	case codec.FamilyOpus:
		return "A_OPUS", nil
	case codec.FamilyRawVideo:
		return "V_UNCOMPRESSED", nil
	case codec.FamilyPCM:
		switch params.SampleFormat {
		case types.SampleFormatU8, types.SampleFormatS16, types.SampleFormatS32:
			return "A_PCM/INT/LIT", nil
		case types.SampleFormatFLT, types.SampleFormatDBL:
			return "A_PCM/FLOAT/IEEE", nil
		}
		return "", fmt.Errorf("Matroska cannot carry PCM of sample format %s", params.SampleFormat)
	}
	return "", fmt.Errorf("Matroska cannot carry codec '%s'", params.CodecName)
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
		codecID, err := CodecID(params)
		if err != nil {
			return -1, types.WithKind(types.ErrConfiguration, err)
		}
		number := uint64(len(c.tracks) + 1)
		track := webm.TrackEntry{
			Name:         params.MediaType.String(),
			TrackNumber:  number,
			TrackUID:     number,
			CodecID:      codecID,
			CodecPrivate: params.ExtraData,
		}
		switch params.MediaType {
		case types.MediaTypeVideo:
			track.TrackType = trackTypeVideo
			if params.FrameRate.IsValid() {
				track.DefaultDuration = uint64(int64(time.Second) * params.FrameRate.Den / params.FrameRate.Num)
			}
			track.Video = &webm.Video{
				PixelWidth:  uint64(params.Width),
				PixelHeight: uint64(params.Height),
			}
		case types.MediaTypeAudio:
			track.TrackType = trackTypeAudio
			track.Audio = &webm.Audio{
				SamplingFrequency: float64(params.SampleRate),
				Channels:          uint64(params.ChannelLayout.Channels()),
			}
		default:
			return -1, types.WithKind(types.ErrConfiguration, fmt.Errorf("unsupported media type %s", params.MediaType))
		}
		c.tracks = append(c.tracks, track)
		return len(c.tracks) - 1, nil
	})
}

func (c *Container) WriteHeader(ctx context.Context) error {
	return xsync.DoR1(ctx, &c.locker, func() error {
		if c.headerWritten {
			return fmt.Errorf("the header is already written")
		}
		writers, err := webm.NewSimpleBlockWriter(c.file, c.tracks, mkvcore.WithOnFatalHandler(func(err error) {
			logger.Errorf(c.ctx, "unable to write Matroska: %v", err)
			c.fatalErr.Store(err)
		}))
		if err != nil {
			return fmt.Errorf("unable to initialize the Matroska writer: %w", err)
		}
		c.writers = writers
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
	if err := c.fatalErr.Load(); err != nil {
		return err
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(c.writers) {
		return fmt.Errorf("invalid stream index %d", pkt.StreamIndex)
	}
	if pkt.TimeBase != TimeBase {
		return fmt.Errorf("expected time base %s, but got %s", TimeBase, pkt.TimeBase)
	}
	// the writer goroutine keeps the slice after Write returns
	data := append([]byte(nil), pkt.Data...)
	_, err := c.writers[pkt.StreamIndex].Write(pkt.Key || pkt.MediaType == types.MediaTypeAudio, pkt.PTS, data)
	return err
}

// WriteTrailer closes the tracks; the writer goroutine then finalizes the
// file and closes it.
func (c *Container) WriteTrailer(ctx context.Context) error {
	return xsync.DoA1R1(ctx, &c.locker, c.closeTracks, ctx)
}

func (c *Container) closeTracks(ctx context.Context) error {
	if !c.headerWritten {
		return fmt.Errorf("the header is not written")
	}
	var errs []error
	for idx, w := range c.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("unable to close track %d: %w", idx+1, err))
		}
	}
	c.writers = nil
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	select {
	case <-c.file.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return errors.Join(c.file.err, c.fatalErr.Load())
}

func (c *Container) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	return xsync.DoR1(ctx, &c.locker, func() error {
		if c.closed {
			return nil
		}
		c.closed = true
		if !c.headerWritten {
			return c.file.WriteCloser.Close()
		}
		if len(c.writers) == 0 {
			return nil
		}
		var errs []error
		for _, w := range c.writers {
			errs = append(errs, w.Close())
		}
		c.writers = nil
		<-c.file.done
		errs = append(errs, c.file.err)
		return errors.Join(errs...)
	})
}
