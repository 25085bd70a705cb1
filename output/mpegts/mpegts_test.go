package mpegts

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/output"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
)

type closingBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *closingBuffer) Close() error {
	b.closed = true
	return nil
}

var (
	sps = []byte{0x67, 0x42, 0xc0, 0x1f, 0xda, 0x01, 0x40, 0x16, 0xe8}
	pps = []byte{0x68, 0xce, 0x3c, 0x80}
	idr = []byte{0x65, 0x88, 0x84, 0x00, 0x33, 0xff}
	non = []byte{0x41, 0x9a, 0x22, 0x4c}
)

func annexB(nalus ...[]byte) []byte {
	var result []byte
	for _, nalu := range nalus {
		result = append(result, 0, 0, 0, 1)
		result = append(result, nalu...)
	}
	return result
}

func newPacket(pts int64, tb types.Rational, key bool, data []byte) *packet.Packet {
	pkt := packet.Get()
	pkt.PTS = pts
	pkt.DTS = pts
	pkt.TimeBase = tb
	pkt.Key = key
	pkt.Data = append(pkt.Data[:0], data...)
	return pkt
}

func TestWrite(t *testing.T) {
	ctx := context.Background()
	buf := &closingBuffer{}
	w := output.NewWriter(NewContainer(buf))
	require.False(t, w.NeedsGlobalHeader())

	video, err := w.AddStream(ctx, codec.Parameters{
		MediaType:   types.MediaTypeVideo,
		CodecName:   "libx264",
		TimeBase:    types.R(1, 25),
		Width:       320,
		Height:      240,
		PixelFormat: types.PixelFormatYUV420P,
		FrameRate:   types.R(25, 1),
	}, nil)
	require.NoError(t, err)
	audio, err := w.AddStream(ctx, codec.Parameters{
		MediaType:     types.MediaTypeAudio,
		CodecName:     "aac",
		TimeBase:      types.R(1, 44100),
		SampleRate:    44100,
		ChannelLayout: types.ChannelLayoutStereo,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(ctx))
	require.Equal(t, TimeBase, w.StreamTimeBase(video))
	require.Equal(t, TimeBase, w.StreamTimeBase(audio))

	for i := range int64(5) {
		data := annexB(non)
		if i == 0 {
			data = annexB(sps, pps, idr)
		}
		require.NoError(t, w.WritePacket(ctx, video, newPacket(i, types.R(1, 25), i == 0, data)))
		require.NoError(t, w.WritePacket(ctx, audio, newPacket(i*1024, types.R(1, 44100), true, []byte{0x21, 0x10, 0x04, 0x60, 0x8c, 0x1c})))
	}
	require.NoError(t, w.FinishStream(ctx, video))
	require.NoError(t, w.FinishStream(ctx, audio))
	require.NoError(t, w.Finalize(ctx))
	require.NoError(t, w.Close(ctx))
	require.True(t, buf.closed)

	stats := w.PacketsWritten.ToStats()
	require.Equal(t, uint64(5), stats.Video.Count)
	require.Equal(t, uint64(5), stats.Audio.Count)

	b := buf.Bytes()
	require.NotEmpty(t, b)
	require.Zero(t, len(b)%188)
	for offset := 0; offset < len(b); offset += 188 {
		require.Equal(t, byte(0x47), b[offset], "offset %d", offset)
	}
}

func TestUnsupportedCodec(t *testing.T) {
	ctx := context.Background()
	c := NewContainer(&closingBuffer{})
	_, err := c.DeclareStream(ctx, codec.Parameters{
		MediaType:     types.MediaTypeAudio,
		CodecName:     "pcm_s16le",
		TimeBase:      types.R(1, 44100),
		SampleRate:    44100,
		ChannelLayout: types.ChannelLayoutStereo,
	}, nil)
	require.ErrorIs(t, err, types.ErrConfiguration)

	_, err = New().Open(ctx, "out.flv", "flv")
	require.ErrorIs(t, err, types.ErrConfiguration)
}
