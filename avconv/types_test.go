package avconv

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
)

func TestSampleFormatRoundTrip(t *testing.T) {
	for _, f := range types.SampleFormats() {
		r, err := SampleFormatFromLibav(SampleFormat(f))
		require.NoError(t, err)
		require.Equal(t, f, r)
	}
	_, err := SampleFormatFromLibav(astiav.SampleFormatS64)
	require.Error(t, err)
}

func TestChannelLayoutRoundTrip(t *testing.T) {
	for _, l := range types.ChannelLayouts() {
		r, err := ChannelLayoutFromLibav(ChannelLayout(l))
		require.NoError(t, err)
		require.Equal(t, l, r)
		require.Equal(t, l.Channels(), ChannelLayout(l).Channels())
	}
}

func TestRational(t *testing.T) {
	r := Rational(types.R(1, 44100))
	require.Equal(t, 1, r.Num())
	require.Equal(t, 44100, r.Den())
	require.Equal(t, types.R(1001, 30000), RationalFromLibav(astiav.NewRational(1001, 30000)))
}

func TestVideoFrameToLibav(t *testing.T) {
	src, err := frame.NewVideo(types.PixelFormatYUV420P, 4, 2)
	require.NoError(t, err)
	for idx, plane := range src.Planes() {
		for i := range plane {
			plane[i] = byte(idx*16 + i)
		}
	}
	src.PTS = 40

	dst := astiav.AllocFrame()
	defer dst.Free()
	require.NoError(t, FrameToLibav(dst, src))
	require.Equal(t, int64(40), dst.Pts())
	require.Equal(t, 4, dst.Width())

	b, err := dst.Data().Bytes(align)
	require.NoError(t, err)
	var expected []byte
	for _, plane := range src.Bytes() {
		expected = append(expected, plane...)
	}
	require.Equal(t, expected, b)
}

func TestPacketRoundTrip(t *testing.T) {
	src := packet.Get()
	src.PTS, src.DTS, src.Duration = 3, 2, 1
	src.Key = true
	src.StreamIndex = 1
	src.Data = []byte{9, 8, 7}

	dst := astiav.AllocPacket()
	defer dst.Free()
	require.NoError(t, PacketToLibav(dst, src))

	r := PacketFromLibav(dst, types.MediaTypeVideo, types.R(1, 1000))
	require.Equal(t, src.Data, r.Data)
	require.Equal(t, int64(3), r.PTS)
	require.Equal(t, int64(2), r.DTS)
	require.Equal(t, int64(1), r.Duration)
	require.True(t, r.Key)
	require.Equal(t, 1, r.StreamIndex)
	require.Equal(t, types.R(1, 1000), r.TimeBase)
}
