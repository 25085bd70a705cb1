package libav

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/codec"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
)

func TestEncodePCM(t *testing.T) {
	ctx := context.Background()

	enc, err := codec.NewEncoder(ctx, New(), codec.Parameters{
		MediaType:     types.MediaTypeAudio,
		CodecName:     "pcm_s16le",
		SampleFormat:  types.SampleFormatS16,
		SampleRate:    44100,
		ChannelLayout: types.ChannelLayoutStereo,
	})
	require.NoError(t, err)
	defer enc.Close(ctx)

	params := enc.Parameters()
	require.Equal(t, types.R(1, 44100), params.TimeBase)
	require.Equal(t, codec.SoftwareDefaultFrameSize, params.FrameSize)

	f, err := audio.NewFrame(params.PCMFormat(), params.FrameSize)
	require.NoError(t, err)

	var pkts []*packet.Packet
	for i := range 4 {
		f.PTS = int64(i * params.FrameSize)
		result, err := enc.Submit(ctx, f)
		require.NoError(t, err)
		pkts = append(pkts, result...)
	}
	result, err := enc.Submit(ctx, nil)
	require.NoError(t, err)
	pkts = append(pkts, result...)

	require.Len(t, pkts, 4)
	for i, pkt := range pkts {
		require.Equal(t, int64(i*params.FrameSize), pkt.PTS)
		require.Len(t, pkt.Data, params.FrameSize*4)
	}
	require.Equal(t, codec.StateClosed, enc.State())
}

func TestUnknownEncoder(t *testing.T) {
	_, err := New().Open(context.Background(), codec.Parameters{
		MediaType:     types.MediaTypeAudio,
		CodecName:     "no-such-encoder",
		SampleRate:    44100,
		ChannelLayout: types.ChannelLayoutStereo,
	})
	require.ErrorIs(t, err, types.ErrConfiguration)
}
