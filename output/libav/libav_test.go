package libav

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/codec"
	codeclibav "github.com/xaionaro-go/avencmux/codec/libav"
	"github.com/xaionaro-go/avencmux/output"
	"github.com/xaionaro-go/avencmux/types"
)

func TestWriteMatroska(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.mkv")

	container, err := New().Open(ctx, path, "")
	require.NoError(t, err)
	require.Equal(t, "matroska", container.(*Container).FormatName)
	w := output.NewWriter(container)
	defer w.Close(ctx)

	enc, err := codec.NewEncoder(ctx, codeclibav.New(), codec.Parameters{
		MediaType:     types.MediaTypeAudio,
		CodecName:     "pcm_s16le",
		SampleFormat:  types.SampleFormatS16,
		SampleRate:    44100,
		ChannelLayout: types.ChannelLayoutStereo,
		GlobalHeader:  w.NeedsGlobalHeader(),
	})
	require.NoError(t, err)
	defer enc.Close(ctx)

	streamIndex, err := w.AddStream(ctx, enc.Parameters(), enc.Context())
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(ctx))
	require.Equal(t, types.R(1, 1000), w.StreamTimeBase(streamIndex))

	params := enc.Parameters()
	f, err := audio.NewFrame(params.PCMFormat(), params.FrameSize)
	require.NoError(t, err)
	for i := range 10 {
		f.PTS = int64(i * params.FrameSize)
		pkts, err := enc.Submit(ctx, f)
		require.NoError(t, err)
		for _, pkt := range pkts {
			require.NoError(t, w.WritePacket(ctx, streamIndex, pkt))
		}
	}
	pkts, err := enc.Submit(ctx, nil)
	require.NoError(t, err)
	for _, pkt := range pkts {
		require.NoError(t, w.WritePacket(ctx, streamIndex, pkt))
	}
	require.NoError(t, w.FinishStream(ctx, streamIndex))
	require.NoError(t, w.Finalize(ctx))
	require.NoError(t, w.Close(ctx))

	stats := w.PacketsWritten.ToStats()
	require.Equal(t, uint64(10), stats.Audio.Count)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(10*params.FrameSize*4))
}

func TestFallbackFormat(t *testing.T) {
	ctx := context.Background()
	container, err := New().Open(ctx, filepath.Join(t.TempDir(), "out.unknown-extension"), "")
	require.NoError(t, err)
	require.Equal(t, DefaultFormat, container.(*Container).FormatName)
	require.True(t, container.Interleaves())
	require.NoError(t, container.Close(ctx))
	require.NoError(t, container.Close(ctx))
}
