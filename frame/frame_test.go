package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/types"
)

func TestNewAudio(t *testing.T) {
	t.Parallel()

	t.Run("packed", func(t *testing.T) {
		f, err := NewAudio(types.SampleFormatS16, 44100, types.ChannelLayoutStereo, 1024)
		require.NoError(t, err)
		require.Len(t, f.Planes(), 1)
		require.Len(t, f.Planes()[0], 1024*2*2)
		require.Equal(t, 1024, f.Capacity())
		require.Equal(t, types.R(1, 44100), f.TimeBase)

		f.NbSamples = 10
		require.Len(t, f.Bytes()[0], 10*2*2)
		require.Equal(t, 40, f.Size())
	})

	t.Run("planar", func(t *testing.T) {
		f, err := NewAudio(types.SampleFormatFLTP, 48000, types.ChannelLayoutStereo, 100)
		require.NoError(t, err)
		require.Len(t, f.Planes(), 2)
		require.Len(t, f.Planes()[1], 400)
		require.Equal(t, 100, f.Capacity())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewAudio(types.SampleFormatNone, 44100, types.ChannelLayoutStereo, 1)
		require.ErrorIs(t, err, types.ErrConfiguration)
		_, err = NewAudio(types.SampleFormatS16, 0, types.ChannelLayoutStereo, 1)
		require.ErrorIs(t, err, types.ErrConfiguration)
	})
}

func TestNewVideo(t *testing.T) {
	t.Parallel()

	f, err := NewVideo(types.PixelFormatYUV420P, 352, 288)
	require.NoError(t, err)
	require.Len(t, f.Planes(), 3)
	require.Len(t, f.Planes()[0], 352*288)
	require.Len(t, f.Planes()[1], 176*144)
	require.Equal(t, 176, f.Linesize(2))
	require.Equal(t, types.PixelFormatYUV420P.FrameSize(352, 288), f.Size())

	_, err = NewVideo(types.PixelFormatYUV420P, 351, 288)
	require.ErrorIs(t, err, types.ErrConfiguration)
}

func TestCopyOnWrite(t *testing.T) {
	t.Parallel()

	f, err := NewVideo(types.PixelFormatYUV420P, 4, 2)
	require.NoError(t, err)
	require.True(t, f.IsWritable())
	f.Planes()[0][0] = 1

	held := f.Ref()
	require.False(t, f.IsWritable())
	require.False(t, held.IsWritable())

	require.NoError(t, f.MakeWritable())
	require.True(t, f.IsWritable())
	require.True(t, held.IsWritable())

	f.Planes()[0][0] = 2
	require.Equal(t, byte(1), held.Planes()[0][0], "the held frame must not observe the new write")

	Release(held)
	require.Nil(t, held.Planes())
}

func TestCloneAsWritable(t *testing.T) {
	t.Parallel()

	f, err := NewAudio(types.SampleFormatU8, 8000, types.ChannelLayoutMono, 4)
	require.NoError(t, err)
	f.PTS = 7
	f.Planes()[0][3] = 9

	c := CloneAsWritable(f)
	require.True(t, c.IsWritable())
	require.True(t, f.IsWritable())
	require.Equal(t, int64(7), c.PTS)
	require.Equal(t, byte(9), c.Planes()[0][3])
	c.Planes()[0][3] = 1
	require.Equal(t, byte(9), f.Planes()[0][3])
}

func TestMakeWritableWithoutBuffer(t *testing.T) {
	t.Parallel()

	var f Frame
	require.ErrorIs(t, f.MakeWritable(), types.ErrResource)
}
