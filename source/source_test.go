package source

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/types"
)

func TestExhausted(t *testing.T) {
	t.Parallel()

	tb := types.R(1, 44100)
	five := types.R(5, 1)
	require.False(t, Exhausted(5*44100-1, tb, five))
	require.True(t, Exhausted(5*44100, tb, five))
	require.True(t, Exhausted(5*44100+1, tb, five))
	require.False(t, Exhausted(124, types.R(1, 25), five))
	require.True(t, Exhausted(125, types.R(1, 25), five))
}

func TestAudioSine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	format := audio.PCMFormat{
		SampleFormat:  types.SampleFormatDBL,
		SampleRate:    48000,
		ChannelLayout: types.ChannelLayoutStereo,
	}

	t.Run("flat_tone", func(t *testing.T) {
		s, err := NewAudioSine(ToneA440(), format, 1024, types.R(1, 1))
		require.NoError(t, err)

		f, err := s.NextFrame(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(0), f.PTS)
		require.Equal(t, 1024, f.NbSamples)
		require.Equal(t, int64(1024), s.NextPTS())

		left, err := audio.ExtractSamples(f, 0)
		require.NoError(t, err)
		right, err := audio.ExtractSamples(f, 1)
		require.NoError(t, err)
		require.Equal(t, left, right)
		for i, v := range left {
			require.InDelta(t, math.Sin(2*math.Pi*440*float64(i)/48000), v, 1e-9)
		}
	})

	t.Run("sweep", func(t *testing.T) {
		cfg := SineConfig{Frequency: 110, FrequencyIncrementPerSecond: 110, Amplitude: 1}
		s, err := NewAudioSine(cfg, format, 4, types.Rational{})
		require.NoError(t, err)
		f, err := s.NextFrame(ctx)
		require.NoError(t, err)
		got, err := audio.ExtractSamples(f, 0)
		require.NoError(t, err)

		tincr := 2 * math.Pi * 110 / 48000
		tincr2 := tincr / 48000
		var phase float64
		for i := range got {
			require.InDelta(t, math.Sin(phase), got[i], 1e-12)
			phase += tincr
			tincr += tincr2
		}
	})

	t.Run("exhaustion_is_idempotent", func(t *testing.T) {
		s, err := NewAudioSine(ToneA440(), format, 1024, types.R(1, 10))
		require.NoError(t, err)
		var count int
		for {
			_, err := s.NextFrame(ctx)
			if err != nil {
				require.ErrorIs(t, err, types.ErrEndOfStream)
				break
			}
			count++
		}
		require.Equal(t, types.CeilDiv(4800, 1024), count)
		for range 3 {
			_, err := s.NextFrame(ctx)
			require.ErrorIs(t, err, types.ErrEndOfStream)
		}
		require.True(t, s.IsExhausted())
	})

	t.Run("the_frame_held_elsewhere_is_not_overwritten", func(t *testing.T) {
		s, err := NewAudioSine(ToneA440(), format, 16, types.Rational{})
		require.NoError(t, err)
		f, err := s.NextFrame(ctx)
		require.NoError(t, err)
		held := f.Ref()
		before, err := audio.ExtractSamples(held, 0)
		require.NoError(t, err)

		_, err = s.NextFrame(ctx)
		require.NoError(t, err)
		after, err := audio.ExtractSamples(held, 0)
		require.NoError(t, err)
		require.Equal(t, before, after)
		require.Equal(t, int64(0), held.PTS)
		frame.Release(held)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewAudioSine(ToneA440(), format, 0, types.Rational{})
		require.ErrorIs(t, err, types.ErrConfiguration)
		_, err = NewAudioSine(ToneA440(), audio.PCMFormat{}, 16, types.Rational{})
		require.ErrorIs(t, err, types.ErrConfiguration)
	})
}

func TestVideoPattern(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("pattern", func(t *testing.T) {
		s, err := NewVideoPattern(8, 4, types.R(25, 1), types.R(1, 25), types.Rational{})
		require.NoError(t, err)
		for i := range 3 {
			f, err := s.NextFrame(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(i), f.PTS)
			planes := f.Planes()
			require.Equal(t, byte(2+1+3*i), planes[0][1*8+2])
			require.Equal(t, byte(128+1+2*i), planes[1][1*4+3])
			require.Equal(t, byte(64+3+5*i), planes[2][1*4+3])
		}
	})

	t.Run("pure_in_index", func(t *testing.T) {
		a, err := frame.NewVideo(types.PixelFormatYUV420P, 16, 16)
		require.NoError(t, err)
		b, err := frame.NewVideo(types.PixelFormatYUV420P, 16, 16)
		require.NoError(t, err)
		FillPattern(a, 7)
		FillPattern(b, 3)
		FillPattern(b, 7)
		require.Equal(t, a.Planes(), b.Planes())
	})

	t.Run("milliseconds", func(t *testing.T) {
		s, err := NewVideoPattern(8, 4, types.R(25, 1), types.R(1, 1000), types.R(1, 1))
		require.NoError(t, err)
		var pts []int64
		for {
			f, err := s.NextFrame(ctx)
			if err != nil {
				require.ErrorIs(t, err, types.ErrEndOfStream)
				break
			}
			pts = append(pts, f.PTS)
		}
		require.Len(t, pts, 25)
		require.Equal(t, int64(40), pts[1])
		require.Equal(t, int64(960), pts[24])
	})

	t.Run("five_seconds", func(t *testing.T) {
		s, err := NewVideoPattern(352, 288, types.R(25, 1), types.R(1, 25), types.R(5, 1))
		require.NoError(t, err)
		var count int
		for {
			if _, err := s.NextFrame(ctx); err != nil {
				break
			}
			count++
		}
		require.Equal(t, 125, count)
	})
}

func TestYUVReader(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	frameSize := types.PixelFormatYUV420P.FrameSize(4, 2)
	data := bytes.Repeat([]byte{7}, frameSize*2+3)
	s, err := NewYUVReader(bytes.NewReader(data), 4, 2, types.R(25, 1), types.R(1, 1000))
	require.NoError(t, err)

	f, err := s.NextFrame(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), f.PTS)
	f, err = s.NextFrame(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(40), f.PTS)

	f, err = s.NextFrame(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(80), f.PTS)
	require.Equal(t, []byte{7, 7, 7, 0, 0, 0, 0, 0}, f.Planes()[0])

	_, err = s.NextFrame(ctx)
	require.ErrorIs(t, err, types.ErrEndOfStream)
}
