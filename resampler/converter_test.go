package resampler

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/source"
	"github.com/xaionaro-go/avencmux/types"
)

func stereo(sampleFormat types.SampleFormat, rate int) audio.PCMFormat {
	return audio.PCMFormat{
		SampleFormat:  sampleFormat,
		SampleRate:    rate,
		ChannelLayout: types.ChannelLayoutStereo,
	}
}

func TestConverter48kTo44k1(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	in := stereo(types.SampleFormatDBL, 48000)
	out := stereo(types.SampleFormatS16, 44100)
	conv, err := NewConverter(ctx, NewSoftware(), in, out, 1024)
	require.NoError(t, err)
	defer conv.Close(ctx)
	require.Equal(t, 941, conv.Capacity())

	src, err := source.NewAudioSine(source.ToneA440(), in, 1024, types.R(10, 1))
	require.NoError(t, err)

	var totalIn, totalOut int64
	for {
		f, err := src.NextFrame(ctx)
		if errors.Is(err, types.ErrEndOfStream) {
			break
		}
		require.NoError(t, err)

		res, call, err := conv.Convert(ctx, f)
		require.NoError(t, err)
		require.GreaterOrEqual(t, call.Capacity, call.Produced)
		require.Equal(t, call.Produced, res.NbSamples)
		require.Equal(t, totalOut, res.PTS)
		totalIn += int64(call.InputSamples)
		totalOut += int64(call.Produced)
	}
	_, call, err := conv.Drain(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, call.Capacity, call.Produced)
	totalOut += int64(call.Produced)

	require.Equal(t, int64(469*1024), totalIn)
	expected := float64(totalIn) * 44100 / 48000
	require.InDelta(t, expected, float64(totalOut), 1)
	require.Equal(t, totalOut, conv.TotalOut())
	require.LessOrEqual(t, conv.Reallocations(), 2)

	_, _, err = conv.Drain(ctx)
	require.ErrorIs(t, err, types.ErrProcessing)
}

func TestConverterRandomChunks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, rates := range [][2]int{{48000, 44100}, {44100, 48000}, {8000, 44100}, {44100, 8000}, {22050, 22050}} {
		in := stereo(types.SampleFormatFLT, rates[0])
		out := stereo(types.SampleFormatFLT, rates[1])
		conv, err := NewConverter(ctx, NewSoftware(), in, out, 512)
		require.NoError(t, err)

		rng := rand.New(rand.NewSource(int64(rates[0] + rates[1])))
		var total int64
		for range 200 {
			n := rng.Intn(2000)
			f, err := audio.NewFrame(in, n)
			require.NoError(t, err)
			_, call, err := conv.Convert(ctx, f)
			require.NoError(t, err)
			require.GreaterOrEqual(t, call.Capacity, call.Produced, "rates %v", rates)
			total += int64(n)
		}
		_, call, err := conv.Drain(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, call.Capacity, call.Produced)

		exact := types.RescaleRnd(total, int64(rates[1]), int64(rates[0]), types.RoundUp)
		require.Equal(t, exact, conv.TotalOut(), "rates %v", rates)
		require.NoError(t, conv.Close(ctx))
	}
}

func TestConverterPassThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	in := stereo(types.SampleFormatS16, 44100)
	out := stereo(types.SampleFormatFLTP, 44100)
	conv, err := NewConverter(ctx, NewSoftware(), in, out, 4)
	require.NoError(t, err)

	f, err := audio.NewFrame(in, 4)
	require.NoError(t, err)
	samples := []float64{0.5, -0.5, 0.25, 0}
	require.NoError(t, audio.FillSamples(f, 0, samples))
	require.NoError(t, audio.FillSamples(f, 1, samples))

	res, call, err := conv.Convert(ctx, f)
	require.NoError(t, err)
	require.Equal(t, 4, call.Produced)
	require.Zero(t, call.Delay)
	require.False(t, call.Reallocated)
	got, err := audio.ExtractSamples(res, 1)
	require.NoError(t, err)
	require.Equal(t, samples, got)
}

func TestConverterDownmix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	in := stereo(types.SampleFormatDBL, 8000)
	out := audio.PCMFormat{SampleFormat: types.SampleFormatDBL, SampleRate: 8000, ChannelLayout: types.ChannelLayoutMono}
	conv, err := NewConverter(ctx, NewSoftware(), in, out, 2)
	require.NoError(t, err)

	f, err := audio.NewFrame(in, 2)
	require.NoError(t, err)
	require.NoError(t, audio.FillSamples(f, 0, []float64{1, 0.5}))
	require.NoError(t, audio.FillSamples(f, 1, []float64{0, 0.5}))
	res, _, err := conv.Convert(ctx, f)
	require.NoError(t, err)
	got, err := audio.ExtractSamples(res, 0)
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, 0.5}, got)
}

func TestConverterInterpolates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// doubling the rate puts every odd output sample half way between two inputs
	in := audio.PCMFormat{SampleFormat: types.SampleFormatDBL, SampleRate: 1000, ChannelLayout: types.ChannelLayoutMono}
	out := in
	out.SampleRate = 2000
	conv, err := NewConverter(ctx, NewSoftware(), in, out, 3)
	require.NoError(t, err)

	f, err := audio.NewFrame(in, 3)
	require.NoError(t, err)
	require.NoError(t, audio.FillSamples(f, 0, []float64{0, 1, 0}))
	res, call, err := conv.Convert(ctx, f)
	require.NoError(t, err)
	require.Equal(t, 5, call.Produced)
	got, err := audio.ExtractSamples(res, 0)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0.5, 1, 0.5, 0}, got)

	res, call, err = conv.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, call.Produced)
	got, err = audio.ExtractSamples(res, 0)
	require.NoError(t, err)
	require.Equal(t, []float64{0}, got)
}

type failingEngine struct {
	delay        int64
	produced     int
	err          error
	configureErr error
	configured   int
	closed       bool
}

func (e *failingEngine) Configure(context.Context, audio.PCMFormat, audio.PCMFormat) (Context, error) {
	e.configured++
	if e.configureErr != nil {
		return nil, e.configureErr
	}
	return e, nil
}
func (e *failingEngine) Delay(int) int64 { return e.delay }
func (e *failingEngine) Convert(context.Context, *frame.Frame, int, *frame.Frame, int) (int, error) {
	return e.produced, e.err
}
func (e *failingEngine) Close(context.Context) error {
	e.closed = true
	return nil
}

func TestConverterEngineFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	in := stereo(types.SampleFormatS16, 48000)
	out := stereo(types.SampleFormatS16, 48000)

	t.Run("error", func(t *testing.T) {
		engine := &failingEngine{err: errors.New("boom")}
		conv, err := NewConverter(ctx, engine, in, out, 16)
		require.NoError(t, err)
		f, err := audio.NewFrame(in, 16)
		require.NoError(t, err)
		_, _, err = conv.Convert(ctx, f)
		require.ErrorIs(t, err, types.ErrProcessing)
	})

	t.Run("negative_count", func(t *testing.T) {
		engine := &failingEngine{produced: -1}
		conv, err := NewConverter(ctx, engine, in, out, 16)
		require.NoError(t, err)
		f, err := audio.NewFrame(in, 16)
		require.NoError(t, err)
		_, _, err = conv.Convert(ctx, f)
		require.ErrorIs(t, err, types.ErrProcessing)
	})

	t.Run("delay_grows_the_destination", func(t *testing.T) {
		engine := &failingEngine{delay: 100}
		conv, err := NewConverter(ctx, engine, in, out, 16)
		require.NoError(t, err)
		require.Equal(t, 16, conv.Capacity())
		f, err := audio.NewFrame(in, 16)
		require.NoError(t, err)
		_, call, err := conv.Convert(ctx, f)
		require.NoError(t, err)
		require.True(t, call.Reallocated)
		require.Equal(t, 116, call.Capacity)

		_, call, err = conv.Convert(ctx, f)
		require.NoError(t, err)
		require.False(t, call.Reallocated)
		require.Equal(t, 1, conv.Reallocations())

		require.NoError(t, conv.Close(ctx))
		require.True(t, engine.closed)
	})

	t.Run("wrong_input_format", func(t *testing.T) {
		conv, err := NewConverter(ctx, NewSoftware(), in, out, 16)
		require.NoError(t, err)
		f, err := audio.NewFrame(stereo(types.SampleFormatS16, 44100), 16)
		require.NoError(t, err)
		_, _, err = conv.Convert(ctx, f)
		require.ErrorIs(t, err, types.ErrProcessing)
	})

	t.Run("configure_error", func(t *testing.T) {
		errConfigure := errors.New("unsupported layout")
		engine := &failingEngine{configureErr: errConfigure}
		conv, err := NewConverter(ctx, engine, in, out, 16)
		require.Nil(t, conv)
		require.ErrorIs(t, err, types.ErrConfiguration)
		require.ErrorIs(t, err, errConfigure)
		require.Equal(t, 1, engine.configured)
		require.False(t, engine.closed)
	})

	t.Run("invalid_format", func(t *testing.T) {
		_, err := NewConverter(ctx, NewSoftware(), audio.PCMFormat{}, out, 16)
		require.ErrorIs(t, err, types.ErrConfiguration)
	})
}

func TestSoftwareDelay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	in := audio.PCMFormat{SampleFormat: types.SampleFormatDBL, SampleRate: 48000, ChannelLayout: types.ChannelLayoutMono}
	out := in
	out.SampleRate = 44100
	engineCtx, err := NewSoftware().Configure(ctx, in, out)
	require.NoError(t, err)
	require.Zero(t, engineCtx.Delay(48000))

	src, err := audio.NewFrame(in, 1024)
	require.NoError(t, err)
	dst, err := audio.NewFrame(out, 2048)
	require.NoError(t, err)
	n, err := engineCtx.Convert(ctx, dst, 2048, src, 1024)
	require.NoError(t, err)
	require.Equal(t, 940, n)

	// 1024 - 940*48000/44100 = 0.87 input samples are left
	require.Equal(t, int64(1), engineCtx.Delay(48000))
	require.Equal(t, int64(871), engineCtx.Delay(48000*1000))
}
