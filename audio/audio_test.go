package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avencmux/types"
)

func TestFillExtractSamples(t *testing.T) {
	t.Parallel()

	samples := []float64{0, 0.5, -0.5, 0.25, -1}
	for _, sampleFormat := range types.SampleFormats() {
		sampleFormat := sampleFormat
		t.Run(sampleFormat.String(), func(t *testing.T) {
			t.Parallel()

			f, err := NewFrame(PCMFormat{
				SampleFormat:  sampleFormat,
				SampleRate:    48000,
				ChannelLayout: types.ChannelLayoutStereo,
			}, len(samples))
			require.NoError(t, err)

			require.NoError(t, FillSamples(f, 1, samples))
			got, err := ExtractSamples(f, 1)
			require.NoError(t, err)
			require.InDeltaSlice(t, samples, got, 1e-6)

			silent, err := ExtractSamples(f, 0)
			require.NoError(t, err)
			if sampleFormat.Packed() != types.SampleFormatU8 {
				require.Equal(t, make([]float64, len(samples)), silent)
			}

			_, err = ExtractSamples(f, 2)
			require.Error(t, err)
		})
	}
}

func TestFillSamplesClamps(t *testing.T) {
	t.Parallel()

	f, err := NewFrame(PCMFormat{types.SampleFormatS16, 8000, types.ChannelLayoutMono}, 2)
	require.NoError(t, err)
	require.NoError(t, FillSamples(f, 0, []float64{2, -2}))
	got, err := ExtractSamples(f, 0)
	require.NoError(t, err)
	require.InDelta(t, 32767.0/32768.0, got[0], 1e-9)
	require.Equal(t, -1.0, got[1])

	require.Error(t, FillSamples(f, 0, []float64{0, 0, 0}))
}

func TestInterleaved(t *testing.T) {
	t.Parallel()

	f, err := NewFrame(PCMFormat{types.SampleFormatU8P, 8000, types.ChannelLayoutStereo}, 2)
	require.NoError(t, err)
	copy(f.Planes()[0], []byte{1, 2})
	copy(f.Planes()[1], []byte{3, 4})
	require.Equal(t, []byte{1, 3, 2, 4}, Interleaved(f))
}

func TestFIFO(t *testing.T) {
	t.Parallel()

	format := PCMFormat{types.SampleFormatS16, 44100, types.ChannelLayoutStereo}
	q := NewFIFO(format)

	in, err := NewFrame(format, 3)
	require.NoError(t, err)
	require.NoError(t, FillSamples(in, 0, []float64{0.5, 0.25, 0.125}))
	require.NoError(t, q.Write(in))
	require.NoError(t, q.Write(in))
	require.Equal(t, 6, q.Size())

	out, err := NewFrame(format, 4)
	require.NoError(t, err)
	n, err := q.Read(out, 4)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, 4, out.NbSamples)
	got, err := ExtractSamples(out, 0)
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, 0.25, 0.125, 0.5}, got)
	require.Equal(t, 2, q.Size())

	n, err = q.Read(out, 4)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Zero(t, q.Size())

	other, err := NewFrame(PCMFormat{types.SampleFormatFLT, 44100, types.ChannelLayoutStereo}, 1)
	require.NoError(t, err)
	require.Error(t, q.Write(other))
}
