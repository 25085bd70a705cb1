// Package audio provides PCM format descriptions and per-sample access
// to audio frames.
package audio

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/types"
)

// PCMFormat describes uncompressed audio.
type PCMFormat struct {
	SampleFormat  types.SampleFormat  `yaml:"sample_format"`
	SampleRate    int                 `yaml:"sample_rate"`
	ChannelLayout types.ChannelLayout `yaml:"channel_layout"`
}

func (f PCMFormat) Validate() error {
	if !f.SampleFormat.IsValid() {
		return fmt.Errorf("invalid sample format %s", f.SampleFormat)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if !f.ChannelLayout.IsValid() {
		return fmt.Errorf("invalid channel layout %s", f.ChannelLayout)
	}
	return nil
}

func (f PCMFormat) Channels() int {
	return f.ChannelLayout.Channels()
}

// BytesPerFrame is the size of one sample of every channel.
func (f PCMFormat) BytesPerFrame() int {
	return f.SampleFormat.BytesPerSample() * f.Channels()
}

func (f PCMFormat) String() string {
	return fmt.Sprintf("%s/%dHz/%s", f.SampleFormat, f.SampleRate, f.ChannelLayout)
}

// FormatOf returns the PCM format of an audio frame.
func FormatOf(f *frame.Frame) PCMFormat {
	return PCMFormat{
		SampleFormat:  f.SampleFormat,
		SampleRate:    f.SampleRate,
		ChannelLayout: f.ChannelLayout,
	}
}

// NewFrame allocates an audio frame of the format able to hold capacity samples.
func NewFrame(format PCMFormat, capacity int) (*frame.Frame, error) {
	return frame.NewAudio(format.SampleFormat, format.SampleRate, format.ChannelLayout, capacity)
}

func toInt(sample float64, scale float64, lo, hi int64) int64 {
	v := math.Round(sample * scale)
	switch {
	case v < float64(lo):
		return lo
	case v > float64(hi):
		return hi
	}
	return int64(v)
}

// ExtractSamples extracts samples from a specific channel of an audio frame;
// integer formats are normalized to [-1, 1).
func ExtractSamples(f *frame.Frame, channel int) ([]float64, error) {
	nbSamples := f.NbSamples
	format := f.SampleFormat
	channels := f.Channels()
	if channel < 0 || channel >= channels {
		return nil, fmt.Errorf("channel %d is out of range [0, %d)", channel, channels)
	}

	res := make([]float64, nbSamples)
	if nbSamples == 0 {
		return res, nil
	}
	planes := f.Planes()
	plane, stride, offset := planes[0], channels, channel
	if format.IsPlanar() {
		plane, stride, offset = planes[channel], 1, 0
	}
	if len(plane) < nbSamples*stride*format.BytesPerSample() {
		return nil, fmt.Errorf("the plane is too short: %d < %d", len(plane), nbSamples*stride*format.BytesPerSample())
	}
	ptr := unsafe.Pointer(&plane[0])
	total := nbSamples * stride
	switch format.Packed() {
	case types.SampleFormatU8:
		samples := unsafe.Slice((*uint8)(ptr), total)
		for i := range nbSamples {
			res[i] = (float64(samples[i*stride+offset]) - 128) / 128.0
		}
	case types.SampleFormatS16:
		samples := unsafe.Slice((*int16)(ptr), total)
		for i := range nbSamples {
			res[i] = float64(samples[i*stride+offset]) / 32768.0
		}
	case types.SampleFormatS32:
		samples := unsafe.Slice((*int32)(ptr), total)
		for i := range nbSamples {
			res[i] = float64(samples[i*stride+offset]) / 2147483648.0
		}
	case types.SampleFormatFLT:
		samples := unsafe.Slice((*float32)(ptr), total)
		for i := range nbSamples {
			res[i] = float64(samples[i*stride+offset])
		}
	case types.SampleFormatDBL:
		samples := unsafe.Slice((*float64)(ptr), total)
		for i := range nbSamples {
			res[i] = samples[i*stride+offset]
		}
	default:
		return nil, fmt.Errorf("unsupported sample format: %v", format)
	}
	return res, nil
}

// FillSamples writes samples into a specific channel of an audio frame,
// starting at the first sample. The caller must own the frame (see frame.MakeWritable).
func FillSamples(f *frame.Frame, channel int, samples []float64) error {
	format := f.SampleFormat
	channels := f.Channels()
	if channel < 0 || channel >= channels {
		return fmt.Errorf("channel %d is out of range [0, %d)", channel, channels)
	}
	if len(samples) > f.Capacity() {
		return fmt.Errorf("%d samples do not fit into a frame of capacity %d", len(samples), f.Capacity())
	}
	if len(samples) == 0 {
		return nil
	}

	planes := f.Planes()
	plane, stride, offset := planes[0], channels, channel
	if format.IsPlanar() {
		plane, stride, offset = planes[channel], 1, 0
	}
	ptr := unsafe.Pointer(&plane[0])
	total := len(samples) * stride
	switch format.Packed() {
	case types.SampleFormatU8:
		out := unsafe.Slice((*uint8)(ptr), total)
		for i, sample := range samples {
			out[i*stride+offset] = uint8(toInt(sample, 128, -128, 127) + 128)
		}
	case types.SampleFormatS16:
		out := unsafe.Slice((*int16)(ptr), total)
		for i, sample := range samples {
			out[i*stride+offset] = int16(toInt(sample, 32768, math.MinInt16, math.MaxInt16))
		}
	case types.SampleFormatS32:
		out := unsafe.Slice((*int32)(ptr), total)
		for i, sample := range samples {
			out[i*stride+offset] = int32(toInt(sample, 2147483648, math.MinInt32, math.MaxInt32))
		}
	case types.SampleFormatFLT:
		out := unsafe.Slice((*float32)(ptr), total)
		for i, sample := range samples {
			out[i*stride+offset] = float32(sample)
		}
	case types.SampleFormatDBL:
		out := unsafe.Slice((*float64)(ptr), total)
		for i, sample := range samples {
			out[i*stride+offset] = sample
		}
	default:
		return fmt.Errorf("unsupported sample format: %v", format)
	}
	return nil
}

// Interleaved returns the meaningful samples of the frame as a single packed byte slice.
func Interleaved(f *frame.Frame) []byte {
	planes := f.Bytes()
	if !f.SampleFormat.IsPlanar() {
		return planes[0]
	}
	bps := f.SampleFormat.BytesPerSample()
	channels := len(planes)
	out := make([]byte, f.NbSamples*bps*channels)
	for i := range f.NbSamples {
		for ch, plane := range planes {
			copy(out[(i*channels+ch)*bps:], plane[i*bps:(i+1)*bps])
		}
	}
	return out
}
