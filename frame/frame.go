// Package frame implements uncompressed media frames with reference-counted,
// copy-on-write buffers.
package frame

import (
	"fmt"

	"github.com/xaionaro-go/avencmux/types"
)

// Frame is a chunk of uncompressed audio or a single uncompressed picture.
type Frame struct {
	MediaType types.MediaType
	PTS       int64
	TimeBase  types.Rational

	// audio
	SampleFormat  types.SampleFormat
	SampleRate    int
	ChannelLayout types.ChannelLayout
	NbSamples     int

	// video
	Width       int
	Height      int
	PixelFormat types.PixelFormat

	buffer *Buffer
}

// NewAudio allocates a frame able to hold capacity samples per channel.
// NbSamples is initialized to the capacity.
func NewAudio(
	sampleFormat types.SampleFormat,
	sampleRate int,
	channelLayout types.ChannelLayout,
	capacity int,
) (*Frame, error) {
	if !sampleFormat.IsValid() {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid sample format %s", sampleFormat))
	}
	if !channelLayout.IsValid() {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid channel layout %s", channelLayout))
	}
	if sampleRate <= 0 {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid sample rate %d", sampleRate))
	}
	if capacity < 0 {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid samples capacity %d", capacity))
	}
	f := &Frame{
		MediaType:     types.MediaTypeAudio,
		TimeBase:      types.R(1, int64(sampleRate)),
		SampleFormat:  sampleFormat,
		SampleRate:    sampleRate,
		ChannelLayout: channelLayout,
		NbSamples:     capacity,
	}
	f.buffer = newBuffer(audioPlaneSizes(sampleFormat, channelLayout.Channels(), capacity))
	return f, nil
}

func audioPlaneSizes(sampleFormat types.SampleFormat, channels int, samples int) []int {
	bps := sampleFormat.BytesPerSample()
	if !sampleFormat.IsPlanar() {
		return []int{samples * channels * bps}
	}
	sizes := make([]int, channels)
	for idx := range sizes {
		sizes[idx] = samples * bps
	}
	return sizes
}

// NewVideo allocates a tightly packed picture.
func NewVideo(
	pixelFormat types.PixelFormat,
	width, height int,
) (*Frame, error) {
	if !pixelFormat.IsValid() {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("invalid pixel format %s", pixelFormat))
	}
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, types.WithKind(types.ErrConfiguration, fmt.Errorf("resolution must be positive and even, but got %dx%d", width, height))
	}
	f := &Frame{
		MediaType:   types.MediaTypeVideo,
		Width:       width,
		Height:      height,
		PixelFormat: pixelFormat,
	}
	var sizes []int
	for _, s := range pixelFormat.PlaneSizes(width, height) {
		sizes = append(sizes, s[0]*s[1])
	}
	f.buffer = newBuffer(sizes)
	return f, nil
}

// Channels returns the amount of audio channels.
func (f *Frame) Channels() int {
	return f.ChannelLayout.Channels()
}

// Capacity returns how many samples per channel the buffer can hold.
func (f *Frame) Capacity() int {
	if f.MediaType != types.MediaTypeAudio || f.buffer == nil || len(f.buffer.Planes) == 0 {
		return 0
	}
	bps := f.SampleFormat.BytesPerSample()
	if !f.SampleFormat.IsPlanar() {
		bps *= f.Channels()
	}
	if bps == 0 {
		return 0
	}
	return len(f.buffer.Planes[0]) / bps
}

// Planes returns the full planes of the underlying buffer.
// They must not be written unless IsWritable returns true.
func (f *Frame) Planes() [][]byte {
	if f.buffer == nil {
		return nil
	}
	return f.buffer.Planes
}

// Linesize returns the amount of bytes per row of the given picture plane.
func (f *Frame) Linesize(plane int) int {
	sizes := f.PixelFormat.PlaneSizes(f.Width, f.Height)
	if plane >= len(sizes) {
		return 0
	}
	return sizes[plane][0]
}

// Bytes returns the meaningful part of every plane (for audio it is
// limited by NbSamples).
func (f *Frame) Bytes() [][]byte {
	planes := f.Planes()
	if f.MediaType != types.MediaTypeAudio {
		return planes
	}
	size := f.NbSamples * f.SampleFormat.BytesPerSample()
	if !f.SampleFormat.IsPlanar() {
		size *= f.Channels()
	}
	result := make([][]byte, len(planes))
	for idx, plane := range planes {
		result[idx] = plane[:min(size, len(plane))]
	}
	return result
}

// Size is the total length of Bytes.
func (f *Frame) Size() int {
	var total int
	for _, plane := range f.Bytes() {
		total += len(plane)
	}
	return total
}

// Ref returns a new frame sharing the buffer with f.
func (f *Frame) Ref() *Frame {
	dst := Pool.Get()
	CopyReferenced(dst, f)
	return dst
}

// Unref detaches the frame from its buffer.
func (f *Frame) Unref() {
	if f.buffer == nil {
		return
	}
	f.buffer.unref()
	f.buffer = nil
}

// IsWritable reports whether f is the only holder of its buffer.
func (f *Frame) IsWritable() bool {
	return f.buffer != nil && f.buffer.RefCount() == 1
}

// MakeWritable ensures the buffer is exclusively owned by f, copying
// it if other holders still reference it.
func (f *Frame) MakeWritable() error {
	if f.buffer == nil {
		return types.WithKind(types.ErrResource, fmt.Errorf("the frame has no buffer"))
	}
	if f.IsWritable() {
		return nil
	}
	old := f.buffer
	f.buffer = old.clone()
	old.unref()
	return nil
}

func (f *Frame) String() string {
	switch f.MediaType {
	case types.MediaTypeAudio:
		return fmt.Sprintf("audio{pts:%d/%s, %s, %dHz, %s, samples:%d}", f.PTS, f.TimeBase, f.SampleFormat, f.SampleRate, f.ChannelLayout, f.NbSamples)
	case types.MediaTypeVideo:
		return fmt.Sprintf("video{pts:%d/%s, %s, %dx%d}", f.PTS, f.TimeBase, f.PixelFormat, f.Width, f.Height)
	default:
		return fmt.Sprintf("frame{pts:%d/%s}", f.PTS, f.TimeBase)
	}
}
