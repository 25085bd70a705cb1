package avconv

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avencmux/frame"
	"github.com/xaionaro-go/avencmux/types"
)

const align = 1

// FrameToLibav fills dst with the content of src. The buffer of dst is
// reused if it has the same shape, otherwise it is reallocated.
func FrameToLibav(dst *astiav.Frame, src *frame.Frame) error {
	switch src.MediaType {
	case types.MediaTypeAudio:
		sampleFormat := SampleFormat(src.SampleFormat)
		channelLayout := ChannelLayout(src.ChannelLayout)
		sameShape := dst.NbSamples() == src.NbSamples &&
			dst.SampleFormat() == sampleFormat &&
			dst.SampleRate() == src.SampleRate &&
			dst.ChannelLayout().Equal(channelLayout)
		if !sameShape {
			dst.Unref()
			dst.SetNbSamples(src.NbSamples)
			dst.SetSampleFormat(sampleFormat)
			dst.SetSampleRate(src.SampleRate)
			dst.SetChannelLayout(channelLayout)
			if err := dst.AllocBuffer(0); err != nil {
				return fmt.Errorf("unable to allocate an audio buffer: %w", err)
			}
		}
	case types.MediaTypeVideo:
		pixelFormat := PixelFormat(src.PixelFormat)
		sameShape := dst.Width() == src.Width &&
			dst.Height() == src.Height &&
			dst.PixelFormat() == pixelFormat
		if !sameShape {
			dst.Unref()
			dst.SetWidth(src.Width)
			dst.SetHeight(src.Height)
			dst.SetPixelFormat(pixelFormat)
			if err := dst.AllocBuffer(0); err != nil {
				return fmt.Errorf("unable to allocate a picture buffer: %w", err)
			}
		}
	default:
		return fmt.Errorf("unsupported media type %s", src.MediaType)
	}

	if err := dst.MakeWritable(); err != nil {
		return fmt.Errorf("unable to make the frame writable: %w", err)
	}
	var buf []byte
	for _, plane := range src.Bytes() {
		buf = append(buf, plane...)
	}
	if err := dst.Data().SetBytes(buf, align); err != nil {
		return fmt.Errorf("unable to copy the data: %w", err)
	}
	dst.SetPts(src.PTS)
	return nil
}

// AudioFromLibav copies the samples of src into dst, which must have the
// same format and enough capacity. dst.NbSamples is set accordingly.
func AudioFromLibav(dst *frame.Frame, src *astiav.Frame) error {
	n := src.NbSamples()
	if n > dst.Capacity() {
		return fmt.Errorf("%d samples do not fit into a frame of capacity %d", n, dst.Capacity())
	}
	if err := dst.MakeWritable(); err != nil {
		return err
	}
	dst.NbSamples = n
	if n == 0 {
		return nil
	}

	size, err := src.SamplesBufferSize(align)
	if err != nil {
		return fmt.Errorf("unable to get the samples buffer size: %w", err)
	}
	buf := make([]byte, size)
	if _, err := src.SamplesCopyToBuffer(buf, align); err != nil {
		return fmt.Errorf("unable to copy the samples: %w", err)
	}

	planes := dst.Planes()
	planeSize := len(buf) / len(planes)
	for idx, plane := range planes {
		copy(plane, buf[idx*planeSize:(idx+1)*planeSize])
	}
	return nil
}
