package codec

import (
	"fmt"

	"github.com/xaionaro-go/avencmux/audio"
	"github.com/xaionaro-go/avencmux/types"
)

// Parameters describe an encoder. When returned by Context.Parameters they
// are the final values negotiated by the engine.
type Parameters struct {
	MediaType types.MediaType `yaml:"-"`
	CodecName string          `yaml:"codec"`
	TimeBase  types.Rational  `yaml:"time_base,omitempty"`
	BitRate   int64           `yaml:"bit_rate,omitempty"`

	SampleFormat  types.SampleFormat  `yaml:"sample_format,omitempty"`
	SampleRate    int                 `yaml:"sample_rate,omitempty"`
	ChannelLayout types.ChannelLayout `yaml:"channel_layout,omitempty"`
	FrameSize     int                 `yaml:"frame_size,omitempty"`

	Width       int               `yaml:"width,omitempty"`
	Height      int               `yaml:"height,omitempty"`
	PixelFormat types.PixelFormat `yaml:"pixel_format,omitempty"`
	FrameRate   types.Rational    `yaml:"frame_rate,omitempty"`
	GOPSize     int               `yaml:"gop_size,omitempty"`
	MaxBFrames  int               `yaml:"max_b_frames,omitempty"`

	// GlobalHeader asks the encoder to put the stream headers into ExtraData
	// instead of every keyframe; some containers require that.
	GlobalHeader bool   `yaml:"global_header,omitempty"`
	Tuning       Tuning `yaml:"tuning,omitempty"`
	ExtraData    []byte `yaml:"-"`
}

func (p Parameters) PCMFormat() audio.PCMFormat {
	return audio.PCMFormat{
		SampleFormat:  p.SampleFormat,
		SampleRate:    p.SampleRate,
		ChannelLayout: p.ChannelLayout,
	}
}

func (p Parameters) Family() Family {
	return FamilyOf(p.CodecName)
}

// Validate checks the engine-independent constraints.
// The sample format may stay unset: engines pick the codec's preferred one.
func (p Parameters) Validate() error {
	if p.CodecName == "" {
		return fmt.Errorf("codec name is not set")
	}
	switch p.MediaType {
	case types.MediaTypeAudio:
		if p.SampleRate <= 0 {
			return fmt.Errorf("invalid sample rate %d", p.SampleRate)
		}
		if !p.ChannelLayout.IsValid() {
			return fmt.Errorf("invalid channel layout %s", p.ChannelLayout)
		}
		if p.FrameSize < 0 {
			return fmt.Errorf("invalid frame size %d", p.FrameSize)
		}
	case types.MediaTypeVideo:
		if p.Width <= 0 || p.Height <= 0 || p.Width%2 != 0 || p.Height%2 != 0 {
			return fmt.Errorf("resolution must be positive and even, but got %dx%d", p.Width, p.Height)
		}
		if !p.FrameRate.IsValid() {
			return fmt.Errorf("invalid frame rate %s", p.FrameRate)
		}
		if !p.PixelFormat.IsValid() {
			return fmt.Errorf("invalid pixel format %s", p.PixelFormat)
		}
		if p.GOPSize < 0 || p.MaxBFrames < 0 {
			return fmt.Errorf("invalid GOP structure: gop_size:%d max_b_frames:%d", p.GOPSize, p.MaxBFrames)
		}
	default:
		return fmt.Errorf("unsupported media type %s", p.MediaType)
	}
	if !p.TimeBase.IsZero() && !p.TimeBase.IsValid() {
		return fmt.Errorf("invalid time base %s", p.TimeBase)
	}
	return nil
}

// DefaultTimeBase returns TimeBase if set, otherwise 1/sample_rate for audio
// and VideoTimeBase for video.
func (p Parameters) DefaultTimeBase() types.Rational {
	if p.TimeBase.IsValid() {
		return p.TimeBase
	}
	switch p.MediaType {
	case types.MediaTypeAudio:
		return types.R(1, int64(p.SampleRate))
	case types.MediaTypeVideo:
		return VideoTimeBase(p.CodecName, p.FrameRate)
	}
	return types.Rational{}
}

func (p Parameters) String() string {
	switch p.MediaType {
	case types.MediaTypeAudio:
		return fmt.Sprintf("%s{%s %dHz %s frame_size:%d tb:%s bitrate:%d}", p.CodecName, p.SampleFormat, p.SampleRate, p.ChannelLayout, p.FrameSize, p.TimeBase, p.BitRate)
	case types.MediaTypeVideo:
		return fmt.Sprintf("%s{%dx%d %s fps:%s gop:%d bf:%d tb:%s bitrate:%d}", p.CodecName, p.Width, p.Height, p.PixelFormat, p.FrameRate, p.GOPSize, p.MaxBFrames, p.TimeBase, p.BitRate)
	}
	return p.CodecName
}
