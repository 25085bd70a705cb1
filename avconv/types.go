// Package avconv converts values between this module and libav.
package avconv

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avencmux/types"
)

var sampleFormats = map[types.SampleFormat]astiav.SampleFormat{
	types.SampleFormatU8:   astiav.SampleFormatU8,
	types.SampleFormatS16:  astiav.SampleFormatS16,
	types.SampleFormatS32:  astiav.SampleFormatS32,
	types.SampleFormatFLT:  astiav.SampleFormatFlt,
	types.SampleFormatDBL:  astiav.SampleFormatDbl,
	types.SampleFormatU8P:  astiav.SampleFormatU8P,
	types.SampleFormatS16P: astiav.SampleFormatS16P,
	types.SampleFormatS32P: astiav.SampleFormatS32P,
	types.SampleFormatFLTP: astiav.SampleFormatFltp,
	types.SampleFormatDBLP: astiav.SampleFormatDblp,
}

func SampleFormat(f types.SampleFormat) astiav.SampleFormat {
	if r, ok := sampleFormats[f]; ok {
		return r
	}
	return astiav.SampleFormatNone
}

func SampleFormatFromLibav(f astiav.SampleFormat) (types.SampleFormat, error) {
	for k, v := range sampleFormats {
		if v == f {
			return k, nil
		}
	}
	return types.SampleFormatNone, fmt.Errorf("unsupported sample format %s", f)
}

func ChannelLayout(l types.ChannelLayout) astiav.ChannelLayout {
	switch l {
	case types.ChannelLayoutMono:
		return astiav.ChannelLayoutMono
	case types.ChannelLayoutStereo:
		return astiav.ChannelLayoutStereo
	case types.ChannelLayout2Point1:
		return astiav.ChannelLayout2Point1
	case types.ChannelLayoutQuad:
		return astiav.ChannelLayoutQuad
	case types.ChannelLayout5Point1:
		return astiav.ChannelLayout5Point1
	default:
		return astiav.ChannelLayout{}
	}
}

func ChannelLayoutFromLibav(l astiav.ChannelLayout) (types.ChannelLayout, error) {
	for _, candidate := range types.ChannelLayouts() {
		if ChannelLayout(candidate).Equal(l) {
			return candidate, nil
		}
	}
	// libav may report a layout of an unspecified order; fall back to the
	// channel count then.
	if r, err := types.ChannelLayoutFromChannels(l.Channels()); err == nil {
		return r, nil
	}
	return types.ChannelLayoutUndefined, fmt.Errorf("unsupported channel layout %s", l.String())
}

func PixelFormat(f types.PixelFormat) astiav.PixelFormat {
	switch f {
	case types.PixelFormatYUV420P:
		return astiav.PixelFormatYuv420P
	default:
		return astiav.PixelFormatNone
	}
}

func PixelFormatFromLibav(f astiav.PixelFormat) (types.PixelFormat, error) {
	switch f {
	case astiav.PixelFormatYuv420P:
		return types.PixelFormatYUV420P, nil
	default:
		return types.PixelFormatNone, fmt.Errorf("unsupported pixel format %s", f)
	}
}

func MediaType(t types.MediaType) astiav.MediaType {
	switch t {
	case types.MediaTypeVideo:
		return astiav.MediaTypeVideo
	case types.MediaTypeAudio:
		return astiav.MediaTypeAudio
	default:
		return astiav.MediaTypeUnknown
	}
}

func MediaTypeFromLibav(t astiav.MediaType) types.MediaType {
	switch t {
	case astiav.MediaTypeVideo:
		return types.MediaTypeVideo
	case astiav.MediaTypeAudio:
		return types.MediaTypeAudio
	default:
		return types.MediaTypeUnknown
	}
}

func Rational(r types.Rational) astiav.Rational {
	return astiav.NewRational(int(r.Num), int(r.Den))
}

func RationalFromLibav(r astiav.Rational) types.Rational {
	return types.R(int64(r.Num()), int64(r.Den()))
}
