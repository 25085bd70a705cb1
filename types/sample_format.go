package types

import (
	"fmt"
	"strings"
)

// SampleFormat is the encoding of a single PCM sample.
type SampleFormat int

const (
	SampleFormatNone = SampleFormat(iota)
	SampleFormatU8
	SampleFormatS16
	SampleFormatS32
	SampleFormatFLT
	SampleFormatDBL
	SampleFormatU8P
	SampleFormatS16P
	SampleFormatS32P
	SampleFormatFLTP
	SampleFormatDBLP
	endOfSampleFormat
)

func SampleFormats() []SampleFormat {
	var result []SampleFormat
	for f := SampleFormatNone + 1; f < endOfSampleFormat; f++ {
		result = append(result, f)
	}
	return result
}

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatNone:
		return "none"
	case SampleFormatU8:
		return "u8"
	case SampleFormatS16:
		return "s16"
	case SampleFormatS32:
		return "s32"
	case SampleFormatFLT:
		return "flt"
	case SampleFormatDBL:
		return "dbl"
	case SampleFormatU8P:
		return "u8p"
	case SampleFormatS16P:
		return "s16p"
	case SampleFormatS32P:
		return "s32p"
	case SampleFormatFLTP:
		return "fltp"
	case SampleFormatDBLP:
		return "dblp"
	default:
		return fmt.Sprintf("SampleFormat(%d)", int(f))
	}
}

func SampleFormatFromString(s string) (SampleFormat, error) {
	for _, f := range SampleFormats() {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return SampleFormatNone, fmt.Errorf("unknown sample format %q", s)
}

func (f SampleFormat) IsValid() bool {
	return f > SampleFormatNone && f < endOfSampleFormat
}

func (f SampleFormat) IsPlanar() bool {
	return f >= SampleFormatU8P && f < endOfSampleFormat
}

// Packed returns the interleaved counterpart of the format.
func (f SampleFormat) Packed() SampleFormat {
	if f.IsPlanar() {
		return f - (SampleFormatU8P - SampleFormatU8)
	}
	return f
}

// Planar returns the planar counterpart of the format.
func (f SampleFormat) Planar() SampleFormat {
	if !f.IsPlanar() && f.IsValid() {
		return f + (SampleFormatU8P - SampleFormatU8)
	}
	return f
}

func (f SampleFormat) BytesPerSample() int {
	switch f.Packed() {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS32, SampleFormatFLT:
		return 4
	case SampleFormatDBL:
		return 8
	default:
		return 0
	}
}

// RawFormatName returns the name of the matching raw demuxer
// (e.g. "s16le"), suitable for "ffplay -f <name>".
func (f SampleFormat) RawFormatName() string {
	switch f.Packed() {
	case SampleFormatU8:
		return "u8"
	case SampleFormatS16:
		return "s16le"
	case SampleFormatS32:
		return "s32le"
	case SampleFormatFLT:
		return "f32le"
	case SampleFormatDBL:
		return "f64le"
	default:
		return ""
	}
}

func (f SampleFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *SampleFormat) UnmarshalText(b []byte) error {
	v, err := SampleFormatFromString(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
