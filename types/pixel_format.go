package types

import (
	"fmt"
	"strings"
)

type PixelFormat int

const (
	PixelFormatNone = PixelFormat(iota)
	PixelFormatYUV420P
	endOfPixelFormat
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatNone:
		return "none"
	case PixelFormatYUV420P:
		return "yuv420p"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

func PixelFormatFromString(s string) (PixelFormat, error) {
	for f := PixelFormatNone + 1; f < endOfPixelFormat; f++ {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return PixelFormatNone, fmt.Errorf("unknown pixel format %q", s)
}

func (f PixelFormat) IsValid() bool {
	return f > PixelFormatNone && f < endOfPixelFormat
}

// PlaneSizes returns width and height of every plane of a width x height picture.
func (f PixelFormat) PlaneSizes(width, height int) [][2]int {
	switch f {
	case PixelFormatYUV420P:
		cw, ch := (width+1)/2, (height+1)/2
		return [][2]int{{width, height}, {cw, ch}, {cw, ch}}
	default:
		return nil
	}
}

// FrameSize returns the amount of bytes of a tightly packed picture.
func (f PixelFormat) FrameSize(width, height int) int {
	var total int
	for _, s := range f.PlaneSizes(width, height) {
		total += s[0] * s[1]
	}
	return total
}

func (f PixelFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *PixelFormat) UnmarshalText(b []byte) error {
	v, err := PixelFormatFromString(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
