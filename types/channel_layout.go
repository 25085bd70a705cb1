package types

import (
	"fmt"
	"strings"
)

type ChannelLayout int

const (
	ChannelLayoutUndefined = ChannelLayout(iota)
	ChannelLayoutMono
	ChannelLayoutStereo
	ChannelLayout2Point1
	ChannelLayoutQuad
	ChannelLayout5Point1
	endOfChannelLayout
)

func ChannelLayouts() []ChannelLayout {
	var result []ChannelLayout
	for l := ChannelLayoutUndefined + 1; l < endOfChannelLayout; l++ {
		result = append(result, l)
	}
	return result
}

func (l ChannelLayout) Channels() int {
	switch l {
	case ChannelLayoutMono:
		return 1
	case ChannelLayoutStereo:
		return 2
	case ChannelLayout2Point1:
		return 3
	case ChannelLayoutQuad:
		return 4
	case ChannelLayout5Point1:
		return 6
	default:
		return 0
	}
}

func (l ChannelLayout) IsValid() bool {
	return l.Channels() > 0
}

func (l ChannelLayout) String() string {
	switch l {
	case ChannelLayoutUndefined:
		return "undefined"
	case ChannelLayoutMono:
		return "mono"
	case ChannelLayoutStereo:
		return "stereo"
	case ChannelLayout2Point1:
		return "2.1"
	case ChannelLayoutQuad:
		return "quad"
	case ChannelLayout5Point1:
		return "5.1"
	default:
		return fmt.Sprintf("ChannelLayout(%d)", int(l))
	}
}

func ChannelLayoutFromString(s string) (ChannelLayout, error) {
	for _, l := range ChannelLayouts() {
		if strings.EqualFold(l.String(), s) {
			return l, nil
		}
	}
	return ChannelLayoutUndefined, fmt.Errorf("unknown channel layout %q", s)
}

func ChannelLayoutFromChannels(n int) (ChannelLayout, error) {
	for _, l := range ChannelLayouts() {
		if l.Channels() == n {
			return l, nil
		}
	}
	return ChannelLayoutUndefined, fmt.Errorf("no default channel layout for %d channels", n)
}

func (l ChannelLayout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *ChannelLayout) UnmarshalText(b []byte) error {
	v, err := ChannelLayoutFromString(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
