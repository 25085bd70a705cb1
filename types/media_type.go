// media_type.go defines the MediaType enum and its methods.

package types

import (
	"fmt"
	"strings"
)

type MediaType int

const (
	MediaTypeUnknown = MediaType(-0x1)
	MediaTypeVideo   = MediaType(0x0)
	MediaTypeAudio   = MediaType(0x1)
)

func MediaTypes() []MediaType {
	return []MediaType{
		MediaTypeVideo,
		MediaTypeAudio,
	}
}

func (t MediaType) String() string {
	switch t {
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	case MediaTypeUnknown:
		return "unknown"
	default:
		return "MediaType(" + fmt.Sprintf("%d", int(t)) + ")"
	}
}

func MediaTypeFromString(s string) (MediaType, error) {
	for _, t := range MediaTypes() {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return MediaTypeUnknown, fmt.Errorf("unknown media type %q", s)
}

func (t MediaType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *MediaType) UnmarshalText(b []byte) error {
	v, err := MediaTypeFromString(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
