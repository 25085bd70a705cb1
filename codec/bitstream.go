package codec

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
)

// NALUnit is a short description of a NAL unit of an access unit.
type NALUnit struct {
	Type string
	Size int
}

// InspectAccessUnit splits an Annex-B access unit produced by an H.264 or
// H.265 encoder into its NAL units. The boolean reports whether the access
// unit is a random access point.
func InspectAccessUnit(
	data []byte,
	family Family,
) ([]NALUnit, bool, error) {
	var au h264.AnnexB
	if err := au.Unmarshal(data); err != nil {
		return nil, false, fmt.Errorf("unable to parse the Annex-B stream: %w", err)
	}

	result := make([]NALUnit, 0, len(au))
	for _, nalu := range au {
		if len(nalu) == 0 {
			continue
		}
		var typ string
		switch family {
		case FamilyH264:
			typ = h264.NALUType(nalu[0] & 0x1F).String()
		case FamilyH265:
			if len(nalu) < 2 {
				return nil, false, fmt.Errorf("an H.265 NAL unit is too short: %d bytes", len(nalu))
			}
			typ = h265.NALUType((nalu[0] >> 1) & 0x3F).String()
		default:
			return nil, false, fmt.Errorf("codec family %s has no NAL units", family)
		}
		result = append(result, NALUnit{Type: typ, Size: len(nalu)})
	}

	switch family {
	case FamilyH264:
		return result, h264.IsRandomAccess(au), nil
	default:
		return result, h265.IsRandomAccess(au), nil
	}
}

// NALHistogram counts NAL units by type.
type NALHistogram map[string]uint64

func (h NALHistogram) Add(units []NALUnit) {
	for _, u := range units {
		h[u.Type]++
	}
}
