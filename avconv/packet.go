package avconv

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
)

// PacketFromLibav copies src into a packet from the pool.
func PacketFromLibav(
	src *astiav.Packet,
	mediaType types.MediaType,
	timeBase types.Rational,
) *packet.Packet {
	pkt := packet.Get()
	pkt.StreamIndex = src.StreamIndex()
	pkt.MediaType = mediaType
	pkt.PTS = src.Pts()
	pkt.DTS = src.Dts()
	pkt.Duration = src.Duration()
	pkt.TimeBase = timeBase
	pkt.Key = src.Flags().Has(astiav.PacketFlagKey)
	pkt.Data = append(pkt.Data[:0], src.Data()...)
	return pkt
}

// PacketToLibav replaces the content of dst with a copy of src.
func PacketToLibav(dst *astiav.Packet, src *packet.Packet) error {
	dst.Unref()
	if err := dst.FromData(append([]byte(nil), src.Data...)); err != nil {
		return fmt.Errorf("unable to set the packet data: %w", err)
	}
	dst.SetStreamIndex(src.StreamIndex)
	dst.SetPts(src.PTS)
	dst.SetDts(src.DTS)
	dst.SetDuration(src.Duration)
	if src.Key {
		dst.SetFlags(dst.Flags().Add(astiav.PacketFlagKey))
	}
	return nil
}
