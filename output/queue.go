package output

import (
	"github.com/xaionaro-go/avencmux/packet"
	"github.com/xaionaro-go/avencmux/types"
)

type queueItem struct {
	Packet   *packet.Packet
	Sequence uint64
}

// queueItems is a min-heap of packets ordered by decoding time in seconds;
// packets with equal times keep the order they were queued in.
type queueItems []queueItem

func (s queueItems) Len() int {
	return len(s)
}

func (s queueItems) Less(i, j int) bool {
	a, b := s[i].Packet, s[j].Packet
	switch types.CompareTS(a.OrderingTS(), a.TimeBase, b.OrderingTS(), b.TimeBase) {
	case -1:
		return true
	case 1:
		return false
	}
	return s[i].Sequence < s[j].Sequence
}

func (s queueItems) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}
