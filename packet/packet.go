// Package packet implements compressed media packets.
package packet

import (
	"fmt"
	"math"
	"time"

	"github.com/xaionaro-go/avencmux/types"
)

// NoPTSValue marks an undefined timestamp. It is preserved by rescaling.
const NoPTSValue = int64(math.MinInt64)

// Packet is a unit of compressed data produced by an encoder.
type Packet struct {
	StreamIndex int
	MediaType   types.MediaType
	PTS         int64
	DTS         int64
	Duration    int64
	TimeBase    types.Rational
	Key         bool
	Data        []byte
}

// Reset blanks the packet so that it can be reused.
func (p *Packet) Reset() {
	data := p.Data[:0]
	*p = Packet{
		PTS:  NoPTSValue,
		DTS:  NoPTSValue,
		Data: data,
	}
}

// IsBlank reports whether the packet carries no payload and no timestamps.
func (p *Packet) IsBlank() bool {
	return len(p.Data) == 0 && p.PTS == NoPTSValue && p.DTS == NoPTSValue
}

// OrderingTS returns the timestamp used to order packets for muxing: the DTS,
// or the PTS if the DTS is not set.
func (p *Packet) OrderingTS() int64 {
	if p.DTS != NoPTSValue {
		return p.DTS
	}
	return p.PTS
}

// RescaleTS converts PTS, DTS and Duration into the time base "to"
// (rounding to nearest, ties away from zero). Undefined timestamps stay undefined.
func (p *Packet) RescaleTS(to types.Rational) {
	from := p.TimeBase
	if from == to {
		return
	}
	if p.PTS != NoPTSValue {
		p.PTS = types.Rescale(p.PTS, from, to)
	}
	if p.DTS != NoPTSValue {
		p.DTS = types.Rescale(p.DTS, from, to)
	}
	if p.Duration > 0 {
		p.Duration = types.Rescale(p.Duration, from, to)
	}
	p.TimeBase = to
}

// Seconds returns when the packet should be decoded.
func (p *Packet) Seconds() time.Duration {
	ts := p.OrderingTS()
	if ts == NoPTSValue || !p.TimeBase.IsValid() {
		return 0
	}
	return time.Duration(types.RescaleRnd(ts, p.TimeBase.Num*int64(time.Second), p.TimeBase.Den, types.RoundNearInf))
}

func (p *Packet) String() string {
	return fmt.Sprintf("packet{stream:%d, %s, pts:%s, dts:%s, dur:%d, tb:%s, key:%t, size:%d}",
		p.StreamIndex, p.MediaType, tsString(p.PTS), tsString(p.DTS), p.Duration, p.TimeBase, p.Key, len(p.Data))
}

func tsString(ts int64) string {
	if ts == NoPTSValue {
		return "NOPTS"
	}
	return fmt.Sprintf("%d", ts)
}
