package packet

import (
	"github.com/xaionaro-go/avencmux/pool"
)

var Pool = pool.NewPool(
	func() *Packet {
		return &Packet{PTS: NoPTSValue, DTS: NoPTSValue}
	},
	func(p *Packet) { p.Reset() },
	nil,
)

// Get returns a blank packet from the pool.
func Get() *Packet {
	return Pool.Get()
}

func CopyWritable(dst, src *Packet) {
	data := append(dst.Data[:0], src.Data...)
	*dst = *src
	dst.Data = data
}

func CloneAsWritable(src *Packet) *Packet {
	dst := Pool.Get()
	CopyWritable(dst, src)
	return dst
}
