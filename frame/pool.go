package frame

import (
	"github.com/xaionaro-go/avencmux/pool"
)

var Pool = pool.NewPool(
	func() *Frame { return &Frame{} },
	func(f *Frame) {
		f.Unref()
		*f = Frame{}
	},
	nil,
)

func CopyReferenced(dst, src *Frame) {
	dst.Unref()
	buffer := src.buffer
	*dst = *src
	if buffer != nil {
		dst.buffer = buffer.ref()
	}
}

func CloneAsReferenced(src *Frame) *Frame {
	return src.Ref()
}

func CopyWritable(dst, src *Frame) {
	CopyReferenced(dst, src)
	if err := dst.MakeWritable(); err != nil {
		panic(err)
	}
}

func CloneAsWritable(src *Frame) *Frame {
	dst := Pool.Get()
	CopyWritable(dst, src)
	return dst
}

// Release returns a frame obtained from Ref or CloneAs* back to the pool.
func Release(f *Frame) {
	Pool.Put(f)
}
