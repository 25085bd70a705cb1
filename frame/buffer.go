package frame

import (
	"go.uber.org/atomic"
)

// Buffer holds the planes of a frame. It may be shared by multiple
// frames; it is writable only while exactly one frame references it.
type Buffer struct {
	Planes   [][]byte
	refCount atomic.Int32
}

func newBuffer(planeSizes []int) *Buffer {
	b := &Buffer{
		Planes: make([][]byte, len(planeSizes)),
	}
	for idx, size := range planeSizes {
		b.Planes[idx] = make([]byte, size)
	}
	b.refCount.Store(1)
	return b
}

func (b *Buffer) clone() *Buffer {
	c := &Buffer{
		Planes: make([][]byte, len(b.Planes)),
	}
	for idx, plane := range b.Planes {
		c.Planes[idx] = append([]byte(nil), plane...)
	}
	c.refCount.Store(1)
	return c
}

func (b *Buffer) ref() *Buffer {
	b.refCount.Inc()
	return b
}

func (b *Buffer) unref() {
	b.refCount.Dec()
}

func (b *Buffer) RefCount() int {
	return int(b.refCount.Load())
}
