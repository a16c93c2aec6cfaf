package buf

// Inspired by https://github.com/xtaci/smux/blob/master/alloc.go

import (
	"errors"
	"math/bits"
	"sync"
)

const (
	minPooledBits = 6
	maxPooledBits = 16
)

var DefaultAllocator = newDefaultAllocator()

type Allocator interface {
	Get(size int) []byte
	Put(buf []byte) error
}

// defaultAllocator keeps one pool per power of two from 64B to 64K. Larger
// requests bypass the pools.
type defaultAllocator struct {
	buffers [maxPooledBits - minPooledBits + 1]sync.Pool
}

func newDefaultAllocator() Allocator {
	alloc := new(defaultAllocator)
	for index := range alloc.buffers {
		size := 1 << (index + minPooledBits)
		alloc.buffers[index].New = func() any {
			buffer := make([]byte, size)
			return &buffer
		}
	}
	return alloc
}

// Get returns a slice of len size. Sizes up to 64K come from the pool with
// the smallest fitting power-of-two capacity.
func (alloc *defaultAllocator) Get(size int) []byte {
	if size <= 0 {
		return nil
	}
	if size > 1<<maxPooledBits {
		return make([]byte, size)
	}
	var index int
	if size > 1<<minPooledBits {
		index = int(msb(size))
		if size != 1<<index {
			index++
		}
		index -= minPooledBits
	}
	buffer := *alloc.buffers[index].Get().(*[]byte)
	return buffer[:size]
}

// Put returns a slice obtained from Get to its pool. The capacity must be
// exactly 2^n within the pooled range.
func (alloc *defaultAllocator) Put(buf []byte) error {
	capacity := cap(buf)
	index := int(msb(capacity))
	if capacity < 1<<minPooledBits || capacity > 1<<maxPooledBits || capacity != 1<<index {
		return errors.New("allocator Put() incorrect buffer size")
	}
	buf = buf[:capacity]
	alloc.buffers[index-minPooledBits].Put(&buf)
	return nil
}

// msb return the pos of most significant bit
func msb(size int) uint16 {
	return uint16(bits.Len32(uint32(size)) - 1)
}
