package buf

import (
	"io"

	"github.com/sagernet/sing-echo/common"
	E "github.com/sagernet/sing-echo/common/exceptions"
)

//	+-------------+------------------+------------------+
//	| prependable |     readable     |     writable     |
//	+-------------+------------------+------------------+
//	0           start               end              capacity

// Buffer is a growable byte queue. It is not safe for concurrent use.
type Buffer struct {
	data        []byte
	start       int
	end         int
	dataManaged bool
}

func New() *Buffer {
	return NewSize(DefaultSize)
}

func NewSize(size int) *Buffer {
	data := DefaultAllocator.Get(size)
	return &Buffer{
		data:        data,
		dataManaged: pooled(cap(data)),
	}
}

// As wraps data as a full buffer without copying.
func As(data []byte) *Buffer {
	return &Buffer{
		data: data,
		end:  len(data),
	}
}

func (b *Buffer) Len() int {
	return b.end - b.start
}

func (b *Buffer) Cap() int {
	return len(b.data)
}

func (b *Buffer) FreeLen() int {
	return len(b.data) - b.end
}

func (b *Buffer) Prependable() int {
	return b.start
}

func (b *Buffer) IsEmpty() bool {
	return b.end == b.start
}

func (b *Buffer) Bytes() []byte {
	return b.data[b.start:b.end]
}

func (b *Buffer) FreeBytes() []byte {
	return b.data[b.end:]
}

func (b *Buffer) Advance(n int) {
	if n > b.Len() {
		n = b.Len()
	}
	b.start += n
}

func (b *Buffer) Write(data []byte) (n int, err error) {
	if len(data) == 0 {
		return
	}
	b.ensureWritable(len(data))
	n = copy(b.data[b.end:], data)
	b.end += n
	return
}

func (b *Buffer) WriteString(s string) (n int, err error) {
	if len(s) == 0 {
		return
	}
	b.ensureWritable(len(s))
	n = copy(b.data[b.end:], s)
	b.end += n
	return
}

func (b *Buffer) WriteByte(d byte) error {
	b.ensureWritable(1)
	b.data[b.end] = d
	b.end++
	return nil
}

// Read consumes up to len(data) readable bytes. An empty buffer reads 0 bytes
// without error.
func (b *Buffer) Read(data []byte) (n int, err error) {
	n = copy(data, b.data[b.start:b.end])
	b.start += n
	return
}

// WriteToFD issues exactly one write of the whole readable region and
// consumes what the descriptor accepted. Transient errnos are reported as
// E.ErrWouldBlock.
func (b *Buffer) WriteToFD(fd io.Writer) (int, error) {
	if b.IsEmpty() {
		return 0, nil
	}
	n, err := fd.Write(b.data[b.start:b.end])
	if n > 0 {
		b.start += n
	} else {
		n = 0
	}
	if err != nil {
		if E.IsWouldBlock(err) {
			return n, E.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

// ReadFromFD issues exactly one read into the writable region and returns a
// view of the bytes it appended. The view is only valid until the buffer is
// written to again. A zero-byte read is reported as io.EOF, transient errnos
// as E.ErrWouldBlock with the cursors untouched.
func (b *Buffer) ReadFromFD(fd io.Reader) ([]byte, error) {
	if b.FreeLen() == 0 {
		b.grow()
	}
	n, err := fd.Read(b.data[b.end:])
	if n > 0 {
		data := b.data[b.end : b.end+n]
		b.end += n
		return data, nil
	}
	switch {
	case err == nil || err == io.EOF:
		return nil, io.EOF
	case E.IsWouldBlock(err):
		return nil, E.ErrWouldBlock
	default:
		return nil, err
	}
}

func (b *Buffer) Reset() {
	b.start = 0
	b.end = 0
}

// Release returns the backing array to the allocator. The buffer must not be
// used afterwards.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	if b.dataManaged {
		common.Must(DefaultAllocator.Put(b.data))
	}
	*b = Buffer{}
}

func (b *Buffer) ensureWritable(n int) {
	for {
		free := b.FreeLen()
		if free >= n {
			return
		}
		if b.start+free >= n {
			b.compact()
			return
		}
		b.grow()
	}
}

func (b *Buffer) compact() {
	readable := copy(b.data, b.data[b.start:b.end])
	b.start = 0
	b.end = readable
}

// grow doubles the capacity, keeping every cursor where it is.
func (b *Buffer) grow() {
	newCap := len(b.data) * 2
	if newCap == 0 {
		newCap = DefaultSize
	}
	data := DefaultAllocator.Get(newCap)
	if len(data) != newCap {
		panic("buffer: allocation failed")
	}
	copy(data[b.start:], b.data[b.start:b.end])
	if b.dataManaged {
		common.Must(DefaultAllocator.Put(b.data))
	}
	b.data = data
	b.dataManaged = pooled(cap(data))
}
