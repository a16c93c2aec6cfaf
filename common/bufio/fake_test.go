package bufio

import (
	"bytes"
	"syscall"
	"time"

	N "github.com/sagernet/sing-echo/common/network"
)

type readResult struct {
	data []byte
	err  error
}

// fakeDescriptor replays scripted reads and accepts at most writeLimit bytes
// per write. An empty script reads as EAGAIN.
type fakeDescriptor struct {
	fd           int
	reads        []readResult
	written      bytes.Buffer
	writeLimit   int
	writeBlocked bool
	writeErr     error
	ops          []string
	closeCount   int
}

func newFakeDescriptor(fd int) *fakeDescriptor {
	return &fakeDescriptor{fd: fd}
}

func (d *fakeDescriptor) FD() int {
	return d.fd
}

func (d *fakeDescriptor) queue(data []byte) {
	d.reads = append(d.reads, readResult{data: data})
}

func (d *fakeDescriptor) queueError(err error) {
	d.reads = append(d.reads, readResult{err: err})
}

func (d *fakeDescriptor) Read(p []byte) (int, error) {
	d.ops = append(d.ops, "read")
	if len(d.reads) == 0 {
		return 0, syscall.EAGAIN
	}
	result := d.reads[0]
	if len(result.data) > len(p) {
		d.reads[0].data = result.data[len(p):]
		return copy(p, result.data), nil
	}
	d.reads = d.reads[1:]
	return copy(p, result.data), result.err
}

func (d *fakeDescriptor) Write(p []byte) (int, error) {
	d.ops = append(d.ops, "write")
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	if d.writeBlocked {
		return 0, syscall.EAGAIN
	}
	if d.writeLimit > 0 && len(p) > d.writeLimit {
		p = p[:d.writeLimit]
	}
	return d.written.Write(p)
}

func (d *fakeDescriptor) Close() error {
	d.closeCount++
	return nil
}

type fakeEvent struct {
	fd     int
	events N.Event
}

// fakeLoop records registrations and dispatches queued events on Poll
// without filtering removed descriptors, like a batch already returned by
// the kernel.
type fakeLoop struct {
	handlers map[int]FDHandler
	interest map[int]N.Event
	removed  []int
	pending  []fakeEvent
	closed   bool
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{
		handlers: make(map[int]FDHandler),
		interest: make(map[int]N.Event),
	}
}

func (l *fakeLoop) Add(handler FDHandler, fd int, interest N.Event) error {
	if _, loaded := l.handlers[fd]; loaded {
		return syscall.EEXIST
	}
	l.handlers[fd] = handler
	l.interest[fd] = interest
	return nil
}

func (l *fakeLoop) Modify(fd int, interest N.Event) error {
	if _, loaded := l.handlers[fd]; !loaded {
		return syscall.ENOENT
	}
	l.interest[fd] = interest
	return nil
}

func (l *fakeLoop) Remove(fd int) error {
	l.removed = append(l.removed, fd)
	delete(l.handlers, fd)
	delete(l.interest, fd)
	return nil
}

func (l *fakeLoop) fire(fd int, events N.Event) {
	l.pending = append(l.pending, fakeEvent{fd, events})
}

func (l *fakeLoop) Poll(timeout time.Duration) (int, error) {
	batch := l.pending
	l.pending = nil
	handlers := make([]FDHandler, len(batch))
	for i, event := range batch {
		handlers[i] = l.handlers[event.fd]
	}
	for i, event := range batch {
		if handlers[i] != nil {
			handlers[i].HandleFDEvent(event.events)
		}
	}
	return len(batch), nil
}

func (l *fakeLoop) Wakeup() {}

func (l *fakeLoop) Close() error {
	l.closed = true
	return nil
}

type recordingHandler struct {
	chunks     [][]byte
	received   bytes.Buffer
	closeCount int
	closeErr   error
	onData     func(conn *StreamConn, data []byte)
	onClose    func(conn *StreamConn)
}

func (h *recordingHandler) NewData(conn *StreamConn, data []byte) {
	h.chunks = append(h.chunks, append([]byte(nil), data...))
	h.received.Write(data)
	if h.onData != nil {
		h.onData(conn, data)
	}
}

func (h *recordingHandler) Closed(conn *StreamConn, err error) {
	h.closeCount++
	h.closeErr = err
	if h.onClose != nil {
		h.onClose(conn)
	}
}
