package bufio

import (
	"io"
	"net"

	"github.com/sagernet/sing-echo/common/buf"
	E "github.com/sagernet/sing-echo/common/exceptions"
	N "github.com/sagernet/sing-echo/common/network"
)

var ErrShuttingDown = E.New("connection is shutting down")

// StreamHandler receives the application level events of a StreamConn.
type StreamHandler interface {
	// NewData is called with the bytes of a single read. data is only valid
	// for the duration of the call; unconsumed bytes stay in conn.Inbound()
	// and are not delivered again.
	NewData(conn *StreamConn, data []byte)
	// Closed is called exactly once. err is nil for an orderly close.
	Closed(conn *StreamConn, err error)
}

type State int32

const (
	StateActive State = iota
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateShuttingDown:
		return "shutting down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var _ FDHandler = (*StreamConn)(nil)

// StreamConn moves bytes between a non-blocking socket and a pair of
// buffers. All methods must be called from the goroutine polling it.
type StreamConn struct {
	fd         N.Descriptor
	poller     Poller
	handler    StreamHandler
	outbound   *buf.Buffer
	inbound    *buf.Buffer
	interest   N.Event
	state      State
	readClosed bool
	cause      error
	onClose    func(conn *StreamConn)
}

// NewStreamConn wraps fd. The caller registers it with poller for
// N.EventRead; the connection adjusts its interest from then on.
func NewStreamConn(fd N.Descriptor, poller Poller, handler StreamHandler, bufferSize int) *StreamConn {
	if bufferSize <= 0 {
		bufferSize = buf.DefaultSize
	}
	return &StreamConn{
		fd:       fd,
		poller:   poller,
		handler:  handler,
		outbound: buf.NewSize(bufferSize),
		inbound:  buf.NewSize(bufferSize),
		interest: N.EventRead,
	}
}

func (c *StreamConn) FD() int {
	return c.fd.FD()
}

func (c *StreamConn) Descriptor() N.Descriptor {
	return c.fd
}

func (c *StreamConn) State() State {
	return c.state
}

func (c *StreamConn) Interest() N.Event {
	return c.interest
}

// Cause returns the error the connection was closed with, if any.
func (c *StreamConn) Cause() error {
	return c.cause
}

// Inbound returns the receive buffer. Handlers consume from it to keep it
// from growing.
func (c *StreamConn) Inbound() *buf.Buffer {
	return c.inbound
}

// Buffered returns the number of bytes waiting to be written.
func (c *StreamConn) Buffered() int {
	if c.outbound == nil {
		return 0
	}
	return c.outbound.Len()
}

func (c *StreamConn) HandleFDEvent(events N.Event) {
	if c.state == StateClosed {
		return
	}
	if events.Readable() && !c.readClosed {
		c.handleRead()
	}
	if events.Writable() && c.state != StateClosed {
		c.flush()
	}
}

// Write queues p and tries to send it at once. Whatever the socket does not
// take is sent on later write readiness.
func (c *StreamConn) Write(p []byte) (int, error) {
	switch c.state {
	case StateShuttingDown:
		return 0, ErrShuttingDown
	case StateClosed:
		return 0, net.ErrClosed
	}
	c.outbound.Write(p)
	c.flush()
	if c.state == StateClosed {
		return 0, c.cause
	}
	return len(p), nil
}

// Shutdown stops accepting writes and closes the connection once every
// queued byte has been written.
func (c *StreamConn) Shutdown() {
	if c.state != StateActive {
		return
	}
	c.state = StateShuttingDown
	c.flush()
}

// Close closes the connection immediately, discarding unsent data.
func (c *StreamConn) Close() error {
	c.closeWithError(nil)
	return nil
}

func (c *StreamConn) handleRead() {
	data, err := c.inbound.ReadFromFD(c.fd)
	if err == nil {
		c.handler.NewData(c, data)
		return
	}
	if E.IsWouldBlock(err) {
		return
	}
	if err != io.EOF && c.cause == nil {
		c.cause = E.Cause(err, "read")
	}
	c.readClosed = true
	if c.state == StateActive {
		c.Shutdown()
	} else {
		c.updateInterest()
	}
}

func (c *StreamConn) flush() {
	_, err := c.outbound.WriteToFD(c.fd)
	if err != nil && !E.IsWouldBlock(err) {
		c.closeWithError(E.Cause(err, "write"))
		return
	}
	if c.outbound.IsEmpty() && c.state == StateShuttingDown {
		c.closeWithError(nil)
		return
	}
	c.updateInterest()
}

func (c *StreamConn) updateInterest() {
	var interest N.Event
	if !c.readClosed {
		interest |= N.EventRead
	}
	if !c.outbound.IsEmpty() {
		interest |= N.EventWrite
	}
	if interest == c.interest {
		return
	}
	err := c.poller.Modify(c.fd.FD(), interest)
	if err != nil {
		c.closeWithError(E.Cause(err, "update interest"))
		return
	}
	c.interest = interest
}

// closeWithError deregisters before closing the descriptor so the poller
// never dispatches to a dead connection.
func (c *StreamConn) closeWithError(err error) {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	if c.cause == nil {
		c.cause = err
	}
	c.cause = E.Errors(c.cause, c.poller.Remove(c.fd.FD()), c.fd.Close())
	c.handler.Closed(c, c.cause)
	if c.onClose != nil {
		c.onClose(c)
	}
}

// release returns both buffers to the allocator. Called by the owning
// reactor once no dispatch can reference the connection any more.
func (c *StreamConn) release() {
	c.outbound.Release()
	c.inbound.Release()
	c.outbound = nil
	c.inbound = nil
}
