package bufio

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/sagernet/sing-echo/common"
	"github.com/sagernet/sing-echo/common/buf"
	E "github.com/sagernet/sing-echo/common/exceptions"
	"github.com/sagernet/sing-echo/common/log"
	N "github.com/sagernet/sing-echo/common/network"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
)

var _ Poller = (*StreamReactor)(nil)

type ReactorOption func(*StreamReactor)

func WithEventLoop(loop EventLoop) ReactorOption {
	return func(reactor *StreamReactor) {
		reactor.loop = loop
	}
}

func WithBufferSize(size int) ReactorOption {
	return func(reactor *StreamReactor) {
		reactor.bufferSize = size
	}
}

func WithLogger(logger logrus.FieldLogger) ReactorOption {
	return func(reactor *StreamReactor) {
		reactor.logger = logger
	}
}

// StreamReactor owns an event loop and the connections registered with it.
// Connections are indexed by fd; a closed connection stays in the registry
// until the dispatch batch that closed it is over, then its buffers are
// released.
type StreamReactor struct {
	ctx         context.Context
	cancel      context.CancelFunc
	loop        EventLoop
	logger      logrus.FieldLogger
	bufferSize  int
	connections map[int]*StreamConn
	released    *queue.Queue
	running     atomic.Bool
	closing     atomic.Bool
	closeErr    error
}

func NewStreamReactor(ctx context.Context, options ...ReactorOption) (*StreamReactor, error) {
	ctx, cancel := context.WithCancel(ctx)
	reactor := &StreamReactor{
		ctx:         ctx,
		cancel:      cancel,
		bufferSize:  buf.DefaultSize,
		connections: make(map[int]*StreamConn),
		released:    queue.New(),
	}
	for _, option := range options {
		option(reactor)
	}
	if reactor.logger == nil {
		reactor.logger = log.NewLogger("reactor")
	}
	if reactor.loop == nil {
		poller, err := NewFDPoller()
		if err != nil {
			cancel()
			return nil, err
		}
		reactor.loop = poller
	}
	return reactor, nil
}

// NewConnection adopts an already connected non-blocking socket.
func (r *StreamReactor) NewConnection(fd N.Descriptor, handler StreamHandler) (*StreamConn, error) {
	if common.Done(r.ctx) {
		return nil, net.ErrClosed
	}
	conn := NewStreamConn(fd, r.loop, handler, r.bufferSize)
	conn.onClose = r.closed
	err := r.loop.Add(conn, fd.FD(), N.EventRead)
	if err != nil {
		conn.release()
		return nil, E.Cause(err, "register connection")
	}
	r.connections[fd.FD()] = conn
	r.logger.Debug("connection ", fd.FD(), " registered")
	return conn, nil
}

// Add registers a raw handler, such as a listener, with the event loop.
func (r *StreamReactor) Add(handler FDHandler, fd int, interest N.Event) error {
	if common.Done(r.ctx) {
		return net.ErrClosed
	}
	return r.loop.Add(handler, fd, interest)
}

func (r *StreamReactor) Modify(fd int, interest N.Event) error {
	return r.loop.Modify(fd, interest)
}

func (r *StreamReactor) Remove(fd int) error {
	return r.loop.Remove(fd)
}

// Len returns the number of connections not yet released.
func (r *StreamReactor) Len() int {
	return len(r.connections)
}

func (r *StreamReactor) Context() context.Context {
	return r.ctx
}

// Run polls until the context is canceled or Close is called, then closes
// every remaining connection and the event loop.
func (r *StreamReactor) Run() error {
	r.running.Store(true)
	defer r.running.Store(false)
	stop := common.ContextAfterFunc(r.ctx, r.loop.Wakeup)
	defer stop()

	for !common.Done(r.ctx) {
		err := r.PollOnce(-1)
		if err != nil {
			r.cancel()
			r.shutdown()
			return err
		}
	}
	r.shutdown()
	return r.closeErr
}

// PollOnce runs a single dispatch batch and releases the connections closed
// during it.
func (r *StreamReactor) PollOnce(timeout time.Duration) error {
	_, err := r.loop.Poll(timeout)
	r.releaseClosed()
	if err != nil {
		return E.Cause(err, "poll")
	}
	return nil
}

// Close stops the reactor. When Run is active on another goroutine it
// performs the cleanup before returning; otherwise Close does it. Calling
// Close from a Closed callback fired by the cleanup returns immediately.
func (r *StreamReactor) Close() error {
	r.cancel()
	if r.running.Load() {
		r.loop.Wakeup()
		return nil
	}
	r.shutdown()
	return r.closeErr
}

func (r *StreamReactor) shutdown() {
	if !r.closing.CompareAndSwap(false, true) {
		return
	}
	for _, conn := range r.connections {
		conn.closeWithError(net.ErrClosed)
	}
	r.releaseClosed()
	r.closeErr = r.loop.Close()
	r.logger.Debug("reactor closed")
}

func (r *StreamReactor) closed(conn *StreamConn) {
	if conn.cause != nil && !E.IsClosed(conn.cause) {
		r.logger.Debug("connection ", conn.FD(), " closed: ", conn.cause)
	} else {
		r.logger.Debug("connection ", conn.FD(), " closed")
	}
	r.released.Add(conn)
}

func (r *StreamReactor) releaseClosed() {
	for r.released.Length() > 0 {
		conn := r.released.Remove().(*StreamConn)
		if r.connections[conn.FD()] == conn {
			delete(r.connections, conn.FD())
		}
		conn.release()
	}
}
