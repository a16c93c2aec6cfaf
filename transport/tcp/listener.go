//go:build linux

package tcp

import (
	"net/netip"
	"sync"
	"time"

	"github.com/sagernet/sing-echo/common/bufio"
	"github.com/sagernet/sing-echo/common/control"
	E "github.com/sagernet/sing-echo/common/exceptions"
	"github.com/sagernet/sing-echo/common/log"
	N "github.com/sagernet/sing-echo/common/network"

	"golang.org/x/sys/unix"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Listener accepts connections on the reactor's goroutine and adopts each
// one as a StreamConn served by handler.
type Listener struct {
	bind    netip.AddrPort
	reactor *bufio.StreamReactor
	handler bufio.StreamHandler
	options options
	addr    netip.AddrPort
	accept  func(fd int, flags int) (int, unix.Sockaddr, error)

	access      sync.Mutex
	fd          int
	minDelay    time.Duration
	acceptDelay time.Duration
	resumeTimer *time.Timer
}

func NewTCPListener(bind netip.AddrPort, reactor *bufio.StreamReactor, handler bufio.StreamHandler, opts ...Option) *Listener {
	listener := &Listener{
		bind:     bind,
		reactor:  reactor,
		handler:  handler,
		options:  newOptions(opts),
		accept:   unix.Accept4,
		fd:       -1,
		minDelay: minAcceptDelay,
	}
	if listener.options.logger == nil {
		listener.options.logger = log.NewLogger("tcp")
	}
	return listener
}

func (l *Listener) Start() error {
	fd, err := newSocket(l.bind.Addr())
	if err != nil {
		return err
	}
	err = control.ReuseAddr()(fd)
	if err != nil {
		unix.Close(fd)
		return err
	}
	err = unix.Bind(fd, N.SockaddrFromAddrPort(l.bind))
	if err != nil {
		unix.Close(fd)
		return E.Cause(err, "bind ", l.bind)
	}
	err = unix.Listen(fd, l.options.backlog)
	if err != nil {
		unix.Close(fd)
		return E.Cause(err, "listen ", l.bind)
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return E.Cause(err, "get listen address")
	}
	l.addr = N.AddrPortFromSockaddr(sa)
	err = l.reactor.Add(l, fd, N.EventRead)
	if err != nil {
		unix.Close(fd)
		return E.Cause(err, "register listener")
	}
	l.access.Lock()
	l.fd = fd
	l.access.Unlock()
	l.options.logger.Info("listening at ", l.addr)
	return nil
}

// Addr returns the bound address, with the real port when 0 was requested.
func (l *Listener) Addr() netip.AddrPort {
	return l.addr
}

func (l *Listener) HandleFDEvent(events N.Event) {
	fd, sa, err := l.accept(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if E.IsWouldBlock(err) || err == unix.ECONNABORTED {
			return
		}
		l.pause(err)
		return
	}
	l.acceptDelay = 0
	remote := N.AddrPortFromSockaddr(sa)
	err = l.options.configure(fd)
	if err != nil {
		unix.Close(fd)
		l.options.logger.Warn("configure connection from ", remote, ": ", err)
		return
	}
	_, err = l.reactor.NewConnection(N.NewSocket(fd), l.handler)
	if err != nil {
		unix.Close(fd)
		l.options.logger.Error("adopt connection from ", remote, ": ", err)
		return
	}
	l.options.logger.Info("new connection from ", remote)
}

// pause drops read interest after a hard accept error such as EMFILE, since
// the pending connection keeps the listener readable. Interest comes back
// after a delay that doubles on each consecutive failure.
func (l *Listener) pause(cause error) {
	if l.acceptDelay == 0 {
		l.acceptDelay = l.minDelay
	} else {
		l.acceptDelay *= 2
	}
	if l.acceptDelay > maxAcceptDelay {
		l.acceptDelay = maxAcceptDelay
	}
	l.options.logger.Error("accept: ", cause, ", retrying in ", l.acceptDelay)

	l.access.Lock()
	defer l.access.Unlock()
	fd := l.fd
	err := l.reactor.Modify(fd, 0)
	if err != nil {
		l.options.logger.Error("pause listener: ", err)
		return
	}
	if l.resumeTimer != nil {
		l.resumeTimer.Stop()
	}
	l.resumeTimer = time.AfterFunc(l.acceptDelay, func() {
		l.resume(fd)
	})
}

func (l *Listener) resume(fd int) {
	l.access.Lock()
	defer l.access.Unlock()
	if l.fd != fd {
		return
	}
	err := l.reactor.Modify(fd, N.EventRead)
	if err != nil {
		l.options.logger.Error("resume listener: ", err)
	}
}

func (l *Listener) Close() error {
	if l == nil {
		return nil
	}
	l.access.Lock()
	fd := l.fd
	l.fd = -1
	if l.resumeTimer != nil {
		l.resumeTimer.Stop()
		l.resumeTimer = nil
	}
	l.access.Unlock()
	if fd < 0 {
		return nil
	}
	return E.Errors(l.reactor.Remove(fd), unix.Close(fd))
}

func newSocket(addr netip.Addr) (int, error) {
	family := unix.AF_INET6
	if addr.Is4() || addr.Is4In6() {
		family = unix.AF_INET
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, E.Cause(err, "create socket")
	}
	return fd, nil
}
