//go:build linux

package tcp

import (
	"net/netip"

	"github.com/sagernet/sing-echo/common/bufio"
	"github.com/sagernet/sing-echo/common/control"
	E "github.com/sagernet/sing-echo/common/exceptions"
	N "github.com/sagernet/sing-echo/common/network"

	"golang.org/x/sys/unix"
)

// Dial starts a non-blocking connect to destination and adopts the socket
// into reactor. Writes issued before the handshake completes are queued.
func Dial(reactor *bufio.StreamReactor, destination netip.AddrPort, handler bufio.StreamHandler, opts ...Option) (*bufio.StreamConn, error) {
	o := newOptions(opts)
	fd, err := newSocket(destination.Addr())
	if err != nil {
		return nil, err
	}
	err = o.configure(fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	err = unix.Connect(fd, N.SockaddrFromAddrPort(destination))
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, E.Cause(err, "connect ", destination)
	}
	conn, err := reactor.NewConnection(N.NewSocket(fd), handler)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return conn, nil
}

func (o options) configure(fd int) error {
	var noDelay control.Func
	if o.noDelay {
		noDelay = control.NoDelay()
	}
	return control.Apply(fd, noDelay, o.control)
}
