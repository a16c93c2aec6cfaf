//go:build unix

package network

import (
	"net/netip"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

var _ Descriptor = (*Socket)(nil)

// Socket is a raw socket descriptor driven by a reactor.
type Socket struct {
	fd     int
	closed atomic.Bool
}

func NewSocket(fd int) *Socket {
	return &Socket{fd: fd}
}

func (s *Socket) FD() int {
	return s.fd
}

func (s *Socket) Read(p []byte) (int, error) {
	n, err := unix.Read(s.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (s *Socket) Write(p []byte) (int, error) {
	n, err := unix.Write(s.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(s.fd)
}

func (s *Socket) LocalAddr() netip.AddrPort {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return netip.AddrPort{}
	}
	return AddrPortFromSockaddr(sa)
}

func (s *Socket) RemoteAddr() netip.AddrPort {
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return netip.AddrPort{}
	}
	return AddrPortFromSockaddr(sa)
}

func AddrPortFromSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(addr.Addr), uint16(addr.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(addr.Addr).Unmap(), uint16(addr.Port))
	default:
		return netip.AddrPort{}
	}
}

func SockaddrFromAddrPort(addrPort netip.AddrPort) unix.Sockaddr {
	addr := addrPort.Addr()
	if addr.Is4() || addr.Is4In6() {
		return &unix.SockaddrInet4{Addr: addr.Unmap().As4(), Port: int(addrPort.Port())}
	}
	return &unix.SockaddrInet6{Addr: addr.As16(), Port: int(addrPort.Port())}
}
