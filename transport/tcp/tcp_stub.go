//go:build !linux

package tcp

import (
	"net/netip"

	"github.com/sagernet/sing-echo/common/bufio"
	E "github.com/sagernet/sing-echo/common/exceptions"
	N "github.com/sagernet/sing-echo/common/network"
)

var errUnsupported = E.New("tcp: reactor transport not supported on this platform")

type Listener struct{}

func NewTCPListener(bind netip.AddrPort, reactor *bufio.StreamReactor, handler bufio.StreamHandler, opts ...Option) *Listener {
	return &Listener{}
}

func (l *Listener) Start() error {
	return errUnsupported
}

func (l *Listener) Addr() netip.AddrPort {
	return netip.AddrPort{}
}

func (l *Listener) HandleFDEvent(events N.Event) {}

func (l *Listener) Close() error {
	return nil
}

func Dial(reactor *bufio.StreamReactor, destination netip.AddrPort, handler bufio.StreamHandler, opts ...Option) (*bufio.StreamConn, error) {
	return nil, errUnsupported
}
