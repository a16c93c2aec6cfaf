//go:build !linux

package bufio

import (
	"time"

	E "github.com/sagernet/sing-echo/common/exceptions"
	N "github.com/sagernet/sing-echo/common/network"
)

var _ EventLoop = (*FDPoller)(nil)

type FDPoller struct{}

func NewFDPoller() (*FDPoller, error) {
	return nil, E.New("FDPoller not supported on this platform")
}

func (p *FDPoller) Add(handler FDHandler, fd int, interest N.Event) error {
	return E.New("FDPoller not supported on this platform")
}

func (p *FDPoller) Modify(fd int, interest N.Event) error {
	return E.New("FDPoller not supported on this platform")
}

func (p *FDPoller) Remove(fd int) error {
	return nil
}

func (p *FDPoller) Len() int {
	return 0
}

func (p *FDPoller) Wakeup() {}

func (p *FDPoller) Poll(timeout time.Duration) (int, error) {
	return 0, E.New("FDPoller not supported on this platform")
}

func (p *FDPoller) Close() error {
	return nil
}
