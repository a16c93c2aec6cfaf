package bufio

import (
	"time"

	N "github.com/sagernet/sing-echo/common/network"
)

// FDHandler is the interface for handling FD ready events.
// Implemented by StreamConn and by raw handlers such as listeners.
type FDHandler interface {
	// HandleFDEvent is called on the polling goroutine with the triggered
	// readiness bits. It must not block.
	HandleFDEvent(events N.Event)
}

type FDHandlerFunc func(events N.Event)

func (f FDHandlerFunc) HandleFDEvent(events N.Event) {
	f(events)
}

// Poller is the registration side of an event loop.
type Poller interface {
	Add(handler FDHandler, fd int, interest N.Event) error
	Modify(fd int, interest N.Event) error
	Remove(fd int) error
}

// EventLoop is a Poller that can also wait for and dispatch events.
type EventLoop interface {
	Poller
	// Poll waits up to timeout (forever when negative) and dispatches every
	// ready event inline. It returns the number of events dispatched.
	Poll(timeout time.Duration) (int, error)
	// Wakeup interrupts a blocked Poll from any goroutine.
	Wakeup()
	Close() error
}
