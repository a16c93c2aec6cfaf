package echo

import (
	"io"

	"github.com/sagernet/sing-echo/common/bufio"
	E "github.com/sagernet/sing-echo/common/exceptions"
	N "github.com/sagernet/sing-echo/common/network"
)

const inputChunkSize = 1024

var _ bufio.FDHandler = (*Input)(nil)

// Input forwards a readable descriptor, usually stdin, into a connection.
// End of input shuts the connection down once the pending bytes are sent.
type Input struct {
	source  N.Descriptor
	poller  bufio.Poller
	conn    *bufio.StreamConn
	pipe    io.Closer
	buffer  [inputChunkSize]byte
	stopped bool
}

func NewInput(source N.Descriptor, poller bufio.Poller, conn *bufio.StreamConn) *Input {
	return &Input{
		source: source,
		poller: poller,
		conn:   conn,
	}
}

// Start registers the source for read events. A source the poller refuses,
// such as a regular file, is pumped through a pipe instead.
func (i *Input) Start() error {
	err := i.poller.Add(i, i.source.FD(), N.EventRead)
	if isNotPollable(err) {
		err = i.startPump()
	}
	if err != nil {
		return E.Cause(err, "register input")
	}
	return nil
}

func (i *Input) HandleFDEvent(events N.Event) {
	if i.stopped {
		return
	}
	n, err := i.source.Read(i.buffer[:])
	if n > 0 {
		_, writeErr := i.conn.Write(i.buffer[:n])
		if writeErr != nil {
			i.Stop()
		}
		return
	}
	if E.IsWouldBlock(err) {
		return
	}
	i.Stop()
	if err == nil || err == io.EOF {
		i.conn.Shutdown()
	} else {
		i.conn.Close()
	}
}

// Stop deregisters the input. The caller's descriptor is left open.
func (i *Input) Stop() {
	if i.stopped {
		return
	}
	i.stopped = true
	i.poller.Remove(i.source.FD())
	if i.pipe != nil {
		i.pipe.Close()
	}
}
