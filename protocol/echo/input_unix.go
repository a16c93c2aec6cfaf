//go:build unix

package echo

import (
	"errors"
	"io"
	"os"

	"github.com/sagernet/sing-echo/common/control"
	E "github.com/sagernet/sing-echo/common/exceptions"
	N "github.com/sagernet/sing-echo/common/network"

	"golang.org/x/sys/unix"
)

// epoll refuses regular files and some character devices with EPERM.
func isNotPollable(err error) bool {
	return errors.Is(err, unix.EPERM)
}

func (i *Input) startPump() error {
	var fds [2]int
	err := unix.Pipe(fds[:])
	if err != nil {
		return E.Cause(err, "create input pipe")
	}
	err = control.Apply(fds[0], control.NonBlocking(), control.CloseOnExec())
	if err == nil {
		err = control.CloseOnExec()(fds[1])
	}
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return err
	}
	pipe := N.NewSocket(fds[0])
	err = i.poller.Add(i, pipe.FD(), N.EventRead)
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return err
	}
	go pump(i.source, os.NewFile(uintptr(fds[1]), "input"))
	i.source = pipe
	i.pipe = pipe
	return nil
}

// pump copies source into sink until end of input or until the reading side
// of the pipe goes away.
func pump(source io.Reader, sink io.WriteCloser) {
	defer sink.Close()
	var buffer [inputChunkSize]byte
	for {
		n, _ := source.Read(buffer[:])
		if n == 0 {
			return
		}
		_, err := sink.Write(buffer[:n])
		if err != nil {
			return
		}
	}
}
