//go:build unix

package control

import (
	E "github.com/sagernet/sing-echo/common/exceptions"

	"golang.org/x/sys/unix"
)

func NonBlocking() Func {
	return func(fd int) error {
		err := unix.SetNonblock(fd, true)
		if err != nil {
			return E.Cause(err, "set non-blocking")
		}
		return nil
	}
}

// SetNonBlocking sets O_NONBLOCK on fd and returns a func that restores the
// previous mode. Descriptors inherited from a shell, like stdin, share their
// flags with the parent and must be restored before exit.
func SetNonBlocking(fd int) (restore func() error, err error) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return nil, E.Cause(err, "get file status flags")
	}
	if flags&unix.O_NONBLOCK != 0 {
		return func() error { return nil }, nil
	}
	err = NonBlocking()(fd)
	if err != nil {
		return nil, err
	}
	return func() error {
		err := unix.SetNonblock(fd, false)
		if err != nil {
			return E.Cause(err, "restore blocking mode")
		}
		return nil
	}, nil
}

func CloseOnExec() Func {
	return func(fd int) error {
		unix.CloseOnExec(fd)
		return nil
	}
}

func NoDelay() Func {
	return func(fd int) error {
		err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		if err != nil {
			return E.Cause(err, "set TCP_NODELAY")
		}
		return nil
	}
}

func ReuseAddr() Func {
	return func(fd int) error {
		err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if err != nil {
			return E.Cause(err, "set SO_REUSEADDR")
		}
		return nil
	}
}
