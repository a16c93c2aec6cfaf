package exceptions

import (
	"errors"
	"syscall"
)

// ErrWouldBlock means no progress is possible until the descriptor reports
// readiness again. It is control flow, not a failure.
var ErrWouldBlock = errors.New("operation would block")

// IsWouldBlock reports whether err is ErrWouldBlock or one of the transient
// errnos a non-blocking descriptor returns (EAGAIN, EWOULDBLOCK, EINTR).
func IsWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWouldBlock) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EAGAIN || errno == syscall.EWOULDBLOCK || errno == syscall.EINTR
	}
	return false
}
