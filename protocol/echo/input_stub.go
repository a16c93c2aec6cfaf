//go:build !unix

package echo

import "os"

func isNotPollable(err error) bool {
	return false
}

func (i *Input) startPump() error {
	return os.ErrInvalid
}
