package network

import "io"

// Descriptor is a connected non-blocking socket. Read and Write perform
// exactly one syscall each and report the raw errno, so callers can tell
// would-block apart from real failures.
type Descriptor interface {
	io.Reader
	io.Writer
	io.Closer
	// FD returns the file descriptor for reactor registration
	FD() int
}
