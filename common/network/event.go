package network

import "strings"

// Event is a readiness interest or a set of triggered readiness bits.
type Event uint32

const (
	EventRead Event = 1 << iota
	EventWrite
	EventError
)

const EventReadWrite = EventRead | EventWrite

func (e Event) Readable() bool {
	return e&(EventRead|EventError) != 0
}

func (e Event) Writable() bool {
	return e&EventWrite != 0
}

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var names []string
	if e&EventRead != 0 {
		names = append(names, "read")
	}
	if e&EventWrite != 0 {
		names = append(names, "write")
	}
	if e&EventError != 0 {
		names = append(names, "error")
	}
	return strings.Join(names, "|")
}
