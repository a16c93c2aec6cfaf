//go:build linux

package bufio

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	E "github.com/sagernet/sing-echo/common/exceptions"
	N "github.com/sagernet/sing-echo/common/network"

	"golang.org/x/sys/unix"
)

var _ EventLoop = (*FDPoller)(nil)

type fdPollerEntry struct {
	fd             int
	registrationID uint64
	handler        FDHandler
	interest       N.Event
}

// FDPoller is a level-triggered epoll event loop. The epoll user data holds a
// registration ID rather than the fd, so events queued for a descriptor that
// was removed (and whose number was reused) within the same batch are dropped.
type FDPoller struct {
	epollFD             int
	mutex               sync.Mutex
	entries             map[int]*fdPollerEntry
	registrationCounter uint64
	registrationToFD    map[uint64]int
	closed              atomic.Bool
	pipeFDs             [2]int
	events              []unix.EpollEvent
}

func NewFDPoller() (*FDPoller, error) {
	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, E.Cause(err, "epoll create")
	}

	var pipeFDs [2]int
	err = unix.Pipe2(pipeFDs[:], unix.O_NONBLOCK|unix.O_CLOEXEC)
	if err != nil {
		unix.Close(epollFD)
		return nil, E.Cause(err, "create wakeup pipe")
	}

	pipeEvent := &unix.EpollEvent{Events: unix.EPOLLIN}
	*(*uint64)(unsafe.Pointer(&pipeEvent.Fd)) = 0
	err = unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, pipeFDs[0], pipeEvent)
	if err != nil {
		unix.Close(pipeFDs[0])
		unix.Close(pipeFDs[1])
		unix.Close(epollFD)
		return nil, E.Cause(err, "register wakeup pipe")
	}

	return &FDPoller{
		epollFD:          epollFD,
		entries:          make(map[int]*fdPollerEntry),
		registrationToFD: make(map[uint64]int),
		pipeFDs:          pipeFDs,
		events:           make([]unix.EpollEvent, 128),
	}, nil
}

// epollEvents translates interest. EPOLLRDHUP stays level-triggered after the
// peer half-closes, so it is only requested together with EPOLLIN.
func epollEvents(interest N.Event) uint32 {
	var events uint32
	if interest&N.EventRead != 0 {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest&N.EventWrite != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func (p *FDPoller) Add(handler FDHandler, fd int, interest N.Event) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed.Load() {
		return unix.EINVAL
	}
	if _, loaded := p.entries[fd]; loaded {
		return unix.EEXIST
	}

	p.registrationCounter++
	registrationID := p.registrationCounter

	event := &unix.EpollEvent{Events: epollEvents(interest)}
	*(*uint64)(unsafe.Pointer(&event.Fd)) = registrationID

	err := unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_ADD, fd, event)
	if err != nil {
		return E.Cause(err, "epoll add")
	}

	p.entries[fd] = &fdPollerEntry{
		fd:             fd,
		registrationID: registrationID,
		handler:        handler,
		interest:       interest,
	}
	p.registrationToFD[registrationID] = fd
	return nil
}

func (p *FDPoller) Modify(fd int, interest N.Event) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	entry, ok := p.entries[fd]
	if !ok {
		return unix.ENOENT
	}
	if entry.interest == interest {
		return nil
	}

	event := &unix.EpollEvent{Events: epollEvents(interest)}
	*(*uint64)(unsafe.Pointer(&event.Fd)) = entry.registrationID

	err := unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_MOD, fd, event)
	if err != nil {
		return E.Cause(err, "epoll modify")
	}
	entry.interest = interest
	return nil
}

func (p *FDPoller) Remove(fd int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	entry, ok := p.entries[fd]
	if !ok {
		return nil
	}

	delete(p.registrationToFD, entry.registrationID)
	delete(p.entries, fd)
	err := unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.EBADF && err != unix.ENOENT {
		return E.Cause(err, "epoll remove")
	}
	return nil
}

func (p *FDPoller) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.entries)
}

func (p *FDPoller) Wakeup() {
	if p.closed.Load() {
		return
	}
	unix.Write(p.pipeFDs[1], []byte{0})
}

func (p *FDPoller) Poll(timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, unix.EBADF
	}
	timeoutMs := -1
	if timeout >= 0 {
		timeoutMs = int(timeout / time.Millisecond)
	}

	n, err := unix.EpollWait(p.epollFD, p.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, E.Cause(err, "epoll wait")
	}

	var dispatched int
	var buffer [64]byte
	for i := 0; i < n; i++ {
		event := p.events[i]
		registrationID := *(*uint64)(unsafe.Pointer(&event.Fd))

		if registrationID == 0 {
			for {
				readN, _ := unix.Read(p.pipeFDs[0], buffer[:])
				if readN < len(buffer) {
					break
				}
			}
			continue
		}

		p.mutex.Lock()
		fd, ok := p.registrationToFD[registrationID]
		if !ok {
			p.mutex.Unlock()
			continue
		}
		entry := p.entries[fd]
		if entry == nil || entry.registrationID != registrationID {
			p.mutex.Unlock()
			continue
		}
		handler := entry.handler
		p.mutex.Unlock()

		var ready N.Event
		if event.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			ready |= N.EventRead
		}
		if event.Events&unix.EPOLLOUT != 0 {
			ready |= N.EventWrite
		}
		if event.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			ready |= N.EventError
		}
		if ready == 0 {
			continue
		}
		handler.HandleFDEvent(ready)
		dispatched++
	}
	return dispatched, nil
}

// Close releases the epoll instance. Registered descriptors are left open.
func (p *FDPoller) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.entries = make(map[int]*fdPollerEntry)
	p.registrationToFD = make(map[uint64]int)
	return E.Errors(
		unix.Close(p.epollFD),
		unix.Close(p.pipeFDs[0]),
		unix.Close(p.pipeFDs[1]),
	)
}
