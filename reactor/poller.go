package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollEvents mirrors epoll/common.go's teacher event mask: readiness plus
// every flavour of "this fd is dead" so the loop can route both into the
// same processRead dispatch and let the task's own error handling decide.
const epollEvents = unix.POLLIN | unix.POLLRDHUP | unix.POLLERR | unix.POLLHUP | unix.POLLNVAL

// poller is the raw readiness primitive behind spec.md §4.2 step 3: block
// until any registered fd is ready or a deadline elapses. It owns no task
// state of its own — the reactor's task map is the single source of truth
// for which fds exist — it only tracks what select_on is currently true for.
type poller struct {
	epfd   int
	events []unix.EpollEvent
}

func newPoller(cap int) (*poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &poller{epfd: fd, events: make([]unix.EpollEvent, cap)}, nil
}

func (p *poller) add(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: epollEvents, Fd: int32(fd)})
}

func (p *poller) remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT {
		return err
	}
	return nil
}

// wait blocks until readiness or timeoutMS elapses (0 returns immediately,
// -1 blocks indefinitely) and appends every ready fd to ready.
func (p *poller) wait(timeoutMS int, ready *[]int32) error {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		*ready = append(*ready, p.events[i].Fd)
	}
	return nil
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}
