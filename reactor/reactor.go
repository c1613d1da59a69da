// Package reactor is the single-threaded event loop and I/O-multiplexing
// engine of spec.md §2-§5: it drives tasks over file descriptors through
// a readiness loop, decodes client requests and peer datagrams into an
// arrangement.Arrangement, and dispatches the resulting outputs and
// outbound messages.
package reactor

import (
	"net"
	"syscall"
	"time"

	"go.osspkg.com/errors"
	"go.osspkg.com/logx"

	"github.com/vnode/shim/arrangement"
	"github.com/vnode/shim/cluster"
	netfd "github.com/vnode/shim/fd"
	"github.com/vnode/shim/internal"
)

// Options configures a Reactor's resource limits; everything here has a
// teacher-matching default applied by New.
type Options struct {
	// PollCap bounds how long one loop iteration may block when no task
	// has a nearer wake_at (spec.md §4.2 step 1).
	PollCap time.Duration
	// MaxEvents bounds how many ready fds a single epoll_wait call reports.
	MaxEvents int
	// Logger receives the "log and continue"/"log and schedule teardown"
	// events of spec.md §7's error table.
	Logger logx.Logger
}

func (o *Options) setDefaults() {
	o.PollCap = internal.NotZeroDuration(o.PollCap, 2*time.Second)
	o.MaxEvents = internal.NotZero(o.MaxEvents, 128)
	if o.Logger == nil {
		o.Logger = logx.Default()
	}
}

// Reactor is the Environment of spec.md §3: the process-wide runtime
// context owning the cluster map, the two bound sockets, the client
// fd<->id maps, and the task map, all driven by a single exclusive
// reference per spec.md §5 ("no locking is needed").
type Reactor[Name comparable, State, Input, Output, Msg any, ClientID comparable] struct {
	arr arrangement.Arrangement[Name, State, Input, Output, Msg, ClientID]
	cl  *cluster.Map[Name]
	opt Options
	log logx.Logger

	poll *poller

	state State

	tasks map[int]*task[Name, State, Input, Output, Msg, ClientID]
	// order records task-map insertion order so loop.go's snapshot-and-
	// sweep dispatch (spec.md §4.2 step 4) is deterministic rather than
	// subject to Go's randomized map iteration.
	order []int

	clientIn  map[int]ClientID
	clientOut map[ClientID]int
	conns     map[int]net.Conn

	listener net.Listener
	peerConn *net.UDPConn

	timeoutTasks []arrangement.TimeoutTask[Name, State, Output, Msg]

	nextDummyFD int
}

// New builds a Reactor bound to the client-listener and peer-datagram
// addresses recorded in cl, but does not yet accept or read anything —
// call Run to enter the loop.
func New[Name comparable, State, Input, Output, Msg any, ClientID comparable](
	arr arrangement.Arrangement[Name, State, Input, Output, Msg, ClientID],
	cl *cluster.Map[Name],
	opt Options,
) (*Reactor[Name, State, Input, Output, Msg, ClientID], error) {
	opt.setDefaults()

	poll, err := newPoller(opt.MaxEvents)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cl.ClientAddr())
	if err != nil {
		poll.close() // nolint: errcheck
		return nil, errors.Wrapf(err, "listen client addr %q", cl.ClientAddr())
	}

	peerConn, err := net.ListenUDP("udp", cl.SelfAddr())
	if err != nil {
		listener.Close() // nolint: errcheck
		poll.close()     // nolint: errcheck
		return nil, errors.Wrapf(err, "listen peer addr %q", cl.SelfAddr().String())
	}

	r := &Reactor[Name, State, Input, Output, Msg, ClientID]{
		arr:          arr,
		cl:           cl,
		opt:          opt,
		log:          opt.Logger,
		poll:         poll,
		state:        arr.Init(cl.Self()),
		tasks:        make(map[int]*task[Name, State, Input, Output, Msg, ClientID]),
		clientIn:     make(map[int]ClientID),
		clientOut:    make(map[ClientID]int),
		conns:        make(map[int]net.Conn),
		listener:     listener,
		peerConn:     peerConn,
		timeoutTasks: arr.TimeoutTasks(),
		nextDummyFD:  -1,
	}

	if err := r.installListener(); err != nil {
		return nil, err
	}
	if err := r.installPeer(); err != nil {
		return nil, err
	}
	r.installTimers()

	return r, nil
}

// sysFD extracts a net.Listener/*net.UDPConn's raw descriptor via
// SyscallConn, the standard-library-sanctioned way to reach the kernel fd
// for syscalls of our own (epoll_ctl) rather than the ones net already
// issues on our behalf.
func sysFD(c syscall.Conn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	ctlErr := raw.Control(func(sysfd uintptr) { fd = int(sysfd) })
	if ctlErr != nil {
		return 0, ctlErr
	}
	return fd, nil
}

// connFD extracts an accepted client connection's descriptor the way the
// teacher's epoll package keys a *epoll.connect: via fd.ByConnect's
// reflection into net's internal poll.FD, since an accepted *net.TCPConn
// still only exposes SyscallConn, which hands out a short-lived RawConn
// rather than a stable int we can retain as a map key across callbacks.
func connFD(c net.Conn) int {
	return int(netfd.ByConnect(c))
}

func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) install(t *task[Name, State, Input, Output, Msg, ClientID]) {
	r.tasks[t.fd] = t
	r.order = append(r.order, t.fd)
	if t.selectOn {
		if err := r.poll.add(t.fd); err != nil {
			r.log.Error("reactor: register fd", "err", err, "fd", t.fd)
		}
	}
}

// remove drops a finalized task from both the map and the insertion-order
// index.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) remove(fd int) {
	delete(r.tasks, fd)
	for i, v := range r.order {
		if v == fd {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// dummyFD mints a synthetic negative descriptor for a timer task, per
// spec.md §4.6's allowance for implementations that key timers outside
// the real fd space.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) dummyFD() int {
	fd := r.nextDummyFD
	r.nextDummyFD--
	return fd
}
