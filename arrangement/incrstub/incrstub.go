// Package incrstub is the minimal arrangement spec.md §8 names but does
// not ship: State=int, Input=Incr, Output=Ack, Msg=Ping. It exists so the
// reactor's own test suite has a real, if trivial, arrangement to drive
// end-to-end instead of mocking the contract away.
package incrstub

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vnode/shim/arrangement"
)

// Incr is the only client request: "add one to the counter." Client
// records which connection it arrived on so the resulting Ack can be
// routed back to the same client by SerializeOutput.
type Incr struct {
	Client int
}

// Ack carries the counter's new value back to the client that sent Incr.
type Ack struct {
	Client int
	Value  int
}

// Ping is the only peer message; it carries no payload.
type Ping struct{}

// Stub implements arrangement.Arrangement[string, int, Incr, Ack, Ping, int].
type Stub struct {
	debug  bool
	timers []arrangement.TimeoutTask[string, int, Ack, Ping]
	nextID atomic.Int64
}

// New returns a Stub with no periodic callbacks, matching spec.md §8's
// S1-S4 scenarios.
func New() *Stub {
	return &Stub{}
}

// NewPinger returns a Stub with one periodic callback that sends a Ping
// to dest every interval, matching spec.md §8's S5 scenario.
func NewPinger(dest string, interval time.Duration) *Stub {
	s := &Stub{}
	s.timers = []arrangement.TimeoutTask[string, int, Ack, Ping]{
		{
			HandlerFn: func(me string, state int) arrangement.Result[int, Ack, Ping, string] {
				return arrangement.Result[int, Ack, Ping, string]{
					State: state,
					Sends: []arrangement.PeerSend[string, Ping]{{Dest: dest, Msg: Ping{}}},
				}
			},
			IntervalFn: func(me string, state int) time.Duration {
				return interval
			},
		},
	}
	return s
}

// SetDebug toggles the pure debug-observer hooks.
func (s *Stub) SetDebug(v bool) { s.debug = v }

func (s *Stub) Init(me string) int { return 0 }

func (s *Stub) OnInput(me string, in Incr, state int) arrangement.Result[int, Ack, Ping, string] {
	next := state + 1
	return arrangement.Result[int, Ack, Ping, string]{
		State:   next,
		Outputs: []Ack{{Client: in.Client, Value: next}},
	}
}

// OnPeer acknowledges receipt of a Ping with no side effects: state is
// unchanged and no outputs or sends are produced, matching spec.md §8's
// S2 scenario.
func (s *Stub) OnPeer(me, src string, msg Ping, state int) arrangement.Result[int, Ack, Ping, string] {
	return arrangement.Result[int, Ack, Ping, string]{State: state}
}

func (s *Stub) SerializeMsg(msg Ping) []byte { return []byte("PING") }

func (s *Stub) DeserializeMsg(b []byte) (Ping, bool) {
	if string(b) != "PING" {
		return Ping{}, false
	}
	return Ping{}, true
}

func (s *Stub) DeserializeInput(b []byte, id int) (Incr, bool) {
	if string(b) != "INCR" {
		return Incr{}, false
	}
	return Incr{Client: id}, true
}

func (s *Stub) SerializeOutput(out Ack) (int, []byte) {
	return out.Client, []byte("ACK:" + strconv.Itoa(out.Value))
}

func (s *Stub) SerializeName(name string) string { return name }

func (s *Stub) DeserializeName(str string) (string, bool) {
	if str == "" {
		return "", false
	}
	return str, true
}

func (s *Stub) CreateClientID() int {
	return int(s.nextID.Add(1))
}

func (s *Stub) SerializeClientID(id int) string { return strconv.Itoa(id) }

func (s *Stub) TimeoutTasks() []arrangement.TimeoutTask[string, int, Ack, Ping] {
	return s.timers
}

func (s *Stub) Debug() bool { return s.debug }

func (s *Stub) DebugInput(me string, input Incr, state int)   {}
func (s *Stub) DebugRecv(me, src string, msg Ping, state int) {}
func (s *Stub) DebugSend(me, dest string, msg Ping, state int) {}
