// Package arrangement defines the contract the reactor drives: a pure,
// total state-transition handler produced by a higher-level verification
// framework. The reactor never inspects State, Input, Output or Msg; it
// only moves bytes in and out and calls back into this contract.
package arrangement

import "time"

// Result is the outcome of one handler invocation: the new state, the
// client-facing outputs to flush, and the peer messages to send.
type Result[State, Output, Msg, Name any] struct {
	State   State
	Outputs []Output
	Sends   []PeerSend[Name, Msg]
}

// PeerSend addresses one outbound Msg at a cluster peer by Name.
type PeerSend[Name, Msg any] struct {
	Dest Name
	Msg  Msg
}

// TimeoutTask is one periodic callback the arrangement wants driven by the
// reactor's clock. HandlerFn runs at each wake; IntervalFn is re-evaluated
// against the post-wake state to compute the next wake delay, so adaptive
// or randomized back-off is expressible without the reactor knowing about it.
type TimeoutTask[Name, State, Output, Msg any] struct {
	HandlerFn  func(me Name, state State) Result[State, Output, Msg, Name]
	IntervalFn func(me Name, state State) time.Duration
}

// Arrangement is the opaque verified handler. Name, State, Input, Output,
// Msg and ClientID are type parameters supplied by the concrete
// arrangement; the reactor is generic over them and never constructs a
// value of any of these types itself except by calling into this
// interface.
type Arrangement[Name, State, Input, Output, Msg, ClientID any] interface {
	// Init returns the handler's initial state for a node identified by me.
	Init(me Name) State

	// OnInput is called once per decoded client request.
	OnInput(me Name, input Input, state State) Result[State, Output, Msg, Name]

	// OnPeer is called once per decoded peer datagram, with src resolved
	// from the cluster map against the datagram's source address.
	OnPeer(me Name, src Name, msg Msg, state State) Result[State, Output, Msg, Name]

	// SerializeMsg/DeserializeMsg round-trip Msg across one datagram.
	SerializeMsg(msg Msg) []byte
	DeserializeMsg(b []byte) (Msg, bool)

	// DeserializeInput decodes one client-request chunk. A false ok means
	// the bytes could not be decoded and the client connection is dropped.
	DeserializeInput(b []byte, id ClientID) (Input, bool)

	// SerializeOutput encodes one handler output together with the
	// ClientID it must be routed to.
	SerializeOutput(out Output) (ClientID, []byte)

	// SerializeName/DeserializeName round-trip Name as a wire string
	// (cluster map keys, debug logging).
	SerializeName(name Name) string
	DeserializeName(s string) (Name, bool)

	// CreateClientID mints a fresh id for a newly accepted connection.
	CreateClientID() ClientID
	SerializeClientID(id ClientID) string

	// TimeoutTasks enumerates the arrangement's periodic callbacks. Called
	// once at startup; the returned slice is fixed for the process lifetime.
	TimeoutTasks() []TimeoutTask[Name, State, Output, Msg]

	// Debug reports whether the debug hooks below should be invoked. They
	// are pure observers: the reactor never branches on their return value.
	Debug() bool
	DebugInput(me Name, input Input, state State)
	DebugRecv(me Name, src Name, msg Msg, state State)
	DebugSend(me Name, dest Name, msg Msg, state State)
}
