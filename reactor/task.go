package reactor

import "time"

// kind discriminates a task's behavior in the loop's dispatch switch,
// per spec.md §9's design note: a tagged variant instead of per-task
// function values, so the environment (not a closure) owns the state
// each variant needs and ownership of the client maps stays explicit.
type kind uint8

const (
	kindListener kind = iota
	kindPeer
	kindClient
	kindTimer
)

// task is the per-fd record of spec.md §3. A timer task has no real fd to
// select on; it is keyed by a synthetic negative descriptor so it still
// occupies a distinct slot in the task map (the "dummy fd" spec.md §4.6
// allows for).
type task[Name, State, Input, Output, Msg, ClientID any] struct {
	fd       int
	kind     kind
	selectOn bool

	hasWake bool
	wakeAt  time.Time

	// clientID is populated for kindClient tasks and mirrors the
	// client_in/client_out bookkeeping in spec.md §3's invariants.
	clientID ClientID

	// timerIdx indexes into the reactor's timeoutTasks slice for
	// kindTimer tasks.
	timerIdx int

	// retiring marks a task that dispatch.go's schedule-finalize-task
	// primitive (spec.md §4.7) has condemned: its next read or wake
	// callback must report finished=true unconditionally, deferring the
	// actual teardown to the next loop iteration so the caller's own
	// in-flight task reference is never invalidated mid-callback.
	retiring bool
}

// callbackResult is the uniform shape every task callback returns:
// spec.md §3's (finished, spawned_tasks, state').
type callbackResult[Name, State, Input, Output, Msg, ClientID any] struct {
	finished bool
	spawned  []*task[Name, State, Input, Output, Msg, ClientID]
	state    State
}
