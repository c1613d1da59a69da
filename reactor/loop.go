package reactor

import (
	"context"
	"time"
)

// Run drives the reactor forever, per spec.md §4.2, until ctx is done.
// Every ready task gets at least one dispatch per iteration regardless of
// map order (spec.md §5's fairness guarantee), since step snapshots the
// task set once at the top of each iteration and dispatches every member
// of that snapshot still present afterward.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) Run(ctx context.Context) error {
	defer r.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := r.step(); err != nil {
			return err
		}
	}
}

func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) step() error {
	timeoutMS := r.waitTimeoutMS()

	var ready []int32
	if err := r.poll.wait(timeoutMS, &ready); err != nil {
		return err
	}

	readySet := make(map[int]struct{}, len(ready))
	for _, fd := range ready {
		readySet[int(fd)] = struct{}{}
	}

	snapshot := make([]int, len(r.order))
	copy(snapshot, r.order)

	now := time.Now()

	for _, fd := range snapshot {
		t, ok := r.tasks[fd]
		if !ok {
			continue // finalized by an earlier callback this same iteration
		}

		_, isReady := readySet[fd]
		expired := t.hasWake && !now.Before(t.wakeAt)

		var result callbackResult[Name, State, Input, Output, Msg, ClientID]
		switch {
		case isReady:
			result = r.processRead(t)
		case expired:
			result = r.processWake(t)
		default:
			continue
		}

		r.state = result.state
		for _, spawned := range result.spawned {
			r.install(spawned)
		}
		if result.finished {
			r.finalize(t)
			r.remove(fd)
		}
	}

	return nil
}

// waitTimeoutMS computes spec.md §4.2 step 1: the earliest wake_at across
// all tasks, clamped to the configured polling cap, expressed as the
// millisecond timeout epoll_wait expects.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) waitTimeoutMS() int {
	now := time.Now()
	deadline := now.Add(r.opt.PollCap)

	for _, t := range r.tasks {
		if !t.hasWake {
			continue
		}
		if t.wakeAt.Before(deadline) {
			deadline = t.wakeAt
		}
	}

	d := deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	ms := int(d / time.Millisecond)
	if ms == 0 && d > 0 {
		ms = 1
	}
	return ms
}

// processRead dispatches a ready task's read callback by kind. A
// retiring task (spec.md §4.7's schedule-finalize-task) unconditionally
// reports finished regardless of kind.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) processRead(t *task[Name, State, Input, Output, Msg, ClientID]) callbackResult[Name, State, Input, Output, Msg, ClientID] {
	if t.retiring {
		return callbackResult[Name, State, Input, Output, Msg, ClientID]{finished: true, state: r.state}
	}
	switch t.kind {
	case kindListener:
		return r.processListener()
	case kindPeer:
		return r.processPeer()
	case kindClient:
		return r.processClient(t)
	default:
		return callbackResult[Name, State, Input, Output, Msg, ClientID]{state: r.state}
	}
}

// processWake dispatches an expired task's wake callback by kind. Only
// kindTimer and a retiring task act; listener/peer/live-client tasks have
// no wake_at under normal operation.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) processWake(t *task[Name, State, Input, Output, Msg, ClientID]) callbackResult[Name, State, Input, Output, Msg, ClientID] {
	if t.retiring {
		return callbackResult[Name, State, Input, Output, Msg, ClientID]{finished: true, state: r.state}
	}
	if t.kind == kindTimer {
		return r.processTimer(t)
	}
	return callbackResult[Name, State, Input, Output, Msg, ClientID]{state: r.state}
}

func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) finalize(t *task[Name, State, Input, Output, Msg, ClientID]) {
	switch t.kind {
	case kindListener:
		r.finalizeListener()
	case kindPeer:
		r.finalizePeer()
	case kindClient:
		r.finalizeClient(t)
	case kindTimer:
		// no resources to release; the synthetic fd was never registered
		// with the poller.
	}
}

func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) closeAll() {
	for _, fd := range append([]int(nil), r.order...) {
		if t, ok := r.tasks[fd]; ok {
			r.finalize(t)
			r.remove(fd)
		}
	}
	if err := r.poll.close(); err != nil {
		r.log.Warn("reactor: close poller", "err", err)
	}
}

// State returns the reactor's current handler state. Intended for tests
// and diagnostics; the loop itself is the only writer.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) State() State {
	return r.state
}
