package reactor

import "time"

// installTimers registers one kindTimer task per arrangement-declared
// periodic callback (spec.md §4.6). Each occupies a synthetic negative fd
// so it keys its own slot in the task map without needing real I/O.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) installTimers() {
	for i, tt := range r.timeoutTasks {
		wakeAt := time.Now().Add(tt.IntervalFn(r.cl.Self(), r.state))
		r.install(&task[Name, State, Input, Output, Msg, ClientID]{
			fd:       r.dummyFD(),
			kind:     kindTimer,
			selectOn: false,
			hasWake:  true,
			wakeAt:   wakeAt,
			timerIdx: i,
		})
	}
}

// processTimer fires one timer's handler and re-arms it against the
// post-dispatch state, per spec.md §4.6: the interval function is
// recomputed every cycle since it may depend on current state (adaptive
// or randomized back-off).
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) processTimer(t *task[Name, State, Input, Output, Msg, ClientID]) callbackResult[Name, State, Input, Output, Msg, ClientID] {
	tt := r.timeoutTasks[t.timerIdx]

	result := tt.HandlerFn(r.cl.Self(), r.state)
	r.dispatch(result)

	t.wakeAt = time.Now().Add(tt.IntervalFn(r.cl.Self(), r.state))

	return callbackResult[Name, State, Input, Output, Msg, ClientID]{state: r.state}
}
