package reactor

import (
	"github.com/vnode/shim/codec"
	"github.com/vnode/shim/errs"
)

// processClient reads one framed request, decodes it, and invokes
// OnInput. Any decode or I/O error (spec.md §4.5, §7: "client recv error
// / decode failure") finalizes this client's task; other clients and the
// peer/listener/timer tasks are unaffected.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) processClient(t *task[Name, State, Input, Output, Msg, ClientID]) callbackResult[Name, State, Input, Output, Msg, ClientID] {
	conn := r.conns[t.fd]

	b, err := codec.ReceiveChunk(conn)
	if err != nil {
		if errs.IsClosed(err) {
			r.log.Debug("reactor: client recv", "err", err, "fd", t.fd)
		} else {
			r.log.Warn("reactor: client recv", "err", err, "fd", t.fd)
		}
		return callbackResult[Name, State, Input, Output, Msg, ClientID]{finished: true, state: r.state}
	}

	input, ok := r.arr.DeserializeInput(b, t.clientID)
	if !ok {
		r.log.Debug("reactor: could not deserialize client input", "fd", t.fd)
		return callbackResult[Name, State, Input, Output, Msg, ClientID]{finished: true, state: r.state}
	}

	if r.arr.Debug() {
		r.arr.DebugInput(r.cl.Self(), input, r.state)
	}

	result := r.arr.OnInput(r.cl.Self(), input, r.state)
	r.dispatch(result)

	return callbackResult[Name, State, Input, Output, Msg, ClientID]{state: r.state}
}

// finalizeClient closes the connection and removes both directions of the
// client_in/client_out mapping, restoring the invariants of spec.md §3
// and §8 property 3.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) finalizeClient(t *task[Name, State, Input, Output, Msg, ClientID]) {
	id, hadID := r.clientIn[t.fd]
	delete(r.clientIn, t.fd)
	if hadID {
		delete(r.clientOut, id)
	}

	if conn, ok := r.conns[t.fd]; ok {
		if err := conn.Close(); err != nil {
			r.log.Debug("reactor: close client", "err", err, "fd", t.fd)
		}
		delete(r.conns, t.fd)
	}
}
