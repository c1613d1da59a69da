package reactor

import (
	"time"

	"github.com/vnode/shim/arrangement"
	"github.com/vnode/shim/codec"
	"github.com/vnode/shim/errs"
)

// retireDelay is the small wake delay the schedule-finalize-task
// primitive arms a condemned task with, per spec.md §4.7: long enough
// that the current callback's in-flight references are never touched
// again before the next loop iteration finalizes it.
const retireDelay = 500 * time.Millisecond

// dispatch flushes one handler result per spec.md §4.7: outputs are
// routed to the client fd bound to their ClientID, peer sends are routed
// to the cluster address bound to their destination Name, and the new
// state becomes the reactor's current state.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) dispatch(result arrangement.Result[State, Output, Msg, Name]) {
	r.state = result.State

	for _, out := range result.Outputs {
		cid, b := r.arr.SerializeOutput(out)
		fd, ok := r.clientOut[cid]
		if !ok {
			r.log.Debug("reactor: output for unknown client", "client_id", r.arr.SerializeClientID(cid))
			continue
		}
		conn, ok := r.conns[fd]
		if !ok {
			r.log.Debug("reactor: output for client with no connection", "fd", fd)
			continue
		}
		if err := codec.SendChunk(conn, b); err != nil {
			if errs.IsClosed(err) {
				r.log.Debug("reactor: client send", "err", err, "fd", fd)
			} else {
				r.log.Warn("reactor: client send", "err", err, "fd", fd)
			}
			r.scheduleFinalize(fd)
		}
	}

	for _, send := range result.Sends {
		addr, ok := r.cl.Addr(send.Dest)
		if !ok {
			r.log.Debug("reactor: peer send to unknown name", "dest", r.arr.SerializeName(send.Dest))
			continue
		}
		if r.arr.Debug() {
			r.arr.DebugSend(r.cl.Self(), send.Dest, send.Msg, r.state)
		}
		b := r.arr.SerializeMsg(send.Msg)
		if _, err := r.peerConn.WriteToUDP(b, addr); err != nil {
			r.log.Debug("reactor: peer send", "err", err, "dest", r.arr.SerializeName(send.Dest))
		}
	}
}

// scheduleFinalize condemns a client task: it stops selecting on its fd,
// arms a short wake, and marks it retiring so the loop's next dispatch of
// this task unconditionally reports finished=true, deferring the actual
// finalize (close + map cleanup) to the next loop iteration. This avoids
// invalidating the task reference the currently executing callback holds.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) scheduleFinalize(fd int) {
	t, ok := r.tasks[fd]
	if !ok || t.retiring {
		return
	}
	if t.selectOn {
		if err := r.poll.remove(fd); err != nil {
			r.log.Debug("reactor: unregister retiring fd", "err", err, "fd", fd)
		}
	}
	t.selectOn = false
	t.hasWake = true
	t.wakeAt = time.Now().Add(retireDelay)
	t.retiring = true
}
