package reactor

import (
	"syscall"

	"go.osspkg.com/errors"

	"github.com/vnode/shim/errs"
)

// MaxDatagramSize bounds a single peer datagram read, per spec.md §4.4
// and §6.2.
const MaxDatagramSize = 65536

// installPeer registers the peer-datagram task (spec.md §4.4): pinned to
// peer_sock, select_on=true, no wake deadline.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) installPeer() error {
	fd, err := sysFD(syscall.Conn(r.peerConn))
	if err != nil {
		return errors.Wrapf(err, "peer socket fd")
	}
	r.install(&task[Name, State, Input, Output, Msg, ClientID]{
		fd:       fd,
		kind:     kindPeer,
		selectOn: true,
	})
	return nil
}

// processPeer reads one datagram, resolves its source address against the
// cluster map, and invokes OnPeer. Unknown senders are dropped silently
// (spec.md §6.2, §7, §9's "unknown-sender datagrams" note); receive
// errors are logged and swallowed.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) processPeer() callbackResult[Name, State, Input, Output, Msg, ClientID] {
	buf := make([]byte, MaxDatagramSize)
	n, addr, err := r.peerConn.ReadFromUDP(buf)
	if err != nil {
		if errs.IsClosed(err) {
			r.log.Debug("reactor: peer recv", "err", err)
		} else {
			r.log.Warn("reactor: peer recv", "err", err)
		}
		return callbackResult[Name, State, Input, Output, Msg, ClientID]{state: r.state}
	}

	src, ok := r.cl.Lookup(addr)
	if !ok {
		if r.arr.Debug() {
			r.log.Debug("reactor: drop datagram from unknown sender", "addr", addr.String())
		}
		return callbackResult[Name, State, Input, Output, Msg, ClientID]{state: r.state}
	}

	msg, ok := r.arr.DeserializeMsg(buf[:n])
	if !ok {
		r.log.Warn("reactor: undecodable peer datagram", "src", r.arr.SerializeName(src))
		return callbackResult[Name, State, Input, Output, Msg, ClientID]{state: r.state}
	}

	if r.arr.Debug() {
		r.arr.DebugRecv(r.cl.Self(), src, msg, r.state)
	}

	result := r.arr.OnPeer(r.cl.Self(), src, msg, r.state)
	r.dispatch(result)

	return callbackResult[Name, State, Input, Output, Msg, ClientID]{state: r.state}
}

func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) finalizePeer() {
	if err := r.peerConn.Close(); err != nil {
		r.log.Warn("reactor: close peer socket", "err", err)
	}
}
