package reactor

import (
	"syscall"

	"go.osspkg.com/errors"
)

// installListener registers the client-listener acceptor task (spec.md
// §4.3): pinned to listen_sock, select_on=true, no wake deadline.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) installListener() error {
	fd, err := sysFD(r.listener.(syscall.Conn))
	if err != nil {
		return errors.Wrapf(err, "listener fd")
	}
	r.install(&task[Name, State, Input, Output, Msg, ClientID]{
		fd:       fd,
		kind:     kindListener,
		selectOn: true,
	})
	return nil
}

// processListener accepts exactly one connection per invocation, mints a
// fresh ClientID, records both directions of the fd<->id mapping, and
// spawns a client-read task for the new connection. Accept errors are
// logged and swallowed per spec.md §7's "client accept error" policy.
func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) processListener() callbackResult[Name, State, Input, Output, Msg, ClientID] {
	conn, err := r.listener.Accept()
	if err != nil {
		r.log.Warn("reactor: accept client", "err", err)
		return callbackResult[Name, State, Input, Output, Msg, ClientID]{state: r.state}
	}

	id := r.arr.CreateClientID()
	cfd := connFD(conn)

	r.conns[cfd] = conn
	r.clientIn[cfd] = id
	r.clientOut[id] = cfd

	spawned := &task[Name, State, Input, Output, Msg, ClientID]{
		fd:       cfd,
		kind:     kindClient,
		selectOn: true,
		clientID: id,
	}

	return callbackResult[Name, State, Input, Output, Msg, ClientID]{
		state:   r.state,
		spawned: []*task[Name, State, Input, Output, Msg, ClientID]{spawned},
	}
}

func (r *Reactor[Name, State, Input, Output, Msg, ClientID]) finalizeListener() {
	if err := r.listener.Close(); err != nil {
		r.log.Warn("reactor: close listener", "err", err)
	}
}
