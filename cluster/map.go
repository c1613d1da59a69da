// Package cluster resolves the static Name<->address mapping the reactor
// needs to bind its own datagram socket and to route outbound peer sends.
package cluster

import (
	"fmt"
	"net"

	"go.osspkg.com/errors"

	"github.com/vnode/shim/address"
)

var (
	ErrUnknownSelf  = errors.New("self name not present in cluster map")
	ErrDuplicateKey = errors.New("duplicate name or address in cluster map")
)

// Map is the resolved, bijective Name<->*net.UDPAddr mapping described by
// spec.md §3's cluster_addrs. It is built once at startup and never
// mutated afterward.
type Map[Name comparable] struct {
	self       Name
	selfAddr   *net.UDPAddr
	clientAddr string
	byName     map[Name]*net.UDPAddr
	byAddr     map[string]Name
}

// Build resolves a Config into a Map. deserializeName/serializeName come
// from the arrangement contract so the cluster map speaks the same Name
// type the handler does.
func Build[Name comparable](
	cfg Config,
	serializeName func(Name) string,
	deserializeName func(string) (Name, bool),
) (*Map[Name], error) {
	m := &Map[Name]{
		byName: make(map[Name]*net.UDPAddr, len(cfg.Peers)),
		byAddr: make(map[string]Name, len(cfg.Peers)),
	}

	for _, e := range cfg.Peers {
		name, ok := deserializeName(e.Name)
		if !ok {
			return nil, fmt.Errorf("cluster map: undecodable peer name %q", e.Name)
		}
		if got := serializeName(name); got != e.Name {
			return nil, fmt.Errorf("cluster map: name %q does not round-trip (got %q)", e.Name, got)
		}

		resolved := address.ResolveIPPort(e.Addr)
		udpAddr, err := net.ResolveUDPAddr("udp", resolved)
		if err != nil {
			return nil, errors.Wrapf(err, "cluster map: resolve peer %q", e.Name)
		}

		if _, dup := m.byName[name]; dup {
			return nil, errors.Wrapf(ErrDuplicateKey, "name %q", e.Name)
		}
		if _, dup := m.byAddr[udpAddr.String()]; dup {
			return nil, errors.Wrapf(ErrDuplicateKey, "addr %q", udpAddr.String())
		}

		m.byName[name] = udpAddr
		m.byAddr[udpAddr.String()] = name
	}

	self, ok := deserializeName(cfg.Self)
	if !ok {
		return nil, ErrUnknownSelf
	}
	selfAddr, ok := m.byName[self]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSelf, "self %q", cfg.Self)
	}

	m.self = self
	m.selfAddr = selfAddr
	m.clientAddr = address.ResolveIPPort(cfg.ClientAddr)

	return m, nil
}

// Self returns the local node's Name.
func (m *Map[Name]) Self() Name { return m.self }

// SelfAddr returns the local node's own datagram bind address.
func (m *Map[Name]) SelfAddr() *net.UDPAddr { return m.selfAddr }

// ClientAddr returns the bind address for the client-listener stream socket.
func (m *Map[Name]) ClientAddr() string { return m.clientAddr }

// Addr looks up the datagram address of a peer by Name, for the response
// dispatcher's outbound sends (spec.md §4.7).
func (m *Map[Name]) Addr(name Name) (*net.UDPAddr, bool) {
	a, ok := m.byName[name]
	return a, ok
}

// Lookup resolves a datagram source address back to a peer Name. Unknown
// senders return ok=false; the caller (the peer task) drops the datagram
// silently per spec.md §6.2 and §7.
func (m *Map[Name]) Lookup(addr net.Addr) (name Name, ok bool) {
	udp, isUDP := addr.(*net.UDPAddr)
	if !isUDP {
		return name, false
	}
	name, ok = m.byAddr[udp.String()]
	return
}
