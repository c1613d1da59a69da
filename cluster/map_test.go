package cluster_test

import (
	"net"
	"testing"

	"go.osspkg.com/casecheck"

	"github.com/vnode/shim/cluster"
)

func serializeName(s string) string { return s }

func deserializeName(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	return s, true
}

func TestUnit_Build_ResolvesSelfAndPeers(t *testing.T) {
	cfg := cluster.Config{
		Peers: []cluster.Entry{
			{Name: "a", Addr: "127.0.0.1:9001"},
			{Name: "b", Addr: "127.0.0.1:9002"},
		},
		Self:       "a",
		ClientAddr: "127.0.0.1:9101",
	}

	m, err := cluster.Build(cfg, serializeName, deserializeName)
	casecheck.NoError(t, err)
	casecheck.Equal(t, "a", m.Self())
	casecheck.Equal(t, "127.0.0.1:9101", m.ClientAddr())

	addr, ok := m.Addr("b")
	casecheck.True(t, ok)
	casecheck.Equal(t, "127.0.0.1:9002", addr.String())

	_, ok = m.Addr("unknown")
	casecheck.True(t, !ok)
}

func TestUnit_Build_UnknownSelf(t *testing.T) {
	cfg := cluster.Config{
		Peers: []cluster.Entry{
			{Name: "a", Addr: "127.0.0.1:9001"},
		},
		Self: "ghost",
	}

	_, err := cluster.Build(cfg, serializeName, deserializeName)
	casecheck.Error(t, err)
}

func TestUnit_Build_DuplicateName(t *testing.T) {
	cfg := cluster.Config{
		Peers: []cluster.Entry{
			{Name: "a", Addr: "127.0.0.1:9001"},
			{Name: "a", Addr: "127.0.0.1:9002"},
		},
		Self: "a",
	}

	_, err := cluster.Build(cfg, serializeName, deserializeName)
	casecheck.Error(t, err)
}

func TestUnit_Build_DuplicateAddr(t *testing.T) {
	cfg := cluster.Config{
		Peers: []cluster.Entry{
			{Name: "a", Addr: "127.0.0.1:9001"},
			{Name: "b", Addr: "127.0.0.1:9001"},
		},
		Self: "a",
	}

	_, err := cluster.Build(cfg, serializeName, deserializeName)
	casecheck.Error(t, err)
}

func TestUnit_Build_NonRoundTrippingName(t *testing.T) {
	cfg := cluster.Config{
		Peers: []cluster.Entry{
			{Name: "a", Addr: "127.0.0.1:9001"},
		},
		Self: "a",
	}

	// serializeName that never round-trips must fail Build.
	_, err := cluster.Build(cfg, func(string) string { return "mismatch" }, deserializeName)
	casecheck.Error(t, err)
}

func TestUnit_Lookup(t *testing.T) {
	cfg := cluster.Config{
		Peers: []cluster.Entry{
			{Name: "a", Addr: "127.0.0.1:9001"},
			{Name: "b", Addr: "127.0.0.1:9002"},
		},
		Self: "a",
	}

	m, err := cluster.Build(cfg, serializeName, deserializeName)
	casecheck.NoError(t, err)

	known := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9002}
	name, ok := m.Lookup(known)
	casecheck.True(t, ok)
	casecheck.Equal(t, "b", name)

	unknown := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}
	_, ok = m.Lookup(unknown)
	casecheck.True(t, !ok)
}
