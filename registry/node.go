// Package registry is the in-memory directory of every cluster
// participant (spec §4.2): name-keyed node state plus the heartbeat LRU
// used by the expiry sweep.
package registry

import (
	"net"

	"github.com/gulmcluster/gulmd/wire"
)

// ConnHandle is the opaque per-node connection handle (spec §3). The
// registry never dials or reads from it directly; server owns the
// concrete net.Conn and only tells the registry to Close it on expiry.
type ConnHandle interface {
	Close() error
}

// Node is one cluster participant (spec §3). A Node is created on first
// login (or loaded from a slave's initial sync). The registry never removes
// a Node: a logout, or a successful fence, leaves it in place as LoggedOut.
type Node struct {
	Name  string
	IP    net.IP
	State wire.NodeState
	// PrevState is the state before the most recent transition. The
	// reconciliation sweep (membership.DirtySweep) does not consult it.
	PrevState wire.NodeState
	Role      wire.Role

	MissedBeats    int
	LastBeatMicros uint64

	// Running heartbeat-latency stats, informational only (not used by any
	// invariant in §8).
	AvgLatencyMicros float64
	MaxLatencyMicros uint64

	Conn ConnHandle

	// SweepTag is a per-node marker for the "reconciliation after master
	// reacquired" pass (spec §3). No code in gulmd sets or reads it.
	SweepTag bool
}

// IsServerRole reports whether r can only legitimately appear on a
// configured server node (spec §3 invariant: role in
// {Slave,Arbitrating,Master} only if in the configured server list).
func IsServerRole(r wire.Role) bool {
	switch r {
	case wire.RoleSlave, wire.RoleArbitrating, wire.RoleMaster:
		return true
	default:
		return false
	}
}
