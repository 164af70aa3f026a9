// Package election implements the role state machine from spec §4.5:
// Pending -> Slave -> Arbitrating -> Master, plus the arbitration win
// condition and peer probing that drive it.
package election

import (
	"sync"

	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/wire"
)

// Machine holds one server node's current role and the transition rules
// from spec §4.5. It is owned by a single event-loop task; callers (the
// server package) feed it probe results and membership facts and apply the
// role it returns.
type Machine struct {
	mu   sync.Mutex
	cfg  *configs.Config
	self string
	role wire.Role
}

// New builds a Machine starting in Pending, the entry state of the graph.
func New(cfg *configs.Config, self string) *Machine {
	return &Machine{cfg: cfg, self: self, role: wire.RolePending}
}

// Role returns the current role.
func (m *Machine) Role() wire.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// IsMasterOrArbitrator satisfies fence.RoleSource: fences dispatched while
// this node held Master/Arbitrator are dropped silently once it no longer
// does (spec §4.4).
func (m *Machine) IsMasterOrArbitrator() bool {
	r := m.Role()
	return r == wire.RoleMaster || r == wire.RoleArbitrating
}

func (m *Machine) setRole(r wire.Role) wire.Role {
	m.mu.Lock()
	prev := m.role
	m.role = r
	m.mu.Unlock()
	return prev
}

// Bootstrap applies the single-server-mode rule: with exactly one
// configured server, the election is skipped entirely and the node becomes
// Master immediately (spec §4.5). Fog mode (more than one server) leaves
// the node in Pending for the caller to drive through QuorumSlavesFound /
// MasterUnreachable.
func (m *Machine) Bootstrap() {
	if len(m.cfg.Servers) <= 1 {
		m.setRole(wire.RoleMaster)
	}
}

// QuorumSlavesFound applies the Pending -> Slave edge: the node observed a
// quorum of peers already following an existing Master. No-op from any
// role other than Pending.
func (m *Machine) QuorumSlavesFound() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.role != wire.RolePending {
		return false
	}
	m.role = wire.RoleSlave
	return true
}

// MasterUnreachable applies the {Pending, Slave} -> Arbitrating edge. A
// node entering arbitration keeps its registry rather than discarding it;
// marking every Logged-in node OldMasterLoggedIn for later reconciliation
// is the caller's responsibility (spec §4.5), since that mutates the
// registry this package does not own.
func (m *Machine) MasterUnreachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.role != wire.RolePending && m.role != wire.RoleSlave {
		return false
	}
	m.role = wire.RoleArbitrating
	return true
}

// Decision is the outcome of evaluating one round of peer probes while
// Arbitrating.
type Decision struct {
	VisibleCount      int
	QuorumMet         bool
	HigherRankVisible bool
	Win               bool
}

// Demote applies Arbitrating -> Slave: a higher-ranked Arbitrator was
// discovered (spec §4.5, "Demotion"). No-op from any other role.
func (m *Machine) Demote() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.role != wire.RoleArbitrating {
		return false
	}
	m.role = wire.RoleSlave
	return true
}

// Promote applies Arbitrating -> Master: the win condition held (spec
// §4.5). No-op from any other role.
func (m *Machine) Promote() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.role != wire.RoleArbitrating {
		return false
	}
	m.role = wire.RoleMaster
	return true
}

// ArbitrationDecided sets Master on a win, from whatever role the node
// holds; on a loss it demotes a Master to Slave and leaves any other role
// unchanged. Used when an already-Master node re-runs arbitration (e.g.
// after a network partition heals) and loses to a higher-ranked peer (the
// Arbitrating <- arbitration_decided -> Master edge in the transition
// graph is traversed from the Master side here).
func (m *Machine) ArbitrationDecided(won bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if won {
		m.role = wire.RoleMaster
		return
	}
	if m.role == wire.RoleMaster {
		m.role = wire.RoleSlave
	}
}
