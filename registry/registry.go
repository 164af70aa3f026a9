package registry

import (
	"net"
	"sort"
	"sync"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/wire"
)

// Registry is the in-memory directory of every cluster participant (spec
// §4.2). It is owned by the single event-loop task of whichever process
// embeds it (core, each LT partition); all methods assume single-threaded
// callers except where noted, and the mutex exists only to let the dump
// signal handler (server package) take a consistent snapshot from outside
// that loop.
type Registry struct {
	mu    sync.Mutex
	nodes map[string]*Node
	lru   *lru
	authz authz.Hook
}

// New builds an empty Registry. hook authorizes (name, ip) pairs on
// insert-or-update; pass authz.AllowAll{} when no external source is
// configured.
func New(hook authz.Hook) *Registry {
	if hook == nil {
		hook = authz.AllowAll{}
	}
	return &Registry{
		nodes: make(map[string]*Node),
		lru:   newLRU(),
		authz: hook,
	}
}

// InsertOrUpdate accepts a login or replicated sync of (name, ip) into
// state. A duplicate call with the same IP is idempotent (spec invariant
// L3); one with a differing IP returns ErrAuthRejected without mutating
// existing state. A brand-new name is checked against the authorization
// hook before acceptance.
func (r *Registry) InsertOrUpdate(name string, ip net.IP, state wire.NodeState, role wire.Role) (*Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.nodes[name]; ok {
		if !n.IP.Equal(ip) {
			return nil, ErrAuthRejected
		}
		n.PrevState = n.State
		n.State = state
		n.Role = role
		r.repositionLocked(n)
		return n, nil
	}

	if !r.authz.Authorize(name, ip) {
		return nil, ErrAuthRejected
	}

	n := &Node{Name: name, IP: ip, State: state, PrevState: wire.NodeLoggedOut, Role: role}
	r.nodes[name] = n
	r.repositionLocked(n)
	return n, nil
}

// repositionLocked keeps the heartbeat LRU membership in sync with n's
// current state (spec §3: only {LoggedIn, OldMasterLoggedIn} are tracked).
func (r *Registry) repositionLocked(n *Node) {
	switch n.State {
	case wire.NodeLoggedIn, wire.NodeOldMasterLoggedIn:
		r.lru.touch(n.Name)
	default:
		r.lru.remove(n.Name)
	}
}

// Get returns the node named name, or nil if unknown.
func (r *Registry) Get(name string) *Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes[name]
}

// Touch moves name to the head of the heartbeat LRU and clears its missed
// count, recording latencyMicros for the running stats. For any known node
// the beat time, missed count and stats are updated; a node not currently
// in {LoggedIn, OldMasterLoggedIn} is kept out of the LRU.
func (r *Registry) Touch(name string, nowMicros uint64, latencyMicros uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[name]
	if !ok {
		return
	}
	n.MissedBeats = 0
	n.LastBeatMicros = nowMicros
	if n.MaxLatencyMicros < latencyMicros {
		n.MaxLatencyMicros = latencyMicros
	}
	if n.AvgLatencyMicros == 0 {
		n.AvgLatencyMicros = float64(latencyMicros)
	} else {
		n.AvgLatencyMicros = n.AvgLatencyMicros*0.8 + float64(latencyMicros)*0.2
	}
	r.repositionLocked(n)
}

// ReorderAfterMiss moves name to the head of the heartbeat LRU and stamps
// LastBeatMicros, without clearing MissedBeats (spec §4.3: a node that
// missed a beat is moved to the head so its next miss is only counted one
// full heartbeat later, but the miss itself must stick so AllowedMisses
// can trip).
func (r *Registry) ReorderAfterMiss(name string, nowMicros uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[name]
	if !ok {
		return
	}
	n.LastBeatMicros = nowMicros
	r.repositionLocked(n)
}

// MarkLogin transitions name to LoggedIn (spec §3: LoggedOut|Expired ->
// LoggedIn on successful login).
func (r *Registry) MarkLogin(name string) error {
	return r.transition(name, wire.NodeLoggedIn)
}

// MarkLogout transitions name to LoggedOut (a clean, voluntary exit) and
// drops it from the heartbeat LRU.
func (r *Registry) MarkLogout(name string) error {
	return r.transition(name, wire.NodeLoggedOut)
}

// MarkExpired transitions name to Expired (spec §3, I5: fencing may only
// be dispatched after this transition and after the connection handle is
// closed).
func (r *Registry) MarkExpired(name string) error {
	return r.transition(name, wire.NodeExpired)
}

// MarkOldMasterLogin transitions name to OldMasterLoggedIn: a node that
// held Master before the current election ran, now back and pending
// reconciliation (spec §3, §4.5). It remains in the heartbeat LRU so a
// second missed-beat timeout still fences it if reconciliation stalls.
func (r *Registry) MarkOldMasterLogin(name string) error {
	return r.transition(name, wire.NodeOldMasterLoggedIn)
}

func (r *Registry) transition(name string, to wire.NodeState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[name]
	if !ok {
		return ErrUnknownNode
	}
	n.PrevState = n.State
	n.State = to
	r.repositionLocked(n)
	return nil
}

// IterateByLRU calls fn for every node currently tracked by the heartbeat
// LRU, from least-recently-beaten to most (the order the expiry sweep
// scans, spec §4.3). Iteration stops early if fn returns false.
func (r *Registry) IterateByLRU(fn func(n *Node) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lru.walkFromTail(func(name string) bool {
		n, ok := r.nodes[name]
		if !ok {
			return true
		}
		return fn(n)
	})
}

// IterateByName calls fn for every known node in sorted name order (used
// by admin dumps, spec §6).
func (r *Registry) IterateByName(fn func(n *Node)) {
	r.mu.Lock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	nodes := make([]*Node, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, r.nodes[name])
	}
	r.mu.Unlock()

	for _, n := range nodes {
		fn(n)
	}
}

// Len reports the number of known nodes, regardless of state.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}
