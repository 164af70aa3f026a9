// Package membership replicates registry changes from the elected Master
// to slaves and local subscribers (LT partitions, ltpx), and runs the
// "dirty sweep" that announces synthetic updates after a promotion (spec
// §4.6).
package membership

import (
	"sync"

	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/registry"
	"github.com/gulmcluster/gulmd/wire"
)

// Update is one (subject, new-state, ip) triple, the unit of replication.
type Update = wire.MembershipUpdateRecord

// Subscriber receives membership deltas. server registers every connection
// that sets Subscribe at login; no connection is left out because its node
// is OldMasterLoggedIn.
type Subscriber interface {
	Name() string
	Send(Update) error
}

// Replicator is the Master-side fan-out of registry changes to every
// connected slave and local subscriber. server.Core calls Broadcast
// without checking its own role, so a Core running as Slave also fans out
// the logouts and expiries it handles itself.
type Replicator struct {
	mu   sync.Mutex
	subs map[string]Subscriber
	log  *Backlog // nil unless configs.PersistMembershipLog is set
}

// NewReplicator builds a Replicator. log may be nil when
// configs.PersistMembershipLog is false (spec §4.6 persistence is optional;
// LT itself never persists anything, but the Master's outgoing delta
// stream can be made durable for faster slave catch-up).
func NewReplicator(log *Backlog) *Replicator {
	return &Replicator{subs: make(map[string]Subscriber), log: log}
}

// Subscribe registers a connected slave or local subscriber to receive
// future deltas.
func (r *Replicator) Subscribe(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.Name()] = s
}

// Unsubscribe drops a subscriber, e.g. on connection loss.
func (r *Replicator) Unsubscribe(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, name)
}

// Broadcast pushes upd to every subscriber (spec §4.6: "Master pushes
// ... to each connected slave and to every local subscriber ... whenever
// it alters the registry"). A send failure drops that subscriber; it is
// expected to rejoin through arbitration/resubscription.
func (r *Replicator) Broadcast(upd Update) {
	if r.log != nil {
		r.log.Append(upd)
	}

	r.mu.Lock()
	subs := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		if err := s.Send(upd); err != nil {
			configs.Warnf("membership: dropping subscriber %s: %v", s.Name(), err)
			r.Unsubscribe(s.Name())
		}
	}
}

// DirtySweep implements spec §4.6's promotion-time reconciliation: for
// every node in reg no longer LoggedIn, announce whichever synthetic
// update most accurately describes what subscribers missed while no
// Master was pushing deltas.
//
// The mapping from State to synthetic updates (PrevState is not consulted):
//   - State == Expired: announce Expired, then the
//     node's current fence status decides whether Killed follows later
//     (this sweep only emits what the registry already knows; a fence
//     still in flight means Killed has not happened yet).
//   - State == LoggedOut: announce LoggedOut (covers both a clean exit
//     that happened before this node took Master, and post-fence Killed
//     nodes a prior Master already reset to LoggedOut).
//   - State == OldMasterLoggedIn: left untouched; reconciliation of that
//     state is election's job (marking it LoggedIn or Expired), not a
//     membership broadcast.
func (r *Replicator) DirtySweep(reg *registry.Registry) {
	reg.IterateByName(func(n *registry.Node) {
		switch n.State {
		case wire.NodeLoggedOut:
			r.Broadcast(Update{Subject: n.Name, NewState: wire.NodeLoggedOut, IP: n.IP})
		case wire.NodeExpired:
			r.Broadcast(Update{Subject: n.Name, NewState: wire.NodeExpired, IP: n.IP})
		}
	})
}
