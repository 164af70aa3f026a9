// Package heartbeat drives the periodic sweep that turns missed beats into
// Expired transitions (spec §4.3). It owns no state of its own beyond the
// sweep loop; the registry remains the single owner of node state.
package heartbeat

import (
	"time"

	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/registry"
	"github.com/gulmcluster/gulmd/wire"
)

// Clock abstracts time.Now for tests that need to control missed-beat math
// precisely; Real uses the wall clock.
type Clock interface {
	NowMicros() uint64
}

// WallClock is the production Clock.
type WallClock struct{}

func (WallClock) NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

// Announcer is notified before a node is removed (spec §4.3: "announce,
// then close, then fence" ordering is observable and required).
type Announcer interface {
	AnnounceExpired(name string)
}

// Fencer is handed a node name once its connection has been closed.
type Fencer interface {
	QueueForFencing(name string)
}

// Engine runs the ½·heartbeat_rate sweep against a Registry.
type Engine struct {
	reg     *registry.Registry
	cfg     *configs.Config
	clock   Clock
	announce Announcer
	fence   Fencer

	stop chan struct{}
}

// New builds a sweep Engine. announce and fence may be nil in tests that
// only want to observe the Expired transition itself.
func New(reg *registry.Registry, cfg *configs.Config, announce Announcer, fence Fencer) *Engine {
	return &Engine{
		reg:      reg,
		cfg:      cfg,
		clock:    WallClock{},
		announce: announce,
		fence:    fence,
		stop:     make(chan struct{}),
	}
}

// Run blocks, ticking every ½·heartbeat_rate until Stop is called. It is
// meant to be driven from the owning process's single event-loop select,
// the same shape as the teacher's connHandler ticker loop.
func (e *Engine) Run() {
	interval := e.cfg.HeartbeatRate / 2
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Sweep()
		case <-e.stop:
			return
		}
	}
}

// Stop ends a running Run loop.
func (e *Engine) Stop() {
	close(e.stop)
}

// Sweep performs one pass from the LRU tail, exactly as spec §4.3
// describes: nodes past deadline get their miss count bumped and are moved
// to the head (so the next miss is counted one full heartbeat later);
// iteration stops at the first node still under deadline, since everything
// toward the head is more recent still.
func (e *Engine) Sweep() {
	now := e.clock.NowMicros()
	deadlineMicros := uint64(e.cfg.HeartbeatRate.Microseconds())

	// First pass is read-only: IterateByLRU holds the registry lock for its
	// whole walk, so reordering (which also locks) cannot happen inside it.
	var missed []string
	e.reg.IterateByLRU(func(n *registry.Node) bool {
		if now < n.LastBeatMicros+deadlineMicros {
			return false
		}
		missed = append(missed, n.Name)
		return true
	})

	var toExpire []string
	for _, name := range missed {
		n := e.reg.Get(name)
		if n == nil {
			continue
		}
		n.MissedBeats++
		e.reg.ReorderAfterMiss(name, now)
		if n.MissedBeats > e.cfg.AllowedMisses {
			toExpire = append(toExpire, name)
		}
	}
	for _, name := range toExpire {
		e.expire(name)
	}
}

func (e *Engine) expire(name string) {
	n := e.reg.Get(name)
	if n == nil || n.State == wire.NodeExpired {
		return
	}
	// Spec §4.3's required ordering: transition to Expired, announce it to
	// subscribers, close the connection, then fence. I5 depends on
	// Expired always preceding the Killed update that follows a
	// successful fence, which in turn depends on announce happening
	// before the connection (and whatever holds it) is torn down.
	if err := e.reg.MarkExpired(name); err != nil {
		return
	}
	if e.announce != nil {
		e.announce.AnnounceExpired(name)
	}
	if n.Conn != nil {
		n.Conn.Close()
	}
	if e.fence != nil {
		e.fence.QueueForFencing(name)
	}
}

// ForceExpire drives the same expire path as a missed-beat timeout, for a
// caller that has an independent reason to believe name is dead (spec
// §6's OpAdminForceExpire administrative request). It bypasses the
// missed-beats counter entirely but not the announce/close/fence
// ordering invariant (I5) that path enforces.
func (e *Engine) ForceExpire(name string) {
	e.expire(name)
}

// BeatAllOnce stamps every node in the heartbeat LRU with now and clears
// its missed count (spec §4.3). No code path in gulmd calls it: a change of
// role to Master does not run it.
func (e *Engine) BeatAllOnce() {
	now := e.clock.NowMicros()
	e.reg.IterateByLRU(func(n *registry.Node) bool {
		n.MissedBeats = 0
		n.LastBeatMicros = now
		return true
	})
}

// DieIfExpired reports whether self is already marked Expired in reg — spec
// §4.3: "a node must not return after having been expired without operator
// intervention." It does not abort anything itself; a true result is for
// the caller to turn into a process exit.
func DieIfExpired(reg *registry.Registry, self string) bool {
	n := reg.Get(self)
	return n != nil && n.State == wire.NodeExpired
}
