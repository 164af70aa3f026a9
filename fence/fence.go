// Package fence dispatches the external fence binary against nodes marked
// Expired (spec §4.4). Fencing uses os/exec rather than a raw fork/exec
// pair — the standard Go idiom for "run a binary and reap its exit" — but
// keeps the source's retry/back-off and drop-on-role-change rules exactly.
package fence

import (
	"os/exec"
	"sync"
	"time"

	"github.com/gulmcluster/gulmd/configs"
)

const reforkDelay = 5 * time.Second

// Announcer is notified once a node's fence binary exits cleanly.
type Announcer interface {
	AnnounceKilled(name string)
}

// RoleSource answers whether this process currently holds a role entitled
// to dispatch fences. A reaped child whose process no longer holds
// Master/Arbitrator is dropped silently without announcing (spec §4.4).
type RoleSource interface {
	IsMasterOrArbitrator() bool
}

// pending is one (node name, in-flight child) tuple.
type pending struct {
	name    string
	cmd     *exec.Cmd
	done    chan error
	forking bool
}

// Dispatcher maintains the list of in-flight and queued fences. Fences are
// never cancelled (spec §4.4): the only way a queued fence is discarded is
// a role change away from Master/Arbitrator, or the child succeeding.
type Dispatcher struct {
	mu       sync.Mutex
	cfg      *configs.Config
	roles    RoleSource
	announce Announcer

	queue map[string]*pending
	run   func(name string) *exec.Cmd
}

// New builds a Dispatcher. roles answers "am I still Master or Arbitrator"
// for the drop-silently rule; announce receives the Killed notification
// that must be relayed to slaves and subscribers.
func New(cfg *configs.Config, roles RoleSource, announce Announcer) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		roles:    roles,
		announce: announce,
		queue:    make(map[string]*pending),
	}
	d.run = d.defaultRun
	return d
}

func (d *Dispatcher) defaultRun(name string) *exec.Cmd {
	return exec.Command(d.cfg.FenceBin, name)
}

// QueueForFencing forks the configured fence binary against name. If a
// fence for name is already in flight, this is a no-op (the existing child
// is left to run).
func (d *Dispatcher) QueueForFencing(name string) {
	d.mu.Lock()
	if _, exists := d.queue[name]; exists {
		d.mu.Unlock()
		return
	}
	p := &pending{name: name}
	d.queue[name] = p
	d.mu.Unlock()

	d.fork(p)
}

func (d *Dispatcher) fork(p *pending) {
	cmd := d.run(p.name)
	if err := cmd.Start(); err != nil {
		configs.Warnf("fence: fork failed for %s: %v, retrying in %s", p.name, err, reforkDelay)
		time.AfterFunc(reforkDelay, func() { d.fork(p) })
		return
	}

	p.cmd = cmd
	go d.reap(p)
}

// reap waits for the fence child and applies the spec §4.4 reaping rules.
func (d *Dispatcher) reap(p *pending) {
	err := p.cmd.Wait()

	if !d.roles.IsMasterOrArbitrator() {
		// Drop silently: no longer our job to fence.
		d.mu.Lock()
		delete(d.queue, p.name)
		d.mu.Unlock()
		return
	}

	if err == nil {
		configs.Debugf("fence: %s killed cleanly", p.name)
		d.mu.Lock()
		delete(d.queue, p.name)
		d.mu.Unlock()
		if d.announce != nil {
			d.announce.AnnounceKilled(p.name)
		}
		return
	}

	configs.Warnf("fence: %s fence binary failed: %v, reforking in %s", p.name, err, reforkDelay)
	time.AfterFunc(reforkDelay, func() { d.fork(p) })
}

// InFlight reports whether name currently has a queued or running fence.
func (d *Dispatcher) InFlight(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.queue[name]
	return ok
}

// Len reports the number of (pid, node-name) tuples currently tracked.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
