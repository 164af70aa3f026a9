// Package locktable implements one partition of the distributed lock table
// (spec §4.7): a hash map of lock entries, each with a holder set, a waiter
// FIFO, and an LVB. Persistence is intentionally absent (spec §4.7,
// "Persistence. None."): a restarted partition is repopulated entirely by
// client reconnection.
package locktable

import (
	"hash/fnv"
	"sync"

	"github.com/gulmcluster/gulmd/wire"
)

// PartitionOf derives the partition number for key under a total of n
// partitions: a stable 32-bit hash of the key modulo the partition count
// (spec §4.7).
func PartitionOf(key []byte, n int) int {
	if n <= 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(n))
}

// Caller identifies the connection making a lock request: the node name
// drives expiration handling (spec §4.7, "Expiration handling"); subid
// disambiguates multiple lock holders/waiters from the same node.
type Caller struct {
	Node  string
	Subid uint32
}

// Callback is the demotion notice emitted to a holder whose granted mode a
// queued waiter needs released (spec §4.7, "Callbacks").
type Callback struct {
	Holder Caller
	Key    []byte
	Need   wire.LockState
}

// Sink receives demotion callbacks. Receipt is not required for progress
// (spec §4.7): a Sink that drops callbacks only delays, never blocks, the
// waiter it was meant to unblock.
type Sink interface {
	Callback(Callback)
}

// Partition is one shard of the lock table, indexed by partition number.
type Partition struct {
	ID  int
	cfg PartitionConfig

	mu      sync.Mutex // guards the entries index itself, not an Entry's own state
	entries map[string]*Entry

	sink Sink
}

// PartitionConfig carries the subset of configs.Config a partition needs,
// kept narrow so tests don't need a full Config. PreallocLocks seeds the
// entries map's initial capacity: the original daemon preallocates a
// fixed pool of this many lock structs up front (spec §4.10's
// -prealloc_locks); Go's map growth makes an exact fixed pool pointless,
// but sizing the initial bucket count the same way avoids the rehashing
// a freshly elected partition master would otherwise do while a cluster's
// existing clients reconnect and repopulate it.
type PartitionConfig struct {
	HighLocks     int
	PreallocLocks int
}

// New builds an empty Partition. sink may be nil to discard callbacks
// (acceptable: spec says receipt is never required for progress).
func New(id int, cfg PartitionConfig, sink Sink) *Partition {
	return &Partition{ID: id, cfg: cfg, entries: make(map[string]*Entry, cfg.PreallocLocks), sink: sink}
}

func (p *Partition) entryFor(key []byte, create bool) *Entry {
	k := string(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[k]
	if !ok && create {
		e = newEntry(key)
		p.entries[k] = e
	}
	return e
}

// Len reports the number of distinct keys currently tracked (granted or
// waited-on). PartitionConfig.HighLocks (spec §4.10's LTHighLocks) is
// carried but not enforced: nothing caps this count.
func (p *Partition) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Partition) pruneIfIdle(e *Entry) {
	if !e.idle() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.entries[string(e.Key)]; ok && cur == e && e.idle() {
		delete(p.entries, string(e.Key))
	}
}
