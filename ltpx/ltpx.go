// Package ltpx is the client-facing lock-table proxy (spec §4.8): it
// routes each request to the owning partition's master connection,
// tracks outstanding requests per partition so replies can be matched back
// to the client that sent them, and synthesizes TryFailed replies on
// partition-master failover.
package ltpx

import (
	"sync"

	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/locktable"
	"github.com/gulmcluster/gulmd/wire"
)

// MasterConn is the live connection to one partition's current master.
type MasterConn interface {
	Send(*wire.LockRequestRecord) error
}

// ClientSink is the proxy-side handle for the client connection that
// issued a request; Deliver forwards a reply (real or synthesized) back
// to it.
type ClientSink interface {
	Deliver(*wire.LockReplyRecord) error
}

type outstandingKey struct {
	subid uint32
	key   string
}

type pendingEntry struct {
	client         ClientSink
	requestedState wire.LockState
}

type partitionState struct {
	mu       sync.Mutex
	conn     MasterConn
	fifo     []outstandingKey
	pending  map[outstandingKey]pendingEntry
}

func newPartitionState() *partitionState {
	return &partitionState{pending: make(map[outstandingKey]pendingEntry)}
}

// Proxy is the ltpx process's routing table, one partitionState per
// configured partition.
type Proxy struct {
	cfg        *configs.Config
	mu         sync.Mutex
	partitions map[int]*partitionState
}

// New builds a Proxy for cfg's configured partition count.
func New(cfg *configs.Config) *Proxy {
	return &Proxy{cfg: cfg, partitions: make(map[int]*partitionState)}
}

func (p *Proxy) partitionFor(id int) *partitionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	ps, ok := p.partitions[id]
	if !ok {
		ps = newPartitionState()
		p.partitions[id] = ps
	}
	return ps
}

// RouteOf derives the partition number for key (spec §4.8: "Compute
// partition = hash(key) mod N").
func (p *Proxy) RouteOf(key []byte) int {
	return locktable.PartitionOf(key, p.cfg.LTPartitions)
}

// SetMaster installs (or clears, with conn == nil) the current master
// connection for a partition. Called by the membership-update handler
// once a replacement master has been elected (spec §4.8: "The new
// connection is not opened until the replacement master has been
// elected").
func (p *Proxy) SetMaster(partitionID int, conn MasterConn) {
	ps := p.partitionFor(partitionID)
	ps.mu.Lock()
	ps.conn = conn
	ps.mu.Unlock()
}

// Forward routes req to the partition owning key. If no master connection
// is currently known, the request is answered with NoMaster whether or not
// it carries Try: no request is held back waiting for a connection to be
// established, and the client is left to retry.
func (p *Proxy) Forward(subid uint32, req *wire.LockRequestRecord, client ClientSink) {
	partitionID := p.RouteOf(req.Key)
	ps := p.partitionFor(partitionID)

	ps.mu.Lock()
	if ps.conn == nil {
		ps.mu.Unlock()
		client.Deliver(&wire.LockReplyRecord{Subid: subid, Key: req.Key, Status: wire.StatusNoMaster})
		return
	}

	k := outstandingKey{subid: subid, key: string(req.Key)}
	ps.fifo = append(ps.fifo, k)
	ps.pending[k] = pendingEntry{client: client, requestedState: req.RequestedState}
	conn := ps.conn
	ps.mu.Unlock()

	if err := conn.Send(req); err != nil {
		configs.Warnf("ltpx: forwarding to partition %d master failed: %v", partitionID, err)
	}
}

// OnReply matches a reply arriving from a partition master back to the
// client that issued the originating request and delivers it. An
// unmatched reply (no outstanding request found) is dropped and logged
// (spec §4.8).
func (p *Proxy) OnReply(partitionID int, reply *wire.LockReplyRecord) {
	ps := p.partitionFor(partitionID)

	ps.mu.Lock()
	k := outstandingKey{subid: reply.Subid, key: string(reply.Key)}
	entry, ok := ps.pending[k]
	if ok {
		delete(ps.pending, k)
		ps.fifo = removeKey(ps.fifo, k)
	}
	ps.mu.Unlock()

	if !ok {
		configs.Warnf("ltpx: dropping unmatched reply for partition %d subid %d", partitionID, reply.Subid)
		return
	}
	_ = entry.client.Deliver(reply)
}

// OnPartitionMasterLost implements the failover rule from spec §4.8: when
// ltpx observes via membership updates that a partition's master has
// expired or changed, every outstanding request on that partition gets a
// synthesized LockReply(state=requested, TryFailed) so the client can
// retry, and the FIFO is cleared. The connection itself is cleared too —
// SetMaster must be called again once a replacement is elected.
func (p *Proxy) OnPartitionMasterLost(partitionID int) {
	ps := p.partitionFor(partitionID)

	ps.mu.Lock()
	ps.conn = nil
	lost := ps.fifo
	ps.fifo = nil
	pending := ps.pending
	ps.pending = make(map[outstandingKey]pendingEntry)
	ps.mu.Unlock()

	for _, k := range lost {
		entry, ok := pending[k]
		if !ok {
			continue
		}
		_ = entry.client.Deliver(&wire.LockReplyRecord{
			Subid:  k.subid,
			Key:    []byte(k.key),
			State:  entry.requestedState,
			Status: wire.StatusTryFailed,
		})
	}
}

func removeKey(fifo []outstandingKey, target outstandingKey) []outstandingKey {
	for i, k := range fifo {
		if k == target {
			return append(fifo[:i], fifo[i+1:]...)
		}
	}
	return fifo
}
