package membership

import (
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/tidwall/wal"

	"github.com/gulmcluster/gulmd/configs"
)

// Backlog is the optional durable log of membership deltas, gated by
// configs.PersistMembershipLog. Replicator.Broadcast appends every delta to
// it; Replay reads them back, but no code in gulmd replays them into the
// registry or the dirty sweep.
type Backlog struct {
	mu  sync.Mutex
	log *wal.Log
	idx uint64
}

// OpenBacklog opens (creating if absent) the on-disk log under dir. Pass a
// nil *Backlog everywhere PersistMembershipLog is false; Append/Replay on a
// nil Backlog are no-ops/empty, so callers never need a feature-flag branch
// at the call site.
func OpenBacklog(dir string) (*Backlog, error) {
	log, err := wal.Open(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("membership: opening backlog at %s: %w", dir, err)
	}
	last, err := log.LastIndex()
	if err != nil {
		return nil, fmt.Errorf("membership: reading backlog index: %w", err)
	}
	return &Backlog{log: log, idx: last}, nil
}

// Append persists upd as the next backlog entry. A nil Backlog is a no-op.
func (b *Backlog) Append(upd Update) {
	if b == nil {
		return
	}
	data, err := json.Marshal(upd)
	if err != nil {
		configs.Warnf("membership: failed marshaling backlog entry: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.idx++
	if err := b.log.Write(b.idx, data); err != nil {
		configs.Warnf("membership: failed writing backlog entry: %v", err)
		b.idx--
	}
}

// Replay returns every backlog entry in write order. A nil or empty
// Backlog returns nil. Only tests call it; Master takeover does not.
func (b *Backlog) Replay() ([]Update, error) {
	if b == nil {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx == 0 {
		return nil, nil
	}

	first, err := b.log.FirstIndex()
	if err != nil {
		return nil, err
	}
	var out []Update
	for i := first; i <= b.idx; i++ {
		data, err := b.log.Read(i)
		if err != nil {
			return nil, fmt.Errorf("membership: reading backlog entry %d: %w", i, err)
		}
		var upd Update
		if err := json.Unmarshal(data, &upd); err != nil {
			return nil, fmt.Errorf("membership: decoding backlog entry %d: %w", i, err)
		}
		out = append(out, upd)
	}
	return out, nil
}

// Close releases the underlying log file handle.
func (b *Backlog) Close() error {
	if b == nil {
		return nil
	}
	return b.log.Close()
}
