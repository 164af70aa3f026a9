package locktable

import "github.com/gulmcluster/gulmd/wire"

// OnExpired implements the first half of spec §4.7's "Expiration handling":
// when the LT receives a membership update Expired for name, every holder
// belonging to that caller is tagged expired-holder-present and subsequent
// grants against those locks are blocked.
func (p *Partition) OnExpired(name string) {
	p.mu.Lock()
	entries := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		for _, h := range e.Holders {
			if h.Caller.Node == name {
				h.ExpiredHolder = true
				e.expiredHolderPresent = true
			}
		}
		e.mu.Unlock()
	}
}

// OnKilled implements the second half: once the corresponding fence
// completes and a Killed update arrives, expired holders belonging to name
// are forcibly removed and waiters are processed (spec §4.7).
func (p *Partition) OnKilled(name string, notify func(Caller, *wire.LockReplyRecord)) {
	p.mu.Lock()
	entries := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		changed := false
		for i := 0; i < len(e.Holders); {
			h := e.Holders[i]
			if h.Caller.Node != name {
				i++
				continue
			}
			e.Holders = append(e.Holders[:i], e.Holders[i+1:]...)
			changed = true
		}
		if len(e.Holders) == 0 {
			e.State = wire.LockUnlocked
		} else {
			e.State = e.Holders[0].State
		}
		e.expiredHolderPresent = anyExpiredLocked(e.Holders)

		var granted []*Waiter
		if changed && !e.expiredHolderPresent {
			granted = e.drainLocked()
		}
		e.mu.Unlock()

		p.notifyGranted(e, granted, notify)
		p.pruneIfIdle(e)
	}
}

func anyExpiredLocked(holders []*Holder) bool {
	for _, h := range holders {
		if h.ExpiredHolder {
			return true
		}
	}
	return false
}
