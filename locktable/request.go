package locktable

import (
	"github.com/gulmcluster/gulmd/wire"
)

// Request applies one LockRequestRecord from caller against key and
// returns the immediate reply. Any waiters the request's side effects
// granted (via a release/convert/cancel/drop-all drain) are reported
// through notify so the caller (ltpx or the server session layer) can
// deliver their replies — the partition itself never holds a reference to
// a client connection.
func (p *Partition) Request(caller Caller, req *wire.LockRequestRecord, notify func(Caller, *wire.LockReplyRecord)) *wire.LockReplyRecord {
	switch req.Action {
	case wire.ActionAcquire:
		return p.acquire(caller, req, notify)
	case wire.ActionRelease:
		return p.release(caller, req, notify)
	case wire.ActionConvert:
		return p.convert(caller, req, notify)
	case wire.ActionCancel:
		return p.cancel(caller, req)
	case wire.ActionDropAll:
		return p.dropAllForCaller(caller, notify)
	default:
		return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, Status: wire.StatusDropped}
	}
}

func (p *Partition) acquire(caller Caller, req *wire.LockRequestRecord, notify func(Caller, *wire.LockReplyRecord)) *wire.LockReplyRecord {
	e := p.entryFor(req.Key, true)

	e.mu.Lock()
	prevState := e.State
	if e.canGrantLocked(caller, req.RequestedState, req.Flags) {
		e.grantLocked(caller, req.RequestedState, req.Flags)
		lvb := lvbFor(e, prevState, req.RequestedState)
		e.mu.Unlock()
		return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, State: req.RequestedState, Status: wire.StatusGranted, LVB: lvb}
	}

	if req.Flags.Has(wire.FlagTry) {
		cur := e.State
		e.mu.Unlock()
		return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, State: cur, Status: wire.StatusTryFailed}
	}

	w := &Waiter{Caller: caller, RequestedState: req.RequestedState, Flags: req.Flags, Action: wire.ActionAcquire}
	e.enqueueLocked(w)
	e.emitCallbacksLocked(p.sink, w)
	e.mu.Unlock()
	return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, State: e.State, Status: wire.StatusQueued}
}

func (p *Partition) release(caller Caller, req *wire.LockRequestRecord, notify func(Caller, *wire.LockReplyRecord)) *wire.LockReplyRecord {
	e := p.entryFor(req.Key, false)
	if e == nil {
		return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, Status: wire.StatusDropped}
	}

	e.mu.Lock()
	e.dropHolderLocked(caller)
	granted := e.drainLocked()
	e.mu.Unlock()

	p.notifyGranted(e, granted, notify)
	p.pruneIfIdle(e)
	return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, Status: wire.StatusGranted}
}

func (p *Partition) convert(caller Caller, req *wire.LockRequestRecord, notify func(Caller, *wire.LockReplyRecord)) *wire.LockReplyRecord {
	e := p.entryFor(req.Key, true)

	e.mu.Lock()
	h := e.findHolderLocked(caller)
	if h == nil {
		e.mu.Unlock()
		return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, Status: wire.StatusDropped}
	}

	prevHolderState := h.State
	// Temporarily treat the holder as released so compatibility is judged
	// against the rest of the holder set.
	e.Holders = removeHolder(e.Holders, h)
	if len(e.Holders) == 0 {
		e.State = wire.LockUnlocked
	} else {
		e.State = e.Holders[0].State
	}

	if e.canGrantLocked(caller, req.RequestedState, req.Flags) {
		h.State = req.RequestedState
		h.Flags = req.Flags
		e.Holders = append(e.Holders, h)
		e.State = req.RequestedState
		lvb := lvbFor(e, prevHolderState, req.RequestedState)
		e.mu.Unlock()
		return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, State: req.RequestedState, Status: wire.StatusGranted, LVB: lvb}
	}

	// Not grantable: put the holder back at its previous state and, absent
	// Try, queue the conversion.
	h.State = prevHolderState
	e.Holders = append(e.Holders, h)
	e.State = prevHolderState

	if req.Flags.Has(wire.FlagTry) {
		cur := e.State
		e.mu.Unlock()
		return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, State: cur, Status: wire.StatusTryFailed}
	}

	w := &Waiter{Caller: caller, RequestedState: req.RequestedState, Flags: req.Flags, Action: wire.ActionConvert}
	e.enqueueLocked(w)
	e.emitCallbacksLocked(p.sink, w)
	e.mu.Unlock()
	return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, State: e.State, Status: wire.StatusQueued}
}

func (p *Partition) cancel(caller Caller, req *wire.LockRequestRecord) *wire.LockReplyRecord {
	e := p.entryFor(req.Key, false)
	if e == nil {
		return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, Status: wire.StatusDropped}
	}

	e.mu.Lock()
	removed := false
	for i, w := range e.Waiters {
		if w.Caller == caller {
			e.Waiters = append(e.Waiters[:i], e.Waiters[i+1:]...)
			removed = true
			break
		}
	}
	e.mu.Unlock()
	p.pruneIfIdle(e)

	status := wire.StatusCancelled
	if !removed {
		status = wire.StatusDropped
	}
	return &wire.LockReplyRecord{Subid: req.Subid, Key: req.Key, Status: status}
}

// dropAllForCaller releases every holder and waiter entry belonging to
// caller across the whole partition (spec §4.7's "drop-all-for-caller"
// action subrequest).
func (p *Partition) dropAllForCaller(caller Caller, notify func(Caller, *wire.LockReplyRecord)) *wire.LockReplyRecord {
	p.mu.Lock()
	entries := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		changed := false
		for {
			if !e.dropHolderLocked(caller) {
				break
			}
			changed = true
		}
		for i := 0; i < len(e.Waiters); {
			if e.Waiters[i].Caller == caller {
				e.Waiters = append(e.Waiters[:i], e.Waiters[i+1:]...)
				changed = true
				continue
			}
			i++
		}
		var granted []*Waiter
		if changed {
			granted = e.drainLocked()
		}
		e.mu.Unlock()

		p.notifyGranted(e, granted, notify)
		p.pruneIfIdle(e)
	}

	return &wire.LockReplyRecord{Status: wire.StatusGranted}
}

func (p *Partition) notifyGranted(e *Entry, granted []*Waiter, notify func(Caller, *wire.LockReplyRecord)) {
	if notify == nil {
		return
	}
	for _, w := range granted {
		notify(w.Caller, &wire.LockReplyRecord{Key: e.Key, State: w.RequestedState, Status: wire.StatusGranted})
	}
}

func removeHolder(holders []*Holder, target *Holder) []*Holder {
	out := holders[:0]
	for _, h := range holders {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}
