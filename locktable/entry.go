package locktable

import (
	"bytes"

	lock "github.com/viney-shih/go-lock"

	"github.com/gulmcluster/gulmd/wire"
)

// Holder is one grant record. A caller that recurses into the same lock at
// a compatible mode gets its RecurseCount bumped instead of a second
// Holder (spec §4.7, "Recursion").
type Holder struct {
	Caller       Caller
	State        wire.LockState
	Flags        wire.HolderFlags
	RecurseCount int
	// ExpiredHolder marks a holder whose node has an Expired membership
	// entry but has not yet been Killed (spec §4.7, "Expiration handling").
	ExpiredHolder bool
}

// Waiter is one queued, not-yet-granted request.
type Waiter struct {
	Caller         Caller
	RequestedState wire.LockState
	Flags          wire.HolderFlags
	Action         wire.LockAction // ActionAcquire or ActionConvert
}

// Entry is the per-key lock state: current granted mode, holder set,
// waiter FIFO, and LVB. Its own mutex is a CAS mutex (go-lock), the same
// primitive the teacher guards in-memory lock state with, because a
// partition's lock operations are short, non-blocking critical sections
// exactly like the teacher's row-lock manager.
type Entry struct {
	mu lock.Mutex

	Key     []byte
	State   wire.LockState
	Holders []*Holder
	Waiters []*Waiter

	LVB     []byte
	lvbRefs int

	// expiredHolderPresent short-circuits new grants while any Holder is
	// ExpiredHolder: spec §4.7 blocks further grants until the
	// corresponding fence completes and a Killed update arrives.
	expiredHolderPresent bool
}

func newEntry(key []byte) *Entry {
	return &Entry{
		Key:   append([]byte(nil), key...),
		State: wire.LockUnlocked,
		mu:    lock.NewCASMutex(),
	}
}

func (e *Entry) idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Holders) == 0 && len(e.Waiters) == 0 && e.lvbRefs == 0 && len(e.LVB) == 0
}

// compatible reports whether a request for requested may be granted given
// the entry's current aggregate state, per the table in spec §4.7. The
// Shared-against-Exclusive relaxation ("granted only if the holder is the
// same caller and Exact is not set") is handled separately by the caller,
// since it needs the requesting Caller, not just the two states.
func compatible(current, requested wire.LockState) bool {
	switch requested {
	case wire.LockShared:
		return current == wire.LockUnlocked || current == wire.LockShared
	case wire.LockDeferred:
		return current == wire.LockUnlocked || current == wire.LockDeferred
	case wire.LockExclusive:
		return current == wire.LockUnlocked
	default:
		return false
	}
}

// soleHolderLocked reports whether caller is the only current holder.
// Must be called with e.mu held.
func (e *Entry) soleHolderLocked(caller Caller) bool {
	if len(e.Holders) != 1 {
		return false
	}
	return e.Holders[0].Caller == caller
}

// findHolderLocked returns the existing holder for caller, if any. Must be
// called with e.mu held.
func (e *Entry) findHolderLocked(caller Caller) *Holder {
	for _, h := range e.Holders {
		if h.Caller == caller {
			return h
		}
	}
	return nil
}

func (e *Entry) canGrantLocked(caller Caller, requested wire.LockState, flags wire.HolderFlags) bool {
	if e.expiredHolderPresent {
		return false
	}
	if compatible(e.State, requested) {
		return true
	}
	if requested == wire.LockShared && e.State == wire.LockExclusive &&
		e.soleHolderLocked(caller) && !flags.Has(wire.FlagExact) {
		return true
	}
	return false
}

func (e *Entry) grantLocked(caller Caller, requested wire.LockState, flags wire.HolderFlags) *Holder {
	if h := e.findHolderLocked(caller); h != nil && h.State == requested {
		h.RecurseCount++
		return h
	}
	h := &Holder{Caller: caller, State: requested, Flags: flags}
	e.Holders = append(e.Holders, h)
	e.State = requested
	return h
}

// dropHolderLocked removes one reference for caller; the Holder is only
// fully removed once its RecurseCount reaches zero (spec §4.7: "only the
// last release drops the holder").
func (e *Entry) dropHolderLocked(caller Caller) bool {
	for i, h := range e.Holders {
		if h.Caller != caller {
			continue
		}
		if h.RecurseCount > 0 {
			h.RecurseCount--
			return true
		}
		e.Holders = append(e.Holders[:i], e.Holders[i+1:]...)
		if len(e.Holders) == 0 {
			e.State = wire.LockUnlocked
		}
		return true
	}
	return false
}

// enqueueLocked appends a Waiter, honoring Priority (bypass the FIFO but
// still behind current holders — i.e. inserted at the front of the waiter
// queue, never ahead of an in-progress grant).
func (e *Entry) enqueueLocked(w *Waiter) {
	if w.Flags.Has(wire.FlagPriority) {
		e.Waiters = append([]*Waiter{w}, e.Waiters...)
		return
	}
	e.Waiters = append(e.Waiters, w)
}

// drainLocked grants waiters from the head of the FIFO as long as they
// remain grantable (spec §4.7, action subrequests "drain the waiter FIFO
// as long as the head is grantable"). Granted waiters are removed and
// returned so the caller can notify them outside the lock.
func (e *Entry) drainLocked() []*Waiter {
	var granted []*Waiter
	for len(e.Waiters) > 0 {
		w := e.Waiters[0]
		if !e.canGrantLocked(w.Caller, w.RequestedState, w.Flags) {
			break
		}
		e.grantLocked(w.Caller, w.RequestedState, w.Flags)
		e.Waiters = e.Waiters[1:]
		granted = append(granted, w)
	}
	return granted
}

// emitCallbacksLocked sends a demotion callback to every current holder
// whose granted mode is incompatible with what w needs (spec §4.7,
// "Callbacks"). Must be called with e.mu held; the Sink itself must not
// block.
func (e *Entry) emitCallbacksLocked(sink Sink, w *Waiter) {
	if sink == nil {
		return
	}
	for _, h := range e.Holders {
		if h.Caller == w.Caller {
			continue
		}
		sink.Callback(Callback{Holder: h.Caller, Key: append([]byte(nil), e.Key...), Need: w.RequestedState})
	}
}

// HoldLVB increments the LVB reference count and returns a copy of the
// current bytes (spec §4.7, "hold_lvb").
func (e *Entry) HoldLVB() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lvbRefs++
	return append([]byte(nil), e.LVB...)
}

// UnholdLVB decrements the LVB reference count (spec §4.7, "unhold_lvb").
func (e *Entry) UnholdLVB() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lvbRefs > 0 {
		e.lvbRefs--
	}
}

// SyncLVB writes data into the entry's LVB; valid only when caller holds
// the lock in Exclusive or Deferred (spec §4.7, "sync_lvb").
func (e *Entry) SyncLVB(caller Caller, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.findHolderLocked(caller)
	if h == nil || (h.State != wire.LockExclusive && h.State != wire.LockDeferred) {
		return ErrNotHolding
	}
	e.LVB = append([]byte(nil), data...)
	return nil
}

// lvbFor returns the LVB to attach to a reply: returned whenever a grant's
// state is incompatible with the previous holder's (spec §4.7, "so readers
// see fresh data"). prev is the state before this grant.
func lvbFor(e *Entry, prev wire.LockState, granted wire.LockState) []byte {
	if compatible(prev, granted) && prev != wire.LockUnlocked {
		return nil
	}
	if bytes.Equal(e.LVB, nil) {
		return nil
	}
	return append([]byte(nil), e.LVB...)
}
