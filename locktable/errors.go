package locktable

import "errors"

// ErrNotHolding is returned by SyncLVB when the caller does not currently
// hold the lock in a mode the LVB write is valid for.
var ErrNotHolding = errors.New("locktable: caller does not hold lock in Exclusive or Deferred")

// ErrUnknownWaiter is returned by Cancel when no matching queued waiter
// exists for the given caller.
var ErrUnknownWaiter = errors.New("locktable: no queued waiter for caller")
