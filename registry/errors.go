package registry

import "errors"

// ErrAuthRejected is returned by InsertOrUpdate when the
// authorization hook (or a conflicting existing IP) rejects the
// (name, ip) pair (spec §4.2, §7).
var ErrAuthRejected = errors.New("registry: auth rejected")

// ErrUnknownNode is returned by state-transition methods for a name with
// no existing entry.
var ErrUnknownNode = errors.New("registry: unknown node")
