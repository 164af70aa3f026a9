// Package authz is the external name<->IP authorization boundary (spec §6):
// "function (name, ip) -> bool gating registry inserts". It is the Go
// stand-in for the TCP-wrappers-style host authorization library the
// original system links against; this module never re-implements that
// library, only its call shape.
package authz

import "net"

// Hook decides whether name may legitimately claim ip. Implementations may
// consult DNS, a hosts-allow file, or any other external source; a Hook
// must not block the caller indefinitely (registry.InsertOrUpdate runs on
// the single owning task).
type Hook interface {
	Authorize(name string, ip net.IP) bool
}

// AllowAll is the default when no external authorization source is
// configured: every (name, ip) pair is accepted. Clusters that need the
// check wire in their own Hook (e.g. backed by the TCP-wrappers library).
type AllowAll struct{}

func (AllowAll) Authorize(string, net.IP) bool { return true }

// StaticMap authorizes a name only against a fixed, pre-registered IP —
// useful for tests and for small clusters where the server list's
// addresses are known in advance.
type StaticMap map[string]net.IP

func (m StaticMap) Authorize(name string, ip net.IP) bool {
	want, ok := m[name]
	if !ok {
		return false
	}
	return want.Equal(ip)
}
