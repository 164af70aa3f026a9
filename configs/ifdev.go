package configs

import "net"

// resolveIfDev applies -ifdev (spec §4.10, IP resolution convenience used
// when a node should bind/announce through a specific interface instead of
// a literal IP): the first non-loopback address on that interface
// overrides cfg.IP. A no-op when IfDev is unset or already resolved to an
// explicit IP, and errors are swallowed — an unresolvable interface name
// falls back to whatever IP was already configured (Validate does not
// check the IP).
func resolveIfDev(c *Config) {
	if c.IfDev == "" {
		return
	}
	iface, err := net.InterfaceByName(c.IfDev)
	if err != nil {
		return
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		c.IP = ipNet.IP.String()
		return
	}
}
