// Package configs assembles the runtime configuration from hard-coded
// defaults, the cluster repository (CCS), the environment, and the command
// line, in that order of precedence (spec §4.10). It also computes the
// stable cluster-wide config hash used to reject incompatible peers.
package configs

import "time"

// Config is the fully resolved, validated runtime configuration for one
// gulmd process (core, LT worker, or ltpx).
type Config struct {
	ClusterName string
	Servers     []string // ordered; rank = index

	Name  string // this process's node name (server peer) or service id
	IP    string
	IfDev string

	HeartbeatRate        time.Duration
	AllowedMisses        int
	NewConnectionTimeout time.Duration
	MasterScanDelay      time.Duration

	CorePort int
	LTPort   int // base port; partition k listens on LTPort+k
	LTPXPort int

	LTPartitions  int
	LTHighLocks   int
	LTDropReqRate int

	PreallocLocks   int
	PreallocHolders int
	PreallocLkrqs   int

	FenceBin string
	RunAs    string
	LockDir  string

	Verbosity uint32

	UseCCS bool

	// PersistMembershipLog gates an optional durable backlog of the
	// Master's outgoing membership deltas; nothing replays it into the
	// dirty sweep on restart (spec §4.6 is silent on persistence; this is a SPEC_FULL
	// enrichment, not a requirement).
	PersistMembershipLog bool
	MembershipLogDir     string
}

// Quorum is the minimum number of mutually-visible configured servers
// required to make a binding election decision: floor(N/2)+1.
func (c *Config) Quorum() int {
	return len(c.Servers)/2 + 1
}

// Rank returns the position of name in the ordered server list (lower is
// higher rank) and whether name is a configured server at all.
func (c *Config) Rank(name string) (int, bool) {
	for i, s := range c.Servers {
		if s == name {
			return i, true
		}
	}
	return -1, false
}

// Defaults returns the hard-coded base layer, the lowest-precedence input
// to Load.
func Defaults() Config {
	return Config{
		ClusterName:          "gulm_cluster",
		HeartbeatRate:        15 * time.Second,
		AllowedMisses:        2,
		NewConnectionTimeout: 15 * time.Second,
		MasterScanDelay:      time.Second,
		CorePort:             40040,
		LTPort:               41040,
		LTPXPort:             40042,
		LTPartitions:         1,
		LTHighLocks:          10000,
		LTDropReqRate:        0,
		PreallocLocks:        1000,
		PreallocHolders:      2000,
		PreallocLkrqs:        100,
		FenceBin:             "/sbin/fence_node",
		RunAs:                "root",
		LockDir:              "/var/run/gulm",
		Verbosity:            0,
		UseCCS:               false,
		PersistMembershipLog: false,
		MembershipLogDir:     "/var/lib/gulm/membership-log",
	}
}

const minHeartbeatRate = 75 * time.Millisecond

// Validate clamps and rejects out-of-range fields per spec §4.10/§8. It
// mutates c in place (clamping) and returns ErrConfigInvalid for conditions
// that cannot be clamped (bad server count).
func (c *Config) Validate() error {
	switch len(c.Servers) {
	case 1, 3, 4, 5:
		// ok
	default:
		return ErrConfigInvalid
	}
	if c.HeartbeatRate < minHeartbeatRate {
		c.HeartbeatRate = minHeartbeatRate
	}
	if c.AllowedMisses < 1 {
		c.AllowedMisses = 1
	}
	if c.LTPartitions <= 0 {
		c.LTPartitions = 1
	} else if c.LTPartitions > 256 {
		c.LTPartitions = 256
	}
	if c.ClusterName == "" {
		return ErrConfigInvalid
	}
	return nil
}
