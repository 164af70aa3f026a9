package configs

import (
	"flag"
	"strings"
	"time"
)

// FlagSet mirrors fc-server/main.go's init()-time flag.*Var block: every
// flag binds straight into a Config field via a small shim, so command-line
// values are the last (highest-precedence) layer applied in Load.
type FlagSet struct {
	fs *flag.FlagSet

	version bool
	help    bool

	name    string
	ip      string
	ifdev   string
	useCCS  bool
	servers string
	cluster string

	verbosity uint

	heartbeatRateUs        int64
	allowedMisses          int
	newConnectionTimeoutUs int64
	masterScanDelayUs      int64

	corePort int
	ltpxPort int
	ltPort   int

	fenceBin string
	runAs    string
	lockDir  string

	ltPartitions  int
	ltHighLocks   int
	ltDropReqRate int

	preallocLocks   int
	preallocHolders int
	preallocLkrqs   int
}

// NewFlagSet declares the full §6 command-line surface on fs.
func NewFlagSet(fs *flag.FlagSet, base Config) *FlagSet {
	f := &FlagSet{fs: fs}
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	fs.BoolVar(&f.help, "help", false, "print usage and exit")
	fs.StringVar(&f.name, "name", base.Name, "this node's name")
	fs.StringVar(&f.ip, "ip", base.IP, "this node's IP address")
	fs.StringVar(&f.ifdev, "ifdev", base.IfDev, "network interface to resolve the IP from")
	fs.BoolVar(&f.useCCS, "use_ccs", base.UseCCS, "consult the cluster configuration repository")
	fs.StringVar(&f.servers, "servers", strings.Join(base.Servers, ","), "comma-separated ordered server list")
	fs.StringVar(&f.cluster, "cluster_name", base.ClusterName, "cluster name")
	fs.UintVar(&f.verbosity, "verbosity", uint(base.Verbosity), "verbosity bitmap")
	fs.Int64Var(&f.heartbeatRateUs, "heartbeat_rate", base.HeartbeatRate.Microseconds(), "heartbeat rate, microseconds")
	fs.IntVar(&f.allowedMisses, "allowed_misses", base.AllowedMisses, "allowed missed heartbeats before expiry")
	fs.Int64Var(&f.newConnectionTimeoutUs, "new_connection_timeout", base.NewConnectionTimeout.Microseconds(), "unauthenticated connection timeout, microseconds")
	fs.Int64Var(&f.masterScanDelayUs, "master_scan_delay", base.MasterScanDelay.Microseconds(), "delay between arbitration probes, microseconds")
	fs.IntVar(&f.corePort, "coreport", base.CorePort, "core service TCP port")
	fs.IntVar(&f.ltpxPort, "ltpxport", base.LTPXPort, "ltpx TCP port")
	fs.IntVar(&f.ltPort, "ltport", base.LTPort, "LT base TCP port")
	fs.StringVar(&f.fenceBin, "fence_bin", base.FenceBin, "path to the external fence-execution binary")
	fs.StringVar(&f.runAs, "run_as", base.RunAs, "user to drop privileges to")
	fs.StringVar(&f.lockDir, "lock_dir", base.LockDir, "directory for PID files")
	fs.IntVar(&f.ltPartitions, "lt_partitions", base.LTPartitions, "number of lock-table partitions (1-256)")
	fs.IntVar(&f.ltHighLocks, "lt_high_locks", base.LTHighLocks, "soft limit on lock count")
	fs.IntVar(&f.ltDropReqRate, "lt_drop_req_rate", base.LTDropReqRate, "LT synthetic request drop rate (testing)")
	fs.IntVar(&f.preallocLocks, "prealloc_locks", base.PreallocLocks, "pre-allocated lock pool size")
	fs.IntVar(&f.preallocHolders, "prealloc_holders", base.PreallocHolders, "pre-allocated holder pool size")
	fs.IntVar(&f.preallocLkrqs, "prealloc_lkrqs", base.PreallocLkrqs, "pre-allocated lock-request pool size")
	return f
}

// WantsVersion/WantsHelp report whether the user asked for --version/--help.
// Load does not return the FlagSet, so cmd/gulmd never consults them: both
// flags are accepted and otherwise have no effect.
func (f *FlagSet) WantsVersion() bool { return f.version }
func (f *FlagSet) WantsHelp() bool    { return f.help }

// Apply overlays the parsed flag values onto cfg, the highest-precedence
// layer.
func (f *FlagSet) Apply(cfg *Config) {
	cfg.Name = f.name
	cfg.IP = f.ip
	cfg.IfDev = f.ifdev
	cfg.UseCCS = f.useCCS
	if f.servers != "" {
		cfg.Servers = splitCSV(f.servers)
	}
	cfg.ClusterName = f.cluster
	cfg.Verbosity = uint32(f.verbosity)
	cfg.HeartbeatRate = time.Duration(f.heartbeatRateUs) * time.Microsecond
	cfg.AllowedMisses = f.allowedMisses
	cfg.NewConnectionTimeout = time.Duration(f.newConnectionTimeoutUs) * time.Microsecond
	cfg.MasterScanDelay = time.Duration(f.masterScanDelayUs) * time.Microsecond
	cfg.CorePort = f.corePort
	cfg.LTPXPort = f.ltpxPort
	cfg.LTPort = f.ltPort
	cfg.FenceBin = f.fenceBin
	cfg.RunAs = f.runAs
	cfg.LockDir = f.lockDir
	cfg.LTPartitions = f.ltPartitions
	cfg.LTHighLocks = f.ltHighLocks
	cfg.LTDropReqRate = f.ltDropReqRate
	cfg.PreallocLocks = f.preallocLocks
	cfg.PreallocHolders = f.preallocHolders
	cfg.PreallocLkrqs = f.preallocLkrqs
}
