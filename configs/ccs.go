package configs

// CCS is the cluster configuration repository lookup boundary (spec §6):
// string-valued, path-indexed lookups under "/cluster/gulm/...". A failed
// or absent CCS returns ("", false) and the caller falls back to defaults —
// CCS is always optional (design notes §9).
type CCS interface {
	Get(path string) (string, bool)
}

// NoneCCS is the "CCS absent" implementation: every lookup misses. It is
// the default when cmd/gulmd's -ccs flag is absent or "none" (the
// -use_ccs flag is parsed into Config.UseCCS but does not select a
// backend).
type NoneCCS struct{}

func (NoneCCS) Get(string) (string, bool) { return "", false }

// ccsKeys enumerates the predefined path set CCS is consulted for, mirrored
// onto Config fields by ApplyCCS.
const (
	ccsClusterName          = "/cluster/gulm/cluster_name"
	ccsServers              = "/cluster/gulm/servers"
	ccsHeartbeatRate        = "/cluster/gulm/heartbeat_rate"
	ccsAllowedMisses        = "/cluster/gulm/allowed_misses"
	ccsNewConnectionTimeout = "/cluster/gulm/new_connection_timeout"
	ccsMasterScanDelay      = "/cluster/gulm/master_scan_delay"
	ccsCorePort             = "/cluster/gulm/coreport"
	ccsLTPXPort             = "/cluster/gulm/ltpxport"
	ccsLTPort               = "/cluster/gulm/ltport"
	ccsFenceBin             = "/cluster/gulm/fence_bin"
	ccsLockDir              = "/cluster/gulm/lock_dir"
	ccsLTPartitions         = "/cluster/gulm/lt_partitions"
)

// ApplyCCS overlays whatever keys the repository answers onto cfg, the
// second of four precedence layers (defaults < CCS < env < flags). Missing
// keys leave the existing (default) value untouched.
func ApplyCCS(cfg *Config, repo CCS) {
	if v, ok := repo.Get(ccsClusterName); ok {
		cfg.ClusterName = v
	}
	if v, ok := repo.Get(ccsServers); ok {
		cfg.Servers = splitCSV(v)
	}
	if v, ok := repo.Get(ccsHeartbeatRate); ok {
		if us, ok := parseMicros(v); ok {
			cfg.HeartbeatRate = us
		}
	}
	if v, ok := repo.Get(ccsAllowedMisses); ok {
		if n, ok := parseInt(v); ok {
			cfg.AllowedMisses = n
		}
	}
	if v, ok := repo.Get(ccsNewConnectionTimeout); ok {
		if us, ok := parseMicros(v); ok {
			cfg.NewConnectionTimeout = us
		}
	}
	if v, ok := repo.Get(ccsMasterScanDelay); ok {
		if us, ok := parseMicros(v); ok {
			cfg.MasterScanDelay = us
		}
	}
	if v, ok := repo.Get(ccsCorePort); ok {
		if n, ok := parseInt(v); ok {
			cfg.CorePort = n
		}
	}
	if v, ok := repo.Get(ccsLTPXPort); ok {
		if n, ok := parseInt(v); ok {
			cfg.LTPXPort = n
		}
	}
	if v, ok := repo.Get(ccsLTPort); ok {
		if n, ok := parseInt(v); ok {
			cfg.LTPort = n
		}
	}
	if v, ok := repo.Get(ccsFenceBin); ok {
		cfg.FenceBin = v
	}
	if v, ok := repo.Get(ccsLockDir); ok {
		cfg.LockDir = v
	}
	if v, ok := repo.Get(ccsLTPartitions); ok {
		if n, ok := parseInt(v); ok {
			cfg.LTPartitions = n
		}
	}
}
