package configs

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnv overlays GULMD_* environment variables onto cfg, the third of
// four precedence layers (defaults < CCS < env < flags).
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("GULMD_NAME"); ok {
		cfg.Name = v
	}
	if v, ok := os.LookupEnv("GULMD_SERVERS"); ok {
		cfg.Servers = splitCSV(v)
	}
	if v, ok := os.LookupEnv("GULMD_VERBOSITY"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Verbosity = uint32(n)
		}
	}
	if v, ok := os.LookupEnv("GULMD_HEARTBEAT_RATE"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.HeartbeatRate = time.Duration(n) * time.Microsecond
		}
	}
	if v, ok := os.LookupEnv("GULMD_ALLOWED_MISSES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AllowedMisses = n
		}
	}
	if v, ok := os.LookupEnv("GULMD_NEW_CONNECTION_TIMEOUT"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.NewConnectionTimeout = time.Duration(n) * time.Microsecond
		}
	}
	if v, ok := os.LookupEnv("GULMD_MASTER_SCAN_DELAY"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MasterScanDelay = time.Duration(n) * time.Microsecond
		}
	}
	if v, ok := os.LookupEnv("GULMD_COREPORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CorePort = n
		}
	}
	if v, ok := os.LookupEnv("GULMD_LTPXPORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LTPXPort = n
		}
	}
	if v, ok := os.LookupEnv("GULMD_LTPORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LTPort = n
		}
	}
	if v, ok := os.LookupEnv("GULMD_FENCE_BIN"); ok {
		cfg.FenceBin = v
	}
	if v, ok := os.LookupEnv("GULMD_RUN_AS"); ok {
		cfg.RunAs = v
	}
	if v, ok := os.LookupEnv("GULMD_LOCK_DIR"); ok {
		cfg.LockDir = v
	}
	if v, ok := os.LookupEnv("GULMD_LT_PARTITIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LTPartitions = n
		}
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
