package configs

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayering(t *testing.T) {
	t.Setenv("GULMD_SERVERS", "a,b,c")
	t.Setenv("GULMD_HEARTBEAT_RATE", "200000")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"-name=a", "-coreport=50040"}, NoneCCS{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, cfg.Servers)
	assert.Equal(t, 200*time.Millisecond, cfg.HeartbeatRate)
	assert.Equal(t, "a", cfg.Name)
	assert.Equal(t, 50040, cfg.CorePort)
	assert.Equal(t, 2, cfg.Quorum())
}

func TestValidateRejectsBadServerCount(t *testing.T) {
	cfg := Defaults()
	cfg.Servers = []string{"a", "b"}
	assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestValidateClampsHeartbeatRate(t *testing.T) {
	cfg := Defaults()
	cfg.Servers = []string{"a"}
	cfg.HeartbeatRate = 10 * time.Millisecond
	require.NoError(t, cfg.Validate())
	assert.Equal(t, minHeartbeatRate, cfg.HeartbeatRate)
}

func TestValidateClampsPartitionCount(t *testing.T) {
	cfg := Defaults()
	cfg.Servers = []string{"a"}
	cfg.LTPartitions = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.LTPartitions)

	cfg.LTPartitions = 9000
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 256, cfg.LTPartitions)
}

func TestHashStableAcrossEquivalentConfigs(t *testing.T) {
	a := Defaults()
	a.Servers = []string{"a", "b", "c"}
	b := a
	b.Servers = append([]string(nil), a.Servers...)

	assert.Equal(t, a.Hash(), b.Hash())

	b.FenceBin = "/different/path"
	assert.Equal(t, a.Hash(), b.Hash(), "fence_bin must be excluded from the hash")

	b.HeartbeatRate = a.HeartbeatRate + time.Second
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestFileCCSPathMapping(t *testing.T) {
	assert.Equal(t, "cluster.gulm.heartbeat_rate", toPropertyKey("/cluster/gulm/heartbeat_rate"))
}
