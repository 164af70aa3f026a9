package benchmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gulmcluster/gulmd/locktable"
)

type nopSink struct{}

func (nopSink) Callback(locktable.Callback) {}

func TestLockBenchRunProducesSamples(t *testing.T) {
	cfg := LockBenchConfig{
		Partitions:   2,
		NumKeys:      64,
		Clients:      4,
		Distribution: Zipfian,
		ZipfianSkew:  0.99,
		RunFor:       50 * time.Millisecond,
	}
	b := NewLockBench(cfg, nopSink{})
	b.Run()
	assert.Greater(t, b.Stat().Count(), 0)
}

func TestLockBenchUniformDistribution(t *testing.T) {
	cfg := DefaultLockBenchConfig()
	cfg.Distribution = Uniform
	cfg.Clients = 2
	cfg.RunFor = 20 * time.Millisecond
	b := NewLockBench(cfg, nopSink{})
	b.Run()
	assert.Greater(t, b.Stat().Count(), 0)
}

func TestStatLogReportsPercentiles(t *testing.T) {
	s := NewStat()
	s.Append(Sample{Latency: 1 * time.Millisecond, Granted: true})
	s.Append(Sample{Latency: 2 * time.Millisecond, Granted: false})
	require.Equal(t, 2, s.Count())
	line := s.Log()
	assert.Contains(t, line, "req_cnt:2")
	assert.Contains(t, line, "failed:1")
}

func TestStatClearResetsWindow(t *testing.T) {
	s := NewStat()
	s.Append(Sample{Latency: time.Millisecond, Granted: true})
	s.Clear()
	assert.Equal(t, 0, s.Count())
}
