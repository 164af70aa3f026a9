package heartbeat

import (
	"net"
	"testing"
	"time"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/registry"
	"github.com/gulmcluster/gulmd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now uint64 }

func (c *fakeClock) NowMicros() uint64 { return c.now }

type recordingAnnouncer struct{ names []string }

func (a *recordingAnnouncer) AnnounceExpired(name string) { a.names = append(a.names, name) }

type recordingFencer struct{ names []string }

func (f *recordingFencer) QueueForFencing(name string) { f.names = append(f.names, name) }

func newTestEngine(t *testing.T, cfg *configs.Config) (*Engine, *registry.Registry, *fakeClock, *recordingAnnouncer, *recordingFencer) {
	t.Helper()
	reg := registry.New(authz.AllowAll{})
	clock := &fakeClock{now: 1_000_000}
	ann := &recordingAnnouncer{}
	fen := &recordingFencer{}
	e := New(reg, cfg, ann, fen)
	e.clock = clock
	return e, reg, clock, ann, fen
}

func baseCfg() *configs.Config {
	cfg := configs.Defaults()
	cfg.Servers = []string{"a", "b", "c"}
	cfg.HeartbeatRate = time.Second
	cfg.AllowedMisses = 2
	return &cfg
}

func TestSweepBumpsMissedBeatsPastDeadline(t *testing.T) {
	cfg := baseCfg()
	e, reg, clock, _, _ := newTestEngine(t, cfg)

	_, err := reg.InsertOrUpdate("a", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)
	reg.Touch("a", clock.now, 0)

	clock.now += uint64(cfg.HeartbeatRate.Microseconds()) + 1
	e.Sweep()

	n := reg.Get("a")
	assert.Equal(t, 1, n.MissedBeats)
	assert.Equal(t, wire.NodeLoggedIn, n.State)
}

func TestSweepExpiresAfterAllowedMisses(t *testing.T) {
	cfg := baseCfg()
	e, reg, clock, ann, fen := newTestEngine(t, cfg)

	_, err := reg.InsertOrUpdate("a", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)
	reg.Touch("a", clock.now, 0)

	step := uint64(cfg.HeartbeatRate.Microseconds()) + 1
	for i := 0; i < cfg.AllowedMisses+1; i++ {
		clock.now += step
		e.Sweep()
	}

	n := reg.Get("a")
	assert.Equal(t, wire.NodeExpired, n.State)
	assert.Equal(t, []string{"a"}, ann.names)
	assert.Equal(t, []string{"a"}, fen.names)
}

func TestSweepStopsAtFirstNodeUnderDeadline(t *testing.T) {
	cfg := baseCfg()
	e, reg, clock, _, _ := newTestEngine(t, cfg)

	_, err := reg.InsertOrUpdate("stale", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)
	reg.Touch("stale", 0, 0)

	_, err = reg.InsertOrUpdate("fresh", net.ParseIP("10.0.0.2"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)
	reg.Touch("fresh", clock.now, 0)

	clock.now += uint64(cfg.HeartbeatRate.Microseconds()) / 2
	e.Sweep()

	assert.Equal(t, 1, reg.Get("stale").MissedBeats)
	assert.Equal(t, 0, reg.Get("fresh").MissedBeats)
}

func TestBeatAllOnceResetsEveryTrackedNode(t *testing.T) {
	cfg := baseCfg()
	e, reg, clock, _, _ := newTestEngine(t, cfg)

	_, err := reg.InsertOrUpdate("a", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)
	reg.Get("a").MissedBeats = 5

	clock.now += 10_000
	e.BeatAllOnce()

	n := reg.Get("a")
	assert.Equal(t, 0, n.MissedBeats)
	assert.Equal(t, clock.now, n.LastBeatMicros)
}

func TestDieIfExpired(t *testing.T) {
	reg := registry.New(authz.AllowAll{})
	_, err := reg.InsertOrUpdate("a", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)
	assert.False(t, DieIfExpired(reg, "a"))

	require.NoError(t, reg.MarkExpired("a"))
	assert.True(t, DieIfExpired(reg, "a"))

	assert.False(t, DieIfExpired(reg, "ghost"))
}
