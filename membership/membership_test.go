package membership

import (
	"errors"
	"net"
	"testing"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/registry"
	"github.com/gulmcluster/gulmd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSub struct {
	name     string
	received []Update
	fail     bool
}

func (s *recordingSub) Name() string { return s.name }
func (s *recordingSub) Send(u Update) error {
	if s.fail {
		return errors.New("send failed")
	}
	s.received = append(s.received, u)
	return nil
}

func TestBroadcastFansOutToAllSubscribers(t *testing.T) {
	r := NewReplicator(nil)
	a := &recordingSub{name: "lt-0"}
	b := &recordingSub{name: "ltpx"}
	r.Subscribe(a)
	r.Subscribe(b)

	upd := Update{Subject: "node-a", NewState: wire.NodeExpired, IP: net.ParseIP("10.0.0.1")}
	r.Broadcast(upd)

	require.Len(t, a.received, 1)
	require.Len(t, b.received, 1)
	assert.Equal(t, upd, a.received[0])
}

func TestBroadcastDropsFailingSubscriber(t *testing.T) {
	r := NewReplicator(nil)
	bad := &recordingSub{name: "flaky", fail: true}
	good := &recordingSub{name: "stable"}
	r.Subscribe(bad)
	r.Subscribe(good)

	r.Broadcast(Update{Subject: "a", NewState: wire.NodeLoggedOut})

	r.mu.Lock()
	_, stillSubscribed := r.subs["flaky"]
	r.mu.Unlock()
	assert.False(t, stillSubscribed)
	assert.Len(t, good.received, 1)
}

func TestDirtySweepAnnouncesLoggedOutAndExpired(t *testing.T) {
	reg := registry.New(authz.AllowAll{})
	_, err := reg.InsertOrUpdate("still-in", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)
	_, err = reg.InsertOrUpdate("logged-out", net.ParseIP("10.0.0.2"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)
	require.NoError(t, reg.MarkLogout("logged-out"))
	_, err = reg.InsertOrUpdate("expired", net.ParseIP("10.0.0.3"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)
	require.NoError(t, reg.MarkExpired("expired"))

	r := NewReplicator(nil)
	sub := &recordingSub{name: "lt-0"}
	r.Subscribe(sub)

	r.DirtySweep(reg)

	var subjects []string
	for _, u := range sub.received {
		subjects = append(subjects, u.Subject)
	}
	assert.ElementsMatch(t, []string{"logged-out", "expired"}, subjects)
}

func TestBacklogNilIsNoOp(t *testing.T) {
	var b *Backlog
	b.Append(Update{Subject: "x"})
	out, err := b.Replay()
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.NoError(t, b.Close())
}

func TestBacklogAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBacklog(dir)
	require.NoError(t, err)
	defer b.Close()

	b.Append(Update{Subject: "a", NewState: wire.NodeLoggedIn, IP: net.ParseIP("10.0.0.1")})
	b.Append(Update{Subject: "b", NewState: wire.NodeExpired, IP: net.ParseIP("10.0.0.2")})

	out, err := b.Replay()
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Subject)
	assert.Equal(t, "b", out[1].Subject)
	assert.Equal(t, wire.NodeExpired, out[1].NewState)
}
