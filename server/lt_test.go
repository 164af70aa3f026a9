package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/wire"
)

func TestLTServerGrantsAndReplies(t *testing.T) {
	cfg := testCfg()
	lt, err := NewLTServer(cfg, "127.0.0.1:0", authz.AllowAll{}, []int{0})
	require.NoError(t, err)
	go lt.Serve()
	defer lt.Close()

	conn, err := net.Dial("tcp", lt.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	sess := NewSession(conn)
	login := &wire.LoginRecord{
		Version: 1, RoleClaim: wire.RoleClient, ClusterName: cfg.ClusterName,
		ConfigHash: cfg.Hash(), ServiceID: "client-1",
	}
	require.NoError(t, sess.Write(login))

	req := &wire.LockRequestRecord{
		Action: wire.ActionAcquire, Subid: 1, Key: []byte("k1"),
		RequestedState: wire.LockExclusive, Flags: wire.FlagTry,
	}
	require.NoError(t, sess.Write(req))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	op, msg, err := sess.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, wire.OpLockReply, op)
	reply := msg.(*wire.LockReplyRecord)
	assert.Equal(t, wire.StatusGranted, reply.Status)
}

func TestLTServerRejectsBadCluster(t *testing.T) {
	cfg := testCfg()
	lt, err := NewLTServer(cfg, "127.0.0.1:0", authz.AllowAll{}, []int{0})
	require.NoError(t, err)
	go lt.Serve()
	defer lt.Close()

	conn, err := net.Dial("tcp", lt.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	sess := NewSession(conn)
	login := &wire.LoginRecord{Version: 1, RoleClaim: wire.RoleClient, ClusterName: "nope"}
	require.NoError(t, sess.Write(login))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}

func testCfgWithPartitions(n int) *configs.Config {
	cfg := testCfg()
	cfg.LTPartitions = n
	return cfg
}

func dialLTClient(t *testing.T, lt *LTServer, serviceID string) *Session {
	conn, err := net.Dial("tcp", lt.listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sess := NewSession(conn)
	login := &wire.LoginRecord{
		Version: 1, RoleClaim: wire.RoleClient, ClusterName: lt.cfg.ClusterName,
		ConfigHash: lt.cfg.Hash(), ServiceID: serviceID,
	}
	require.NoError(t, sess.Write(login))
	return sess
}

// TestLTServerSubscribeAppliesExpiredFromCore pins the LT process's
// membership subscription wiring (spec §4.7): a node force-expired at
// Core must reach Partition.OnExpired inside a running LTServer, not just
// locktable's own unit tests.
func TestLTServerSubscribeAppliesExpiredFromCore(t *testing.T) {
	core := newTestCore(t)
	dialPeer(t, core, "victim")
	require.Eventually(t, func() bool {
		return core.Reg.Get("victim") != nil
	}, time.Second, 10*time.Millisecond)

	cfg := testCfg()
	lt, err := NewLTServer(cfg, "127.0.0.1:0", authz.AllowAll{}, []int{0})
	require.NoError(t, err)
	go lt.Serve()
	defer lt.Close()

	stop := make(chan struct{})
	go lt.Subscribe(core.listener.Addr().String(), stop)
	defer close(stop)

	holder := dialLTClient(t, lt, "victim")
	require.NoError(t, holder.Write(&wire.LockRequestRecord{
		Action: wire.ActionAcquire, Subid: 1, Key: []byte("k1"),
		RequestedState: wire.LockExclusive,
	}))
	holder.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := holder.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, wire.StatusGranted, msg.(*wire.LockReplyRecord).Status)

	admin := dialSubscriber(t, core)
	require.NoError(t, admin.Write(&wire.AdminForceExpireRecord{Name: "victim"}))

	checker := dialLTClient(t, lt, "checker")
	require.Eventually(t, func() bool {
		require.NoError(t, checker.Write(&wire.LockRequestRecord{
			Action: wire.ActionAcquire, Subid: 2, Key: []byte("k1"),
			RequestedState: wire.LockExclusive, Flags: wire.FlagTry,
		}))
		checker.conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := checker.ReadMessage()
		if err != nil {
			return false
		}
		return msg.(*wire.LockReplyRecord).Status == wire.StatusTryFailed
	}, 2*time.Second, 50*time.Millisecond)
}
