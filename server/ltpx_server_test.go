package server

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/wire"
)

func TestLTPXServerRoutesToMasterAndBack(t *testing.T) {
	cfg := testCfgWithPartitions(1)

	lt, err := NewLTServer(cfg, "127.0.0.1:0", authz.AllowAll{}, []int{0})
	require.NoError(t, err)
	go lt.Serve()
	defer lt.Close()

	px, err := NewLTPXServer(cfg, "127.0.0.1:0", authz.AllowAll{})
	require.NoError(t, err)
	go px.Serve()
	defer px.Close()

	require.NoError(t, px.ConnectMaster(0, lt.listener.Addr().String()))
	time.Sleep(20 * time.Millisecond)

	conn, err := net.Dial("tcp", px.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	sess := NewSession(conn)
	login := &wire.LoginRecord{
		Version: 1, RoleClaim: wire.RoleClient, ClusterName: cfg.ClusterName,
		ConfigHash: cfg.Hash(), ServiceID: "client-1",
	}
	require.NoError(t, sess.Write(login))

	req := &wire.LockRequestRecord{
		Action: wire.ActionAcquire, Subid: 42, Key: []byte("k1"),
		RequestedState: wire.LockExclusive, Flags: wire.FlagTry,
	}
	require.NoError(t, sess.Write(req))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	op, msg, err := sess.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, wire.OpLockReply, op)
	reply := msg.(*wire.LockReplyRecord)
	assert.Equal(t, wire.StatusGranted, reply.Status)
	assert.Equal(t, uint32(42), reply.Subid)
}

func TestLTPXServerNoMasterDropsTryRequest(t *testing.T) {
	cfg := testCfgWithPartitions(1)
	px, err := NewLTPXServer(cfg, "127.0.0.1:0", authz.AllowAll{})
	require.NoError(t, err)
	go px.Serve()
	defer px.Close()

	conn, err := net.Dial("tcp", px.listener.Addr().String())
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
	_, msg, err := sess.ReadMessage()
	require.NoError(t, err)
	reply := msg.(*wire.LockReplyRecord)
	assert.Equal(t, wire.StatusNoMaster, reply.Status)
}

// TestLTPXServerSubscribeConnectsDerivedMaster pins the ltpx process's
// membership subscription wiring (spec §4.8): ltpx must learn a
// partition's master from Core's membership stream and dial it itself,
// not only answer StatusNoMaster forever as it would with nothing
// driving ConnectMaster.
func TestLTPXServerSubscribeConnectsDerivedMaster(t *testing.T) {
	cfg := testCfgWithPartitions(1)
	cfg.Servers = []string{"node-a"}

	lt, err := NewLTServer(cfg, "127.0.0.1:0", authz.AllowAll{}, []int{0})
	require.NoError(t, err)
	go lt.Serve()
	defer lt.Close()

	_, portStr, err := net.SplitHostPort(lt.listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	cfg.LTPort = port

	core, err := New(cfg, "127.0.0.1:0", authz.AllowAll{}, nil)
	require.NoError(t, err)
	go core.Serve()
	defer core.Close()

	// Register "node-a" (partition 0's deterministic owner, cfg.Servers[0])
	// at the address the LT listener above is actually bound to.
	peerConn, err := net.Dial("tcp", core.listener.Addr().String())
	require.NoError(t, err)
	defer peerConn.Close()
	peerSess := NewSession(peerConn)
	require.NoError(t, peerSess.Write(&wire.LoginRecord{
		Version: 1, RoleClaim: wire.RoleSlave, ClusterName: cfg.ClusterName,
		ConfigHash: core.selfHash, Name: "node-a", IP: net.ParseIP("127.0.0.1"),
	}))
	peerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = peerSess.ReadMessage()
	require.NoError(t, err)

	px, err := NewLTPXServer(cfg, "127.0.0.1:0", authz.AllowAll{})
	require.NoError(t, err)
	go px.Serve()
	defer px.Close()

	stop := make(chan struct{})
	go px.Subscribe(core.listener.Addr().String(), stop)
	defer close(stop)

	clientConn, err := net.Dial("tcp", px.listener.Addr().String())
	require.NoError(t, err)
	defer clientConn.Close()
	csess := NewSession(clientConn)
	require.NoError(t, csess.Write(&wire.LoginRecord{
		Version: 1, RoleClaim: wire.RoleClient, ClusterName: cfg.ClusterName,
		ConfigHash: cfg.Hash(), ServiceID: "client-1",
	}))

	require.Eventually(t, func() bool {
		if err := csess.Write(&wire.LockRequestRecord{
			Action: wire.ActionAcquire, Subid: 7, Key: []byte("k1"),
			RequestedState: wire.LockExclusive, Flags: wire.FlagTry,
		}); err != nil {
			return false
		}
		clientConn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := csess.ReadMessage()
		if err != nil {
			return false
		}
		return msg.(*wire.LockReplyRecord).Status == wire.StatusGranted
	}, 3*time.Second, 50*time.Millisecond)
}
