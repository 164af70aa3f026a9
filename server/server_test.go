package server

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/registry"
	"github.com/gulmcluster/gulmd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCfg() *configs.Config {
	cfg := configs.Defaults()
	cfg.ClusterName = "test-cluster"
	cfg.Servers = []string{"a", "b", "c"}
	cfg.NewConnectionTimeout = time.Second
	return &cfg
}

func TestValidateHandshakeRejectsWrongCluster(t *testing.T) {
	cfg := testCfg()
	login := &wire.LoginRecord{ClusterName: "other", RoleClaim: wire.RoleClient}
	err := ValidateHandshake(login, cfg, cfg.Hash(), authz.AllowAll{})
	assert.ErrorIs(t, err, ErrBadCluster)
}

func TestValidateHandshakeRejectsBadConfigHashForServerPeer(t *testing.T) {
	cfg := testCfg()
	login := &wire.LoginRecord{ClusterName: cfg.ClusterName, RoleClaim: wire.RoleSlave, ConfigHash: [32]byte{9, 9}}
	err := ValidateHandshake(login, cfg, cfg.Hash(), authz.AllowAll{})
	assert.ErrorIs(t, err, ErrBadConfig)
}

func TestValidateHandshakeExemptsClientsFromConfigHash(t *testing.T) {
	cfg := testCfg()
	login := &wire.LoginRecord{ClusterName: cfg.ClusterName, RoleClaim: wire.RoleClient, ConfigHash: [32]byte{9, 9}}
	err := ValidateHandshake(login, cfg, cfg.Hash(), authz.AllowAll{})
	assert.NoError(t, err)
}

func TestValidateHandshakeRejectsAuthzFailure(t *testing.T) {
	cfg := testCfg()
	hook := authz.StaticMap{"a": net.ParseIP("10.0.0.1")}
	login := &wire.LoginRecord{
		ClusterName: cfg.ClusterName, RoleClaim: wire.RoleSlave,
		ConfigHash: cfg.Hash(), Name: "a", IP: net.ParseIP("10.0.0.9"),
	}
	err := ValidateHandshake(login, cfg, cfg.Hash(), hook)
	assert.ErrorIs(t, err, ErrAuthRejected)
}

func TestValidateHandshakeRejectsPartitionMismatch(t *testing.T) {
	cfg := testCfg()
	cfg.LTPartitions = 4
	login := &wire.LoginRecord{
		ClusterName: cfg.ClusterName, RoleClaim: wire.RoleClient,
		ConfigHash: cfg.Hash(), Partitions: 8,
	}
	err := ValidateHandshake(login, cfg, cfg.Hash(), authz.AllowAll{})
	assert.ErrorIs(t, err, ErrPartitionMismatch)
}

func TestSessionAuthenticateRoundTrip(t *testing.T) {
	cfg := testCfg()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	sess := NewSession(serverConn)

	errCh := make(chan error, 1)
	go func() {
		_, err := sess.Authenticate(cfg, cfg.Hash(), authz.AllowAll{})
		errCh <- err
	}()

	w := wire.NewWriter(clientConn)
	login := &wire.LoginRecord{
		ClusterName: cfg.ClusterName, RoleClaim: wire.RoleSlave, ConfigHash: cfg.Hash(),
		Name: "node-b", IP: net.ParseIP("10.0.0.2"),
	}
	require.NoError(t, login.Encode(w))
	require.NoError(t, w.Flush())

	require.NoError(t, <-errCh)
	assert.True(t, sess.Authenticated)
	assert.Equal(t, "node-b", sess.Name)
}

func TestSessionAuthenticateTimesOut(t *testing.T) {
	cfg := testCfg()
	cfg.NewConnectionTimeout = 10 * time.Millisecond
	_, serverConn := net.Pipe()
	defer serverConn.Close()

	sess := NewSession(serverConn)
	_, err := sess.Authenticate(cfg, cfg.Hash(), authz.AllowAll{})
	assert.Error(t, err)
}

func TestBuildDumpReflectsRegistry(t *testing.T) {
	reg := registry.New(authz.AllowAll{})
	_, err := reg.InsertOrUpdate("node-a", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleSlave)
	require.NoError(t, err)

	d := BuildDump("test-cluster", wire.RoleMaster, reg)
	assert.Equal(t, "test-cluster", d.ClusterName)
	assert.Equal(t, "Master", d.Role)
	require.Len(t, d.Nodes, 1)
	assert.Equal(t, "node-a", d.Nodes[0].Name)
	assert.Equal(t, "LoggedIn", d.Nodes[0].State)
}

func TestWriteDumpProducesPrettyJSONFile(t *testing.T) {
	dir := t.TempDir()
	d := Dump{ClusterName: "c1", Role: "Master", Nodes: []DumpNode{{Name: "a", State: "LoggedIn"}}}
	path, err := WriteDump(dir, d)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"cluster_name\": \"c1\"")
}
