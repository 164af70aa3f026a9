package server

import (
	"fmt"
	"net"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/ltpx"
	"github.com/gulmcluster/gulmd/wire"
)

// LTPXServer is the client-facing lock-table proxy process (spec §4.8): it
// accepts client connections, forwards their LockRequestRecords through a
// ltpx.Proxy, and maintains one outgoing connection per partition to that
// partition's current master.
type LTPXServer struct {
	cfg      *configs.Config
	selfHash [32]byte
	authHook authz.Hook
	listener net.Listener
	done     chan struct{}
	proxy    *ltpx.Proxy
}

// NewLTPXServer builds an LTPXServer bound to address.
func NewLTPXServer(cfg *configs.Config, address string, authHook authz.Hook) (*LTPXServer, error) {
	if authHook == nil {
		authHook = authz.AllowAll{}
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &LTPXServer{
		cfg: cfg, selfHash: cfg.Hash(), authHook: authHook,
		listener: listener, done: make(chan struct{}), proxy: ltpx.New(cfg),
	}, nil
}

// Proxy exposes the routing table so membership-update handling (outside
// this file's scope) can call SetMaster/OnPartitionMasterLost as the
// cluster's elected partition masters change.
func (s *LTPXServer) Proxy() *ltpx.Proxy { return s.proxy }

// ConnectMaster dials address as the current master for partitionID,
// wiring its replies back into the proxy. The caller is responsible for
// learning address from membership updates (spec §4.8: "the new
// connection is not opened until the replacement master has been
// elected").
func (s *LTPXServer) ConnectMaster(partitionID int, address string) error {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return err
	}
	sess := NewSession(conn)
	login := &wire.LoginRecord{
		Version: 1, RoleClaim: wire.RoleClient, ClusterName: s.cfg.ClusterName,
		ConfigHash: s.selfHash, ServiceID: "ltpx", Partitions: uint32(s.cfg.LTPartitions),
	}
	if err := sess.Write(login); err != nil {
		sess.Close()
		return err
	}

	mc := &masterConn{sess: sess}
	s.proxy.SetMaster(partitionID, mc)

	go func() {
		for {
			op, msg, err := sess.ReadMessage()
			if err != nil {
				s.proxy.OnPartitionMasterLost(partitionID)
				return
			}
			if op != wire.OpLockReply {
				continue
			}
			s.proxy.OnReply(partitionID, msg.(*wire.LockReplyRecord))
		}
	}()
	return nil
}

// Subscribe opens a standing membership subscription to coreAddr and
// keeps the proxy's partition-master connections current as the cluster
// changes (spec §4.8). Partition ownership itself is not carried on the
// membership wire (spec §4.6's MembershipUpdateRecord only ever names a
// node, never a partition); this deployment assigns ownership the same
// deterministic way the server list fixes rank (spec §4.1), so ltpx
// derives it from cfg.Servers instead of waiting on a dedicated message.
// A LoggedIn delta (re)dials every partition that node owns; an Expired
// or LoggedOut delta synthesizes TryFailed for their outstanding requests
// via Proxy.OnPartitionMasterLost. It blocks until the connection drops
// or stop is closed.
func (s *LTPXServer) Subscribe(coreAddr string, stop <-chan struct{}) error {
	client := NewMembershipClient(s.cfg, "ltpx")
	return client.Run(coreAddr,
		func(entries []wire.MembershipListEntry) {
			for _, e := range entries {
				if e.State == wire.NodeLoggedIn {
					s.connectOwnedPartitions(e.Name, e.IP)
				}
			}
		},
		func(u wire.MembershipUpdateRecord) {
			switch u.NewState {
			case wire.NodeLoggedIn:
				s.connectOwnedPartitions(u.Subject, u.IP)
			case wire.NodeExpired, wire.NodeLoggedOut:
				s.disconnectOwnedPartitions(u.Subject)
			}
		},
		stop,
	)
}

func (s *LTPXServer) connectOwnedPartitions(name string, ip net.IP) {
	for p := 0; p < s.cfg.LTPartitions; p++ {
		if partitionMasterName(s.cfg, p) != name {
			continue
		}
		addr := fmt.Sprintf("%s:%d", ip, s.cfg.LTPort+p)
		if err := s.ConnectMaster(p, addr); err != nil {
			configs.Warnf("ltpx: connecting partition %d master %s: %v", p, addr, err)
		}
	}
}

func (s *LTPXServer) disconnectOwnedPartitions(name string) {
	for p := 0; p < s.cfg.LTPartitions; p++ {
		if partitionMasterName(s.cfg, p) == name {
			s.proxy.OnPartitionMasterLost(p)
		}
	}
}

// partitionMasterName derives the node that owns partition p: the
// server list's order is fixed (spec §4.1, "rank = index"), and this
// deployment hands out lt_own_partitions in that same rank order, so
// ownership is recoverable from cfg alone once membership says which
// server is currently logged in.
func partitionMasterName(cfg *configs.Config, p int) string {
	if len(cfg.Servers) == 0 {
		return ""
	}
	return cfg.Servers[p%len(cfg.Servers)]
}

// masterConn adapts a Session to ltpx.MasterConn.
type masterConn struct{ sess *Session }

func (m *masterConn) Send(req *wire.LockRequestRecord) error {
	return m.sess.Write(req)
}

// clientSink adapts a Session to ltpx.ClientSink.
type clientSink struct{ sess *Session }

func (c clientSink) Deliver(reply *wire.LockReplyRecord) error {
	return c.sess.Write(reply)
}

// Serve accepts client connections until Close is called.
func (s *LTPXServer) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *LTPXServer) Close() error {
	close(s.done)
	return s.listener.Close()
}

func (s *LTPXServer) handleConn(conn net.Conn) {
	sess := NewSession(conn)
	_, err := sess.Authenticate(s.cfg, s.selfHash, s.authHook)
	if err != nil {
		configs.Debugf("ltpx: handshake failed: %v", err)
		sess.Close()
		return
	}
	sink := clientSink{sess: sess}

	for {
		op, msg, err := sess.ReadMessage()
		if err != nil {
			return
		}
		if op != wire.OpLockRequest {
			continue
		}
		req := msg.(*wire.LockRequestRecord)
		s.proxy.Forward(req.Subid, req, sink)
	}
}
