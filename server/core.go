package server

import (
	"net"
	"time"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/election"
	"github.com/gulmcluster/gulmd/fence"
	"github.com/gulmcluster/gulmd/heartbeat"
	"github.com/gulmcluster/gulmd/membership"
	"github.com/gulmcluster/gulmd/registry"
	"github.com/gulmcluster/gulmd/wire"
)

// Core is the cluster membership/fencing process: registry + heartbeat +
// fence + election + membership replication, wired together and served
// over one TCP listener, the same shape as the teacher's coordinator
// Commu but carrying gulmd's own message set.
type Core struct {
	cfg       *configs.Config
	selfHash  [32]byte
	authHook  authz.Hook
	listener  net.Listener
	done      chan struct{}

	Reg        *registry.Registry
	Machine    *election.Machine
	Heartbeats *heartbeat.Engine
	Fences     *fence.Dispatcher
	Replicator *membership.Replicator
}

// New builds an unstarted Core bound to address. The caller still needs to
// call Bootstrap (single-server fast path) or drive the Machine through
// MasterUnreachable/Promote/Demote from its own probing loop before
// Serve.
func New(cfg *configs.Config, address string, authHook authz.Hook, log *membership.Backlog) (*Core, error) {
	if authHook == nil {
		authHook = authz.AllowAll{}
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	reg := registry.New(authHook)
	machine := election.New(cfg, cfg.Name)
	replicator := membership.NewReplicator(log)

	c := &Core{
		cfg:        cfg,
		selfHash:   cfg.Hash(),
		authHook:   authHook,
		listener:   listener,
		done:       make(chan struct{}),
		Reg:        reg,
		Machine:    machine,
		Replicator: replicator,
	}
	c.Fences = fence.New(cfg, machine, c)
	c.Heartbeats = heartbeat.New(reg, cfg, c, c.Fences)
	return c, nil
}

// Hash returns this process's own config hash, for callers (election
// probing) that need it outside the package.
func (c *Core) Hash() [32]byte { return c.selfHash }

// AnnounceExpired satisfies heartbeat.Announcer: broadcast Expired before
// the connection is closed (spec §4.3's required ordering).
func (c *Core) AnnounceExpired(name string) {
	n := c.Reg.Get(name)
	var ip net.IP
	if n != nil {
		ip = n.IP
	}
	c.Replicator.Broadcast(membership.Update{Subject: name, NewState: wire.NodeExpired, IP: ip})
}

// AnnounceKilled satisfies fence.Announcer.
func (c *Core) AnnounceKilled(name string) {
	n := c.Reg.Get(name)
	var ip net.IP
	if n != nil {
		ip = n.IP
	}
	_ = c.Reg.MarkLogout(name)
	c.Replicator.Broadcast(membership.Update{Subject: name, NewState: wire.NodeLoggedOut, IP: ip})
}

// Serve accepts connections until Close is called, handing each to
// handleConn on its own goroutine — the teacher's Commu.Run shape.
func (c *Core) Serve() error {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
				return err
			}
		}
		go c.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (c *Core) Close() error {
	close(c.done)
	return c.listener.Close()
}

func (c *Core) handleConn(conn net.Conn) {
	sess := NewSession(conn)
	login, err := sess.Authenticate(c.cfg, c.selfHash, c.authHook)
	if err != nil {
		configs.Debugf("server: handshake failed: %v", err)
		sess.Close()
		return
	}

	if registry.IsServerRole(login.RoleClaim) {
		n, err := c.Reg.InsertOrUpdate(login.Name, login.IP, wire.NodeLoggedIn, login.RoleClaim)
		if err != nil {
			configs.Debugf("server: registry rejected %s: %v", login.Name, err)
			sess.Close()
			return
		}
		n.Conn = sess
		c.Reg.Touch(login.Name, uint64(time.Now().UnixMicro()), 0)

		// Ack with our own identity so a probing peer (election.Dialer) can
		// read our claimed role and config hash back off the same
		// connection it opened to send its own login.
		ack := &wire.LoginRecord{
			Version: 1, RoleClaim: c.Machine.Role(), ClusterName: c.cfg.ClusterName,
			ConfigHash: c.selfHash, Name: c.cfg.Name,
		}
		if err := sess.Write(ack); err != nil {
			sess.Close()
			return
		}
	}

	if login.Subscribe {
		c.Replicator.Subscribe(sess.AsSubscriber())

		var entries []wire.MembershipListEntry
		c.Reg.IterateByName(func(n *registry.Node) {
			entries = append(entries, wire.MembershipListEntry{Name: n.Name, State: n.State, IP: n.IP})
		})
		if err := sess.Write(&wire.MembershipListReplyRecord{Entries: entries}); err != nil {
			sess.Close()
			return
		}
	}

	for {
		op, msg, err := sess.ReadMessage()
		if err != nil {
			break
		}
		switch op {
		case wire.OpHeartbeatRequest:
			hb := msg.(*wire.HeartbeatRequestRecord)
			now := uint64(time.Now().UnixMicro())
			c.Reg.Touch(login.Name, now, now-hb.TimestampMicros)
			_ = sess.Write(&wire.HeartbeatReplyRecord{TimestampMicros: now})
		case wire.OpLogout:
			ip := login.IP
			_ = c.Reg.MarkLogout(login.Name)
			c.Replicator.Broadcast(membership.Update{Subject: login.Name, NewState: wire.NodeLoggedOut, IP: ip})
		case wire.OpAdminForceExpire:
			req := msg.(*wire.AdminForceExpireRecord)
			c.Heartbeats.ForceExpire(req.Name)
		}
	}

	if login.Subscribe {
		c.Replicator.Unsubscribe(sess.subscriberName())
	}
}
