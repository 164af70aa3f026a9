package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/election"
	"github.com/gulmcluster/gulmd/wire"
)

// ProbeDialer is the production election.Dialer: it dials a configured
// peer's core port, sends this node's own login, and reads the peer's
// identity back off the ack Core.handleConn writes for a server-role
// login. A peer's name is resolved as its own hostname on the core port,
// the same convention the configured server list already assumes (spec
// §4.1's server list is a list of node names, not addresses).
type ProbeDialer struct {
	cfg      *configs.Config
	selfHash [32]byte
	role     func() wire.Role
	dialer   net.Dialer
}

var _ election.Dialer = (*ProbeDialer)(nil)

// NewProbeDialer builds a ProbeDialer for cfg, claiming roleOf() as this
// node's current role in each probe's login.
func NewProbeDialer(cfg *configs.Config, selfHash [32]byte, roleOf func() wire.Role) *ProbeDialer {
	return &ProbeDialer{cfg: cfg, selfHash: selfHash, role: roleOf}
}

// Probe satisfies election.Dialer.
func (p *ProbeDialer) Probe(ctx context.Context, name string) (wire.Role, [32]byte, error) {
	addr := fmt.Sprintf("%s:%d", name, p.cfg.CorePort)
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, [32]byte{}, err
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	} else {
		_ = conn.SetDeadline(time.Now().Add(p.cfg.NewConnectionTimeout))
	}

	sess := NewSession(conn)
	login := &wire.LoginRecord{
		Version: 1, RoleClaim: p.role(), ClusterName: p.cfg.ClusterName,
		ConfigHash: p.selfHash, Name: p.cfg.Name,
	}
	if err := sess.Write(login); err != nil {
		return 0, [32]byte{}, err
	}

	op, msg, err := sess.ReadMessage()
	if err != nil {
		return 0, [32]byte{}, err
	}
	if op != wire.OpLogin {
		return 0, [32]byte{}, wire.ErrProtocol
	}
	ack := msg.(*wire.LoginRecord)
	return ack.RoleClaim, ack.ConfigHash, nil
}
