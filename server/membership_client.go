package server

import (
	"net"

	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/wire"
)

// MembershipClient is the standing subscription connection LT and ltpx
// both need (spec §4.7/§4.8): log in with Subscribe set, take the
// initial full snapshot, then react to each delta as it arrives.
type MembershipClient struct {
	cfg       *configs.Config
	selfHash  [32]byte
	serviceID string
}

// NewMembershipClient builds a client that will identify itself to Core
// as serviceID on login.
func NewMembershipClient(cfg *configs.Config, serviceID string) *MembershipClient {
	return &MembershipClient{cfg: cfg, selfHash: cfg.Hash(), serviceID: serviceID}
}

// Run dials coreAddr, subscribes, delivers the initial snapshot to
// onSnapshot and every subsequent delta to onUpdate, and blocks until the
// connection fails or stop is closed. Either callback may be nil. The
// caller is responsible for retrying Run after it returns; no backoff
// policy is built in here.
func (c *MembershipClient) Run(coreAddr string, onSnapshot func([]wire.MembershipListEntry), onUpdate func(wire.MembershipUpdateRecord), stop <-chan struct{}) error {
	conn, err := net.Dial("tcp", coreAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stop:
			conn.Close()
		case <-done:
		}
	}()

	sess := NewSession(conn)
	login := &wire.LoginRecord{
		Version: 1, RoleClaim: wire.RoleClient, ClusterName: c.cfg.ClusterName,
		ConfigHash: c.selfHash, ServiceID: c.serviceID, Subscribe: true,
	}
	if err := sess.Write(login); err != nil {
		return err
	}

	for {
		op, msg, err := sess.ReadMessage()
		if err != nil {
			return err
		}
		switch op {
		case wire.OpMembershipListReply:
			if onSnapshot != nil {
				onSnapshot(msg.(*wire.MembershipListReplyRecord).Entries)
			}
		case wire.OpMembershipUpdate:
			if onUpdate != nil {
				onUpdate(*msg.(*wire.MembershipUpdateRecord))
			}
		}
	}
}
