package server

import (
	"net"
	"time"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/membership"
	"github.com/gulmcluster/gulmd/wire"
)

// Session wraps one accepted connection through its handshake and into
// steady-state message processing (spec §4.9). It is driven by a single
// owning task, the same "one goroutine per connection, cooperative inside
// it" shape the teacher's Commu.connHandler uses.
type Session struct {
	conn          net.Conn
	r             *wire.Reader
	w             *wire.Writer
	Authenticated bool
	Name          string
	ServiceID     string
	Subscribed    bool
}

// NewSession wraps conn for handshake + message processing.
func NewSession(conn net.Conn) *Session {
	return &Session{conn: conn, r: wire.NewReader(conn), w: wire.NewWriter(conn)}
}

// Close satisfies registry.ConnHandle: the heartbeat engine closes a
// node's connection as the second step of the announce/close/fence
// ordering (spec §4.3).
func (s *Session) Close() error {
	return s.conn.Close()
}

// Authenticate reads the handshake LoginRecord and validates it (spec
// §4.9). The read deadline enforces new_connection_timeout; on success the
// deadline is cleared so steady-state reads can block indefinitely.
func (s *Session) Authenticate(cfg *configs.Config, selfHash [32]byte, hook authz.Hook) (*wire.LoginRecord, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(cfg.NewConnectionTimeout)); err != nil {
		return nil, err
	}

	op, msg, err := wire.ReadMessage(s.r)
	if err != nil {
		return nil, err
	}
	if op != wire.OpLogin {
		return nil, wire.ErrProtocol
	}
	login := msg.(*wire.LoginRecord)

	if err := ValidateHandshake(login, cfg, selfHash, hook); err != nil {
		return nil, err
	}

	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	s.Authenticated = true
	s.Name = login.Name
	s.ServiceID = login.ServiceID
	s.Subscribed = login.Subscribe
	return login, nil
}

// ReadMessage reads the next steady-state message. It is a thin pass
// through to wire.ReadMessage so callers (the core/LT/ltpx event loops)
// can select on it alongside timers.
func (s *Session) ReadMessage() (wire.Opcode, interface{}, error) {
	return wire.ReadMessage(s.r)
}

// Write encodes and flushes one outgoing record.
func (s *Session) Write(msg interface{ Encode(*wire.Writer) error }) error {
	if err := msg.Encode(s.w); err != nil {
		return err
	}
	return s.w.Flush()
}

// subscriberName identifies this session as a membership subscriber: its
// server Name if it announced one (a peer), else its ServiceID (LT
// partition worker, ltpx, or filesystem client).
func (s *Session) subscriberName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ServiceID
}

// AsSubscriber adapts s to membership.Subscriber for a connection that set
// Subscribe during handshake.
func (s *Session) AsSubscriber() membership.Subscriber {
	return sessionSubscriber{s}
}

type sessionSubscriber struct{ s *Session }

func (ss sessionSubscriber) Name() string { return ss.s.subscriberName() }

func (ss sessionSubscriber) Send(u membership.Update) error {
	rec := &wire.MembershipUpdateRecord{Subject: u.Subject, NewState: u.NewState, IP: u.IP}
	return ss.s.Write(rec)
}
