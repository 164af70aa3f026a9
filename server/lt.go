package server

import (
	"math/rand"
	"net"
	"sync"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/locktable"
	"github.com/gulmcluster/gulmd/wire"
)

// LTServer is one lock-table partition process: it owns a fixed set of
// locktable.Partitions (spec §4.7) and answers LockRequestRecord traffic
// from ltpx connections over one TCP listener, the same Accept-loop shape
// as Core.Serve.
type LTServer struct {
	cfg        *configs.Config
	selfHash   [32]byte
	authHook   authz.Hook
	listener   net.Listener
	done       chan struct{}
	partitions []*locktable.Partition
	sessions   *sessionRegistry
}

// sessionRegistry maps a caller's announced node/service id to its live
// Session, so a partition's asynchronous callback (demotion, LVB sync) can
// be written back down the right connection (spec §4.7).
type sessionRegistry struct {
	mu   sync.Mutex
	byID map[string]*Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{byID: make(map[string]*Session)}
}

func (r *sessionRegistry) add(id string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = s
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

func (r *sessionRegistry) find(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

// ltSink adapts a *Session to locktable.Sink: every demotion/LVB callback
// a partition emits for a holder connected to this session is written
// straight back down the same wire connection, keyed by the caller's
// subid and key (spec §4.7's asynchronous callback channel).
type ltSink struct{ findConn func(node string) *Session }

func (s ltSink) Callback(cb locktable.Callback) {
	conn := s.findConn(cb.Holder.Node)
	if conn == nil {
		return
	}
	_ = conn.Write(&wire.LockReplyRecord{
		Subid:  cb.Holder.Subid,
		Key:    cb.Key,
		State:  cb.Need,
		Status: wire.StatusGranted,
	})
}

// NewLTServer builds an LTServer bound to address, owning partitionIDs
// out of cfg's full partition count.
func NewLTServer(cfg *configs.Config, address string, authHook authz.Hook, partitionIDs []int) (*LTServer, error) {
	if authHook == nil {
		authHook = authz.AllowAll{}
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	s := &LTServer{cfg: cfg, selfHash: cfg.Hash(), authHook: authHook, listener: listener, done: make(chan struct{})}

	sessions := newSessionRegistry()
	sink := ltSink{findConn: sessions.find}
	for _, id := range partitionIDs {
		s.partitions = append(s.partitions, locktable.New(id, locktable.PartitionConfig{
			HighLocks:     cfg.LTHighLocks,
			PreallocLocks: cfg.PreallocLocks,
		}, sink))
	}
	s.sessions = sessions
	return s, nil
}

func (s *LTServer) partitionFor(key []byte) *locktable.Partition {
	id := locktable.PartitionOf(key, len(s.partitions))
	return s.partitions[id]
}

// Serve accepts connections until Close is called.
func (s *LTServer) Serve() error {
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
func (s *LTServer) Close() error {
	close(s.done)
	return s.listener.Close()
}

func (s *LTServer) handleConn(conn net.Conn) {
	sess := NewSession(conn)
	login, err := sess.Authenticate(s.cfg, s.selfHash, s.authHook)
	if err != nil {
		configs.Debugf("lt: handshake failed: %v", err)
		sess.Close()
		return
	}

	callerNode := login.ServiceID
	if callerNode == "" {
		callerNode = login.Name
	}
	s.sessions.add(callerNode, sess)
	defer s.sessions.remove(callerNode)

	for {
		op, msg, err := sess.ReadMessage()
		if err != nil {
			return
		}
		if op != wire.OpLockRequest {
			continue
		}
		if s.cfg.LTDropReqRate > 0 && rand.Intn(100) < s.cfg.LTDropReqRate {
			continue
		}

		req := msg.(*wire.LockRequestRecord)
		caller := locktable.Caller{Node: callerNode, Subid: req.Subid}
		part := s.partitionFor(req.Key)
		reply := part.Request(caller, req, s.notify)
		if reply != nil {
			_ = sess.Write(reply)
		}
	}
}

// notify writes an asynchronous callback (grant, LVB sync) back down
// whichever connection belongs to the caller it names, looked up by the
// same node id locks are tracked under.
func (s *LTServer) notify(c locktable.Caller, r *wire.LockReplyRecord) {
	target := s.sessions.find(c.Node)
	if target == nil {
		return
	}
	_ = target.Write(r)
}

// Subscribe opens a standing membership subscription to coreAddr and
// dispatches every delta to every partition this process owns (spec
// §4.7's "Expiration handling"): an Expired update tags that node's
// holders as expired-holder-present, and a LoggedOut update (this wire
// protocol's representation of both a clean logout and a post-fence
// Killed, per Core.AnnounceKilled) releases them and lets blocked waiters
// drain. It blocks until the connection drops or stop is closed.
func (s *LTServer) Subscribe(coreAddr string, stop <-chan struct{}) error {
	client := NewMembershipClient(s.cfg, "lt-"+s.cfg.Name)
	return client.Run(coreAddr, nil, func(u wire.MembershipUpdateRecord) {
		switch u.NewState {
		case wire.NodeExpired:
			for _, p := range s.partitions {
				p.OnExpired(u.Subject)
			}
		case wire.NodeLoggedOut:
			for _, p := range s.partitions {
				p.OnKilled(u.Subject, s.notify)
			}
		}
	}, stop)
}
