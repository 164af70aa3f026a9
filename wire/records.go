package wire

import "net"

// LoginRecord is the handshake announcement (spec §4.9): version, role
// claim, cluster name, and config hash are always present; Name/IP
// identify a server peer, ServiceID identifies a non-server connection
// (LT partition worker, ltpx, or a filesystem client), and Subscribe
// requests a standing membership-update stream.
type LoginRecord struct {
	Version     uint32
	RoleClaim   Role
	ClusterName string
	ConfigHash  [32]byte
	Name        string
	IP          net.IP
	ServiceID   string
	Subscribe   bool
	Partitions  uint32 // announced lt_partitions, checked against the local count
}

func (m *LoginRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpLogin); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Version); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.RoleClaim)); err != nil {
		return err
	}
	if err := w.WriteString(m.ClusterName); err != nil {
		return err
	}
	if err := w.WriteBytes(m.ConfigHash[:]); err != nil {
		return err
	}
	if err := w.WriteString(m.Name); err != nil {
		return err
	}
	if err := w.WriteIPv6(m.IP); err != nil {
		return err
	}
	if err := w.WriteString(m.ServiceID); err != nil {
		return err
	}
	if err := writeBool(w, m.Subscribe); err != nil {
		return err
	}
	return w.WriteUint32(m.Partitions)
}

func DecodeLoginRecord(r *Reader) (*LoginRecord, error) {
	m := &LoginRecord{}
	var err error
	if m.Version, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	role, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	m.RoleClaim = Role(role)
	if m.ClusterName, err = r.ReadString(); err != nil {
		return nil, err
	}
	hashBytes, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(hashBytes) != 32 {
		return nil, ErrProtocol
	}
	copy(m.ConfigHash[:], hashBytes)
	if m.Name, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.IP, err = r.ReadIPv6(); err != nil {
		return nil, err
	}
	if m.ServiceID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Subscribe, err = readBool(r); err != nil {
		return nil, err
	}
	if m.Partitions, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	return m, nil
}

// LogoutRecord closes a session cleanly.
type LogoutRecord struct {
	Name string
}

func (m *LogoutRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpLogout); err != nil {
		return err
	}
	return w.WriteString(m.Name)
}

func DecodeLogoutRecord(r *Reader) (*LogoutRecord, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &LogoutRecord{Name: name}, nil
}

// MembershipUpdateRecord is one (subject, new-state, ip) triple pushed by
// the master to slaves and subscribers (spec §4.6).
type MembershipUpdateRecord struct {
	Subject  string
	NewState NodeState
	IP       net.IP
}

func (m *MembershipUpdateRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpMembershipUpdate); err != nil {
		return err
	}
	if err := w.WriteString(m.Subject); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.NewState)); err != nil {
		return err
	}
	return w.WriteIPv6(m.IP)
}

func DecodeMembershipUpdateRecord(r *Reader) (*MembershipUpdateRecord, error) {
	m := &MembershipUpdateRecord{}
	var err error
	if m.Subject, err = r.ReadString(); err != nil {
		return nil, err
	}
	state, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	m.NewState = NodeState(state)
	if m.IP, err = r.ReadIPv6(); err != nil {
		return nil, err
	}
	return m, nil
}

// MembershipListEntry is one row of a full membership snapshot.
type MembershipListEntry struct {
	Name  string
	State NodeState
	IP    net.IP
}

// MembershipListReplyRecord answers a freshly-subscribed connection with
// the full registry snapshot before streaming deltas.
type MembershipListReplyRecord struct {
	Entries []MembershipListEntry
}

func (m *MembershipListReplyRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpMembershipListReply); err != nil {
		return err
	}
	if err := w.WriteListStart(); err != nil {
		return err
	}
	for _, e := range m.Entries {
		if err := w.WriteString(e.Name); err != nil {
			return err
		}
		if err := w.WriteUint8(uint8(e.State)); err != nil {
			return err
		}
		if err := w.WriteIPv6(e.IP); err != nil {
			return err
		}
	}
	return w.WriteListStop()
}

func DecodeMembershipListReplyRecord(r *Reader) (*MembershipListReplyRecord, error) {
	if err := r.ReadListStart(); err != nil {
		return nil, err
	}
	m := &MembershipListReplyRecord{}
	for {
		more, err := r.MoreListItems()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		var e MembershipListEntry
		if e.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		state, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		e.State = NodeState(state)
		if e.IP, err = r.ReadIPv6(); err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}

// HeartbeatRequestRecord is sent by any connected peer on its own beat
// interval.
type HeartbeatRequestRecord struct {
	Name          string
	TimestampMicros uint64
}

func (m *HeartbeatRequestRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpHeartbeatRequest); err != nil {
		return err
	}
	if err := w.WriteString(m.Name); err != nil {
		return err
	}
	return w.WriteUint64(m.TimestampMicros)
}

func DecodeHeartbeatRequestRecord(r *Reader) (*HeartbeatRequestRecord, error) {
	m := &HeartbeatRequestRecord{}
	var err error
	if m.Name, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.TimestampMicros, err = r.ReadUint64(); err != nil {
		return nil, err
	}
	return m, nil
}

// HeartbeatReplyRecord acknowledges a heartbeat.
type HeartbeatReplyRecord struct {
	TimestampMicros uint64
}

func (m *HeartbeatReplyRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpHeartbeatReply); err != nil {
		return err
	}
	return w.WriteUint64(m.TimestampMicros)
}

func DecodeHeartbeatReplyRecord(r *Reader) (*HeartbeatReplyRecord, error) {
	ts, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &HeartbeatReplyRecord{TimestampMicros: ts}, nil
}

// LockRequestRecord is a client's lock operation request (spec §3/§4.7).
type LockRequestRecord struct {
	Action         LockAction
	Subid          uint32
	Key            []byte
	RequestedState LockState
	Flags          HolderFlags
	LVB            []byte
}

func (m *LockRequestRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpLockRequest); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.Action)); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Subid); err != nil {
		return err
	}
	if err := w.WriteBytes(m.Key); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.RequestedState)); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(m.Flags)); err != nil {
		return err
	}
	return w.WriteBytes(m.LVB)
}

func DecodeLockRequestRecord(r *Reader) (*LockRequestRecord, error) {
	m := &LockRequestRecord{}
	action, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	m.Action = LockAction(action)
	if m.Subid, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Key, err = r.ReadBytes(); err != nil {
		return nil, err
	}
	state, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	m.RequestedState = LockState(state)
	flags, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	m.Flags = HolderFlags(flags)
	if m.LVB, err = r.ReadBytes(); err != nil {
		return nil, err
	}
	return m, nil
}

// LockReplyRecord is the partition's (or ltpx's synthesized) answer.
type LockReplyRecord struct {
	Subid  uint32
	Key    []byte
	State  LockState
	Status LockStatus
	LVB    []byte
}

func (m *LockReplyRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpLockReply); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Subid); err != nil {
		return err
	}
	if err := w.WriteBytes(m.Key); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.State)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.Status)); err != nil {
		return err
	}
	return w.WriteBytes(m.LVB)
}

func DecodeLockReplyRecord(r *Reader) (*LockReplyRecord, error) {
	m := &LockReplyRecord{}
	var err error
	if m.Subid, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Key, err = r.ReadBytes(); err != nil {
		return nil, err
	}
	state, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	m.State = LockState(state)
	status, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	m.Status = LockStatus(status)
	if m.LVB, err = r.ReadBytes(); err != nil {
		return nil, err
	}
	return m, nil
}

// LVBSyncRecord writes the supplied bytes into the lock's value block
// (spec §4.7's sync_lvb). Hold/release carry only Subid+Key, so they reuse
// this record with a nil LVB.
type LVBSyncRecord struct {
	Subid uint32
	Key   []byte
	LVB   []byte
}

func (m *LVBSyncRecord) encode(w *Writer, op Opcode) error {
	if err := w.WriteOpcode(op); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Subid); err != nil {
		return err
	}
	if err := w.WriteBytes(m.Key); err != nil {
		return err
	}
	return w.WriteBytes(m.LVB)
}

func (m *LVBSyncRecord) EncodeHold(w *Writer) error    { return m.encode(w, OpLVBHold) }
func (m *LVBSyncRecord) EncodeRelease(w *Writer) error { return m.encode(w, OpLVBRelease) }
func (m *LVBSyncRecord) EncodeSync(w *Writer) error    { return m.encode(w, OpLVBSync) }

func DecodeLVBSyncRecord(r *Reader) (*LVBSyncRecord, error) {
	m := &LVBSyncRecord{}
	var err error
	if m.Subid, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Key, err = r.ReadBytes(); err != nil {
		return nil, err
	}
	if m.LVB, err = r.ReadBytes(); err != nil {
		return nil, err
	}
	return m, nil
}

// AdminForceExpireRecord is an administrative request to treat a node as
// expired immediately (spec §6 admin queries).
type AdminForceExpireRecord struct {
	Name string
}

func (m *AdminForceExpireRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpAdminForceExpire); err != nil {
		return err
	}
	return w.WriteString(m.Name)
}

func DecodeAdminForceExpireRecord(r *Reader) (*AdminForceExpireRecord, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &AdminForceExpireRecord{Name: name}, nil
}

// AdminStatsReplyRecord carries a free-form statistics blob (JSON,
// produced via goccy/go-json in the server package) back to an
// administrative caller.
type AdminStatsReplyRecord struct {
	JSON []byte
}

func (m *AdminStatsReplyRecord) Encode(w *Writer) error {
	if err := w.WriteOpcode(OpAdminStats); err != nil {
		return err
	}
	return w.WriteBytes(m.JSON)
}

func DecodeAdminStatsReplyRecord(r *Reader) (*AdminStatsReplyRecord, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	return &AdminStatsReplyRecord{JSON: b}, nil
}

func writeBool(w *Writer, b bool) error {
	if b {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

func readBool(r *Reader) (bool, error) {
	v, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
