package wire

// Opcode identifies the record layout that follows it. The numeric values
// below are gulmd's own stable numbering (the historical GFS/GFS2 wire
// values are not present in the retrieval pack this module was built from;
// DESIGN.md records this as a documented, deliberately-chosen
// interpretation rather than a guess at intent). What §4.1 requires —
// category coverage and decode/encode symmetry — is preserved regardless
// of the exact integers.
type Opcode uint32

const (
	OpLogin  Opcode = 0x0001
	OpLogout Opcode = 0x0002

	OpMembershipUpdate    Opcode = 0x0100
	OpMembershipSubscribe Opcode = 0x0101
	OpMembershipListReply Opcode = 0x0102

	OpHeartbeatRequest Opcode = 0x0200
	OpHeartbeatReply   Opcode = 0x0201

	OpLockRequest Opcode = 0x0300
	OpLockReply   Opcode = 0x0301
	OpLockCancel  Opcode = 0x0302
	OpLockDropAll Opcode = 0x0303

	OpLVBHold    Opcode = 0x0400
	OpLVBRelease Opcode = 0x0401
	OpLVBSync    Opcode = 0x0402

	OpAdminStats       Opcode = 0x0500
	OpAdminDump        Opcode = 0x0501
	OpAdminForceExpire Opcode = 0x0502
)

// String renders a human-readable opcode name for logs/dumps.
func (o Opcode) String() string {
	switch o {
	case OpLogin:
		return "Login"
	case OpLogout:
		return "Logout"
	case OpMembershipUpdate:
		return "MembershipUpdate"
	case OpMembershipSubscribe:
		return "MembershipSubscribe"
	case OpMembershipListReply:
		return "MembershipListReply"
	case OpHeartbeatRequest:
		return "HeartbeatRequest"
	case OpHeartbeatReply:
		return "HeartbeatReply"
	case OpLockRequest:
		return "LockRequest"
	case OpLockReply:
		return "LockReply"
	case OpLockCancel:
		return "LockCancel"
	case OpLockDropAll:
		return "LockDropAll"
	case OpLVBHold:
		return "LVBHold"
	case OpLVBRelease:
		return "LVBRelease"
	case OpLVBSync:
		return "LVBSync"
	case OpAdminStats:
		return "AdminStats"
	case OpAdminDump:
		return "AdminDump"
	case OpAdminForceExpire:
		return "AdminForceExpire"
	default:
		return "Unknown"
	}
}
