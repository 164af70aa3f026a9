package wire

// ReadMessage reads the next opcode and decodes the matching record. The
// returned value's concrete type is one of the *Record types in this
// package; callers type-switch on it. Decoding errors propagate as-is
// (ErrIncompleteFrame/ErrFrameTooLarge/ErrProtocol); an unrecognized opcode
// is ErrProtocol.
func ReadMessage(r *Reader) (Opcode, interface{}, error) {
	op, err := r.ReadOpcode()
	if err != nil {
		return 0, nil, err
	}
	msg, err := decodeBody(r, op)
	return op, msg, err
}

func decodeBody(r *Reader, op Opcode) (interface{}, error) {
	switch op {
	case OpLogin:
		return DecodeLoginRecord(r)
	case OpLogout:
		return DecodeLogoutRecord(r)
	case OpMembershipUpdate:
		return DecodeMembershipUpdateRecord(r)
	case OpMembershipSubscribe:
		return struct{}{}, nil
	case OpMembershipListReply:
		return DecodeMembershipListReplyRecord(r)
	case OpHeartbeatRequest:
		return DecodeHeartbeatRequestRecord(r)
	case OpHeartbeatReply:
		return DecodeHeartbeatReplyRecord(r)
	case OpLockRequest:
		return DecodeLockRequestRecord(r)
	case OpLockReply:
		return DecodeLockReplyRecord(r)
	case OpLockCancel:
		return DecodeLockRequestRecord(r)
	case OpLockDropAll:
		return DecodeLockRequestRecord(r)
	case OpLVBHold, OpLVBRelease, OpLVBSync:
		return DecodeLVBSyncRecord(r)
	case OpAdminForceExpire:
		return DecodeAdminForceExpireRecord(r)
	case OpAdminStats:
		return DecodeAdminStatsReplyRecord(r)
	case OpAdminDump:
		return struct{}{}, nil
	default:
		return nil, ErrProtocol
	}
}
