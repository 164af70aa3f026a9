package wire

// NodeState is a node's wire-visible membership state (spec §3).
type NodeState uint8

const (
	NodeLoggedOut NodeState = iota
	NodeLoggedIn
	NodeOldMasterLoggedIn
	NodeExpired
)

func (s NodeState) String() string {
	switch s {
	case NodeLoggedOut:
		return "LoggedOut"
	case NodeLoggedIn:
		return "LoggedIn"
	case NodeOldMasterLoggedIn:
		return "OldMasterLoggedIn"
	case NodeExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// Role is the claim a peer makes during handshake and the role the
// election state machine assigns a server node (spec §2, §4.5).
type Role uint8

const (
	RoleSlave Role = iota
	RolePending
	RoleArbitrating
	RoleMaster
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleSlave:
		return "Slave"
	case RolePending:
		return "Pending"
	case RoleArbitrating:
		return "Arbitrating"
	case RoleMaster:
		return "Master"
	case RoleClient:
		return "Client"
	default:
		return "Unknown"
	}
}

// LockState is a lock entry's current granted state (spec §3/§4.7).
type LockState uint8

const (
	LockUnlocked LockState = iota
	LockExclusive
	LockShared
	LockDeferred
	LockExclusivePending
	LockExclusiveSharedPending
)

func (s LockState) String() string {
	switch s {
	case LockUnlocked:
		return "Unlocked"
	case LockExclusive:
		return "Exclusive"
	case LockShared:
		return "Shared"
	case LockDeferred:
		return "Deferred"
	case LockExclusivePending:
		return "ExclusivePending"
	case LockExclusiveSharedPending:
		return "ExclusiveSharedPending"
	default:
		return "Unknown"
	}
}

// LockStatus is the outcome reported in a LockReply.
type LockStatus uint8

const (
	StatusGranted LockStatus = iota
	StatusTryFailed
	StatusQueued
	StatusCancelled
	StatusDropped
	// StatusNoMaster answers a request (Try-flagged or not) from ltpx when the
	// target partition currently has no known master connection (spec
	// §4.8), distinct from StatusTryFailed (a reachable master declined
	// the grant) and from the synthesized TryFailed a failover emits.
	StatusNoMaster
)

// LockAction selects what a LockRequest record asks the partition to do
// (spec §4.7's lifecycle: grant, release, convert, cancel, drop-all).
type LockAction uint8

const (
	ActionAcquire LockAction = iota
	ActionRelease
	ActionConvert
	ActionCancel
	ActionDropAll
)

// HolderFlags is the bitmask of request modifiers from spec §3 ("Holder").
type HolderFlags uint32

const (
	FlagTry HolderFlags = 1 << iota
	FlagTryOneCallback
	FlagNoExpire
	FlagAny
	FlagPriority
	FlagLocalExclusive
	FlagAsync
	FlagExact
	FlagSkipReadAfterGrant
	FlagUpdateAtime
	FlagNoCache
	FlagSync
	FlagNoCancel
	FlagNeverRecurse
)

func (f HolderFlags) Has(bit HolderFlags) bool { return f&bit != 0 }
