package configs

// Fixed process exit codes from spec §6. 0 covers both "OK" and "usage
// printed"; every other code below is a distinct fatal condition.
const (
	ExitOK         = 0
	ExitParseFail  = 50
	ExitBadOption  = 51
	ExitExecError  = 52
	ExitSelfKill   = 53
	ExitStopAllReq = 54
	ExitLeftLoop   = 55
	ExitShutDown   = 56
	ExitPidLock    = 57
	ExitInitFailed = 58
	ExitNoMemory   = 59
	ExitBadLogic   = 60
	ExitAssertion  = 61
)
