package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// PidLock is an open, exclusively-locked PID file. Built directly on
// syscall.Flock rather than a third-party library: advisory file locking
// is a single syscall with no ecosystem wrapper among the examples'
// dependency stack, and none of them add one for this.
type PidLock struct {
	f *os.File
}

// AcquirePidLock opens dir/lockFileName.pid, takes an exclusive
// non-blocking flock on it, truncates it, and writes the current PID —
// the Go equivalent of the original's pid_lock (utils_dir.c). Returns
// ErrPidLocked if another process already holds it.
func AcquirePidLock(dir, lockFileName string) (*PidLock, error) {
	path := filepath.Join(dir, lockFileName+".pid")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("configs: opening pid file %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, ErrPidLocked
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("configs: truncating pid file %s: %w", path, err)
	}
	if _, err := f.WriteString(fmt.Sprintf("%d\n", os.Getpid())); err != nil {
		f.Close()
		return nil, fmt.Errorf("configs: writing pid file %s: %w", path, err)
	}
	return &PidLock{f: f}, nil
}

// Release closes and unlocks the PID file. It does not remove it; a
// restarted process reuses the same file the way pid_lock/clear_pid do.
func (p *PidLock) Release() error {
	return p.f.Close()
}
