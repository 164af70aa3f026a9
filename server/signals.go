package server

import (
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/registry"
	"github.com/gulmcluster/gulmd/wire"
)

// RunSignalLoop handles two signals: SIGUSR1 dumps the registry to $TMPDIR
// (or /tmp), and SIGTERM is ignored by design — an operator wanting to
// stop gulmd sends SIGKILL or uses the PID lock to shut it down cleanly via
// the cluster tooling. SIGSEGV is not registered here and gets no
// backtrace-and-re-raise handling; the only crash backtrace gulmd writes is
// LogPanicBacktrace's, for a recovered panic. Blocks until done is closed.
func RunSignalLoop(clusterName string, role func() wire.Role, reg *registry.Registry, done <-chan struct{}) {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for {
		select {
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				dir := os.Getenv("TMPDIR")
				if dir == "" {
					dir = "/tmp"
				}
				dump := BuildDump(clusterName, role(), reg)
				if _, err := WriteDump(dir, dump); err != nil {
					configs.Warnf("server: admin dump failed: %v", err)
				}
			case syscall.SIGTERM:
				configs.Debugf("server: SIGTERM ignored by design")
			}
		case <-done:
			return
		}
	}
}

// LogPanicBacktrace records a recovered panic's stack before the caller
// re-panics or exits, standing in for the SIGSEGV backtrace-then-reraise
// behavior spec §6 describes for the original's native crash handler.
func LogPanicBacktrace(r interface{}) {
	configs.Warnf("server: fatal: %v\n%s", r, debug.Stack())
}
