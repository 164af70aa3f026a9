// Command gulmd is the single gulmd binary: one executable, one -role flag
// selecting which cluster service this process provides, mirroring the
// teacher's fc-server binary dispatching on its own -node flag
// (oltp_clients/fc-server/main.go).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/election"
	"github.com/gulmcluster/gulmd/membership"
	"github.com/gulmcluster/gulmd/server"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gulmd -role={core,lt,ltpx} [flags]")
	flag.PrintDefaults()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			server.LogPanicBacktrace(r)
			exitCode = configs.ExitAssertion
		}
	}()

	// -role, -ccs, -ccs_path, and -lt_own_partitions gate which CCS backend
	// to open and which process to run, both decided before the full
	// Config is loaded, so they are scanned out of args directly rather
	// than through the flag.FlagSet that configs.Load owns.
	role := prescanFlag(args, "role", "core")
	ccsKind := prescanFlag(args, "ccs", "none")
	ccsPath := prescanFlag(args, "ccs_path", "")
	partitionsFlag := prescanFlag(args, "lt_own_partitions", "0")

	var repo configs.CCS = configs.NoneCCS{}
	switch ccsKind {
	case "file":
		f, err := configs.LoadFileCCS(ccsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gulmd: loading file CCS: %v\n", err)
			return configs.ExitBadOption
		}
		repo = f
	case "json":
		j, err := configs.LoadJSONCCS(ccsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gulmd: loading json CCS: %v\n", err)
			return configs.ExitBadOption
		}
		repo = j
	case "postgres":
		p, err := configs.DialPostgresCCS(context.Background(), ccsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gulmd: dialing postgres CCS: %v\n", err)
			return configs.ExitBadOption
		}
		defer p.Close()
		repo = p
	}

	fs := flag.NewFlagSet("gulmd", flag.ContinueOnError)
	fs.String("role", "core", "service this process provides: core, lt, or ltpx")
	fs.String("ccs", "none", "cluster configuration repository backend: none, file, json, postgres")
	fs.String("ccs_path", "", "path or DSN for -ccs=file/json/postgres")
	fs.String("lt_own_partitions", "0", "comma-separated partition IDs this LT process owns")
	fs.Usage = usage

	cfg, err := configs.Load(fs, args, repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: %v\n", err)
		return configs.ExitParseFail
	}

	lockName := fmt.Sprintf("gulmd-%s-%s", role, cfg.Name)
	pidLock, err := configs.AcquirePidLock(cfg.LockDir, lockName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: %v\n", err)
		return configs.ExitPidLock
	}
	defer pidLock.Release()

	switch role {
	case "core":
		return runCore(&cfg)
	case "lt":
		ids, perr := parsePartitionIDs(partitionsFlag)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "gulmd: %v\n", perr)
			return configs.ExitBadOption
		}
		return runLT(&cfg, ids)
	case "ltpx":
		return runLTPX(&cfg)
	default:
		fmt.Fprintf(os.Stderr, "gulmd: unknown -role %q\n", role)
		return configs.ExitBadOption
	}
}

// prescanFlag scans args by hand for -name/--name in either "-name=value"
// or "-name value" form, returning def if absent. Used only for the
// handful of flags that must be known before configs.Load's own
// flag.FlagSet parse runs.
func prescanFlag(args []string, name, def string) string {
	prefix1 := "-" + name + "="
	prefix2 := "--" + name + "="
	for i, a := range args {
		if strings.HasPrefix(a, prefix1) {
			return strings.TrimPrefix(a, prefix1)
		}
		if strings.HasPrefix(a, prefix2) {
			return strings.TrimPrefix(a, prefix2)
		}
		if (a == "-"+name || a == "--"+name) && i+1 < len(args) {
			return args[i+1]
		}
	}
	return def
}

func parsePartitionIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid partition id %q: %w", part, err)
		}
		ids = append(ids, n)
	}
	if len(ids) == 0 {
		ids = []int{0}
	}
	return ids, nil
}

func runCore(cfg *configs.Config) int {
	var backlog *membership.Backlog
	if cfg.PersistMembershipLog {
		b, err := membership.OpenBacklog(cfg.MembershipLogDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gulmd: opening membership log: %v\n", err)
			return configs.ExitInitFailed
		}
		defer b.Close()
		backlog = b
	}

	addr := fmt.Sprintf("%s:%d", cfg.IP, cfg.CorePort)
	core, err := server.New(cfg, addr, authz.AllowAll{}, backlog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: starting core listener: %v\n", err)
		return configs.ExitInitFailed
	}
	defer core.Close()

	if err := dropPrivileges(cfg.RunAs); err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: %v\n", err)
		return configs.ExitInitFailed
	}

	core.Machine.Bootstrap()
	go core.Heartbeats.Run()
	defer core.Heartbeats.Stop()

	probeCtx, cancelProbe := context.WithCancel(context.Background())
	defer cancelProbe()
	if len(cfg.Servers) > 1 {
		// Single-server mode settled Bootstrap above; fog mode (more than
		// one server) starts Pending and must arbitrate for Master against
		// its peers.
		core.Machine.MasterUnreachable()
		dialer := server.NewProbeDialer(cfg, core.Hash(), core.Machine.Role)
		prober := election.NewProber(cfg, dialer)
		go election.RunProbeLoop(probeCtx, core.Machine, prober, core.Hash())
	}

	done := make(chan struct{})
	go server.RunSignalLoop(cfg.ClusterName, core.Machine.Role, core.Reg, done)
	defer close(done)

	if err := core.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: core: %v\n", err)
		return configs.ExitExecError
	}
	return configs.ExitOK
}

func runLT(cfg *configs.Config, partitionIDs []int) int {
	base := cfg.LTPort
	if len(partitionIDs) > 0 {
		base = cfg.LTPort + partitionIDs[0]
	}
	addr := fmt.Sprintf("%s:%d", cfg.IP, base)
	lt, err := server.NewLTServer(cfg, addr, authz.AllowAll{}, partitionIDs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: starting lt listener: %v\n", err)
		return configs.ExitInitFailed
	}
	defer lt.Close()

	if err := dropPrivileges(cfg.RunAs); err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: %v\n", err)
		return configs.ExitInitFailed
	}

	subStop := make(chan struct{})
	defer close(subStop)
	coreAddr := fmt.Sprintf("%s:%d", cfg.IP, cfg.CorePort)
	go subscribeWithRetry(subStop, cfg.NewConnectionTimeout, "lt", func() error {
		return lt.Subscribe(coreAddr, subStop)
	})

	if err := lt.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: lt: %v\n", err)
		return configs.ExitExecError
	}
	return configs.ExitOK
}

// subscribeWithRetry runs run in a loop, redialing after retry whenever it
// returns an error, until stop is closed. LT and ltpx both need their
// membership subscription to survive a Core restart or failover, and
// neither the spec nor the teacher define a specific backoff curve for
// this, so a flat retry on new_connection_timeout is used.
func subscribeWithRetry(stop <-chan struct{}, retry time.Duration, label string, run func() error) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := run(); err != nil {
			configs.Warnf("gulmd: %s membership subscription dropped: %v", label, err)
		}
		select {
		case <-stop:
			return
		case <-time.After(retry):
		}
	}
}

func runLTPX(cfg *configs.Config) int {
	addr := fmt.Sprintf("%s:%d", cfg.IP, cfg.LTPXPort)
	px, err := server.NewLTPXServer(cfg, addr, authz.AllowAll{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: starting ltpx listener: %v\n", err)
		return configs.ExitInitFailed
	}
	defer px.Close()

	if err := dropPrivileges(cfg.RunAs); err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: %v\n", err)
		return configs.ExitInitFailed
	}

	subStop := make(chan struct{})
	defer close(subStop)
	coreAddr := fmt.Sprintf("%s:%d", cfg.IP, cfg.CorePort)
	go subscribeWithRetry(subStop, cfg.NewConnectionTimeout, "ltpx", func() error {
		return px.Subscribe(coreAddr, subStop)
	})

	if err := px.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "gulmd: ltpx: %v\n", err)
		return configs.ExitExecError
	}
	return configs.ExitOK
}
