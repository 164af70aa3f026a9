package election

import (
	"context"
	"time"

	"github.com/gulmcluster/gulmd/wire"
)

// RunProbeLoop drives the arbitration round-trip for a multi-server
// ("fog mode") cluster (spec §4.5; single-server mode is the only case
// Bootstrap settles without this loop): once the machine enters Arbitrating it re-probes
// every master_scan_delay tick and applies the resulting Decision, until
// the probe round produces a Promote or the loop's context is cancelled.
// Pending/Slave -> Arbitrating transitions are the caller's
// responsibility (driven by its own master-liveness checks); this loop
// only paces the probe-and-apply cycle once arbitration has started.
func RunProbeLoop(ctx context.Context, m *Machine, prober *Prober, selfConfigHash [32]byte) {
	ticker := time.NewTicker(m.cfg.MasterScanDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.Role() != wire.RoleArbitrating {
				continue
			}
			probes := prober.ProbeAll(ctx, selfConfigHash)
			decision := m.Evaluate(probes)
			if m.Apply(decision) && decision.Win {
				return
			}
		}
	}
}
