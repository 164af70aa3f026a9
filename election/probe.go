package election

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set"
	"golang.org/x/sync/errgroup"

	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/wire"
)

// Dialer opens a probe connection to a configured peer and reports its
// claimed role and config hash, or an error if the peer is unreachable.
// The server package supplies the real TCP implementation; tests supply a
// fake.
type Dialer interface {
	Probe(ctx context.Context, name string) (role wire.Role, configHash [32]byte, err error)
}

// PeerProbe is the per-peer outcome of one probe round.
type PeerProbe struct {
	Name       string
	Reachable  bool
	Role       wire.Role
	ConfigHash [32]byte
	// BadConfig marks a reachable peer whose config hash did not match
	// ours (spec §4.5: "if peer.config_hash != self.config_hash the
	// connection is closed with BadConfig"). Such peers do not count
	// toward quorum or visibility.
	BadConfig bool
}

// Prober runs one master-scan-delay-paced round of probes against every
// other configured server, dialing them concurrently via an errgroup
// (spec §5: CPU/IO-bound probe work is bounded and the teacher's pack
// reaches for x/sync/errgroup for exactly this "probe everything, wait for
// the bounded group" shape).
type Prober struct {
	cfg    *configs.Config
	dialer Dialer
}

// NewProber builds a Prober for cfg's server list, probing through dialer.
func NewProber(cfg *configs.Config, dialer Dialer) *Prober {
	return &Prober{cfg: cfg, dialer: dialer}
}

// ProbeAll dials every configured server other than self concurrently and
// returns one PeerProbe per peer. An individual dial failure never fails
// the round — an unreachable peer is simply not visible this round.
func (p *Prober) ProbeAll(ctx context.Context, selfConfigHash [32]byte) []PeerProbe {
	var mu sync.Mutex
	results := make([]PeerProbe, 0, len(p.cfg.Servers))

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range p.cfg.Servers {
		if name == p.cfg.Name {
			continue
		}
		name := name
		g.Go(func() error {
			pr := PeerProbe{Name: name}
			role, hash, err := p.dialer.Probe(gctx, name)
			if err != nil {
				mu.Lock()
				results = append(results, pr)
				mu.Unlock()
				return nil
			}
			pr.Reachable = true
			pr.Role = role
			pr.ConfigHash = hash
			pr.BadConfig = hash != selfConfigHash
			mu.Lock()
			results = append(results, pr)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Evaluate applies the win condition from spec §4.5: quorum of mutually
// visible servers including self, no higher-ranked Arbitrating peer
// visible, and config-hash agreement with every peer consulted (already
// enforced by excluding BadConfig peers from visibility).
func (m *Machine) Evaluate(probes []PeerProbe) Decision {
	visible := mapset.NewSet()
	visible.Add(m.self)

	selfRank, _ := m.cfg.Rank(m.self)
	higherRankVisible := false

	for _, pr := range probes {
		if !pr.Reachable || pr.BadConfig {
			continue
		}
		visible.Add(pr.Name)
		if pr.Role != wire.RoleArbitrating {
			continue
		}
		rank, ok := m.cfg.Rank(pr.Name)
		if !ok {
			continue
		}
		if rank < selfRank || (rank == selfRank && pr.Name > m.self) {
			higherRankVisible = true
		}
	}

	quorumMet := visible.Cardinality() >= m.cfg.Quorum()
	return Decision{
		VisibleCount:      visible.Cardinality(),
		QuorumMet:         quorumMet,
		HigherRankVisible: higherRankVisible,
		Win:               quorumMet && !higherRankVisible,
	}
}

// Apply drives the Arbitrating -> {Master, Slave} edge from a Decision:
// Promote on Win, Demote otherwise. It is a no-op (returns false) when the
// machine is not currently Arbitrating.
func (m *Machine) Apply(d Decision) bool {
	if d.Win {
		return m.Promote()
	}
	if m.Role() == wire.RoleArbitrating {
		return m.Demote()
	}
	return false
}
