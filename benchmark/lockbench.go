// Package benchmark drives synthetic load through a lock table the same
// way the teacher's benchmark package drives synthetic transactions
// through a coordinator: fixed-size client pool, a YCSB key generator per
// client, a shared Stat collecting latencies (oltp_clients/benchmark/ycsb.go,
// oltp_clients/utils/stat_knobs.go).
package benchmark

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/pingcap/go-ycsb/pkg/generator"

	"github.com/gulmcluster/gulmd/locktable"
	"github.com/gulmcluster/gulmd/wire"
)

// KeyDistribution selects the generator backing a LockBench client's key
// choice (spec §4.7's ltpx load tool enrichment).
type KeyDistribution int

const (
	// Uniform spreads requests evenly over the key space.
	Uniform KeyDistribution = iota
	// Zipfian concentrates requests on a small "hot" subset, the
	// distribution go-ycsb's own YCSB workloads default to.
	Zipfian
)

// LockBenchConfig parameterizes one run.
type LockBenchConfig struct {
	Partitions   int
	NumKeys      int64
	Clients      int
	Distribution KeyDistribution
	// ZipfianSkew is go-ycsb's zipfian constant; 0.99 is the YCSB default.
	ZipfianSkew float64
	RunFor      time.Duration
}

// DefaultLockBenchConfig mirrors go-ycsb's own workloada defaults scaled
// down for a single-process smoke run.
func DefaultLockBenchConfig() LockBenchConfig {
	return LockBenchConfig{
		Partitions:   4,
		NumKeys:      10000,
		Clients:      16,
		Distribution: Zipfian,
		ZipfianSkew:  0.99,
		RunFor:       10 * time.Second,
	}
}

// LockBench drives LockRequestRecord traffic directly against an in-process
// set of locktable.Partitions, the same shape ltpx routes real client
// traffic through (spec §4.7/§4.8), without needing a live TCP cluster.
type LockBench struct {
	cfg        LockBenchConfig
	partitions []*locktable.Partition
	stat       *Stat
	stop       int32
}

// NewLockBench builds the partition set and stat collector for cfg. sink
// receives demotion/LVB callbacks the same way a connected client would.
func NewLockBench(cfg LockBenchConfig, sink locktable.Sink) *LockBench {
	b := &LockBench{cfg: cfg, stat: NewStat()}
	for i := 0; i < cfg.Partitions; i++ {
		b.partitions = append(b.partitions, locktable.New(i, locktable.PartitionConfig{HighLocks: 1 << 20}, sink))
	}
	return b
}

// Stat exposes the run's latency/outcome collector.
func (b *LockBench) Stat() *Stat { return b.stat }

// Stop signals all running clients to exit after their current request.
func (b *LockBench) Stop() { atomic.StoreInt32(&b.stop, 1) }

func (b *LockBench) stopped() bool { return atomic.LoadInt32(&b.stop) != 0 }

func (b *LockBench) partitionFor(key []byte) *locktable.Partition {
	return b.partitions[locktable.PartitionOf(key, len(b.partitions))]
}

// lockBenchClient is one simulated filesystem client: a subid, an owned-key
// set (so it releases before re-acquiring, matching real GFS-style usage),
// and a YCSB key generator feeding its request stream.
type lockBenchClient struct {
	bench *LockBench
	subid uint32
	r     *rand.Rand
	keys  generator.Generator
	held  mapset.Set
}

func newLockBenchClient(bench *LockBench, subid uint32, seed int64) *lockBenchClient {
	c := &lockBenchClient{bench: bench, subid: subid, held: mapset.NewSet()}
	c.r = rand.New(rand.NewSource(seed))
	switch bench.cfg.Distribution {
	case Zipfian:
		c.keys = generator.NewZipfianWithRange(0, bench.cfg.NumKeys-1, bench.cfg.ZipfianSkew)
	default:
		c.keys = generator.NewUniform(0, bench.cfg.NumKeys-1)
	}
	return c
}

func (c *lockBenchClient) nextKey() []byte {
	return []byte(strconv.FormatInt(c.keys.Next(c.r), 10))
}

// step issues one acquire, or a release of a previously-held key, and
// records the outcome.
func (c *lockBenchClient) step() {
	caller := locktable.Caller{Node: "benchclient", Subid: c.subid}

	if c.held.Cardinality() > 0 && c.r.Float64() < 0.4 {
		keyIfc := anyFromSet(c.held)
		key := keyIfc.(string)
		c.held.Remove(key)
		part := c.bench.partitionFor([]byte(key))
		start := time.Now()
		reply := part.Request(caller, &wire.LockRequestRecord{
			Action: wire.ActionRelease,
			Subid:  c.subid,
			Key:    []byte(key),
		}, nil)
		c.bench.stat.Append(Sample{Latency: time.Since(start), Granted: reply != nil && reply.Status == wire.StatusGranted})
		return
	}

	key := c.nextKey()
	part := c.bench.partitionFor(key)
	start := time.Now()
	reply := part.Request(caller, &wire.LockRequestRecord{
		Action:         wire.ActionAcquire,
		Subid:          c.subid,
		Key:            key,
		RequestedState: wire.LockExclusive,
		Flags:          wire.FlagTry,
	}, nil)
	granted := reply != nil && reply.Status == wire.StatusGranted
	c.bench.stat.Append(Sample{Latency: time.Since(start), Granted: granted})
	if granted {
		c.held.Add(string(key))
	}
}

func anyFromSet(s mapset.Set) interface{} {
	for v := range s.Iter() {
		return v
	}
	return nil
}

// Run starts cfg.Clients goroutines issuing requests until cfg.RunFor
// elapses or Stop is called, then prints a final Stat.Log line.
func (b *LockBench) Run() {
	var wg sync.WaitGroup
	for i := 0; i < b.cfg.Clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client := newLockBenchClient(b, uint32(id), int64(id)*11+31)
			for !b.stopped() {
				client.step()
			}
		}(i)
	}

	timer := time.NewTimer(b.cfg.RunFor)
	defer timer.Stop()
	<-timer.C
	b.Stop()
	wg.Wait()
	fmt.Println(b.stat.Log())
}
