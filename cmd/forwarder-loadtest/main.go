// Command forwarder-loadtest drives the forwarding engine against a Redis
// permission store with an in-process ledger and venue, and reports latency
// percentiles for permission changes and guarded swaps. After the run it
// checks that no elevation leaked: the pool's ledger exemption must match
// its registry mask.
package main

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goForwarder "github.com/MrEthical07/goForwarder"
	"github.com/MrEthical07/goForwarder/permission"
	"github.com/MrEthical07/goForwarder/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	adminAddr = common.HexToAddress("0x000000000000000000000000000000000000a0a0")
	proxyAddr = common.HexToAddress("0x000000000000000000000000000000000000f0f0")
	tokenAddr = common.HexToAddress("0x000000000000000000000000000000000000f1f1")
	venueAddr = common.HexToAddress("0x000000000000000000000000000000000000f2f2")
	poolAddr  = common.HexToAddress("0x000000000000000000000000000000000000b0b0")
)

type ledger struct {
	mu     sync.Mutex
	exempt map[common.Address]bool
	delay  time.Duration
}

func (l *ledger) Owner(context.Context) (common.Address, error) { return proxyAddr, nil }

func (l *ledger) IsFeeExempt(_ context.Context, account common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exempt[account], nil
}

func (l *ledger) SetFeeExempt(_ context.Context, account common.Address, exempt bool) error {
	time.Sleep(l.delay)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exempt[account] = exempt
	return nil
}

type venue struct {
	delay    time.Duration
	failRate float64
	calls    atomic.Int64
}

func (v *venue) Swap(context.Context, common.Address, *big.Int) error {
	n := v.calls.Add(1)
	time.Sleep(v.delay)
	if v.failRate > 0 && float64(n%1000)/1000 < v.failRate {
		return fmt.Errorf("simulated venue failure %d", n)
	}
	return nil
}

func main() {
	var (
		accounts    = pflag.Int("accounts", 1000, "number of accounts to seed")
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 20000, "operations per phase")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = pflag.String("prefix", "fwload", "permission key prefix")
		callDelay   = pflag.Duration("call-delay", 0, "simulated ledger and venue latency")
		failRate    = pflag.Float64("venue-fail-rate", 0, "fraction of venue swaps that fail")
	)
	pflag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	led := &ledger{exempt: map[common.Address]bool{}, delay: *callDelay}
	ven := &venue{delay: *callDelay, failRate: *failRate}

	cfg := goForwarder.DefaultConfig()
	cfg.Administrator = adminAddr
	cfg.ProxyAddress = proxyAddr
	cfg.TokenAddress = tokenAddr
	cfg.VenueAddress = venueAddr
	cfg.LiquidityPool = poolAddr
	cfg.Breaker.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := goForwarder.New().
		WithConfig(cfg).
		WithStore(store.NewRedisStore(client, *prefix)).
		WithAsset(led).
		WithVenue(ven).
		WithLogger(zap.NewNop()).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	addrs := make([]common.Address, *accounts)
	for i := range addrs {
		addrs[i] = common.BigToAddress(big.NewInt(int64(0x10000 + i)))
	}

	modifyStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		account := addrs[r.Intn(len(addrs))]
		grant, revoke := permission.Mask64(0), permission.Mask64(0)
		if r.Intn(2) == 0 {
			grant = permission.ExternalPermission
		} else {
			revoke = permission.ExternalPermission
		}
		_, err := engine.ModifyPermission(ctx, adminAddr, account, grant, revoke)
		return err
	})

	value := big.NewInt(1)
	swapStats := runPhase(*ops, *concurrency, func(*rand.Rand, int) error {
		return engine.GuardedSwap(ctx, poolAddr, value)
	})

	fmt.Println("---- results ----")
	printStats("modify", modifyStats)
	printStats("elevated swap", swapStats)

	// Permission changes never reach the ledger, so only the pool, which the
	// engine elevates, can drift.
	leaks := 0
	mask, err := engine.GetPermission(ctx, poolAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read pool mask: %v\n", err)
		os.Exit(1)
	}
	if exempt, _ := led.IsFeeExempt(ctx, poolAddr); exempt != mask.Contains(permission.ExternalPermission) {
		leaks++
	}
	snap := engine.MetricsSnapshot()
	fmt.Printf("venue calls=%d elevated=%d failed=%d restore_failures=%d leaks=%d\n",
		ven.calls.Load(),
		snap.Counters[goForwarder.MetricSwapElevated],
		snap.Counters[goForwarder.MetricSwapFailed],
		snap.Counters[goForwarder.MetricElevationRestoreFailed],
		leaks,
	)
	if leaks > 0 {
		os.Exit(1)
	}
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
