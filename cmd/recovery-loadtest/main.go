package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goRecovery "github.com/agriskills/goRecovery"
	"github.com/agriskills/goRecovery/jwt"
	"github.com/agriskills/goRecovery/password"
	"github.com/agriskills/goRecovery/provider/redisidp"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// codeBook records the last code texted to each phone.
type codeBook struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBook) SendOTP(_ context.Context, phone, code string) error {
	b.mu.Lock()
	b.codes[phone] = code
	b.mu.Unlock()
	return nil
}

func (b *codeBook) SendResetLink(context.Context, string, string) error { return nil }

func (b *codeBook) get(phone string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[phone]
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of directory users to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		flows       = flag.Int("flows", 20000, "full phone recoveries to run")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "rcvlt", "redis key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *flows <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and flows must be > 0")
		os.Exit(2)
	}

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

	dir := redisidp.NewMemoryDirectory()
	for i := 0; i < *users; i++ {
		dir.Put(redisidp.User{ID: fmt.Sprintf("user-%d", i), Phone: phoneFor(i)})
	}

	book := &codeBook{codes: make(map[string]string, *users)}
	cfg := redisidp.DefaultConfig()
	cfg.KeyPrefix = *prefix
	cfg.Throttle.Enabled = false
	cfg.Grant = jwt.Config{
		GrantTTL:      time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("loadtest-signing-key-0123456789abcdef"),
		Issuer:        "goRecovery",
	}
	// minimum argon2 cost: the run measures the flow, not the hash
	cfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

	idp, err := redisidp.New(client, dir, book, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "provider: %v\n", err)
		os.Exit(1)
	}

	engine, err := goRecovery.New().
		WithProvider(idp).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	stats := runFlows(context.Background(), engine, book, *users, *flows, *concurrency)

	fmt.Println("---- results ----")
	printStats("submit_phone", stats.issue)
	printStats("submit_otp", stats.confirm)
	printStats("submit_password", stats.password)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: started=%d otp_issued=%d otp_confirmed=%d passwords_set=%d stale=%d timeouts=%d\n",
		snap.Counters[goRecovery.MetricFlowStarted],
		snap.Counters[goRecovery.MetricOTPIssueSuccess],
		snap.Counters[goRecovery.MetricOTPConfirmSuccess],
		snap.Counters[goRecovery.MetricPasswordSetSuccess],
		snap.Counters[goRecovery.MetricStaleResultDiscarded],
		snap.Counters[goRecovery.MetricProviderTimeout],
	)
}

type flowStats struct {
	issue    phaseStats
	confirm  phaseStats
	password phaseStats
}

type sampler struct {
	mu        sync.Mutex
	latencies []time.Duration
	failures  int64
}

func (s *sampler) record(d time.Duration, err error) {
	if err != nil {
		atomic.AddInt64(&s.failures, 1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

// runFlows drives complete phone recoveries. Each flow claims a distinct
// user slot so two workers never race on one phone's code.
func runFlows(ctx context.Context, engine *goRecovery.Engine, book *codeBook, users, flows, concurrency int) flowStats {
	var (
		wg                      sync.WaitGroup
		cursor                  int64
		issue, confirm, setPass sampler
		slots                   = make([]sync.Mutex, users)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= flows {
					return
				}
				slot := i % users
				slots[slot].Lock()
				runOne(ctx, engine, book, slot, &issue, &confirm, &setPass)
				slots[slot].Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)

	return flowStats{
		issue:    computeStats(total, issue.latencies, issue.failures),
		confirm:  computeStats(total, confirm.latencies, confirm.failures),
		password: computeStats(total, setPass.latencies, setPass.failures),
	}
}

func runOne(ctx context.Context, engine *goRecovery.Engine, book *codeBook, slot int, issue, confirm, setPass *sampler) {
	c, err := engine.Start(ctx)
	if err != nil {
		issue.record(0, err)
		return
	}
	if err := c.SelectMethod(goRecovery.MethodPhone); err != nil {
		issue.record(0, err)
		return
	}

	phone := phoneFor(slot)
	t0 := time.Now()
	err = c.SubmitPhone(ctx, phone)
	issue.record(time.Since(t0), err)
	if err != nil {
		return
	}

	t0 = time.Now()
	err = c.SubmitOTP(ctx, book.get(phone))
	confirm.record(time.Since(t0), err)
	if err != nil {
		return
	}

	pw := fmt.Sprintf("loadtest-password-%d", slot)
	t0 = time.Now()
	err = c.SubmitPassword(ctx, pw, pw)
	setPass.record(time.Since(t0), err)
}

// phoneFor returns a distinct E.164 number for slot i.
func phoneFor(i int) string {
	return fmt.Sprintf("+91%010d", 9000000000+i)
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
		return phaseStats{total: total, failures: failures}
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
