package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/elimusphere/sphereauth"
	"github.com/elimusphere/sphereauth/mail"
	"github.com/elimusphere/sphereauth/metrics/export/prometheus"
	"github.com/elimusphere/sphereauth/store/memory"
	"github.com/redis/go-redis/v9"
)

type account struct {
	email    string
	password string
}

type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

var codePattern = regexp.MustCompile(`OTP is: (\d+)`)

func (m *mailbox) Send(_ context.Context, msg mail.Message) error {
	match := codePattern.FindStringSubmatch(msg.Body)
	if match == nil {
		return fmt.Errorf("no code in message to %s", msg.To)
	}
	m.mu.Lock()
	m.codes[msg.To] = match[1]
	m.mu.Unlock()
	return nil
}

func (m *mailbox) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

// waitFor polls until n codes arrived or timeout passes, returning the count seen.
func (m *mailbox) waitFor(n int, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		got := len(m.codes)
		m.mu.Unlock()
		if got >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func main() {
	var (
		users       = flag.Int("users", 2000, "number of student accounts to register")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 10000, "verify operations")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		argonMemory = flag.Uint("argon-memory", 8*1024, "argon2 memory in KB")
		printProm   = flag.Bool("prom", false, "print metrics in Prometheus text format")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := sphereauth.DefaultConfig()
	cfg.Password.Memory = uint32(*argonMemory)
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.EnumerationDelayMin = 0
	cfg.PasswordReset.EnumerationDelayMax = 0
	cfg.Mail.QueueSize = *users
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	box := &mailbox{codes: make(map[string]string, *users)}
	engine, err := sphereauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(memory.New()).
		WithMailSender(box).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	accounts := make([]account, *users)
	for i := range accounts {
		accounts[i] = account{
			email:    fmt.Sprintf("student-%d@load.test", i),
			password: fmt.Sprintf("pw-%06d", i),
		}
	}

	fmt.Printf("registering %d accounts...\n", *users)
	registerStats := runPhase(len(accounts), *concurrency, func(_ *rand.Rand, i int) error {
		_, err := engine.Register(ctx, sphereauth.RegisterRequest{
			Name:     fmt.Sprintf("Student %d", i),
			Email:    accounts[i].email,
			Password: accounts[i].password,
			Role:     string(sphereauth.RoleStudent),
		})
		return err
	})

	verifyStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		a := accounts[r.Intn(len(accounts))]
		_, err := engine.Verify(ctx, sphereauth.VerifyRequest{
			Identifier: a.email,
			Password:   a.password,
			Role:       string(sphereauth.RoleStudent),
		})
		return err
	})

	requestStats := runPhase(len(accounts), *concurrency, func(_ *rand.Rand, i int) error {
		return engine.RequestPasswordReset(ctx, accounts[i].email)
	})

	if got := box.waitFor(len(accounts), 30*time.Second); got < len(accounts) {
		fmt.Printf("only %d of %d reset codes delivered\n", got, len(accounts))
	}

	confirmStats := runPhase(len(accounts), *concurrency, func(_ *rand.Rand, i int) error {
		code := box.code(accounts[i].email)
		if code == "" {
			return fmt.Errorf("no code for %s", accounts[i].email)
		}
		return engine.ConfirmPasswordReset(ctx, accounts[i].email, code, accounts[i].password+"!")
	})

	fmt.Println("---- results ----")
	printStats("register", registerStats)
	printStats("verify", verifyStats)
	printStats("reset-request", requestStats)
	printStats("reset-confirm", confirmStats)

	snapshot := engine.MetricsSnapshot()
	fmt.Printf("counters: register=%d login=%d reset_requested=%d reset_confirmed=%d mail_dropped=%d\n",
		snapshot.Counters[sphereauth.MetricRegisterSuccess],
		snapshot.Counters[sphereauth.MetricLoginSuccess],
		snapshot.Counters[sphereauth.MetricPasswordResetRequest],
		snapshot.Counters[sphereauth.MetricPasswordResetConfirmSuccess],
		engine.MailDropped(),
	)
	if *printProm {
		fmt.Print(prometheus.NewPrometheusExporter(engine).Render())
	}
}

// runPhase calls op ops times across concurrency workers and records each latency.
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
