package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trustunion/bankauth"
	"github.com/trustunion/bankauth/rate"
	"github.com/trustunion/bankauth/role"
)

func main() {
	var (
		customers   = flag.Int("customers", 10000, "number of customers to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (login + authorize)")
		redisAddr   = flag.String("redis-addr", "", "redis address for the shared limiter; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *customers <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "customers, concurrency, and ops must be > 0")
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

	priv, pub, err := generateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "key generation failed: %v\n", err)
		os.Exit(1)
	}

	identities := newMemIdentityStore(*customers)
	otps := newMemOTPStore()
	codes := &captureNotifier{codes: make(map[string]string)}

	cfg := bankauth.DefaultConfig()
	cfg.JWT.PrivateKeyPEM = priv
	cfg.JWT.PublicKeyPEM = pub
	// The budget would choke the workers; give each key plenty of room.
	cfg.RateLimit.Limit = *ops * 2
	cfg.RateLimit.Window = time.Hour

	engine, err := bankauth.New().
		WithConfig(cfg).
		WithIdentityStore(identities).
		WithOTPStore(otps).
		WithNotifier(codes).
		WithRateLimiter(rate.NewRedisLimiter(client, rate.Config{
			Window: time.Hour,
			Limit:  *ops * 2,
		})).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeded %d customers\n", *customers)

	loginStats, tokens := runLoginPhase(ctx, engine, codes, *customers, *ops, *concurrency)
	authorizeStats := runAuthorizePhase(ctx, engine, tokens, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authorize", authorizeStats)
}

func runLoginPhase(ctx context.Context, engine *bankauth.Engine, codes *captureNotifier, customers, ops, concurrency int) (phaseStats, []string) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		tokens    = make([]string, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				customerID := int64(r.Intn(customers) + 1)
				identifier := fmt.Sprintf("customer%d@trustunion.example", customerID)

				t0 := time.Now()
				res, err := engine.LoginStart(ctx, identifier)
				var pair *bankauth.TokenPair
				if err == nil {
					pair, err = engine.LoginVerify(ctx, res.CustomerID, codes.code(res.CustomerID))
				}
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else {
					tokens = append(tokens, pair.AccessToken)
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures), tokens
}

func runAuthorizePhase(ctx context.Context, engine *bankauth.Engine, tokens []string, ops, concurrency int) phaseStats {
	if len(tokens) == 0 {
		return phaseStats{}
	}

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
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				token := tokens[r.Intn(len(tokens))]
				t0 := time.Now()
				_, err := engine.Authorize(ctx, token, role.CustomerOnly)
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

func generateKeyPair() (privPEM, pubPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	privPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})
	return privPEM, pubPEM, nil
}

type memIdentityStore struct {
	byEmail map[string]bankauth.Identity
	byID    map[int64]bankauth.Identity
}

func newMemIdentityStore(n int) *memIdentityStore {
	s := &memIdentityStore{
		byEmail: make(map[string]bankauth.Identity, n),
		byID:    make(map[int64]bankauth.Identity, n),
	}
	for i := 1; i <= n; i++ {
		id := bankauth.Identity{
			CustomerID: int64(i),
			Name:       fmt.Sprintf("Customer %d", i),
			Email:      fmt.Sprintf("customer%d@trustunion.example", i),
			Phone:      fmt.Sprintf("2439900%05d", i),
		}
		s.byEmail[id.Email] = id
		s.byID[id.CustomerID] = id
	}
	return s
}

func (s *memIdentityStore) FindByEmail(_ context.Context, email string) (bankauth.Identity, error) {
	id, ok := s.byEmail[email]
	if !ok {
		return bankauth.Identity{}, bankauth.ErrIdentifierNotFound
	}
	return id, nil
}

func (s *memIdentityStore) FindByPhone(_ context.Context, _ string) (bankauth.Identity, error) {
	return bankauth.Identity{}, bankauth.ErrIdentifierNotFound
}

func (s *memIdentityStore) FindByAccountNumber(_ context.Context, _ string) (bankauth.Identity, error) {
	return bankauth.Identity{}, bankauth.ErrIdentifierNotFound
}

func (s *memIdentityStore) FindByCustomerID(_ context.Context, customerID int64) (bankauth.Identity, error) {
	id, ok := s.byID[customerID]
	if !ok {
		return bankauth.Identity{}, bankauth.ErrIdentifierNotFound
	}
	return id, nil
}

func (s *memIdentityStore) RolesByCustomer(_ context.Context, _ int64) ([]role.Role, error) {
	return []role.Role{role.Customer}, nil
}

type memOTPStore struct {
	mu     sync.Mutex
	latest map[string]bankauth.OTPRecord
	byID   map[uuid.UUID]*bankauth.OTPRecord
}

func newMemOTPStore() *memOTPStore {
	return &memOTPStore{
		latest: make(map[string]bankauth.OTPRecord),
		byID:   make(map[uuid.UUID]*bankauth.OTPRecord),
	}
}

func otpKey(customerID int64, purpose bankauth.Purpose) string {
	return fmt.Sprintf("%d/%s", customerID, purpose)
}

func (s *memOTPStore) Insert(_ context.Context, rec bankauth.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := rec
	s.latest[otpKey(rec.CustomerID, rec.Purpose)] = stored
	s.byID[rec.CodeID] = &stored
	return nil
}

func (s *memOTPStore) LatestForPurpose(_ context.Context, customerID int64, purpose bankauth.Purpose) (bankauth.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.latest[otpKey(customerID, purpose)]
	if !ok {
		return bankauth.OTPRecord{}, bankauth.ErrCodeNotFound
	}
	if live, ok := s.byID[rec.CodeID]; ok {
		return *live, nil
	}
	return rec, nil
}

func (s *memOTPStore) MarkUsed(_ context.Context, codeID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[codeID]
	if !ok || rec.Used {
		return false, nil
	}
	rec.Used = true
	return true, nil
}

func (s *memOTPStore) IncrementAttempts(_ context.Context, codeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.byID[codeID]; ok {
		rec.Attempts++
	}
	return nil
}

type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func (n *captureNotifier) Send(_ context.Context, msg bankauth.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[msg.Destination] = extractCode(msg.Body)
	return nil
}

func (n *captureNotifier) code(customerID int64) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[fmt.Sprintf("customer%d@trustunion.example", customerID)]
}

// extractCode pulls the digit run out of the rendered message body.
func extractCode(body string) string {
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			continue
		}
		j := i
		for j < len(body) && body[j] >= '0' && body[j] <= '9' {
			j++
		}
		if j-i >= 6 {
			return body[i:j]
		}
		i = j
	}
	return ""
}
