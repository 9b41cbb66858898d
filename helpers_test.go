package bankauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trustunion/bankauth/rate"
	"github.com/trustunion/bankauth/role"
)

var (
	testKeyOnce sync.Once
	testKeyPriv []byte
	testKeyPub  []byte
)

// testKeyPair generates one RSA key pair per test binary; key generation is
// too slow to repeat per test.
func testKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()

	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKeyPriv = pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(err)
		}
		testKeyPub = pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: pubDER,
		})
	})

	return testKeyPriv, testKeyPub
}

var (
	foreignKeyOnce sync.Once
	foreignPrivPEM []byte
	foreignPubPEM  []byte
)

// foreignKeyPair is a second key pair for signature-rejection tests.
func foreignKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()

	foreignKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		foreignPrivPEM = pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(err)
		}
		foreignPubPEM = pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: pubDER,
		})
	})

	return foreignPrivPEM, foreignPubPEM
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

type mockIdentityStore struct {
	mu         sync.Mutex
	identities []Identity
	roles      map[int64][]role.Role
	failWith   error
}

func (s *mockIdentityStore) find(match func(Identity) bool) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Identity{}, s.failWith
	}
	for _, id := range s.identities {
		if match(id) {
			return id, nil
		}
	}
	return Identity{}, ErrIdentifierNotFound
}

func (s *mockIdentityStore) FindByEmail(_ context.Context, email string) (Identity, error) {
	return s.find(func(id Identity) bool { return id.Email == email })
}

func (s *mockIdentityStore) FindByPhone(_ context.Context, phone string) (Identity, error) {
	return s.find(func(id Identity) bool { return id.Phone == phone })
}

func (s *mockIdentityStore) FindByAccountNumber(_ context.Context, account string) (Identity, error) {
	return s.find(func(id Identity) bool {
		for _, a := range id.AccountNumbers {
			if a == account {
				return true
			}
		}
		return false
	})
}

func (s *mockIdentityStore) FindByCustomerID(_ context.Context, customerID int64) (Identity, error) {
	return s.find(func(id Identity) bool { return id.CustomerID == customerID })
}

func (s *mockIdentityStore) RolesByCustomer(_ context.Context, customerID int64) ([]role.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.roles[customerID], nil
}

func (s *mockIdentityStore) setRoles(customerID int64, roles ...role.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles == nil {
		s.roles = make(map[int64][]role.Role)
	}
	s.roles[customerID] = roles
}

type mockOTPStore struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*OTPRecord
	order    []uuid.UUID
	failWith error
}

func newMockOTPStore() *mockOTPStore {
	return &mockOTPStore{records: make(map[uuid.UUID]*OTPRecord)}
}

func (s *mockOTPStore) Insert(_ context.Context, rec OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	stored := rec
	s.records[rec.CodeID] = &stored
	s.order = append(s.order, rec.CodeID)
	return nil
}

func (s *mockOTPStore) LatestForPurpose(_ context.Context, customerID int64, purpose Purpose) (OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return OTPRecord{}, s.failWith
	}
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if rec.CustomerID == customerID && rec.Purpose == purpose {
			return *rec, nil
		}
	}
	return OTPRecord{}, ErrCodeNotFound
}

// MarkUsed mirrors the conditional UPDATE of the Postgres adapter: only one
// caller wins the flip.
func (s *mockOTPStore) MarkUsed(_ context.Context, codeID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	rec, ok := s.records[codeID]
	if !ok || rec.Used {
		return false, nil
	}
	rec.Used = true
	return true, nil
}

func (s *mockOTPStore) IncrementAttempts(_ context.Context, codeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if rec, ok := s.records[codeID]; ok {
		rec.Attempts++
	}
	return nil
}

func (s *mockOTPStore) expire(codeID uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[codeID]; ok {
		rec.ExpiresAt = at
	}
}

func (s *mockOTPStore) latestID(customerID int64, purpose Purpose) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if rec.CustomerID == customerID && rec.Purpose == purpose {
			return rec.CodeID
		}
	}
	return uuid.Nil
}

type captureNotifier struct {
	mu       sync.Mutex
	messages []Message
	failWith error
}

func (n *captureNotifier) Send(_ context.Context, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *captureNotifier) lastCode(t *testing.T) string {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		t.Fatal("no notification captured")
	}
	body := n.messages[len(n.messages)-1].Body
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
	t.Fatal("no code found in notification body")
	return ""
}

func testConfig(t *testing.T) Config {
	t.Helper()

	priv, pub := testKeyPair(t)
	cfg := DefaultConfig()
	cfg.JWT.PrivateKeyPEM = priv
	cfg.JWT.PublicKeyPEM = pub
	return cfg
}

type mockMPINStore struct {
	mu       sync.Mutex
	hashes   map[int64][]byte
	failWith error
}

func newMockMPINStore() *mockMPINStore {
	return &mockMPINStore{hashes: map[int64][]byte{}}
}

func (s *mockMPINStore) UpsertHash(_ context.Context, customerID int64, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.hashes[customerID] = hash
	return nil
}

func (s *mockMPINStore) Hash(_ context.Context, customerID int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	hash, ok := s.hashes[customerID]
	if !ok {
		return nil, ErrMPINNotSet
	}
	return hash, nil
}

type testEngine struct {
	*Engine
	identities *mockIdentityStore
	otps       *mockOTPStore
	mpins      *mockMPINStore
	notifier   *captureNotifier
}

func newTestFixtures() (*mockIdentityStore, *mockOTPStore, *captureNotifier) {
	identities := &mockIdentityStore{
		identities: []Identity{
			{
				CustomerID:     1,
				Name:           "Amina Diallo",
				Email:          "amina@trustunion.example",
				Phone:          "2439900001",
				AccountNumbers: []string{"400100200300"},
			},
			{
				CustomerID: 2,
				Name:       "Joseph Kabila Jr",
				Email:      "joseph@trustunion.example",
				Phone:      "400100200300", // deliberately collides with customer 1's account number
			},
		},
	}
	identities.setRoles(1, role.Customer)
	return identities, newMockOTPStore(), &captureNotifier{}
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEngine {
	t.Helper()

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	identities, otps, notifier := newTestFixtures()
	mpins := newMockMPINStore()

	engine, err := New().
		WithConfig(cfg).
		WithIdentityStore(identities).
		WithOTPStore(otps).
		WithMPINStore(mpins).
		WithNotifier(notifier).
		WithRateLimiter(rate.NewWindow(rate.Config{Window: time.Minute, Limit: 1000})).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{
		Engine:     engine,
		identities: identities,
		otps:       otps,
		mpins:      mpins,
		notifier:   notifier,
	}
}

func mustLoginStart(t *testing.T, e *testEngine, identifier string) *LoginStartResult {
	t.Helper()

	res, err := e.LoginStart(context.Background(), identifier)
	if err != nil {
		t.Fatalf("LoginStart failed: %v", err)
	}
	return res
}

func mustLogin(t *testing.T, e *testEngine, identifier string) (*TokenPair, int64) {
	t.Helper()

	res := mustLoginStart(t, e, identifier)
	pair, err := e.LoginVerify(context.Background(), res.CustomerID, e.notifier.lastCode(t))
	if err != nil {
		t.Fatalf("LoginVerify failed: %v", err)
	}
	return pair, res.CustomerID
}

func seedIdentity(e *testEngine, id Identity, roles ...role.Role) {
	e.identities.mu.Lock()
	e.identities.identities = append(e.identities.identities, id)
	e.identities.mu.Unlock()
	if len(roles) > 0 {
		e.identities.setRoles(id.CustomerID, roles...)
	}
}
