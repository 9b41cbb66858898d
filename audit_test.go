package bankauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trustunion/bankauth/rate"
)

type collectSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *collectSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) snapshot() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func newAuditedEngine(t *testing.T, sink AuditSink) *testEngine {
	t.Helper()

	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false

	identities, otps, notifier := newTestFixtures()

	engine, err := New().
		WithConfig(cfg).
		WithIdentityStore(identities).
		WithOTPStore(otps).
		WithNotifier(notifier).
		WithRateLimiter(rate.NewWindow(rate.Config{Window: time.Minute, Limit: 1000})).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{
		Engine:     engine,
		identities: identities,
		otps:       otps,
		notifier:   notifier,
	}
}

func TestAuditTrailForLoginFlow(t *testing.T) {
	sink := &collectSink{}
	e := newAuditedEngine(t, sink)
	ctx := context.Background()

	res := mustLoginStart(t, e, "amina@trustunion.example")
	if _, err := e.LoginVerify(ctx, res.CustomerID, e.notifier.lastCode(t)); err != nil {
		t.Fatalf("LoginVerify failed: %v", err)
	}
	if _, err := e.LoginVerify(ctx, res.CustomerID, "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}

	e.Close()

	events := sink.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}

	if events[0].EventType != auditEventLoginStart || !events[0].Success {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[0].CustomerID != 1 {
		t.Fatalf("expected customer 1 in start event, got %d", events[0].CustomerID)
	}
	if events[1].EventType != auditEventLoginVerify || !events[1].Success {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	if events[2].EventType != auditEventLoginVerify || events[2].Success {
		t.Fatalf("unexpected third event: %+v", events[2])
	}
	if events[2].Error != string(auditErrCodeInvalid) {
		t.Fatalf("expected error code %q, got %q", auditErrCodeInvalid, events[2].Error)
	}
	if events[2].Metadata["cause"] == "" {
		t.Fatal("expected precise cause in failure metadata")
	}
}

func TestAuditCarriesClientIP(t *testing.T) {
	sink := &collectSink{}
	e := newAuditedEngine(t, sink)

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := e.LoginStart(ctx, "amina@trustunion.example"); err != nil {
		t.Fatalf("LoginStart failed: %v", err)
	}
	if _, err := e.LoginStart(ctx, "nobody@trustunion.example"); !errors.Is(err, ErrIdentifierNotFound) {
		t.Fatalf("expected ErrIdentifierNotFound, got %v", err)
	}

	e.Close()

	events := sink.snapshot()
	var found bool
	for _, ev := range events {
		if ev.IP == "203.0.113.7" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected at least one event carrying the client IP")
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	slow := &blockingSink{release: block}

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, slow)

	// First event occupies the worker, second fills the buffer, the rest
	// must be dropped rather than block the caller.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "x"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}

	close(block)
	d.Close()
}

type blockingSink struct {
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) Emit(_ context.Context, _ AuditEvent) {
	s.once.Do(func() { <-s.release })
}

func TestAuditDispatcherDrainsOnClose(t *testing.T) {
	sink := &collectSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 128, DropIfFull: false}, sink)

	for i := 0; i < 100; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "event"})
	}
	d.Close()

	if got := len(sink.snapshot()); got != 100 {
		t.Fatalf("expected all 100 events delivered, got %d", got)
	}

	// Emitting after close is a no-op, not a panic.
	d.Emit(context.Background(), AuditEvent{EventType: "late"})
}

func TestAuditDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, &collectSink{})
	if d != nil {
		t.Fatal("disabled audit must not allocate a dispatcher")
	}
	// All methods tolerate the nil receiver.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports zero drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
		EventType: "login_verify",
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var decoded AuditEvent
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("decoding sink output: %v", err)
	}
	if decoded.EventType != "login_verify" || !decoded.Success {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(4)

	sink.Emit(context.Background(), AuditEvent{EventType: "a"})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "a" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("expected buffered event")
	}

	// A full channel with a cancelled context must not block.
	for i := 0; i < 4; i++ {
		sink.Emit(context.Background(), AuditEvent{EventType: "fill"})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		sink.Emit(ctx, AuditEvent{EventType: "overflow"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on full channel with cancelled context")
	}
}
