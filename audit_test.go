package authgate

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

// newAuditedFlow builds a flow with the audit pipeline enabled and a capture
// channel on the sink side.
func newAuditedFlow(t *testing.T, provider IdentityProvider) (*Flow, *ChannelSink, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	sink := NewChannelSink(32)

	flow := newTestFlow(t, rdb, provider)
	flow.audit = newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 32,
		DropIfFull: true,
	}, sink)

	cleanup := func() {
		flow.Close()
		mr.Close()
	}
	return flow, sink, cleanup
}

func waitForAuditEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s audit event", eventType)
		}
	}
}

func TestAuditSignInSuccessEvent(t *testing.T) {
	provider := &mockIdentityProvider{
		signInResult: &SignInResult{Done: true},
	}
	flow, sink, cleanup := newAuditedFlow(t, provider)
	defer cleanup()

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := flow.BeginSignIn(ctx, "alice@example.com", "pw"); err != nil {
		t.Fatalf("BeginSignIn failed: %v", err)
	}

	event := waitForAuditEvent(t, sink, "sign_in_success")
	if !event.Success {
		t.Fatal("expected success flag on sign-in event")
	}
	if event.AttemptID == "" {
		t.Fatal("expected attempt ID on sign-in event")
	}
	if event.UserID != "alice@example.com" {
		t.Fatalf("expected provisional user ID, got %q", event.UserID)
	}
	if event.IP != "203.0.113.7" {
		t.Fatalf("expected client IP from context, got %q", event.IP)
	}
}

func TestAuditFailureEventCarriesErrorCode(t *testing.T) {
	provider := &mockIdentityProvider{
		signInErr: &ProviderError{Code: CodeNotAuthorized},
	}
	flow, sink, cleanup := newAuditedFlow(t, provider)
	defer cleanup()

	_, _ = flow.BeginSignIn(context.Background(), "alice@example.com", "wrong")

	event := waitForAuditEvent(t, sink, "sign_in_failure")
	if event.Success {
		t.Fatal("expected failure flag")
	}
	if event.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("expected invalid_credentials error code, got %q", event.Error)
	}
	if event.Metadata["identifier"] != "alice@example.com" {
		t.Fatalf("expected identifier metadata, got %v", event.Metadata)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := &mockIdentityProvider{
		signInResult: &SignInResult{Done: true},
	}
	flow := newTestFlow(t, rdb, provider)
	defer flow.Close()

	if flow.audit != nil {
		t.Fatal("expected nil dispatcher when audit is disabled")
	}
	if _, err := flow.BeginSignIn(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("BeginSignIn failed: %v", err)
	}
	if got := flow.AuditDropped(); got != 0 {
		t.Fatalf("expected zero dropped events, got %d", got)
	}
}

func TestAuditDispatcherDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 64,
		DropIfFull: true,
	}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "sign_out"})
	}
	d.Close()

	if got := sink.Count(); got != 10 {
		t.Fatalf("expected all accepted events delivered before close, got %d", got)
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "sign_in_success",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "sign_out",
		Success:   true,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", len(lines))
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("unmarshal audit line failed: %v", err)
	}
	if event.EventType != "sign_in_success" {
		t.Fatalf("unexpected event type %q", event.EventType)
	}
}
