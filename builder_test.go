package authgate

import (
	"testing"
)

func TestBuildRequiresProvider(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	_, err := New().WithRedis(rdb).Build()
	if err == nil {
		t.Fatal("expected Build to fail without a provider")
	}
}

func TestBuildRequiresRedisOrStore(t *testing.T) {
	_, err := New().WithProvider(&mockIdentityProvider{}).Build()
	if err == nil {
		t.Fatal("expected Build to fail without redis or a challenge store")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := DefaultConfig()
	cfg.Challenge.RedisPrefix = ""

	_, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(&mockIdentityProvider{}).
		Build()
	if err == nil {
		t.Fatal("expected Build to reject an invalid config")
	}
}

func TestBuildRejectsReuse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	b := New().WithRedis(rdb).WithProvider(&mockIdentityProvider{})

	flow, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer flow.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build on the same builder to fail")
	}
}

func TestBuildWithChallengeStoreSkipsRedis(t *testing.T) {
	mr, store := newTestChallengeStore(t)
	defer mr.Close()

	flow, err := New().
		WithChallengeStore(store).
		WithProvider(&mockIdentityProvider{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer flow.Close()

	session := flow.Session()
	if !session.Loading {
		t.Fatal("expected a fresh flow to report loading until Start settles it")
	}
}
