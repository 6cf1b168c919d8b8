package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrChallengeBackend = errors.New("challenge store backend unavailable")
)

// ChallengeRecord is the durable form of a pending sign-in challenge.
// MFAKind carries the provider's next-step name when a code challenge is
// pending; TOTPSetup is the separate enrollment flag; Session is the opaque
// provider continuation handle. The three fields live under three keys so a
// reload can inspect each independently, matching the storage layout the
// storefront client always used.
type ChallengeRecord struct {
	MFAKind   string
	TOTPSetup bool
	Session   string
}

// Active reports whether the record describes a pending challenge.
func (r *ChallengeRecord) Active() bool {
	return r.MFAKind != "" || r.TOTPSetup
}

type RedisChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
	scope  string
	ttl    time.Duration
}

func NewRedisChallengeStore(redisClient redis.UniversalClient, prefix, scope string, ttl time.Duration) *RedisChallengeStore {
	if prefix == "" {
		prefix = "ag"
	}
	return &RedisChallengeStore{
		redis:  redisClient,
		prefix: prefix,
		scope:  scope,
		ttl:    ttl,
	}
}

func (s *RedisChallengeStore) keyMFARequired() string {
	return s.prefix + ":" + s.scope + ":mfaRequired"
}

func (s *RedisChallengeStore) keyTOTPSetupRequired() string {
	return s.prefix + ":" + s.scope + ":totpSetupRequired"
}

func (s *RedisChallengeStore) keySignInSession() string {
	return s.prefix + ":" + s.scope + ":signInSession"
}

// Save writes all three keys in one transaction so a concurrent Load never
// observes a half-written challenge. Last write wins across instances
// sharing a scope.
func (s *RedisChallengeStore) Save(ctx context.Context, record *ChallengeRecord) error {
	setup := "false"
	if record.TOTPSetup {
		setup = "true"
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keyMFARequired(), record.MFAKind, s.ttl)
		pipe.Set(ctx, s.keyTOTPSetupRequired(), setup, s.ttl)
		pipe.Set(ctx, s.keySignInSession(), record.Session, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

// Load reads the pending challenge for this scope. Missing keys yield an
// inactive record, not an error: absence of a challenge is the normal state.
func (s *RedisChallengeStore) Load(ctx context.Context) (*ChallengeRecord, error) {
	values, err := s.redis.MGet(ctx,
		s.keyMFARequired(),
		s.keyTOTPSetupRequired(),
		s.keySignInSession(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record := &ChallengeRecord{}
	if v, ok := values[0].(string); ok {
		record.MFAKind = v
	}
	if v, ok := values[1].(string); ok {
		record.TOTPSetup = v == "true"
	}
	if v, ok := values[2].(string); ok {
		record.Session = v
	}
	return record, nil
}

// Clear removes all three keys together.
func (s *RedisChallengeStore) Clear(ctx context.Context) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keyMFARequired())
		pipe.Del(ctx, s.keyTOTPSetupRequired())
		pipe.Del(ctx, s.keySignInSession())
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}
