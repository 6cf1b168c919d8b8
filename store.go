package authgate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/techstore/authgate/internal/stores"
)

// redisChallengeStore adapts the internal redis record layout to the
// engine's [ChallengeStore] contract.
type redisChallengeStore struct {
	inner *stores.RedisChallengeStore
}

func newRedisChallengeStore(client redis.UniversalClient, prefix, scope string, ttl time.Duration) ChallengeStore {
	return &redisChallengeStore{
		inner: stores.NewRedisChallengeStore(client, prefix, scope, ttl),
	}
}

func (s *redisChallengeStore) Save(ctx context.Context, c PendingChallenge) error {
	record := &stores.ChallengeRecord{
		Session: c.ProviderSession,
	}
	if c.Kind == ChallengeTOTPSetup {
		record.TOTPSetup = true
	} else {
		record.MFAKind = stepNameForKind(c.Kind)
	}
	if err := s.inner.Save(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

// Load fails soft on content: an unrecognized or missing kind comes back as
// an inactive challenge. Only backend unavailability is an error.
func (s *redisChallengeStore) Load(ctx context.Context) (PendingChallenge, error) {
	record, err := s.inner.Load(ctx)
	if err != nil {
		return PendingChallenge{}, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	if !record.Active() {
		return PendingChallenge{}, nil
	}
	if record.TOTPSetup {
		return PendingChallenge{
			Kind:            ChallengeTOTPSetup,
			ProviderSession: record.Session,
		}, nil
	}
	kind, ok := kindForStepName(record.MFAKind)
	if !ok {
		return PendingChallenge{}, nil
	}
	return PendingChallenge{
		Kind:            kind,
		ProviderSession: record.Session,
	}, nil
}

func (s *redisChallengeStore) Clear(ctx context.Context) error {
	if err := s.inner.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

func stepNameForKind(kind ChallengeKind) string {
	switch kind {
	case ChallengeMFASelection:
		return StepMFASelection
	case ChallengeSMSCode:
		return StepSMSCode
	case ChallengeEmailCode:
		return StepEmailCode
	case ChallengeTOTPCode:
		return StepTOTPCode
	case ChallengeTOTPSetup:
		return StepTOTPSetup
	default:
		return ""
	}
}

// kindForStepName is the strict inverse of stepNameForKind. Unlike
// classifyNextStep it does not default unknown names, so stale or corrupt
// store content degrades to no challenge instead of a phantom prompt.
func kindForStepName(name string) (ChallengeKind, bool) {
	switch name {
	case StepMFASelection:
		return ChallengeMFASelection, true
	case StepSMSCode:
		return ChallengeSMSCode, true
	case StepEmailCode:
		return ChallengeEmailCode, true
	case StepTOTPCode:
		return ChallengeTOTPCode, true
	case StepTOTPSetup:
		return ChallengeTOTPSetup, true
	default:
		return ChallengeNone, false
	}
}
