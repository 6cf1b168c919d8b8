package authgate

import (
	"context"
	"log"
)

// ResolveMFA submits the user's answer to the pending challenge. When no
// challenge is pending the attempt is rejected as expired without contacting
// the provider. The pending challenge is retired whatever the outcome; a
// failed code means restarting sign-in, not replaying a consumed provider
// session.
//
// ResolveMFA may return an error when input validation, dependency calls, or security checks fail.
// ResolveMFA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) ResolveMFA(ctx context.Context, code string) (*SignInOutcome, error) {
	if f == nil || f.provider == nil {
		return nil, ErrFlowNotReady
	}

	f.mu.RLock()
	attemptID := f.attemptID
	identifier := f.identifier
	f.mu.RUnlock()

	pending := f.PendingChallenge(ctx)
	if !pending.Active() || pending.ProviderSession == "" {
		f.clearChallenge(ctx)
		f.metricInc(MetricSessionExpired)
		f.emitAudit(ctx, auditEventSessionExpired, false, attemptID, "", ErrSessionExpired, nil)
		return nil, ErrSessionExpired
	}

	result, err := f.provider.SubmitChallengeResponse(ctx, pending.ProviderSession, code)
	if err != nil {
		mapped := classifyChallengeError(err)
		f.setUnauthenticated(ctx)
		f.metricInc(MetricMFAFailure)
		f.emitAudit(ctx, auditEventMFAFailure, false, attemptID, "", mapped, func() map[string]string {
			return map[string]string{
				"challenge": pending.Kind.String(),
			}
		})
		return nil, mapped
	}
	if result == nil {
		return nil, ErrFlowNotReady
	}

	if !result.Done {
		// Chained challenge: the provider wants yet another step.
		kind := classifyNextStep(result.Step.Name)
		next := PendingChallenge{
			Kind:            kind,
			ProviderSession: result.Step.Session,
		}
		f.setPending(ctx, next, result.Step.Enrollment)
		f.metricInc(MetricChallengeIssued)
		f.emitAudit(ctx, auditEventChallengeIssued, true, attemptID, "", nil, func() map[string]string {
			return map[string]string{
				"challenge": kind.String(),
			}
		})

		outcome := &SignInOutcome{Challenge: kind}
		if kind == ChallengeTOTPSetup && result.Step.Enrollment != nil {
			enrollment, err := buildEnrollment(result.Step.Enrollment, f.config.Issuer, identifier)
			if err != nil {
				log.Print("authgate: totp setup uri build failed")
			} else {
				outcome.Enrollment = enrollment
			}
		}
		return outcome, nil
	}

	if pending.Kind == ChallengeTOTPSetup {
		f.metricInc(MetricTOTPSetupConfirmed)
		f.emitAudit(ctx, auditEventTOTPSetupConfirmed, true, attemptID, "", nil, nil)
	}

	profile := placeholderProfile(f.config.Profile.AssumeMFAEnabled)
	f.setAuthenticated(ctx, profile)
	f.metricInc(MetricMFASuccess)
	f.emitAudit(ctx, auditEventMFASuccess, true, attemptID, "", nil, func() map[string]string {
		return map[string]string{
			"challenge": pending.Kind.String(),
		}
	})
	f.scheduleReconcile(f.config.Reconcile.ChallengeDelay)

	return &SignInOutcome{Authenticated: true}, nil
}

// placeholderProfile stands in after a resolved challenge, where not even the
// email address is known locally. Enrichment overwrites it within the
// reconcile delay.
func placeholderProfile(assumeMFA bool) *Profile {
	return &Profile{
		ID:            "temp",
		Email:         "temp",
		Username:      "temp",
		Role:          RoleUser,
		EmailVerified: true,
		MFAEnabled:    assumeMFA,
	}
}
