package authgate

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// BeginSignIn starts a credential sign-in. On a challenge-free success the
// session becomes authenticated synchronously with a provisional profile
// derived from the email address; background enrichment replaces it shortly
// after. When the provider demands another step, the returned outcome names
// the challenge and the attempt is parked as a pending challenge.
//
// BeginSignIn may return an error when input validation, dependency calls, or security checks fail.
// BeginSignIn does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) BeginSignIn(ctx context.Context, email, password string) (*SignInOutcome, error) {
	if f == nil || f.provider == nil {
		return nil, ErrFlowNotReady
	}

	attemptID := uuid.NewString()
	f.mu.Lock()
	f.attemptID = attemptID
	f.identifier = email
	f.mu.Unlock()

	result, err := f.provider.InitiateSignIn(ctx, email, password)
	if err != nil {
		mapped := classifySignInError(err)
		f.setUnauthenticated(ctx)
		f.metricInc(MetricSignInFailure)
		f.emitAudit(ctx, auditEventSignInFailure, false, attemptID, "", mapped, func() map[string]string {
			return map[string]string{
				"identifier": email,
			}
		})
		return nil, mapped
	}
	if result == nil {
		return nil, ErrFlowNotReady
	}

	if result.Done {
		profile := provisionalProfile(email, f.config.Profile.AssumeMFAEnabled)
		f.setAuthenticated(ctx, profile)
		f.metricInc(MetricSignInSuccess)
		f.emitAudit(ctx, auditEventSignInSuccess, true, attemptID, profile.ID, nil, nil)
		f.scheduleReconcile(f.config.Reconcile.SignInDelay)
		return &SignInOutcome{Authenticated: true}, nil
	}

	kind := classifyNextStep(result.Step.Name)
	pending := PendingChallenge{
		Kind:            kind,
		ProviderSession: result.Step.Session,
	}
	f.setPending(ctx, pending, result.Step.Enrollment)
	f.metricInc(MetricChallengeIssued)
	f.emitAudit(ctx, auditEventChallengeIssued, true, attemptID, "", nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
			"challenge":  kind.String(),
		}
	})

	outcome := &SignInOutcome{Challenge: kind}
	if kind == ChallengeTOTPSetup && result.Step.Enrollment != nil {
		enrollment, err := buildEnrollment(result.Step.Enrollment, f.config.Issuer, email)
		if err != nil {
			log.Print("authgate: totp setup uri build failed")
		} else {
			outcome.Enrollment = enrollment
			f.metricInc(MetricTOTPSetupStarted)
			f.emitAudit(ctx, auditEventTOTPSetupStarted, true, attemptID, "", nil, nil)
		}
	}
	return outcome, nil
}

// Cancel abandons the in-progress sign-in attempt and clears its pending
// challenge everywhere.
//
// Cancel may return an error when input validation, dependency calls, or security checks fail.
// Cancel does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) Cancel(ctx context.Context) {
	if f == nil {
		return
	}
	f.mu.RLock()
	attemptID := f.attemptID
	active := f.pending.Active()
	f.mu.RUnlock()

	f.setUnauthenticated(ctx)
	if active {
		f.metricInc(MetricChallengeCancelled)
		f.emitAudit(ctx, auditEventChallengeCancelled, true, attemptID, "", nil, nil)
	}
}

// provisionalProfile is the synchronous stand-in installed before provider
// attributes arrive. The email doubles as the ID because it is the only
// identity fact credential sign-in proves by itself.
func provisionalProfile(email string, assumeMFA bool) *Profile {
	return &Profile{
		ID:            email,
		Email:         email,
		Username:      emailLocalPart(email),
		Role:          RoleUser,
		EmailVerified: true,
		MFAEnabled:    assumeMFA,
	}
}
