package authgate

import "context"

// RequestPasswordReset asks the provider to start a reset for the account.
// The returned step reports where the confirmation code went; resets are
// always code-confirmed, so CodeSent false means the provider short-circuited
// and the caller should treat the reset as not started.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) RequestPasswordReset(ctx context.Context, email string) (*ResetStep, error) {
	if f == nil || f.provider == nil {
		return nil, ErrFlowNotReady
	}

	step, err := f.provider.InitiatePasswordReset(ctx, email)
	if err != nil {
		mapped := classifySignInError(err)
		f.emitAudit(ctx, auditEventResetRequested, false, "", "", mapped, func() map[string]string {
			return map[string]string{
				"identifier": email,
			}
		})
		return nil, mapped
	}
	if step == nil {
		step = &ResetStep{}
	}

	f.metricInc(MetricPasswordResetRequested)
	f.emitAudit(ctx, auditEventResetRequested, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})
	return step, nil
}

// ConfirmPasswordReset completes the reset with the delivered code and the
// replacement password. Existing sessions are untouched; the user signs in
// again with the new credential.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if f == nil || f.provider == nil {
		return ErrFlowNotReady
	}

	if err := f.provider.ConfirmPasswordReset(ctx, email, code, newPassword); err != nil {
		mapped := classifyChallengeError(err)
		f.emitAudit(ctx, auditEventResetConfirmed, false, "", "", mapped, func() map[string]string {
			return map[string]string{
				"identifier": email,
			}
		})
		return mapped
	}

	f.metricInc(MetricPasswordResetConfirmed)
	f.emitAudit(ctx, auditEventResetConfirmed, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})
	return nil
}
