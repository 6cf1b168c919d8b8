package authgate

import "context"

// SignUp registers a new account with the provider. The email doubles as the
// sign-in identifier; extra attributes ride along unchanged. The session
// state does not move until the account is confirmed and signed in.
//
// SignUp may return an error when input validation, dependency calls, or security checks fail.
// SignUp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) SignUp(ctx context.Context, email, password string, attrs Attributes) error {
	if f == nil || f.provider == nil {
		return ErrFlowNotReady
	}
	if attrs == nil {
		attrs = Attributes{}
	}
	if attrs[AttrEmail] == "" {
		attrs[AttrEmail] = email
	}

	if err := f.provider.SignUp(ctx, email, password, attrs); err != nil {
		mapped := classifySignInError(err)
		f.emitAudit(ctx, auditEventSignUpRequested, false, "", "", mapped, func() map[string]string {
			return map[string]string{
				"identifier": email,
			}
		})
		return mapped
	}

	f.metricInc(MetricSignUpRequested)
	f.emitAudit(ctx, auditEventSignUpRequested, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})
	return nil
}

// ConfirmSignUp describes the confirmsignup operation and its observable behavior.
//
// ConfirmSignUp may return an error when input validation, dependency calls, or security checks fail.
// ConfirmSignUp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) ConfirmSignUp(ctx context.Context, email, code string) error {
	if f == nil || f.provider == nil {
		return ErrFlowNotReady
	}

	if err := f.provider.ConfirmSignUp(ctx, email, code); err != nil {
		mapped := classifyChallengeError(err)
		f.emitAudit(ctx, auditEventSignUpConfirmed, false, "", "", mapped, func() map[string]string {
			return map[string]string{
				"identifier": email,
			}
		})
		return mapped
	}

	f.metricInc(MetricSignUpConfirmed)
	f.emitAudit(ctx, auditEventSignUpConfirmed, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})
	return nil
}

// ResendSignUpCode describes the resendsignupcode operation and its observable behavior.
//
// ResendSignUpCode may return an error when input validation, dependency calls, or security checks fail.
// ResendSignUpCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) ResendSignUpCode(ctx context.Context, email string) error {
	if f == nil || f.provider == nil {
		return ErrFlowNotReady
	}

	if err := f.provider.ResendSignUpCode(ctx, email); err != nil {
		return classifySignInError(err)
	}

	f.emitAudit(ctx, auditEventSignUpCodeResent, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})
	return nil
}
