package authgate

import (
	"context"
	"log"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

// PlaceholderSecret is surfaced when a provider setup URI carries no secret
// parameter. The URI itself remains scannable; only manual-entry UIs see
// this value.
const PlaceholderSecret = "PLACEHOLDER_SECRET"

// QRCode renders the setup URI as a PNG suitable for authenticator-app
// scanning.
//
// QRCode may return an error when input validation, dependency calls, or security checks fail.
// QRCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *TOTPEnrollment) QRCode(size int) ([]byte, error) {
	if e == nil || e.SetupURI == "" {
		return nil, ErrEnrollmentUnavailable
	}
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(e.SetupURI, qrcode.Medium, size)
}

// BeginTOTPEnrollment starts authenticator enrollment for the signed-in user
// outside of a sign-in challenge. It is also the recovery path when a setup
// challenge was issued before a restart and the in-memory enrollment handle
// is gone. The setup-pending flag is recorded durably, so an enrollment
// interrupted by a reload is still reported as pending; the authenticated
// session itself is left untouched.
//
// BeginTOTPEnrollment may return an error when input validation, dependency calls, or security checks fail.
// BeginTOTPEnrollment does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) BeginTOTPEnrollment(ctx context.Context) (*TOTPEnrollment, error) {
	if f == nil || f.provider == nil {
		return nil, ErrFlowNotReady
	}

	f.mu.RLock()
	attemptID := f.attemptID
	account := ""
	if f.session.User != nil {
		account = f.session.User.Email
	}
	f.mu.RUnlock()

	handle, err := f.provider.BeginTOTPEnrollment(ctx)
	if err != nil {
		if isUnauthenticated(err) {
			return nil, ErrNotAuthenticated
		}
		return nil, ErrEnrollmentUnavailable
	}

	enrollment, err := buildEnrollment(handle, f.config.Issuer, account)
	if err != nil {
		return nil, ErrEnrollmentUnavailable
	}

	pending := PendingChallenge{Kind: ChallengeTOTPSetup}
	f.mu.Lock()
	f.pending = pending
	f.enrollment = handle
	f.mu.Unlock()
	if err := f.store.Save(ctx, pending); err != nil {
		log.Print("authgate: pending challenge save failed")
	}

	f.metricInc(MetricTOTPSetupStarted)
	f.emitAudit(ctx, auditEventTOTPSetupStarted, true, attemptID, "", nil, nil)
	return enrollment, nil
}

// ConfirmTOTP completes authenticator enrollment with the first generated
// code. During sign-in the code answers the pending setup challenge and the
// whole attempt resolves through [Flow.ResolveMFA]. Outside sign-in the
// provider verifies the code directly, the setup-pending flag is retired
// and the current profile is marked MFA-enabled; nothing else about the
// session changes.
//
// ConfirmTOTP may return an error when input validation, dependency calls, or security checks fail.
// ConfirmTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) ConfirmTOTP(ctx context.Context, code string, duringSignIn bool) error {
	if f == nil || f.provider == nil {
		return ErrFlowNotReady
	}

	if duringSignIn {
		_, err := f.ResolveMFA(ctx, code)
		return err
	}

	f.mu.RLock()
	attemptID := f.attemptID
	authenticated := f.session.Authenticated
	f.mu.RUnlock()
	if !authenticated {
		return ErrNotAuthenticated
	}

	if err := f.provider.VerifyTOTPSetup(ctx, code); err != nil {
		mapped := classifyChallengeError(err)
		f.emitAudit(ctx, auditEventMFAFailure, false, attemptID, "", mapped, func() map[string]string {
			return map[string]string{
				"challenge": ChallengeTOTPSetup.String(),
			}
		})
		return mapped
	}

	f.clearChallenge(ctx)

	f.mu.Lock()
	if f.session.User != nil {
		user := *f.session.User
		user.MFAEnabled = true
		f.session.User = &user
	}
	f.mu.Unlock()
	f.notify()

	f.metricInc(MetricTOTPSetupConfirmed)
	f.emitAudit(ctx, auditEventTOTPSetupConfirmed, true, attemptID, "", nil, nil)
	return nil
}

func buildEnrollment(handle EnrollmentHandle, issuer, account string) (*TOTPEnrollment, error) {
	uri, err := handle.SetupURI(issuer, account)
	if err != nil {
		return nil, err
	}
	return &TOTPEnrollment{
		SetupURI:     uri,
		SharedSecret: secretFromSetupURI(uri),
	}, nil
}

// secretFromSetupURI extracts the shared secret from an otpauth:// URI.
// A missing or unparsable secret yields [PlaceholderSecret] rather than an
// error so enrollment can still proceed by QR scan.
func secretFromSetupURI(rawURI string) string {
	parsed, err := url.Parse(rawURI)
	if err != nil {
		return PlaceholderSecret
	}
	secret := parsed.Query().Get("secret")
	if secret == "" {
		return PlaceholderSecret
	}
	return secret
}
