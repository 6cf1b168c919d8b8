package authgate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSignInSuccess      = "sign_in_success"
	auditEventSignInFailure      = "sign_in_failure"
	auditEventChallengeIssued    = "challenge_issued"
	auditEventChallengeCancelled = "challenge_cancelled"
	auditEventMFASuccess         = "mfa_success"
	auditEventMFAFailure         = "mfa_failure"
	auditEventSessionExpired     = "session_expired"
	auditEventTOTPSetupStarted   = "totp_setup_started"
	auditEventTOTPSetupConfirmed = "totp_setup_confirmed"
	auditEventProfileResolved    = "profile_resolved"
	auditEventEnrichmentFailure  = "enrichment_failure"
	auditEventSignUpRequested    = "sign_up_requested"
	auditEventSignUpConfirmed    = "sign_up_confirmed"
	auditEventSignUpCodeResent   = "sign_up_code_resent"
	auditEventResetRequested     = "password_reset_requested"
	auditEventResetConfirmed     = "password_reset_confirmed"
	auditEventSignOut            = "sign_out"
)

// AuditErrorCode defines a public type used by authgate APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrAccountNotConfirmed AuditErrorCode = "account_not_confirmed"
	auditErrInvalidCode         AuditErrorCode = "invalid_code"
	auditErrCodeExpired         AuditErrorCode = "code_expired"
	auditErrSessionExpired      AuditErrorCode = "session_expired"
	auditErrEnrichmentFailed    AuditErrorCode = "enrichment_failed"
	auditErrNotAuthenticated    AuditErrorCode = "not_authenticated"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (f *Flow) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	attemptID string,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if f == nil || f.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AttemptID: attemptID,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	f.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountNotConfirmed):
		return auditErrAccountNotConfirmed
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrEnrichmentFailed):
		return auditErrEnrichmentFailed
	case errors.Is(err, ErrNotAuthenticated):
		return auditErrNotAuthenticated
	case errors.Is(err, ErrChallengeBackend),
		errors.Is(err, ErrEnrollmentUnavailable),
		errors.Is(err, ErrFlowNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
