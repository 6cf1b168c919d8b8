package authgate

import "errors"

var (
	// ErrFlowNotReady is an exported constant or variable used by the session engine.
	ErrFlowNotReady = errors.New("flow not initialized")
	// ErrSessionExpired is an exported constant or variable used by the session engine.
	ErrSessionExpired = errors.New("sign-in session expired, restart sign-in")
	// ErrInvalidCredentials is an exported constant or variable used by the session engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the session engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountNotConfirmed is an exported constant or variable used by the session engine.
	ErrAccountNotConfirmed = errors.New("account email not confirmed")
	// ErrInvalidCode is an exported constant or variable used by the session engine.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrCodeExpired is an exported constant or variable used by the session engine.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrChallengeBackend is an exported constant or variable used by the session engine.
	ErrChallengeBackend = errors.New("challenge storage backend unavailable")
	// ErrEnrollmentUnavailable is an exported constant or variable used by the session engine.
	ErrEnrollmentUnavailable = errors.New("totp enrollment unavailable")
	// ErrEnrichmentFailed is an exported constant or variable used by the session engine.
	ErrEnrichmentFailed = errors.New("profile enrichment failed")
	// ErrNotAuthenticated is an exported constant or variable used by the session engine.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// classifySignInError maps a provider failure from the initiate-sign-in call to
// the engine's error taxonomy. Unclassified errors pass through untouched so
// the caller can surface the provider's own message.
func classifySignInError(err error) error {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Code {
	case CodeUserNotConfirmed:
		return ErrAccountNotConfirmed
	case CodeNotAuthorized:
		return ErrInvalidCredentials
	case CodeUserNotFound:
		return ErrUserNotFound
	default:
		return err
	}
}

// classifyChallengeError maps a provider failure from a challenge-response
// call. A rejected code always resets the flow; see Flow.ResolveMFA.
func classifyChallengeError(err error) error {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Code {
	case CodeMismatch:
		return ErrInvalidCode
	case CodeExpired:
		return ErrCodeExpired
	case CodeNotAuthorized:
		return ErrSessionExpired
	default:
		return err
	}
}

func isUnauthenticated(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == CodeUnauthenticated
}
