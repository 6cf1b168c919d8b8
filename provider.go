package authgate

import "context"

// Provider next-step names. Adapters translate their SDK's challenge
// vocabulary into these values; classifyNextStep maps them onto
// [ChallengeKind] with an explicit default arm.
const (
	StepTOTPSetup    = "CONTINUE_SIGN_IN_WITH_TOTP_SETUP"
	StepMFASelection = "CONTINUE_SIGN_IN_WITH_MFA_SELECTION"
	StepSMSCode      = "CONFIRM_SIGN_IN_WITH_SMS_CODE"
	StepTOTPCode     = "CONFIRM_SIGN_IN_WITH_TOTP_CODE"
	StepEmailCode    = "CONFIRM_SIGN_IN_WITH_EMAIL_CODE"
	StepDone         = "DONE"
)

// Attribute keys returned by [IdentityProvider.UserAttributes].
const (
	AttrEmail         = "email"
	AttrName          = "name"
	AttrGivenName     = "given_name"
	AttrFamilyName    = "family_name"
	AttrPhoneNumber   = "phone_number"
	AttrEmailVerified = "email_verified"
	AttrCreatedAt     = "created_at"
	AttrUpdatedAt     = "updated_at"
)

// ErrorCode classifies provider failures for the engine's error mapping.
type ErrorCode string

const (
	// CodeNotAuthorized is an exported constant or variable used by the session engine.
	CodeNotAuthorized ErrorCode = "not_authorized"
	// CodeUserNotFound is an exported constant or variable used by the session engine.
	CodeUserNotFound ErrorCode = "user_not_found"
	// CodeUserNotConfirmed is an exported constant or variable used by the session engine.
	CodeUserNotConfirmed ErrorCode = "user_not_confirmed"
	// CodeUnauthenticated is an exported constant or variable used by the session engine.
	CodeUnauthenticated ErrorCode = "unauthenticated"
	// CodeMismatch is an exported constant or variable used by the session engine.
	CodeMismatch ErrorCode = "code_mismatch"
	// CodeExpired is an exported constant or variable used by the session engine.
	CodeExpired ErrorCode = "code_expired"
	// CodeInternal is an exported constant or variable used by the session engine.
	CodeInternal ErrorCode = "internal"
)

// ProviderError is a classified failure surfaced by an [IdentityProvider]
// adapter. Message carries the provider's human-readable detail.
type ProviderError struct {
	Code    ErrorCode
	Message string
}

// Error describes the error operation and its observable behavior.
func (e *ProviderError) Error() string {
	if e.Message == "" {
		return "identity provider: " + string(e.Code)
	}
	return "identity provider: " + string(e.Code) + ": " + e.Message
}

// NextStep is the provider's follow-up requirement after a sign-in or
// challenge-response call. Session is the opaque handle the provider requires
// on the next call; adapters that need richer continuation state serialize it
// into Session as JSON. Enrollment is non-nil only for TOTP setup steps.
type NextStep struct {
	Name       string
	Session    string
	Enrollment EnrollmentHandle
}

// SignInResult is returned by [IdentityProvider.InitiateSignIn] and
// [IdentityProvider.SubmitChallengeResponse]. Done means the principal is
// fully authenticated; otherwise Step names what comes next.
type SignInResult struct {
	Done bool
	Step NextStep
}

// EnrollmentHandle is a provider-issued TOTP enrollment in progress.
// SetupURI binds the shared secret to an issuer label and account name,
// producing an otpauth:// URI suitable for authenticator apps.
type EnrollmentHandle interface {
	SetupURI(issuer, account string) (string, error)
}

// Principal identifies the currently signed-in user.
type Principal struct {
	ID       string
	Username string
}

// Attributes is the provider's attribute map for the current principal.
// Values are raw provider strings; booleans arrive as "true"/"false".
type Attributes map[string]string

// SessionClaims carries the authorization claims of the provider session.
type SessionClaims struct {
	Groups []string
}

// ResetStep reports whether a password reset requires a confirmation code and
// where the code was delivered.
type ResetStep struct {
	CodeSent    bool
	Destination string
}

// EventKind identifies a provider-emitted auth event.
type EventKind string

const (
	// EventSignIn is emitted after the provider establishes a session. The
	// engine intentionally ignores it: BeginSignIn already updated state
	// synchronously, and reacting twice races the provisional profile.
	EventSignIn EventKind = "signIn"
	// EventSignOut is emitted when the provider session ends.
	EventSignOut EventKind = "signOut"
	// EventSignInFailure is emitted when the provider rejects a sign-in.
	EventSignInFailure EventKind = "signIn_failure"
)

// Event is a notification on the provider's event channel.
type Event struct {
	Kind EventKind
}

// IdentityProvider is the contract every identity backend adapter implements.
// The engine treats the provider as an external collaborator exposing a
// challenge/response protocol; all cryptography and token issuance stay
// behind this interface.
//
//	Docs: docs/provider.md
type IdentityProvider interface {
	InitiateSignIn(ctx context.Context, username, password string) (*SignInResult, error)
	SubmitChallengeResponse(ctx context.Context, session, code string) (*SignInResult, error)

	BeginTOTPEnrollment(ctx context.Context) (EnrollmentHandle, error)
	VerifyTOTPSetup(ctx context.Context, code string) error

	CurrentPrincipal(ctx context.Context) (*Principal, error)
	UserAttributes(ctx context.Context) (Attributes, error)
	SessionClaims(ctx context.Context) (*SessionClaims, error)

	SignUp(ctx context.Context, username, password string, attrs Attributes) error
	ConfirmSignUp(ctx context.Context, username, code string) error
	ResendSignUpCode(ctx context.Context, username string) error

	InitiatePasswordReset(ctx context.Context, username string) (*ResetStep, error)
	ConfirmPasswordReset(ctx context.Context, username, code, newPassword string) error

	SignOut(ctx context.Context) error

	// Events returns the provider's event channel, or nil when the adapter
	// does not emit events.
	Events() <-chan Event
}

// ChallengeStore persists a [PendingChallenge] across client reloads.
// Load fails soft: absent or corrupt state is reported as an inactive
// challenge, never as an error the sign-in flow must handle.
type ChallengeStore interface {
	Load(ctx context.Context) (PendingChallenge, error)
	Save(ctx context.Context, c PendingChallenge) error
	Clear(ctx context.Context) error
}

// classifyNextStep maps a provider next-step name onto a challenge kind.
// An unrecognized non-empty step deliberately falls back to the email code
// challenge: email is the only delivery channel every account has, so a
// mis-declared step still renders a resolvable prompt.
func classifyNextStep(name string) ChallengeKind {
	switch name {
	case StepTOTPSetup:
		return ChallengeTOTPSetup
	case StepMFASelection:
		return ChallengeMFASelection
	case StepSMSCode:
		return ChallengeSMSCode
	case StepTOTPCode:
		return ChallengeTOTPCode
	case StepEmailCode:
		return ChallengeEmailCode
	default:
		return ChallengeEmailCode
	}
}
