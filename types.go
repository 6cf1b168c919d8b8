package authgate

import "strings"

// Role is the authorization level derived for an authenticated principal.
//
//	Docs: docs/roles.md
type Role string

const (
	// RolePublic models an unauthenticated principal. It is never stored on a
	// Profile; [Session.EffectiveRole] reports it when no user is signed in.
	RolePublic Role = "public"
	// RoleUser is the default role for every authenticated principal.
	RoleUser Role = "user"
	// RoleAdmin is granted only through group membership.
	RoleAdmin Role = "admin"
)

// ChallengeKind identifies the additional proof of identity the provider asked
// for during a multi-step sign-in.
type ChallengeKind uint8

const (
	// ChallengeNone means no sign-in is pending.
	ChallengeNone ChallengeKind = iota
	// ChallengeMFASelection asks the user to pick an MFA method.
	ChallengeMFASelection
	// ChallengeSMSCode asks for a code delivered over SMS.
	ChallengeSMSCode
	// ChallengeEmailCode asks for a code delivered over email.
	ChallengeEmailCode
	// ChallengeTOTPCode asks for an authenticator-app code.
	ChallengeTOTPCode
	// ChallengeTOTPSetup asks the user to enroll an authenticator app first.
	ChallengeTOTPSetup
)

// String describes the string operation and its observable behavior.
func (k ChallengeKind) String() string {
	switch k {
	case ChallengeNone:
		return "none"
	case ChallengeMFASelection:
		return "mfa_selection"
	case ChallengeSMSCode:
		return "sms_code"
	case ChallengeEmailCode:
		return "email_code"
	case ChallengeTOTPCode:
		return "totp_code"
	case ChallengeTOTPSetup:
		return "totp_setup"
	default:
		return "unknown"
	}
}

// Profile is the resolved identity and authorization info for a signed-in user.
//
// A provisional Profile (minimal fields, RoleUser) is installed synchronously on
// authentication success; the resolver replaces it with a fully attributed one.
type Profile struct {
	ID          string
	Email       string
	Username    string
	DisplayName string
	GivenName   string
	FamilyName  string
	PhoneNumber string

	Role          Role
	EmailVerified bool
	MFAEnabled    bool

	CreatedAt string
	UpdatedAt string
}

// Session is the top-level authentication state snapshot returned by
// [Flow.Session]. Authenticated implies a non-nil User.
type Session struct {
	User          *Profile
	Authenticated bool
	Loading       bool
}

// EffectiveRole reports the role the permission layer should apply:
// the user's role when authenticated, [RolePublic] otherwise.
func (s Session) EffectiveRole() Role {
	if !s.Authenticated || s.User == nil {
		return RolePublic
	}
	return s.User.Role
}

// PendingChallenge is the transient state of an in-progress multi-step sign-in.
// ProviderSession is the opaque handle the provider requires for the follow-up
// challenge response; it must be non-empty whenever Kind != ChallengeNone.
type PendingChallenge struct {
	Kind            ChallengeKind
	ProviderSession string
}

// Active reports whether a challenge is awaiting resolution.
func (c PendingChallenge) Active() bool {
	return c.Kind != ChallengeNone
}

// TOTPEnrollment carries the artifacts a user needs to register an
// authenticator app: the otpauth:// setup URI and the shared secret extracted
// from it. SharedSecret is [PlaceholderSecret] when the URI carried none;
// the URI remains usable for enrollment either way.
type TOTPEnrollment struct {
	SetupURI     string
	SharedSecret string
}

// SignInOutcome is returned by [Flow.BeginSignIn]. Either Authenticated is
// true, or Challenge names the step the caller must resolve next. Enrollment
// is populated alongside [ChallengeTOTPSetup].
type SignInOutcome struct {
	Authenticated bool
	Challenge     ChallengeKind
	Enrollment    *TOTPEnrollment
}

func cloneSession(s Session) Session {
	if s.User != nil {
		user := *s.User
		s.User = &user
	}
	return s
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
