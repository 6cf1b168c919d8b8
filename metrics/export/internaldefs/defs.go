package internaldefs

import (
	authgate "github.com/techstore/authgate"
)

// CounterDef defines a public type used by authgate APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authgate APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session engine.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricSignInSuccess, Name: "authgate_sign_in_success_total", Help: "Challenge-free successful sign-ins."},
	{ID: authgate.MetricSignInFailure, Name: "authgate_sign_in_failure_total", Help: "Rejected sign-in attempts."},
	{ID: authgate.MetricChallengeIssued, Name: "authgate_challenge_issued_total", Help: "Sign-in attempts parked on a challenge."},
	{ID: authgate.MetricChallengeCancelled, Name: "authgate_challenge_cancelled_total", Help: "Pending challenges abandoned by the user."},
	{ID: authgate.MetricMFASuccess, Name: "authgate_mfa_success_total", Help: "Successfully resolved challenges."},
	{ID: authgate.MetricMFAFailure, Name: "authgate_mfa_failure_total", Help: "Failed challenge resolutions."},
	{ID: authgate.MetricSessionExpired, Name: "authgate_session_expired_total", Help: "Challenge resolutions rejected for a missing provider session."},
	{ID: authgate.MetricTOTPSetupStarted, Name: "authgate_totp_setup_started_total", Help: "Authenticator enrollments started."},
	{ID: authgate.MetricTOTPSetupConfirmed, Name: "authgate_totp_setup_confirmed_total", Help: "Authenticator enrollments confirmed."},
	{ID: authgate.MetricProfileResolved, Name: "authgate_profile_resolved_total", Help: "Profiles replaced with provider truth."},
	{ID: authgate.MetricEnrichmentFailure, Name: "authgate_enrichment_failure_total", Help: "Enrichment passes that failed open."},
	{ID: authgate.MetricSignUpRequested, Name: "authgate_sign_up_requested_total", Help: "Account registrations submitted."},
	{ID: authgate.MetricSignUpConfirmed, Name: "authgate_sign_up_confirmed_total", Help: "Account registrations confirmed."},
	{ID: authgate.MetricPasswordResetRequested, Name: "authgate_password_reset_requested_total", Help: "Password resets started."},
	{ID: authgate.MetricPasswordResetConfirmed, Name: "authgate_password_reset_confirmed_total", Help: "Password resets completed."},
	{ID: authgate.MetricSignOut, Name: "authgate_sign_out_total", Help: "Sign-out operations."},
}

// HistogramDefs is an exported constant or variable used by the session engine.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricResolveLatency, Name: "authgate_resolve_latency_seconds", Help: "Profile resolve latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
