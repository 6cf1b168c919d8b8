// Package authgate implements the authentication session engine for the TechStore
// storefront: credential sign-in against an external identity provider, multi-step
// challenge resolution (SMS / Email / TOTP codes and TOTP enrollment), durable
// pending-challenge state that survives a client reload, and asynchronous profile
// enrichment with group-based role derivation.
//
// The package is the single source of truth for the session: UI layers read
// [Flow.Session] and drive the flow through [Flow.BeginSignIn], [Flow.ResolveMFA],
// [Flow.BeginTOTPEnrollment], and [Flow.ConfirmTOTP]. All Flow methods are safe for
// concurrent use after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Flow], [Builder], [Config], the
// [IdentityProvider] contract, and value types (Session, Profile, PendingChallenge).
// Durable challenge storage lives under internal/stores; concrete provider adapters
// live under provider/ and never leak their SDK types through this package.
//
// # What this package must NOT do
//
//   - Implement identity-provider cryptography (token issuance, OTP generation);
//     that is the provider's job.
//   - Block sign-in completion on profile enrichment. Enrichment is deferred and
//     fail-open: a failed resolve never tears down an authenticated session.
//   - Leave a pending challenge pointing at a consumed provider session. Every
//     failure path clears the durable challenge state.
package authgate
