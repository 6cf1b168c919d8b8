// Package cognito adapts an AWS Cognito user pool to the
// [authgate.IdentityProvider] contract.
//
// The adapter speaks the user pool's public client API (InitiateAuth,
// RespondToAuthChallenge, software-token enrollment, sign-up and reset
// calls) and keeps the issued tokens for the current principal in memory.
// Continuation state between challenge round-trips is serialized into the
// opaque session handle the engine persists, so a challenge survives a
// process restart without this package holding any state for it.
//
// # What this package must NOT do
//
//   - Verify token signatures — session claims are read, not trusted for
//     authentication, and the pool remains the authority.
//   - Decide what a challenge means; it only names the next step.
package cognito
