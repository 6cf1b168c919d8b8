// Package stores provides the Redis-backed persistence for pending sign-in
// challenges.
//
// # Design
//
// A pending challenge is written as three sibling keys under a shared scope:
// the code-challenge kind, the authenticator-enrollment flag, and the opaque
// provider session handle. Writes and deletes go through MULTI pipelines so
// readers never see the keys disagree. Reads treat missing keys as "no
// challenge pending" because absence is the normal state, not a failure.
//
// # Architecture boundaries
//
// This package owns durable challenge state and nothing else. Classifying
// challenge kinds, talking to the identity provider, and deciding what a
// loaded challenge means all belong to the root engine package.
//
// # What this package must NOT do
//
//   - Import authgate or any sibling internal package.
//   - Inspect or validate the provider session handle.
package stores
