package authgate

import (
	"errors"
	"time"
)

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Issuer    string
	Challenge ChallengeConfig
	Reconcile ReconcileConfig
	Profile   ProfileConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig defines a public type used by authgate APIs.
//
// ChallengeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChallengeConfig struct {
	RedisPrefix string
	// Scope names the durable slot pending challenges are written to.
	// All engine instances sharing a scope see last-write-wins semantics,
	// which is what lets a challenge survive a client reload.
	Scope string
	TTL   time.Duration
}

/*
====================================
RECONCILE CONFIG
====================================
*/

// ReconcileConfig defines a public type used by authgate APIs.
//
// ReconcileConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ReconcileConfig struct {
	// SignInDelay is how long after a challenge-free sign-in the engine
	// waits before replacing the provisional profile with provider truth.
	SignInDelay time.Duration
	// ChallengeDelay is the same wait applied after a resolved challenge.
	ChallengeDelay time.Duration
	// Timeout bounds each background reconcile pass.
	Timeout time.Duration
}

/*
====================================
PROFILE CONFIG
====================================
*/

// ProfileConfig defines a public type used by authgate APIs.
//
// ProfileConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ProfileConfig struct {
	// AdminGroup is the provider group claim that maps to RoleAdmin.
	AdminGroup string
	// AssumeMFAEnabled marks every resolved profile as MFA-enabled
	// regardless of provider state. Kept on until the provider exposes a
	// per-user preference read.
	AssumeMFAEnabled bool
}

// AuditConfig defines a public type used by authgate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authgate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration the builder starts from. Callers
// that only need to flip a few fields take this and mutate before
// [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Issuer: "TechStore",
		Challenge: ChallengeConfig{
			RedisPrefix: "ag",
			Scope:       "storefront",
			TTL:         10 * time.Minute,
		},
		Reconcile: ReconcileConfig{
			SignInDelay:    3 * time.Second,
			ChallengeDelay: 1 * time.Second,
			Timeout:        10 * time.Second,
		},
		Profile: ProfileConfig{
			AdminGroup:       "admin",
			AssumeMFAEnabled: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return errors.New("Issuer is required")
	}

	// Challenge
	if c.Challenge.RedisPrefix == "" {
		return errors.New("Challenge RedisPrefix is required")
	}
	if c.Challenge.Scope == "" {
		return errors.New("Challenge Scope is required")
	}
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}

	// Reconcile
	if c.Reconcile.SignInDelay < 0 {
		return errors.New("Reconcile SignInDelay must be >= 0")
	}
	if c.Reconcile.ChallengeDelay < 0 {
		return errors.New("Reconcile ChallengeDelay must be >= 0")
	}
	if c.Reconcile.Timeout <= 0 {
		return errors.New("Reconcile Timeout must be > 0")
	}

	// Profile
	if c.Profile.AdminGroup == "" {
		return errors.New("Profile AdminGroup is required")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
