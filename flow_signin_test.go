package authgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockIdentityProvider struct {
	mu sync.Mutex

	signInResult    *SignInResult
	signInErr       error
	challengeResult *SignInResult
	challengeErr    error

	principal    *Principal
	principalErr error
	attrs        Attributes
	attrsErr     error
	claims       *SessionClaims
	claimsErr    error

	enrollHandle EnrollmentHandle
	enrollErr    error
	verifyErr    error

	signUpErr        error
	confirmSignUpErr error
	resendErr        error
	resetStep        *ResetStep
	resetErr         error
	confirmResetErr  error
	signOutErr       error

	events chan Event

	initiateSignInCalls   int
	submitChallengeCalls  int
	beginEnrollmentCalls  int
	verifySetupCalls      int
	currentPrincipalCalls int
	userAttributesCalls   int
	sessionClaimsCalls    int
	signUpCalls           int
	confirmSignUpCalls    int
	resendCalls           int
	resetCalls            int
	confirmResetCalls     int
	signOutCalls          int

	lastSession string
	lastCode    string
}

func (m *mockIdentityProvider) InitiateSignIn(ctx context.Context, username, password string) (*SignInResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initiateSignInCalls++

	if m.signInErr != nil {
		return nil, m.signInErr
	}
	return m.signInResult, nil
}

func (m *mockIdentityProvider) SubmitChallengeResponse(ctx context.Context, session, code string) (*SignInResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitChallengeCalls++
	m.lastSession = session
	m.lastCode = code

	if m.challengeErr != nil {
		return nil, m.challengeErr
	}
	return m.challengeResult, nil
}

func (m *mockIdentityProvider) BeginTOTPEnrollment(ctx context.Context) (EnrollmentHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginEnrollmentCalls++

	if m.enrollErr != nil {
		return nil, m.enrollErr
	}
	return m.enrollHandle, nil
}

func (m *mockIdentityProvider) VerifyTOTPSetup(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifySetupCalls++
	m.lastCode = code
	return m.verifyErr
}

func (m *mockIdentityProvider) CurrentPrincipal(ctx context.Context) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentPrincipalCalls++

	if m.principalErr != nil {
		return nil, m.principalErr
	}
	return m.principal, nil
}

func (m *mockIdentityProvider) UserAttributes(ctx context.Context) (Attributes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userAttributesCalls++

	if m.attrsErr != nil {
		return nil, m.attrsErr
	}
	return m.attrs, nil
}

func (m *mockIdentityProvider) SessionClaims(ctx context.Context) (*SessionClaims, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionClaimsCalls++

	if m.claimsErr != nil {
		return nil, m.claimsErr
	}
	return m.claims, nil
}

func (m *mockIdentityProvider) SignUp(ctx context.Context, username, password string, attrs Attributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signUpCalls++
	return m.signUpErr
}

func (m *mockIdentityProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmSignUpCalls++
	m.lastCode = code
	return m.confirmSignUpErr
}

func (m *mockIdentityProvider) ResendSignUpCode(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resendCalls++
	return m.resendErr
}

func (m *mockIdentityProvider) InitiatePasswordReset(ctx context.Context, username string) (*ResetStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++

	if m.resetErr != nil {
		return nil, m.resetErr
	}
	return m.resetStep, nil
}

func (m *mockIdentityProvider) ConfirmPasswordReset(ctx context.Context, username, code, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmResetCalls++
	m.lastCode = code
	return m.confirmResetErr
}

func (m *mockIdentityProvider) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signOutCalls++
	return m.signOutErr
}

func (m *mockIdentityProvider) Events() <-chan Event {
	return m.events
}

type mockEnrollmentHandle struct {
	secret string
	uriErr error
}

func (h *mockEnrollmentHandle) SetupURI(issuer, account string) (string, error) {
	if h.uriErr != nil {
		return "", h.uriErr
	}
	if account == "" {
		account = "user"
	}
	uri := "otpauth://totp/" + issuer + ":" + account + "?issuer=" + issuer
	if h.secret != "" {
		uri += "&secret=" + h.secret
	}
	return uri, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// newTestFlow wires a flow directly with long reconcile delays so background
// enrichment never races test assertions.
func newTestFlow(t *testing.T, rdb *redis.Client, p IdentityProvider) *Flow {
	t.Helper()

	cfg := defaultConfig()
	cfg.Reconcile.SignInDelay = time.Hour
	cfg.Reconcile.ChallengeDelay = time.Hour

	f := &Flow{
		config:   cfg,
		provider: p,
		store: newRedisChallengeStore(
			rdb,
			cfg.Challenge.RedisPrefix,
			cfg.Challenge.Scope,
			cfg.Challenge.TTL,
		),
		metrics: NewMetrics(MetricsConfig{Enabled: true}),
		stop:    make(chan struct{}),
	}
	f.session.Loading = true
	return f
}

func counterValue(f *Flow, id MetricID) uint64 {
	return f.MetricsSnapshot().Counters[id]
}

func TestBeginSignInDoneInstallsProvisionalProfile(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	provider := &mockIdentityProvider{
		signInResult: &SignInResult{Done: true},
	}
	flow := newTestFlow(t, rdb, provider)
	defer flow.Close()

	outcome, err := flow.BeginSignIn(ctx, "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("BeginSignIn failed: %v", err)
	}
	if !outcome.Authenticated {
		t.Fatal("expected authenticated outcome")
	}

	session := flow.Session()
	if !session.Authenticated || session.User == nil {
		t.Fatal("expected authenticated session with profile")
	}
	if session.User.ID != "alice@example.com" {
		t.Fatalf("expected provisional ID to be the email, got %q", session.User.ID)
	}
	if session.User.Username != "alice" {
		t.Fatalf("expected username from email local part, got %q", session.User.Username)
	}
	if session.User.Role != RoleUser {
		t.Fatalf("expected provisional role user, got %q", session.User.Role)
	}
	if !session.User.EmailVerified {
		t.Fatal("expected provisional profile to be email-verified")
	}
	if session.EffectiveRole() != RoleUser {
		t.Fatalf("expected effective role user, got %q", session.EffectiveRole())
	}

	if mr.Exists("ag:storefront:mfaRequired") {
		t.Fatal("expected no stored challenge after a challenge-free sign-in")
	}
	if got := counterValue(flow, MetricSignInSuccess); got != 1 {
		t.Fatalf("expected 1 sign-in success metric, got %d", got)
	}
}

func TestBeginSignInInvalidCredentials(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	provider := &mockIdentityProvider{
		signInErr: &ProviderError{Code: CodeNotAuthorized, Message: "bad password"},
	}
	flow := newTestFlow(t, rdb, provider)
	defer flow.Close()

	_, err := flow.BeginSignIn(ctx, "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if session := flow.Session(); session.Authenticated {
		t.Fatal("expected unauthenticated session after rejected credentials")
	}
	if got := counterValue(flow, MetricSignInFailure); got != 1 {
		t.Fatalf("expected 1 sign-in failure metric, got %d", got)
	}
}

func TestBeginSignInErrorClassification(t *testing.T) {
	passthrough := errors.New("network down")

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"not authorized", &ProviderError{Code: CodeNotAuthorized}, ErrInvalidCredentials},
		{"user not found", &ProviderError{Code: CodeUserNotFound}, ErrUserNotFound},
		{"not confirmed", &ProviderError{Code: CodeUserNotConfirmed}, ErrAccountNotConfirmed},
		{"unclassified passes through", passthrough, passthrough},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mr, rdb := newTestRedis(t)
			defer mr.Close()

			provider := &mockIdentityProvider{signInErr: tc.err}
			flow := newTestFlow(t, rdb, provider)
			defer flow.Close()

			_, err := flow.BeginSignIn(context.Background(), "a@b.com", "pw")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestBeginSignInChallengePersistsToRedis(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	provider := &mockIdentityProvider{
		signInResult: &SignInResult{
			Step: NextStep{Name: StepSMSCode, Session: "sess-1"},
		},
	}
	flow := newTestFlow(t, rdb, provider)
	defer flow.Close()

	outcome, err := flow.BeginSignIn(ctx, "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("BeginSignIn failed: %v", err)
	}
	if outcome.Authenticated {
		t.Fatal("expected unauthenticated outcome with a pending challenge")
	}
	if outcome.Challenge != ChallengeSMSCode {
		t.Fatalf("expected sms_code challenge, got %v", outcome.Challenge)
	}

	if got, _ := mr.Get("ag:storefront:mfaRequired"); got != StepSMSCode {
		t.Fatalf("expected stored challenge kind %q, got %q", StepSMSCode, got)
	}
	if got, _ := mr.Get("ag:storefront:signInSession"); got != "sess-1" {
		t.Fatalf("expected stored provider session, got %q", got)
	}
	if got, _ := mr.Get("ag:storefront:totpSetupRequired"); got != "false" {
		t.Fatalf("expected totp setup flag false, got %q", got)
	}

	pending := flow.PendingChallenge(ctx)
	if pending.Kind != ChallengeSMSCode || pending.ProviderSession != "sess-1" {
		t.Fatalf("unexpected pending challenge: %+v", pending)
	}
	if got := counterValue(flow, MetricChallengeIssued); got != 1 {
		t.Fatalf("expected 1 challenge issued metric, got %d", got)
	}
}

func TestBeginSignInUnknownStepDefaultsToEmailCode(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := &mockIdentityProvider{
		signInResult: &SignInResult{
			Step: NextStep{Name: "CONFIRM_SIGN_IN_WITH_RETINA_SCAN", Session: "sess-2"},
		},
	}
	flow := newTestFlow(t, rdb, provider)
	defer flow.Close()

	outcome, err := flow.BeginSignIn(context.Background(), "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("BeginSignIn failed: %v", err)
	}
	if outcome.Challenge != ChallengeEmailCode {
		t.Fatalf("expected unknown step to fall back to email_code, got %v", outcome.Challenge)
	}
}

func TestBeginSignInTOTPSetupReturnsEnrollment(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	provider := &mockIdentityProvider{
		signInResult: &SignInResult{
			Step: NextStep{
				Name:       StepTOTPSetup,
				Session:    "sess-3",
				Enrollment: &mockEnrollmentHandle{secret: "JBSWY3DPEHPK3PXP"},
			},
		},
	}
	flow := newTestFlow(t, rdb, provider)
	defer flow.Close()

	outcome, err := flow.BeginSignIn(ctx, "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("BeginSignIn failed: %v", err)
	}
	if outcome.Challenge != ChallengeTOTPSetup {
		t.Fatalf("expected totp_setup challenge, got %v", outcome.Challenge)
	}
	if outcome.Enrollment == nil {
		t.Fatal("expected enrollment artifacts alongside the setup challenge")
	}
	if outcome.Enrollment.SharedSecret != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("expected secret extracted from setup URI, got %q", outcome.Enrollment.SharedSecret)
	}

	if got, _ := mr.Get("ag:storefront:totpSetupRequired"); got != "true" {
		t.Fatalf("expected totp setup flag true, got %q", got)
	}
	if got, _ := mr.Get("ag:storefront:mfaRequired"); got != "" {
		t.Fatalf("expected empty mfa kind for setup challenge, got %q", got)
	}
	if got := counterValue(flow, MetricTOTPSetupStarted); got != 1 {
		t.Fatalf("expected 1 totp setup started metric, got %d", got)
	}
}

func TestCancelClearsPendingChallenge(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	provider := &mockIdentityProvider{
		signInResult: &SignInResult{
			Step: NextStep{Name: StepTOTPCode, Session: "sess-4"},
		},
	}
	flow := newTestFlow(t, rdb, provider)
	defer flow.Close()

	if _, err := flow.BeginSignIn(ctx, "alice@example.com", "pw"); err != nil {
		t.Fatalf("BeginSignIn failed: %v", err)
	}

	flow.Cancel(ctx)

	if mr.Exists("ag:storefront:signInSession") {
		t.Fatal("expected stored challenge to be cleared on cancel")
	}
	if pending := flow.PendingChallenge(ctx); pending.Active() {
		t.Fatalf("expected no pending challenge after cancel, got %+v", pending)
	}
	if got := counterValue(flow, MetricChallengeCancelled); got != 1 {
		t.Fatalf("expected 1 challenge cancelled metric, got %d", got)
	}
}
