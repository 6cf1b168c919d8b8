package cognito

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	authgate "github.com/techstore/authgate"
)

// Provider defines a public type used by authgate APIs.
//
// Provider instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Provider struct {
	client   *cip.Client
	clientID string
	events   chan authgate.Event

	mu          sync.Mutex
	accessToken string
	idToken     string
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(client *cip.Client, clientID string) *Provider {
	return &Provider{
		client:   client,
		clientID: clientID,
		events:   make(chan authgate.Event, 16),
	}
}

// NewFromConfig builds the adapter from a resolved AWS SDK config.
func NewFromConfig(cfg aws.Config, clientID string) *Provider {
	return New(cip.NewFromConfig(cfg), clientID)
}

// sessionHandle is the continuation state serialized into the opaque session
// string between challenge round-trips.
type sessionHandle struct {
	Session   string `json:"session"`
	Challenge string `json:"challenge"`
	Username  string `json:"username"`
}

func encodeHandle(h sessionHandle) string {
	data, err := json.Marshal(h)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeHandle(raw string) (sessionHandle, error) {
	var h sessionHandle
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return sessionHandle{}, err
	}
	if h.Session == "" || h.Challenge == "" {
		return sessionHandle{}, errors.New("incomplete session handle")
	}
	return h, nil
}

func (p *Provider) emit(kind authgate.EventKind) {
	select {
	case p.events <- authgate.Event{Kind: kind}:
	default:
	}
}

func (p *Provider) setTokens(result *types.AuthenticationResultType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if result.AccessToken != nil {
		p.accessToken = *result.AccessToken
	}
	if result.IdToken != nil {
		p.idToken = *result.IdToken
	}
}

func (p *Provider) tokens() (access, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessToken, p.idToken
}

func (p *Provider) clearTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken = ""
	p.idToken = ""
}

// InitiateSignIn describes the initiatesignin operation and its observable behavior.
//
// InitiateSignIn may return an error when input validation, dependency calls, or security checks fail.
// InitiateSignIn does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) InitiateSignIn(ctx context.Context, username, password string) (*authgate.SignInResult, error) {
	out, err := p.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		p.emit(authgate.EventSignInFailure)
		return nil, mapError(err)
	}

	return p.resolveAuthOutput(ctx, username, out.AuthenticationResult, out.ChallengeName, out.Session)
}

// SubmitChallengeResponse describes the submitchallengeresponse operation and its observable behavior.
//
// SubmitChallengeResponse may return an error when input validation, dependency calls, or security checks fail.
// SubmitChallengeResponse does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) SubmitChallengeResponse(ctx context.Context, session, code string) (*authgate.SignInResult, error) {
	handle, err := decodeHandle(session)
	if err != nil {
		return nil, &authgate.ProviderError{Code: authgate.CodeNotAuthorized, Message: "unusable session handle"}
	}

	challenge := types.ChallengeNameType(handle.Challenge)
	responses := map[string]string{
		"USERNAME": handle.Username,
	}
	providerSession := handle.Session

	switch challenge {
	case types.ChallengeNameTypeSmsMfa:
		responses["SMS_MFA_CODE"] = code
	case types.ChallengeNameTypeSoftwareTokenMfa:
		responses["SOFTWARE_TOKEN_MFA_CODE"] = code
	case types.ChallengeNameTypeEmailOtp:
		responses["EMAIL_OTP_CODE"] = code
	case types.ChallengeNameTypeSelectMfaType:
		responses["ANSWER"] = code
	case types.ChallengeNameTypeMfaSetup:
		// Enrollment: the code proves the authenticator first, and the
		// verify call rotates the session used to finish the challenge.
		verified, err := p.client.VerifySoftwareToken(ctx, &cip.VerifySoftwareTokenInput{
			Session:  aws.String(providerSession),
			UserCode: aws.String(code),
		})
		if err != nil {
			return nil, mapError(err)
		}
		if verified.Session != nil {
			providerSession = *verified.Session
		}
	default:
		responses["ANSWER"] = code
	}

	out, err := p.client.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ChallengeName:      challenge,
		ClientId:           aws.String(p.clientID),
		Session:            aws.String(providerSession),
		ChallengeResponses: responses,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return p.resolveAuthOutput(ctx, handle.Username, out.AuthenticationResult, out.ChallengeName, out.Session)
}

func (p *Provider) resolveAuthOutput(
	ctx context.Context,
	username string,
	result *types.AuthenticationResultType,
	challenge types.ChallengeNameType,
	session *string,
) (*authgate.SignInResult, error) {
	if result != nil {
		p.setTokens(result)
		p.emit(authgate.EventSignIn)
		return &authgate.SignInResult{Done: true}, nil
	}

	step := authgate.NextStep{
		Name: stepName(challenge),
	}
	handle := sessionHandle{
		Challenge: string(challenge),
		Username:  username,
	}
	if session != nil {
		handle.Session = *session
	}

	if challenge == types.ChallengeNameTypeMfaSetup {
		associated, err := p.client.AssociateSoftwareToken(ctx, &cip.AssociateSoftwareTokenInput{
			Session: session,
		})
		if err != nil {
			return nil, mapError(err)
		}
		if associated.Session != nil {
			handle.Session = *associated.Session
		}
		if associated.SecretCode != nil {
			step.Enrollment = &enrollmentHandle{secret: *associated.SecretCode}
		}
	}

	step.Session = encodeHandle(handle)
	return &authgate.SignInResult{Step: step}, nil
}

func stepName(challenge types.ChallengeNameType) string {
	switch challenge {
	case types.ChallengeNameTypeMfaSetup:
		return authgate.StepTOTPSetup
	case types.ChallengeNameTypeSelectMfaType:
		return authgate.StepMFASelection
	case types.ChallengeNameTypeSmsMfa:
		return authgate.StepSMSCode
	case types.ChallengeNameTypeSoftwareTokenMfa:
		return authgate.StepTOTPCode
	case types.ChallengeNameTypeEmailOtp:
		return authgate.StepEmailCode
	default:
		return string(challenge)
	}
}

// enrollmentHandle carries the pool-issued TOTP secret until the user binds
// it to an authenticator app.
type enrollmentHandle struct {
	secret string
}

// SetupURI describes the setupuri operation and its observable behavior.
//
// SetupURI may return an error when input validation, dependency calls, or security checks fail.
// SetupURI does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *enrollmentHandle) SetupURI(issuer, account string) (string, error) {
	if h == nil || h.secret == "" {
		return "", errors.New("no enrollment secret")
	}
	if account == "" {
		account = "user"
	}

	query := url.Values{}
	query.Set("secret", h.secret)
	query.Set("issuer", issuer)

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + issuer + ":" + account,
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

// BeginTOTPEnrollment describes the begintotpenrollment operation and its observable behavior.
//
// BeginTOTPEnrollment may return an error when input validation, dependency calls, or security checks fail.
// BeginTOTPEnrollment does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) BeginTOTPEnrollment(ctx context.Context) (authgate.EnrollmentHandle, error) {
	access, _ := p.tokens()
	if access == "" {
		return nil, &authgate.ProviderError{Code: authgate.CodeUnauthenticated, Message: "no active session"}
	}

	out, err := p.client.AssociateSoftwareToken(ctx, &cip.AssociateSoftwareTokenInput{
		AccessToken: aws.String(access),
	})
	if err != nil {
		return nil, mapError(err)
	}
	if out.SecretCode == nil {
		return nil, &authgate.ProviderError{Code: authgate.CodeInternal, Message: "no secret issued"}
	}
	return &enrollmentHandle{secret: *out.SecretCode}, nil
}

// VerifyTOTPSetup describes the verifytotpsetup operation and its observable behavior.
//
// VerifyTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// VerifyTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) VerifyTOTPSetup(ctx context.Context, code string) error {
	access, _ := p.tokens()
	if access == "" {
		return &authgate.ProviderError{Code: authgate.CodeUnauthenticated, Message: "no active session"}
	}

	_, err := p.client.VerifySoftwareToken(ctx, &cip.VerifySoftwareTokenInput{
		AccessToken: aws.String(access),
		UserCode:    aws.String(code),
	})
	if err != nil {
		return mapError(err)
	}

	_, err = p.client.SetUserMFAPreference(ctx, &cip.SetUserMFAPreferenceInput{
		AccessToken: aws.String(access),
		SoftwareTokenMfaSettings: &types.SoftwareTokenMfaSettingsType{
			Enabled:      true,
			PreferredMfa: true,
		},
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// CurrentPrincipal describes the currentprincipal operation and its observable behavior.
//
// CurrentPrincipal may return an error when input validation, dependency calls, or security checks fail.
// CurrentPrincipal does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) CurrentPrincipal(ctx context.Context) (*authgate.Principal, error) {
	access, _ := p.tokens()
	if access == "" {
		return nil, &authgate.ProviderError{Code: authgate.CodeUnauthenticated, Message: "no active session"}
	}

	out, err := p.client.GetUser(ctx, &cip.GetUserInput{
		AccessToken: aws.String(access),
	})
	if err != nil {
		return nil, mapError(err)
	}

	principal := &authgate.Principal{}
	if out.Username != nil {
		principal.Username = *out.Username
	}
	for _, attr := range out.UserAttributes {
		if attr.Name != nil && *attr.Name == "sub" && attr.Value != nil {
			principal.ID = *attr.Value
		}
	}
	if principal.ID == "" {
		principal.ID = principal.Username
	}
	return principal, nil
}

// UserAttributes describes the userattributes operation and its observable behavior.
//
// UserAttributes may return an error when input validation, dependency calls, or security checks fail.
// UserAttributes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) UserAttributes(ctx context.Context) (authgate.Attributes, error) {
	access, _ := p.tokens()
	if access == "" {
		return nil, &authgate.ProviderError{Code: authgate.CodeUnauthenticated, Message: "no active session"}
	}

	out, err := p.client.GetUser(ctx, &cip.GetUserInput{
		AccessToken: aws.String(access),
	})
	if err != nil {
		return nil, mapError(err)
	}

	attrs := make(authgate.Attributes, len(out.UserAttributes))
	for _, attr := range out.UserAttributes {
		if attr.Name == nil || attr.Value == nil {
			continue
		}
		attrs[*attr.Name] = *attr.Value
	}
	return attrs, nil
}

// SignUp describes the signup operation and its observable behavior.
//
// SignUp may return an error when input validation, dependency calls, or security checks fail.
// SignUp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) SignUp(ctx context.Context, username, password string, attrs authgate.Attributes) error {
	userAttrs := make([]types.AttributeType, 0, len(attrs))
	for name, value := range attrs {
		userAttrs = append(userAttrs, types.AttributeType{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}

	_, err := p.client.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(p.clientID),
		Username:       aws.String(username),
		Password:       aws.String(password),
		UserAttributes: userAttrs,
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// ConfirmSignUp describes the confirmsignup operation and its observable behavior.
//
// ConfirmSignUp may return an error when input validation, dependency calls, or security checks fail.
// ConfirmSignUp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) ConfirmSignUp(ctx context.Context, username, code string) error {
	_, err := p.client.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// ResendSignUpCode describes the resendsignupcode operation and its observable behavior.
//
// ResendSignUpCode may return an error when input validation, dependency calls, or security checks fail.
// ResendSignUpCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) ResendSignUpCode(ctx context.Context, username string) error {
	_, err := p.client.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(username),
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// InitiatePasswordReset describes the initiatepasswordreset operation and its observable behavior.
//
// InitiatePasswordReset may return an error when input validation, dependency calls, or security checks fail.
// InitiatePasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) InitiatePasswordReset(ctx context.Context, username string) (*authgate.ResetStep, error) {
	out, err := p.client.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(username),
	})
	if err != nil {
		return nil, mapError(err)
	}

	step := &authgate.ResetStep{}
	if out.CodeDeliveryDetails != nil {
		step.CodeSent = true
		if out.CodeDeliveryDetails.Destination != nil {
			step.Destination = *out.CodeDeliveryDetails.Destination
		}
	}
	return step, nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, username, code, newPassword string) error {
	_, err := p.client.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// SignOut describes the signout operation and its observable behavior.
//
// SignOut may return an error when input validation, dependency calls, or security checks fail.
// SignOut does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) SignOut(ctx context.Context) error {
	access, _ := p.tokens()
	p.clearTokens()
	defer p.emit(authgate.EventSignOut)

	if access == "" {
		return nil
	}
	_, err := p.client.GlobalSignOut(ctx, &cip.GlobalSignOutInput{
		AccessToken: aws.String(access),
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// Events describes the events operation and its observable behavior.
//
// Events may return an error when input validation, dependency calls, or security checks fail.
// Events does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) Events() <-chan authgate.Event {
	return p.events
}

func mapError(err error) error {
	var (
		notAuthorized    *types.NotAuthorizedException
		userNotFound     *types.UserNotFoundException
		userNotConfirmed *types.UserNotConfirmedException
		codeMismatch     *types.CodeMismatchException
		codeExpired      *types.ExpiredCodeException
		softwareToken    *types.EnableSoftwareTokenMFAException
	)

	switch {
	case errors.As(err, &notAuthorized):
		return &authgate.ProviderError{Code: authgate.CodeNotAuthorized, Message: notAuthorized.ErrorMessage()}
	case errors.As(err, &userNotFound):
		return &authgate.ProviderError{Code: authgate.CodeUserNotFound, Message: userNotFound.ErrorMessage()}
	case errors.As(err, &userNotConfirmed):
		return &authgate.ProviderError{Code: authgate.CodeUserNotConfirmed, Message: userNotConfirmed.ErrorMessage()}
	case errors.As(err, &codeMismatch):
		return &authgate.ProviderError{Code: authgate.CodeMismatch, Message: codeMismatch.ErrorMessage()}
	case errors.As(err, &codeExpired):
		return &authgate.ProviderError{Code: authgate.CodeExpired, Message: codeExpired.ErrorMessage()}
	case errors.As(err, &softwareToken):
		return &authgate.ProviderError{Code: authgate.CodeMismatch, Message: softwareToken.ErrorMessage()}
	default:
		return &authgate.ProviderError{Code: authgate.CodeInternal, Message: err.Error()}
	}
}
