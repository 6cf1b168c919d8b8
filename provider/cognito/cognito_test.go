package cognito

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/golang-jwt/jwt/v5"
	authgate "github.com/techstore/authgate"
)

func TestSessionHandleRoundTrip(t *testing.T) {
	raw := encodeHandle(sessionHandle{
		Session:   "AYABeExample",
		Challenge: "SOFTWARE_TOKEN_MFA",
		Username:  "alice",
	})
	if raw == "" {
		t.Fatal("expected encoded handle")
	}

	h, err := decodeHandle(raw)
	if err != nil {
		t.Fatalf("decodeHandle failed: %v", err)
	}
	if h.Session != "AYABeExample" || h.Challenge != "SOFTWARE_TOKEN_MFA" || h.Username != "alice" {
		t.Fatalf("unexpected handle %+v", h)
	}
}

func TestDecodeHandleRejectsIncomplete(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "AYABeRawCognitoSession"},
		{"missing session", `{"challenge":"SMS_MFA","username":"alice"}`},
		{"missing challenge", `{"session":"s","username":"alice"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeHandle(tc.raw); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}

func TestStepNameMapping(t *testing.T) {
	cases := []struct {
		challenge types.ChallengeNameType
		want      string
	}{
		{types.ChallengeNameTypeMfaSetup, authgate.StepTOTPSetup},
		{types.ChallengeNameTypeSelectMfaType, authgate.StepMFASelection},
		{types.ChallengeNameTypeSmsMfa, authgate.StepSMSCode},
		{types.ChallengeNameTypeSoftwareTokenMfa, authgate.StepTOTPCode},
		{types.ChallengeNameTypeEmailOtp, authgate.StepEmailCode},
		{types.ChallengeNameTypeCustomChallenge, "CUSTOM_CHALLENGE"},
	}

	for _, tc := range cases {
		if got := stepName(tc.challenge); got != tc.want {
			t.Fatalf("stepName(%s) = %q, want %q", tc.challenge, got, tc.want)
		}
	}
}

func TestEnrollmentHandleSetupURI(t *testing.T) {
	h := &enrollmentHandle{secret: "JBSWY3DPEHPK3PXP"}

	uri, err := h.SetupURI("TechStore", "alice@example.com")
	if err != nil {
		t.Fatalf("SetupURI failed: %v", err)
	}
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("expected otpauth URI, got %q", uri)
	}
	if !strings.Contains(uri, "secret=JBSWY3DPEHPK3PXP") {
		t.Fatalf("expected secret parameter, got %q", uri)
	}
	if !strings.Contains(uri, "issuer=TechStore") {
		t.Fatalf("expected issuer parameter, got %q", uri)
	}
}

func TestEnrollmentHandleSetupURIDefaultsAccount(t *testing.T) {
	h := &enrollmentHandle{secret: "JBSWY3DPEHPK3PXP"}

	uri, err := h.SetupURI("TechStore", "")
	if err != nil {
		t.Fatalf("SetupURI failed: %v", err)
	}
	if !strings.Contains(uri, "TechStore:user") {
		t.Fatalf("expected default account label, got %q", uri)
	}
}

func TestEnrollmentHandleWithoutSecret(t *testing.T) {
	h := &enrollmentHandle{}
	if _, err := h.SetupURI("TechStore", "alice@example.com"); err == nil {
		t.Fatal("expected error without a secret")
	}
}

func TestMapErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want authgate.ErrorCode
	}{
		{"not authorized", &types.NotAuthorizedException{Message: aws.String("bad creds")}, authgate.CodeNotAuthorized},
		{"user not found", &types.UserNotFoundException{}, authgate.CodeUserNotFound},
		{"not confirmed", &types.UserNotConfirmedException{}, authgate.CodeUserNotConfirmed},
		{"code mismatch", &types.CodeMismatchException{}, authgate.CodeMismatch},
		{"code expired", &types.ExpiredCodeException{}, authgate.CodeExpired},
		{"software token rejected", &types.EnableSoftwareTokenMFAException{}, authgate.CodeMismatch},
		{"unknown", errors.New("socket closed"), authgate.CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapError(tc.err)

			var pe *authgate.ProviderError
			if !errors.As(mapped, &pe) {
				t.Fatalf("expected ProviderError, got %T", mapped)
			}
			if pe.Code != tc.want {
				t.Fatalf("expected code %q, got %q", tc.want, pe.Code)
			}
		})
	}
}

func TestSessionClaimsReadsGroups(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":            "sub-1",
		"cognito:groups": []string{"staff", "admin"},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}

	p := New(nil, "client-id")
	p.setTokens(&types.AuthenticationResultType{
		AccessToken: aws.String("access"),
		IdToken:     aws.String(signed),
	})

	claims, err := p.SessionClaims(context.Background())
	if err != nil {
		t.Fatalf("SessionClaims failed: %v", err)
	}
	if len(claims.Groups) != 2 || claims.Groups[1] != "admin" {
		t.Fatalf("unexpected groups %v", claims.Groups)
	}
}

func TestSessionClaimsWithoutSession(t *testing.T) {
	p := New(nil, "client-id")

	_, err := p.SessionClaims(context.Background())

	var pe *authgate.ProviderError
	if !errors.As(err, &pe) || pe.Code != authgate.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated provider error, got %v", err)
	}
}

func TestSessionClaimsUnreadableToken(t *testing.T) {
	p := New(nil, "client-id")
	p.setTokens(&types.AuthenticationResultType{
		AccessToken: aws.String("access"),
		IdToken:     aws.String("not-a-jwt"),
	})

	_, err := p.SessionClaims(context.Background())

	var pe *authgate.ProviderError
	if !errors.As(err, &pe) || pe.Code != authgate.CodeInternal {
		t.Fatalf("expected internal provider error, got %v", err)
	}
}

func TestGroupsFromClaimsMissing(t *testing.T) {
	if groups := groupsFromClaims(jwt.MapClaims{"sub": "sub-1"}); groups != nil {
		t.Fatalf("expected nil groups, got %v", groups)
	}
}
