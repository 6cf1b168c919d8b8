package cognito

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	authgate "github.com/techstore/authgate"
)

// SessionClaims reads the group claims off the current ID token. The token
// is parsed without signature verification: the pool already authenticated
// the session that produced it, and groups here only feed role derivation,
// not an authentication decision.
//
// SessionClaims may return an error when input validation, dependency calls, or security checks fail.
// SessionClaims does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Provider) SessionClaims(_ context.Context) (*authgate.SessionClaims, error) {
	_, idToken := p.tokens()
	if idToken == "" {
		return nil, &authgate.ProviderError{Code: authgate.CodeUnauthenticated, Message: "no active session"}
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return nil, &authgate.ProviderError{Code: authgate.CodeInternal, Message: "unreadable id token"}
	}

	return &authgate.SessionClaims{
		Groups: groupsFromClaims(claims),
	}, nil
}

func groupsFromClaims(claims jwt.MapClaims) []string {
	raw, ok := claims["cognito:groups"]
	if !ok {
		return nil
	}

	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	groups := make([]string, 0, len(list))
	for _, entry := range list {
		if group, ok := entry.(string); ok {
			groups = append(groups, group)
		}
	}
	return groups
}
