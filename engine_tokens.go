package sphereauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/elimusphere/sphereauth/jwt"
)

// Principal is the caller identity recovered from a verified access token.
type Principal struct {
	UserID string
	Name   string
	Role   Role
	RegNo  string
}

// IssueAccessToken signs a short-lived token for id. It returns ErrEngineNotReady
// when no signing key is configured.
func (e *Engine) IssueAccessToken(ctx context.Context, id *Identity) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	if id == nil || id.ID == "" {
		return "", ErrInvalidInput
	}

	sub := jwt.Subject{
		UserID: id.ID,
		Name:   id.Name,
		Role:   string(id.Role),
	}
	if id.RegNo != nil {
		sub.RegNo = *id.RegNo
	}

	token, err := e.jwtManager.CreateAccess(sub)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricAccessTokenIssued)
	return token, nil
}

// ParseAccessToken verifies token and returns its principal. Every verification
// failure is reported as ErrTokenInvalid.
func (e *Engine) ParseAccessToken(ctx context.Context, token string) (*Principal, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	token = strings.TrimSpace(token)
	if token == "" {
		e.metricInc(MetricAccessTokenRejected)
		return nil, ErrTokenInvalid
	}

	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		e.metricInc(MetricAccessTokenRejected)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		e.metricInc(MetricAccessTokenRejected)
		return nil, ErrTokenInvalid
	}

	return &Principal{
		UserID: claims.UserID(),
		Name:   claims.Name,
		Role:   role,
		RegNo:  claims.RegNo,
	}, nil
}
