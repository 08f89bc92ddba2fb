// Package auth turns a bearer credential into a user identity.
package auth

import (
	"errors"
	"fmt"

	"chatroom/backend/pkg/jwt"
)

// ErrAuthFailure is returned for missing, malformed, expired or otherwise
// invalid credentials.
var ErrAuthFailure = errors.New("authentication failed")

// Authenticator verifies a credential and returns the stable user identity
// it was issued for. Implementations have no side effects.
type Authenticator interface {
	Authenticate(credential string) (string, error)
}

// JWTGate authenticates tokens issued by jwt.Manager.
type JWTGate struct {
	tokens *jwt.Manager
}

// NewJWTGate creates a gate backed by tokens.
func NewJWTGate(tokens *jwt.Manager) *JWTGate {
	return &JWTGate{tokens: tokens}
}

// Authenticate implements Authenticator.
func (g *JWTGate) Authenticate(credential string) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("%w: missing credential", ErrAuthFailure)
	}
	user, err := g.tokens.ParseToken(credential)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}
	return user, nil
}
