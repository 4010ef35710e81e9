package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// NewTestClaims creates TokenClaims with the given subject and email.
// This is primarily for testing purposes.
func NewTestClaims(subject, email string) *TokenClaims {
	return &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
			Issuer:  LocalIssuer,
		},
		Email: email,
	}
}
