// Package auth issues and verifies bearer tokens. Tokens are either signed
// locally with a shared HS256 secret or issued by an external identity
// provider and verified against its JWKS.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// LocalIssuer is the iss claim of locally issued tokens.
const LocalIssuer = "soilsense"

// DefaultTokenTTL is used when Config.TokenTTL is unset.
const DefaultTokenTTL = 24 * time.Hour

// ErrExternalIssuer is returned by IssueToken when tokens come from an
// external identity provider.
var ErrExternalIssuer = errors.New("tokens are issued by the external identity provider")

// Config selects the verification mode. JWKSDomain wins over Secret.
type Config struct {
	Secret     string
	TokenTTL   time.Duration
	JWKSDomain string // e.g., "https://yourapp.kinde.com"
	Audience   string // API audience identifier, JWKS mode only
}

// TokenClaims are the JWT claims carried by a bearer token.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verifier handles JWT issuing and verification.
type Verifier struct {
	secret   []byte
	ttl      time.Duration
	jwks     keyfunc.Keyfunc
	cancel   context.CancelFunc
	audience string
	issuer   string
	now      func() time.Time
}

// NewVerifier creates a verifier for the configured mode.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.JWKSDomain != "" {
		domain := strings.TrimSuffix(cfg.JWKSDomain, "/")
		jwksURL := fmt.Sprintf("%s/.well-known/jwks.json", domain)

		ctx, cancel := context.WithCancel(context.Background())
		jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
		}
		v := NewJWKSVerifier(jwks, domain, cfg.Audience)
		v.cancel = cancel
		return v, nil
	}

	if cfg.Secret == "" {
		return nil, errors.New("either a JWT secret or a JWKS domain is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		issuer: LocalIssuer,
		now:    time.Now,
	}, nil
}

// NewJWKSVerifier creates a verifier over an existing key set.
func NewJWKSVerifier(jwks keyfunc.Keyfunc, issuer, audience string) *Verifier {
	return &Verifier{
		jwks:     jwks,
		audience: audience,
		issuer:   issuer,
		now:      time.Now,
	}
}

// External reports whether subjects come from an external identity provider
// rather than local accounts.
func (v *Verifier) External() bool {
	return v.jwks != nil
}

// Close stops the background JWKS refresh, if any.
func (v *Verifier) Close() {
	if v.cancel != nil {
		v.cancel()
	}
}

// IssueToken signs an HS256 token for a local account.
func (v *Verifier) IssueToken(subject, email, name string) (string, error) {
	if v.External() {
		return "", ErrExternalIssuer
	}
	now := v.now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
		Email: email,
		Name:  name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a JWT token and returns the claims.
func (v *Verifier) Verify(tokenString string) (*TokenClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}

	var keyFunc jwt.Keyfunc
	if v.External() {
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{"RS256"}))
		if v.audience != "" {
			parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
		}
		keyFunc = v.jwks.Keyfunc
	} else {
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{"HS256"}))
		keyFunc = func(*jwt.Token) (any, error) { return v.secret, nil }
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, keyFunc, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}

// Middleware creates HTTP middleware that requires a valid bearer token.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				writeUnauthorized(w, "missing token")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":"Unauthorized: %s"}`+"\n", reason)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
