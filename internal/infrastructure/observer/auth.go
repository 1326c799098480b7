package observer

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrInvalidToken = errors.New("invalid authentication token")
	ErrExpiredToken = errors.New("token has expired")
)

// Authenticator validates a connecting observer's bearer token.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// JWTAuth authenticates observers via a bearer JWT, the sole credential
// this feed needs since every client sees the same single-run stream.
type JWTAuth struct {
	secretKey string
}

// NewJWTAuth creates a JWTAuth using secretKey to verify tokens.
func NewJWTAuth(secretKey string) *JWTAuth {
	return &JWTAuth{secretKey: secretKey}
}

// Authenticate extracts the bearer token from the Authorization header or
// the "token" query parameter and validates it.
func (a *JWTAuth) Authenticate(r *http.Request) error {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return a.validateToken(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return a.validateToken(token)
	}
	return ErrMissingToken
}

func (a *JWTAuth) validateToken(tokenString string) error {
	if tokenString == "" {
		return ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(a.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// GenerateToken issues a bearer token valid until expiresAt.
func (a *JWTAuth) GenerateToken(expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   "observer",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secretKey))
}

// NoAuth allows every connection, for local/dev use.
type NoAuth struct{}

// NewNoAuth creates a NoAuth.
func NewNoAuth() *NoAuth { return &NoAuth{} }

// Authenticate always succeeds.
func (a *NoAuth) Authenticate(r *http.Request) error { return nil }
