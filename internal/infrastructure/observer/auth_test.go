package observer

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoAuth_AlwaysSucceeds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/observe", nil)
	assert.NoError(t, NewNoAuth().Authenticate(req))
}

func TestJWTAuth_ValidBearerToken(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	token, err := auth.GenerateToken(time.Now().Add(time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/observe", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	assert.NoError(t, auth.Authenticate(req))
}

func TestJWTAuth_ValidQueryToken(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	token, err := auth.GenerateToken(time.Now().Add(time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/observe?token="+token, nil)
	assert.NoError(t, auth.Authenticate(req))
}

func TestJWTAuth_MissingToken(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	req := httptest.NewRequest(http.MethodGet, "/observe", nil)
	assert.ErrorIs(t, auth.Authenticate(req), ErrMissingToken)
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	token, err := auth.GenerateToken(time.Now().Add(-time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/observe", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	assert.ErrorIs(t, auth.Authenticate(req), ErrExpiredToken)
}

func TestJWTAuth_WrongSecretIsInvalid(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	token, err := auth.GenerateToken(time.Now().Add(time.Hour))
	require.NoError(t, err)

	other := NewJWTAuth("different-secret")
	req := httptest.NewRequest(http.MethodGet, "/observe", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	assert.ErrorIs(t, other.Authenticate(req), ErrInvalidToken)
}
