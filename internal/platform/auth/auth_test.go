package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("s3cret")
	require.NoError(t, err)

	token, expiresAt, err := issuer.Issue("admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestTokenIssuerRejectsExpiredAndForeignTokens(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-25 * time.Hour) }
	old, err := NewTokenIssuer("s3cret", WithTokenClock(past))
	require.NoError(t, err)
	token, _, err := old.Issue("admin")
	require.NoError(t, err)

	current, err := NewTokenIssuer("s3cret")
	require.NoError(t, err)
	_, err = current.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	other, err := NewTokenIssuer("different")
	require.NoError(t, err)
	foreign, _, err := other.Issue("admin")
	require.NoError(t, err)
	_, err = current.Verify(foreign)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRequireAdmin(t *testing.T) {
	issuer, err := NewTokenIssuer("s3cret")
	require.NoError(t, err)
	token, _, err := issuer.Issue("admin")
	require.NoError(t, err)

	var seen string
	handler := issuer.RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := AdminFromContext(r.Context())
		require.True(t, ok)
		seen = claims.Username
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, status: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Equal(t, "admin", seen)
}

func TestCredentialChecker(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	checker, err := NewCredentialChecker("admin", string(hash))
	require.NoError(t, err)

	assert.NoError(t, checker.Check("admin", "hunter2"))
	assert.ErrorIs(t, checker.Check("admin", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, checker.Check("root", "hunter2"), ErrInvalidCredentials)

	_, err = NewCredentialChecker("admin", "plaintext")
	assert.Error(t, err)
}
