package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/dhishan/family-expense-tracker/internal/core"
)

func TestTokens_IssueAndParse(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)
	tokens := NewTokens("test-secret", 7*24*time.Hour)
	tokens.now = func() time.Time { return now }

	signed, exp, err := tokens.Issue(core.User{ID: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(7*24*time.Hour), exp)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)

	tokens.now = func() time.Time { return now.Add(8 * 24 * time.Hour) }
	_, err = tokens.Parse(signed)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.ErrorContains(t, err, "expired")
}

func TestTokens_ParseRejects(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	other := NewTokens("other-secret", time.Hour)
	forged, _, err := other.Issue(core.User{ID: "alice"})
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   forged,
		"no expiry":      noExp,
		"none algorithm": none,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(token)
			assert.ErrorIs(t, err, core.ErrUnauthorized)
		})
	}
}

func TestGoogleVerifier_IDToken(t *testing.T) {
	v := NewGoogleVerifier("client-123")
	var gotAudience string
	v.validate = func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		gotAudience = audience
		if token != "a.b.c" {
			return nil, errors.New("bad signature")
		}
		return &idtoken.Payload{
			Subject: "google-42",
			Claims:  map[string]any{"email": "alice@example.com", "name": "Alice", "picture": "https://img/a.png"},
		}, nil
	}

	id, err := v.Verify(context.Background(), "a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "client-123", gotAudience)
	assert.Equal(t, core.Identity{Subject: "google-42", Email: "alice@example.com", Name: "Alice", Picture: "https://img/a.png"}, id)

	_, err = v.Verify(context.Background(), "x.y.z")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = v.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestGoogleVerifier_AccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			http.Error(w, `{"error":{"code":401,"message":"invalid"}}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"google-7","email":"bob@example.com","name":"Bob","picture":""}`))
	}))
	defer srv.Close()

	v := NewGoogleVerifier("client-123", option.WithEndpoint(srv.URL+"/"))

	id, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "google-7", id.Subject)
	assert.Equal(t, "bob@example.com", id.Email)
	assert.Equal(t, "Bob", id.Name)

	_, err = v.Verify(context.Background(), "bad-token")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}
