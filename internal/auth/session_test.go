package auth

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/djeeyo/nmreggae/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T, password string) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(config.AdminConfig{
		Password:   password,
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
	})
	require.NoError(t, err)
	return a
}

func TestCheckPassword(t *testing.T) {
	a := newTestAuthenticator(t, "irie")

	assert.True(t, a.CheckPassword("irie"))
	assert.False(t, a.CheckPassword("Irie"))
	assert.False(t, a.CheckPassword("irie "))
	assert.False(t, a.CheckPassword(""))
}

func TestEmptyPasswordRejectsEverything(t *testing.T) {
	a := newTestAuthenticator(t, "")

	assert.False(t, a.CheckPassword(""))
	assert.False(t, a.CheckPassword("anything"))
}

func TestEmptyPasswordWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	newTestAuthenticator(t, "")
	assert.Equal(t, 1, strings.Count(buf.String(), "admin.password not set"))

	buf.Reset()
	newTestAuthenticator(t, "irie")
	assert.NotContains(t, buf.String(), "admin.password")
}

func TestSessionRoundTrip(t *testing.T) {
	a := newTestAuthenticator(t, "irie")
	now := time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	token, expiresAt, err := a.IssueSession()
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := a.ParseSession(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestExpiredSession(t *testing.T) {
	a := newTestAuthenticator(t, "irie")
	issued := time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }

	token, _, err := a.IssueSession()
	require.NoError(t, err)

	a.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = a.ParseSession(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionFromOtherKeyRejected(t *testing.T) {
	issuer := newTestAuthenticator(t, "irie")
	token, _, err := issuer.IssueSession()
	require.NoError(t, err)

	other, err := NewAuthenticator(config.AdminConfig{Password: "irie", JWTSecret: "different"})
	require.NoError(t, err)
	_, err = other.ParseSession(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestUnsignedSessionRejected(t *testing.T) {
	a := newTestAuthenticator(t, "irie")

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin", Issuer: "nmreggae"},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = a.ParseSession(signed)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestEphemeralKey(t *testing.T) {
	a, err := NewAuthenticator(config.AdminConfig{Password: "irie"})
	require.NoError(t, err)
	assert.Len(t, a.signingKey, 32)
	assert.Equal(t, 12*time.Hour, a.ttl)

	token, _, err := a.IssueSession()
	require.NoError(t, err)
	_, err = a.ParseSession(token)
	assert.NoError(t, err)
}
