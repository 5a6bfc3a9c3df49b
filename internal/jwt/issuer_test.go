package jwt

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseAdmin(t *testing.T) {
	iss := NewIssuer("dingtalk-login", "s3cret", time.Hour)

	tok, exp, err := iss.IssueAdmin("user-1", "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := iss.ParseAdmin(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "admin", claims.Username)
}

func TestParseAdminRejects(t *testing.T) {
	iss := NewIssuer("dingtalk-login", "s3cret", time.Minute)
	tok, _, err := iss.IssueAdmin("user-1", "admin")
	require.NoError(t, err)

	t.Run("otro secreto", func(t *testing.T) {
		_, err := NewIssuer("dingtalk-login", "other", time.Minute).ParseAdmin(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("otro issuer", func(t *testing.T) {
		_, err := NewIssuer("someone-else", "s3cret", time.Minute).ParseAdmin(tok)
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("expirado", func(t *testing.T) {
		late := NewIssuer("dingtalk-login", "s3cret", time.Minute)
		late.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
		_, err := late.ParseAdmin(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		unsigned := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, AdminClaims{Scope: "admin"})
		raw, err := unsigned.SignedString(jwtv5.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = iss.ParseAdmin(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("sin secreto", func(t *testing.T) {
		_, _, err := NewIssuer("x", "", 0).IssueAdmin("u", "n")
		assert.ErrorIs(t, err, ErrNoSecret)
	})
}
