package token

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	raw, err := iss.Issue(42, "admin")
	require.NoError(t, err)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestParse_WrongSecret(t *testing.T) {
	raw, err := NewIssuer("a", time.Hour).Issue(1, "user")
	require.NoError(t, err)
	_, err = NewIssuer("b", time.Hour).Parse(raw)
	require.True(t, errors.Is(err, ErrInvalid))
}

func TestParse_Expired(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	start := time.Now()
	iss.now = func() time.Time { return start }
	raw, err := iss.Issue(1, "user")
	require.NoError(t, err)

	iss.now = func() time.Time { return start.Add(3601 * time.Second) }
	_, err = iss.Parse(raw)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestParse_Garbage(t *testing.T) {
	_, err := NewIssuer("secret", 0).Parse("not.a.token")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewIssuer("s", 0).TTL())
}
