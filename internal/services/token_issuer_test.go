package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvitapilot/cvitapilot/internal/models"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	iss := NewTokenIssuer("secret", "cvitapilot", 10*time.Minute)
	u := &models.User{ID: "u1", Role: models.RoleAdmin}

	raw, exp, err := iss.Issue(u, "s1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), exp, 5*time.Second)

	c, err := iss.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Subject)
	assert.Equal(t, "s1", c.SessionID)
	assert.Equal(t, "admin", c.Role)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	iss := NewTokenIssuer("secret", "cvitapilot", time.Minute)
	u := &models.User{ID: "u1", Role: models.RoleUser}
	raw, _, err := iss.Issue(u, "s1")
	require.NoError(t, err)

	_, err = NewTokenIssuer("other", "cvitapilot", time.Minute).Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenIssuer("secret", "someone-else", time.Minute).Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	late := NewTokenIssuer("secret", "cvitapilot", time.Minute)
	late.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = late.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Parse("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
