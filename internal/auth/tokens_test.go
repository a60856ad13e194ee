package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
)

func newIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", TTLs{Access: time.Hour, Refresh: 24 * time.Hour})
	require.NoError(t, err)
	return issuer
}

func TestIssueAndVerify(t *testing.T) {
	issuer := newIssuer(t)
	pair, err := issuer.Issue(identity.Principal{UserID: "user-1", Role: identity.RoleAdmin})
	require.NoError(t, err)

	p, err := issuer.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.True(t, p.IsAdmin())

	userID, err := issuer.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	issuer := newIssuer(t)
	pair, err := issuer.Issue(identity.Principal{UserID: "user-1", Role: identity.RolePatient})
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.VerifyRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Same secret for both still separates them by type.
	shared, err := NewTokenIssuer("one-secret", "", TTLs{})
	require.NoError(t, err)
	pair, err = shared.Issue(identity.Principal{UserID: "user-1"})
	require.NoError(t, err)
	_, err = shared.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	issuer := newIssuer(t)
	start := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return start }
	pair, err := issuer.Issue(identity.Principal{UserID: "user-1"})
	require.NoError(t, err)

	issuer.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = issuer.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.VerifyRefresh(pair.RefreshToken)
	assert.NoError(t, err)

	other, err := NewTokenIssuer("someone-else", "someone-else-refresh", TTLs{})
	require.NoError(t, err)
	other.now = issuer.now
	foreign, err := other.Issue(identity.Principal{UserID: "user-1"})
	require.NoError(t, err)
	_, err = issuer.VerifyAccess(foreign.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.VerifyAccess("")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestIssueWithTTLOverridesDefaults(t *testing.T) {
	issuer := newIssuer(t)
	start := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return start }

	pair, err := issuer.IssueWithTTL(identity.Principal{UserID: "user-1"}, TTLs{Access: 30 * 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, start.Add(30*24*time.Hour), pair.AccessExpiresAt)
	assert.Equal(t, start.Add(24*time.Hour), pair.RefreshExpiresAt)

	p, err := issuer.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identity.RolePatient, p.Role)
}

func TestOAuthState(t *testing.T) {
	issuer := newIssuer(t)
	state, err := issuer.SignState(time.Minute)
	require.NoError(t, err)
	assert.NoError(t, issuer.VerifyState(state))

	pair, err := issuer.Issue(identity.Principal{UserID: "user-1"})
	require.NoError(t, err)
	assert.Error(t, issuer.VerifyState(pair.AccessToken))
	assert.Error(t, issuer.VerifyState("garbage"))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("Bearer "))
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	ok, err := CheckPassword(hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong horse")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = CheckPassword("", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}
