// Package auth issues and verifies session tokens and implements the password, OTP
// and Google sign-in flows.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenTypeState   = "oauth_state"

	issuer = "doctor-booking"
)

var (
	ErrInvalidToken = apperr.New(apperr.KindUnauthorized, "invalid or expired token")
	ErrMissingToken = apperr.New(apperr.KindUnauthorized, "not authorized, login again")
)

// Claims are the JWT claims carried by every token this package signs.
type Claims struct {
	jwt.RegisteredClaims
	Role identity.Role `json:"role,omitempty"`
	Type string        `json:"typ"`
}

// TTLs is an access/refresh lifetime pair.
type TTLs struct {
	Access  time.Duration
	Refresh time.Duration
}

// TokenPair is what a successful sign-in returns.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// TokenIssuer signs HS256 tokens. Access and refresh tokens use separate secrets so a
// leaked refresh secret cannot mint access tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	defaults      TTLs
	now           func() time.Time
}

// NewTokenIssuer validates the secrets and default lifetimes.
func NewTokenIssuer(accessSecret, refreshSecret string, defaults TTLs) (*TokenIssuer, error) {
	if strings.TrimSpace(accessSecret) == "" {
		return nil, errors.New("auth: access token secret is required")
	}
	if refreshSecret == "" {
		refreshSecret = accessSecret
	}
	if defaults.Access <= 0 {
		defaults.Access = 24 * time.Hour
	}
	if defaults.Refresh <= 0 {
		defaults.Refresh = 7 * 24 * time.Hour
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		defaults:      defaults,
		now:           time.Now,
	}, nil
}

// Issue signs a token pair for p with the default lifetimes.
func (t *TokenIssuer) Issue(p identity.Principal) (*TokenPair, error) {
	return t.IssueWithTTL(p, t.defaults)
}

// IssueWithTTL signs a token pair with explicit lifetimes; zero fields use the defaults.
func (t *TokenIssuer) IssueWithTTL(p identity.Principal, ttl TTLs) (*TokenPair, error) {
	if p.UserID == "" {
		return nil, errors.New("auth: principal has no user id")
	}
	if ttl.Access <= 0 {
		ttl.Access = t.defaults.Access
	}
	if ttl.Refresh <= 0 {
		ttl.Refresh = t.defaults.Refresh
	}
	now := t.now()
	access, accessExp, err := t.sign(t.accessSecret, p, tokenTypeAccess, now, ttl.Access)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := t.sign(t.refreshSecret, p, tokenTypeRefresh, now, ttl.Refresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (t *TokenIssuer) sign(secret []byte, p identity.Principal, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: p.Role,
		Type: typ,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}

// VerifyAccess validates an access token and returns its principal.
func (t *TokenIssuer) VerifyAccess(token string) (identity.Principal, error) {
	claims, err := t.parse(token, t.accessSecret, tokenTypeAccess)
	if err != nil {
		return identity.Principal{}, err
	}
	role := claims.Role
	if role == "" {
		role = identity.RolePatient
	}
	return identity.Principal{UserID: claims.Subject, Role: role}, nil
}

// VerifyRefresh validates a refresh token and returns the user id it was issued to.
// The role is re-read from the user record on refresh, not trusted from the token.
func (t *TokenIssuer) VerifyRefresh(token string) (string, error) {
	claims, err := t.parse(token, t.refreshSecret, tokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// SignState returns a short-lived signed OAuth state value.
func (t *TokenIssuer) SignState(ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: tokenTypeState,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign state: %w", err)
	}
	return signed, nil
}

// VerifyState checks an OAuth state value produced by SignState.
func (t *TokenIssuer) VerifyState(state string) error {
	_, err := t.parse(state, t.accessSecret, tokenTypeState)
	return err
}

func (t *TokenIssuer) parse(token string, secret []byte, typ string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != typ {
		return nil, ErrInvalidToken
	}
	if typ != tokenTypeState && claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
