package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/internal/users"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

type recordingSMS struct {
	mu   sync.Mutex
	to   []string
	body []string
	err  error
}

func (s *recordingSMS) SendSMS(ctx context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = append(s.to, to)
	s.body = append(s.body, body)
	return s.err
}

func newTestService(t *testing.T) (*Service, *users.InMemoryRepository) {
	t.Helper()
	repo := users.NewInMemoryRepository()
	svc := NewService(repo, newIssuer(t), logging.Discard())
	return svc, repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterRequest{Name: "Asha", Email: "Asha@Example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", session.User.Email)
	assert.Equal(t, identity.RolePatient, session.User.Role)
	assert.NotEmpty(t, session.AccessToken)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "s3cret-pass"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	session, err = svc.Login(ctx, "asha@example.com", "s3cret-pass")
	require.NoError(t, err)
	p, err := svc.Tokens().VerifyAccess(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, p.UserID)

	_, err = svc.Login(ctx, "asha@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing name", RegisterRequest{Email: "a@example.com", Password: "long-enough"}},
		{"bad email", RegisterRequest{Name: "A", Email: "not-an-email", Password: "long-enough"}},
		{"short password", RegisterRequest{Name: "A", Email: "a@example.com", Password: "short"}},
		{"bad phone", RegisterRequest{Name: "A", Email: "a@example.com", Password: "long-enough", Phone: "12ab"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestRefreshReadsCurrentRole(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterRequest{Name: "Ravi", Email: "ravi@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	u, err := repo.GetByID(ctx, session.User.ID)
	require.NoError(t, err)
	u.Role = identity.RoleAdmin
	require.NoError(t, repo.Update(ctx, u))

	refreshed, err := svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	p, err := svc.Tokens().VerifyAccess(refreshed.AccessToken)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	_, err = svc.Refresh(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOTPLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client, _ := setupTestRedis(t)
	store := NewOTPStore(client, DefaultOTPConfig())
	sms := &recordingSMS{}
	svc.SetOTP(store, sms, TTLs{Access: 30 * 24 * time.Hour, Refresh: 60 * 24 * time.Hour})

	_, err := svc.Register(ctx, RegisterRequest{Name: "Meera", Email: "meera@example.com", Password: "s3cret-pass", Phone: "+91 98765 43210"})
	require.NoError(t, err)

	err = svc.SendOTP(ctx, "+919999999999", false)
	assert.ErrorIs(t, err, ErrPhoneUnknown)

	require.NoError(t, svc.SendOTP(ctx, "+91 98765 43210", false))
	require.Len(t, sms.body, 1)
	assert.Equal(t, "+919876543210", sms.to[0])
	code := sms.body[0][strings.Index(sms.body[0], "is ")+3:][:6]

	_, err = svc.VerifyOTP(ctx, "+919876543210", "000000")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	session, err := svc.VerifyOTP(ctx, "+919876543210", code)
	require.NoError(t, err)
	assert.Equal(t, "meera@example.com", session.User.Email)
	assert.True(t, session.AccessExpiresAt.After(time.Now().Add(29*24*time.Hour)))

	err = svc.SendOTP(ctx, "+919876543210", true)
	assert.ErrorIs(t, err, ErrOTPCooldown)
}

func TestSendOTPDeliveryFailure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client, _ := setupTestRedis(t)
	sms := &recordingSMS{err: errors.New("twilio down")}
	svc.SetOTP(NewOTPStore(client, DefaultOTPConfig()), sms, TTLs{})

	_, err := svc.Register(ctx, RegisterRequest{Name: "Meera", Email: "meera@example.com", Password: "s3cret-pass", Phone: "+919876543210"})
	require.NoError(t, err)

	err = svc.SendOTP(ctx, "+919876543210", false)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	// The undelivered code is dropped along with the cooldown.
	sms.err = nil
	require.NoError(t, svc.SendOTP(ctx, "+919876543210", true))
}

func TestOTPUnavailableWithoutStore(t *testing.T) {
	svc, _ := newTestService(t)
	assert.ErrorIs(t, svc.SendOTP(context.Background(), "+919876543210", false), ErrOTPUnavailable)
	_, err := svc.VerifyOTP(context.Background(), "+919876543210", "123456")
	assert.ErrorIs(t, err, ErrOTPUnavailable)
}

func TestLoginWithGoogle(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	existing, err := svc.Register(ctx, RegisterRequest{Name: "Kiran", Email: "kiran@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	session, err := svc.LoginWithGoogle(ctx, &GoogleProfile{ID: "g-1", Email: "KIRAN@example.com", Name: "Kiran K", EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, existing.User.ID, session.User.ID)
	linked, err := repo.GetByGoogleID(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, existing.User.ID, linked.ID)

	session, err = svc.LoginWithGoogle(ctx, &GoogleProfile{ID: "g-2", Email: "new@example.com", Name: "New Person", Picture: "https://img", EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, "New Person", session.User.Name)
	assert.Equal(t, identity.RolePatient, session.User.Role)

	again, err := svc.LoginWithGoogle(ctx, &GoogleProfile{ID: "g-2", Email: "new@example.com", EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, again.User.ID)

	_, err = svc.LoginWithGoogle(ctx, &GoogleProfile{ID: "g-3", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrGoogleEmail)
}

func TestEnsureAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.EnsureAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = svc.EnsureAdmin(ctx, "admin@example.com", "admin-pass-1")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, u.Role)

	again, err := svc.EnsureAdmin(ctx, "admin@example.com", "admin-pass-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	session, err := svc.Login(ctx, "admin@example.com", "admin-pass-1")
	require.NoError(t, err)
	p, err := svc.Tokens().VerifyAccess(session.AccessToken)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	patient, err := svc.Register(ctx, RegisterRequest{Name: "Ops", Email: "ops@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	promoted, err := svc.EnsureAdmin(ctx, "ops@example.com", "ignored-pass")
	require.NoError(t, err)
	assert.Equal(t, patient.User.ID, promoted.ID)
	assert.Equal(t, identity.RoleAdmin, promoted.Role)
}

type stubExchanger struct {
	code string
}

func (s *stubExchanger) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (s *stubExchanger) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	if code != s.code {
		return nil, errors.New("bad code")
	}
	return &oauth2.Token{AccessToken: "google-token"}, nil
}

func newAuthRouter(t *testing.T, google *GoogleOAuth) (http.Handler, *Service) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, google, "https://app.example.com/", logging.Discard())
	r := chi.NewRouter()
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)
	r.Post("/api/auth/refresh", h.Refresh)
	r.Post("/api/auth/otp/send", h.SendOTP)
	r.Get("/api/auth/google", h.GoogleStart)
	r.Get("/api/auth/google/callback", h.GoogleCallback)
	return r, svc
}

func TestHandlerRegisterLoginRefresh(t *testing.T) {
	router, _ := newAuthRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"name":"Asha","email":"asha@example.com","password":"s3cret-pass"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"accessToken"`)
	assert.NotContains(t, rec.Body.String(), "PasswordHash")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"asha@example.com","password":"nope-nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(`{"refreshToken":"junk"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/otp/send", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerGoogleFlow(t *testing.T) {
	google := &GoogleOAuth{
		config: &stubExchanger{code: "good-code"},
		fetch: func(ctx context.Context, tok *oauth2.Token) (*GoogleProfile, error) {
			return &GoogleProfile{ID: "g-1", Email: "g@example.com", Name: "G User", EmailVerified: true}, nil
		},
	}
	router, svc := newAuthRouter(t, google)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=good-code&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	dest, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", dest.Path)
	frag, err := url.ParseQuery(dest.Fragment)
	require.NoError(t, err)
	_, err = svc.Tokens().VerifyAccess(frag.Get("accessToken"))
	assert.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=good-code&state=forged", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/login?error=invalid_state", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=bad&state="+url.QueryEscape(state), nil))
	assert.Equal(t, "https://app.example.com/login?error=exchange_failed", rec.Header().Get("Location"))
}

func TestHandlerGoogleNotConfigured(t *testing.T) {
	router, _ := newAuthRouter(t, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
