package auth

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/internal/users"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

var authTracer = otel.Tracer("doctor-booking.internal.auth")

var (
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid credentials")
	ErrOTPUnavailable     = apperr.New(apperr.KindUpstream, "OTP login is unavailable")
	ErrPhoneUnknown       = apperr.NotFound("no user found with this phone number")
	ErrGoogleEmail        = apperr.New(apperr.KindUnauthorized, "google account has no verified email")
)

// SMSSender delivers OTP codes.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Session is a signed-in user with their tokens.
type Session struct {
	*TokenPair
	User *users.User `json:"user"`
}

// RegisterRequest is the password sign-up payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// Service implements the sign-in flows on top of the user repository.
type Service struct {
	users   users.Repository
	tokens  *TokenIssuer
	otp     *OTPStore
	sms     SMSSender
	otpTTLs TTLs
	logger  *logging.Logger
}

// NewService wires the password and refresh flows. OTP login needs SetOTP.
func NewService(repo users.Repository, tokens *TokenIssuer, logger *logging.Logger) *Service {
	return &Service{users: repo, tokens: tokens, logger: logging.OrDefault(logger)}
}

// SetOTP enables phone login. Tokens issued through OTP use ttl.
func (s *Service) SetOTP(store *OTPStore, sms SMSSender, ttl TTLs) {
	s.otp = store
	s.sms = sms
	s.otpTTLs = ttl
}

// Tokens exposes the issuer for middleware and the websocket endpoint.
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Register creates a patient account with a password.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	ctx, span := authTracer.Start(ctx, "auth.register")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, users.ErrNameRequired
	}
	email, err := users.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	var phone string
	if strings.TrimSpace(req.Phone) != "" {
		if phone, err = users.NormalizePhone(req.Phone); err != nil {
			return nil, err
		}
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &users.User{Name: name, Email: email, Phone: phone, PasswordHash: hash, Role: identity.RolePatient}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.user_id", u.ID))
	s.logger.Info("user registered", "user_id", u.ID)
	return s.session(u, TTLs{})
}

// Login checks an email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := authTracer.Start(ctx, "auth.login")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := CheckPassword(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("password login rejected", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	return s.session(u, TTLs{})
}

// Refresh swaps a refresh token for a new pair. The role comes from the stored user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return s.session(u, TTLs{})
}

// SendOTP texts a fresh code to a registered phone. resend enforces the cooldown.
func (s *Service) SendOTP(ctx context.Context, phone string, resend bool) error {
	ctx, span := authTracer.Start(ctx, "auth.send_otp")
	defer span.End()

	if s.otp == nil || s.sms == nil {
		return ErrOTPUnavailable
	}
	phone, err := users.NormalizePhone(phone)
	if err != nil {
		return err
	}
	if _, err := s.users.GetByPhone(ctx, phone); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return ErrPhoneUnknown
		}
		return err
	}
	code, err := s.otp.Issue(ctx, phone, resend)
	if err != nil {
		return err
	}
	minutes := int(s.otp.config.TTL.Minutes())
	body := fmt.Sprintf("Your Prescripto verification code is %s. It expires in %d minutes.", code, minutes)
	if err := s.sms.SendSMS(ctx, phone, body); err != nil {
		if derr := s.otp.Discard(ctx, phone); derr != nil {
			s.logger.Warn("failed to discard undelivered otp", "error", derr)
		}
		return apperr.Wrap(apperr.KindUpstream, "failed to send OTP", err)
	}
	return nil
}

// VerifyOTP signs a user in with a texted code.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (*Session, error) {
	ctx, span := authTracer.Start(ctx, "auth.verify_otp")
	defer span.End()

	if s.otp == nil {
		return nil, ErrOTPUnavailable
	}
	phone, err := users.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("phone number and OTP are required")
	}
	if err := s.otp.Verify(ctx, phone, code); err != nil {
		return nil, err
	}
	u, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return s.session(u, s.otpTTLs)
}

// LoginWithGoogle finds the user by Google id, then by email (linking the Google id),
// and otherwise creates a patient account.
func (s *Service) LoginWithGoogle(ctx context.Context, profile *GoogleProfile) (*Session, error) {
	if profile == nil || profile.ID == "" {
		return nil, ErrGoogleEmail
	}
	email, err := users.NormalizeEmail(profile.Email)
	if err != nil || !profile.EmailVerified {
		return nil, ErrGoogleEmail
	}

	u, err := s.users.GetByGoogleID(ctx, profile.ID)
	if err == nil {
		return s.session(u, TTLs{})
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	u, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		u.GoogleID = profile.ID
		if u.Image == "" {
			u.Image = profile.Picture
		}
		if err := s.users.Update(ctx, u); err != nil {
			return nil, err
		}
		s.logger.Info("google account linked", "user_id", u.ID)
	case apperr.Is(err, apperr.KindNotFound):
		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		u = &users.User{Name: name, Email: email, Image: profile.Picture, GoogleID: profile.ID, Role: identity.RolePatient}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, err
		}
		s.logger.Info("user registered via google", "user_id", u.ID)
	default:
		return nil, err
	}
	return s.session(u, TTLs{})
}

// EnsureAdmin creates or promotes the bootstrap admin account. Empty credentials skip it.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*users.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, nil
	}
	email, err := users.NormalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("auth: admin email: %w", err)
	}
	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == identity.RoleAdmin {
			return u, nil
		}
		u.Role = identity.RoleAdmin
		if err := s.users.Update(ctx, u); err != nil {
			return nil, fmt.Errorf("auth: promote admin: %w", err)
		}
		s.logger.Info("admin role granted", "user_id", u.ID)
		return u, nil
	case apperr.Is(err, apperr.KindNotFound):
		hash, err := HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("auth: admin password: %w", err)
		}
		u = &users.User{Name: "Admin", Email: email, PasswordHash: hash, Role: identity.RoleAdmin}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("auth: create admin: %w", err)
		}
		s.logger.Info("admin account created", "user_id", u.ID)
		return u, nil
	default:
		return nil, err
	}
}

func (s *Service) session(u *users.User, ttl TTLs) (*Session, error) {
	role := u.Role
	if role == "" {
		role = identity.RolePatient
	}
	pair, err := s.tokens.IssueWithTTL(identity.Principal{UserID: u.ID, Role: role}, ttl)
	if err != nil {
		return nil, err
	}
	return &Session{TokenPair: pair, User: u}, nil
}
