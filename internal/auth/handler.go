package auth

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

const oauthStateTTL = 10 * time.Minute

// Handler serves /api/auth.
type Handler struct {
	svc         *Service
	google      *GoogleOAuth
	frontendURL string
	logger      *logging.Logger
}

// NewHandler creates the auth handler. google may be nil when OAuth is not configured.
func NewHandler(svc *Service, google *GoogleOAuth, frontendURL string, logger *logging.Logger) *Handler {
	return &Handler{
		svc:         svc,
		google:      google,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logging.OrDefault(logger),
	}
}

func sessionFields(s *Session, message string) map[string]any {
	fields := map[string]any{
		"accessToken":      s.AccessToken,
		"refreshToken":     s.RefreshToken,
		"accessExpiresAt":  s.AccessExpiresAt,
		"refreshExpiresAt": s.RefreshExpiresAt,
		"user":             s.User,
	}
	if message != "" {
		fields["message"] = message
	}
	return fields
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	session, err := h.svc.Register(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusCreated, sessionFields(session, ""))
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, sessionFields(session, ""))
}

// Refresh handles POST /api/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	session, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, sessionFields(session, ""))
}

type otpRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// SendOTP handles POST /api/auth/otp/send.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	h.sendOTP(w, r, false)
}

// ResendOTP handles POST /api/auth/otp/resend.
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	h.sendOTP(w, r, true)
}

func (h *Handler) sendOTP(w http.ResponseWriter, r *http.Request, resend bool) {
	var req otpRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		respond.Error(w, r, h.logger, apperr.Validation("phone number is required"))
		return
	}
	if err := h.svc.SendOTP(r.Context(), req.Phone, resend); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	msg := "OTP sent successfully"
	if resend {
		msg = "new OTP sent successfully"
	}
	respond.OK(w, http.StatusOK, map[string]any{"message": msg})
}

// VerifyOTP handles POST /api/auth/otp/verify.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	session, err := h.svc.VerifyOTP(r.Context(), req.Phone, req.OTP)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, sessionFields(session, "OTP verified successfully"))
}

// GoogleStart handles GET /api/auth/google.
func (h *Handler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respond.Fail(w, http.StatusNotFound, "google login is not configured")
		return
	}
	state, err := h.svc.Tokens().SignState(oauthStateTTL)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback handles GET /api/auth/google/callback. Tokens are handed to the
// frontend in the URL fragment so they never reach server logs.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respond.Fail(w, http.StatusNotFound, "google login is not configured")
		return
	}
	q := r.URL.Query()
	if err := h.svc.Tokens().VerifyState(q.Get("state")); err != nil {
		h.logger.Warn("google callback with bad state", "error", err)
		h.redirectError(w, r, "invalid_state")
		return
	}
	if reason := q.Get("error"); reason != "" {
		h.redirectError(w, r, reason)
		return
	}
	profile, err := h.google.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.logger.Error("google exchange failed", "error", err)
		h.redirectError(w, r, "exchange_failed")
		return
	}
	session, err := h.svc.LoginWithGoogle(r.Context(), profile)
	if err != nil {
		h.logger.Warn("google login rejected", "error", err)
		h.redirectError(w, r, "login_failed")
		return
	}
	frag := url.Values{}
	frag.Set("accessToken", session.AccessToken)
	frag.Set("refreshToken", session.RefreshToken)
	http.Redirect(w, r, h.frontendURL+"/auth/callback#"+frag.Encode(), http.StatusFound)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	q := url.Values{}
	q.Set("error", reason)
	http.Redirect(w, r, h.frontendURL+"/login?"+q.Encode(), http.StatusFound)
}
