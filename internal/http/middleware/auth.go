package middleware

import (
	"net/http"
	"strings"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// TokenVerifier validates a bearer access token.
type TokenVerifier interface {
	VerifyAccess(token string) (identity.Principal, error)
}

var (
	errNotAuthorized = apperr.New(apperr.KindUnauthorized, "not authorized, login again")
	errAdminOnly     = apperr.New(apperr.KindForbidden, "admin access required")
)

// RequireUser authenticates the bearer token and stores the principal on the context.
// The legacy "token" header is accepted as a fallback.
func RequireUser(verifier TokenVerifier, logger *logging.Logger) func(http.Handler) http.Handler {
	logger = logging.OrDefault(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r.Header.Get("Authorization"))
			if token == "" {
				token = strings.TrimSpace(r.Header.Get("token"))
			}
			if token == "" {
				respond.Error(w, r, logger, errNotAuthorized)
				return
			}
			p, err := verifier.VerifyAccess(token)
			if err != nil {
				respond.Error(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(logger *logging.Logger) func(http.Handler) http.Handler {
	logger = logging.OrDefault(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := identity.FromContext(r.Context())
			if !ok {
				respond.Error(w, r, logger, errNotAuthorized)
				return
			}
			if !p.IsAdmin() {
				logger.Warn("admin route denied", "user_id", p.UserID, "path", r.URL.Path)
				respond.Error(w, r, logger, errAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
