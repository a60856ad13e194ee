package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/doctor-booking-platform/internal/admin"
	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/assistant"
	"github.com/wolfman30/doctor-booking-platform/internal/auth"
	"github.com/wolfman30/doctor-booking-platform/internal/doctors"
	httpmiddleware "github.com/wolfman30/doctor-booking-platform/internal/http/middleware"
	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/internal/payments"
	"github.com/wolfman30/doctor-booking-platform/internal/users"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Verifier           httpmiddleware.TokenVerifier
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	DoctorsHandler     *doctors.Handler
	AppointmentHandler *appointments.Handler
	AdminHandler       *admin.Handler
	AssistantHandler   *assistant.Handler
	RazorpayWebhook    *payments.RazorpayWebhookHandler
	Realtime           http.Handler
	MetricsHandler     http.Handler
	AuthLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	requireUser := httpmiddleware.RequireUser(cfg.Verifier, cfg.Logger)
	requireAdmin := httpmiddleware.RequireAdmin(cfg.Logger)

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks, cfg.Logger))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.RazorpayWebhook != nil {
			public.Post("/webhooks/razorpay", cfg.RazorpayWebhook.Handle)
		}
		// the socket authenticates its own handshake
		if cfg.Realtime != nil {
			public.Handle("/ws", cfg.Realtime)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.AuthHandler != nil {
			api.Route("/auth", func(a chi.Router) {
				if cfg.AuthLimiter != nil {
					a.Use(httpmiddleware.RateLimit(cfg.AuthLimiter))
				}
				a.Post("/register", cfg.AuthHandler.Register)
				a.Post("/login", cfg.AuthHandler.Login)
				a.Post("/refresh", cfg.AuthHandler.Refresh)
				a.Post("/otp/send", cfg.AuthHandler.SendOTP)
				a.Post("/otp/resend", cfg.AuthHandler.ResendOTP)
				a.Post("/otp/verify", cfg.AuthHandler.VerifyOTP)
				a.Get("/google", cfg.AuthHandler.GoogleStart)
				a.Get("/google/callback", cfg.AuthHandler.GoogleCallback)
			})
		}

		if cfg.DoctorsHandler != nil {
			api.Get("/doctors", cfg.DoctorsHandler.List)
			api.Get("/doctors/{doctorID}", cfg.DoctorsHandler.Get)
		}
		if cfg.AppointmentHandler != nil {
			api.Get("/doctors/{doctorID}/slots", cfg.AppointmentHandler.Slots)
		}
		if cfg.AssistantHandler != nil {
			api.Get("/ai/health-tips", cfg.AssistantHandler.HealthTips)
		}

		api.Group(func(user chi.Router) {
			user.Use(requireUser)

			if cfg.UsersHandler != nil {
				user.Get("/user/profile", cfg.UsersHandler.GetProfile)
				user.Put("/user/profile", cfg.UsersHandler.UpdateProfile)
			}
			if cfg.AppointmentHandler != nil {
				user.Route("/appointments", func(ar chi.Router) {
					ar.Post("/", cfg.AppointmentHandler.Book)
					ar.Get("/", cfg.AppointmentHandler.ListMine)
					ar.Get("/{appointmentID}", cfg.AppointmentHandler.Get)
					ar.Post("/{appointmentID}/cancel", cfg.AppointmentHandler.Cancel)
					ar.Post("/{appointmentID}/order", cfg.AppointmentHandler.RequestOrder)
				})
				user.Post("/payments/verify", cfg.AppointmentHandler.ConfirmPayment)
			}
			if cfg.AssistantHandler != nil {
				user.Post("/ai/chat", cfg.AssistantHandler.Chat)
				user.Delete("/ai/chat", cfg.AssistantHandler.ClearChat)
				user.Post("/ai/medications", cfg.AssistantHandler.Medications)
				user.Post("/skin/analyze", cfg.AssistantHandler.AnalyzeSkin)
			}

			user.Route("/admin", func(adm chi.Router) {
				adm.Use(requireAdmin)
				if cfg.AppointmentHandler != nil {
					adm.Get("/appointments", cfg.AppointmentHandler.ListAll)
				}
				if cfg.AdminHandler != nil {
					adm.Get("/dashboard", cfg.AdminHandler.Dashboard)
					adm.Post("/jobs/{job}/run", cfg.AdminHandler.RunJob)
				}
				if cfg.DoctorsHandler != nil {
					adm.Get("/doctors", cfg.DoctorsHandler.ListAll)
					adm.Post("/doctors", cfg.DoctorsHandler.Create)
					adm.Put("/doctors/{doctorID}", cfg.DoctorsHandler.Update)
					adm.Post("/doctors/{doctorID}/availability", cfg.DoctorsHandler.SetAvailability)
				}
			})
		})
	})

	return r
}

// healthHandler reports ok when every check passes within two seconds. Check errors are
// logged, never returned, since they can carry connection details.
func healthHandler(checks map[string]HealthCheck, logger *logging.Logger) http.HandlerFunc {
	logger = logging.OrDefault(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = "unavailable"
				logger.Warn("health check failed", "check", name, "error", err)
				continue
			}
			results[name] = "ok"
		}
		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(results) > 0 {
			body["checks"] = results
		}
		respond.JSON(w, status, body)
	}
}
