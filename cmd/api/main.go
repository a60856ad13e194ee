package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/doctor-booking-platform/cmd/mainconfig"
	"github.com/wolfman30/doctor-booking-platform/internal/admin"
	"github.com/wolfman30/doctor-booking-platform/internal/api/router"
	"github.com/wolfman30/doctor-booking-platform/internal/app/bootstrap"
	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/assistant"
	"github.com/wolfman30/doctor-booking-platform/internal/auth"
	appconfig "github.com/wolfman30/doctor-booking-platform/internal/config"
	"github.com/wolfman30/doctor-booking-platform/internal/database"
	"github.com/wolfman30/doctor-booking-platform/internal/doctors"
	httpmiddleware "github.com/wolfman30/doctor-booking-platform/internal/http/middleware"
	"github.com/wolfman30/doctor-booking-platform/internal/notify"
	"github.com/wolfman30/doctor-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/doctor-booking-platform/internal/payments"
	"github.com/wolfman30/doctor-booking-platform/internal/realtime"
	"github.com/wolfman30/doctor-booking-platform/internal/scheduler"
	"github.com/wolfman30/doctor-booking-platform/internal/slots"
	"github.com/wolfman30/doctor-booking-platform/internal/users"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

func main() {
	// .env is optional; real deployments inject the environment
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting doctor-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil && cfg.IsProduction() {
		logger.Error("DATABASE_URL is required in production")
		os.Exit(1)
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	var awsCfg *aws.Config
	if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
		logger.Warn("aws config unavailable; SES, S3 and Bedrock disabled", "error", err)
	} else {
		awsCfg = &loaded
	}

	application, err := buildApp(ctx, cfg, deps{pool: pool, redis: redisClient, aws: awsCfg}, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer application.close()

	schedulerDone := application.startScheduler(ctx, cfg.SchedulerEnabled)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      application.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown deadline")
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type deps struct {
	pool  *pgxpool.Pool
	redis *redis.Client
	aws   *aws.Config
}

type app struct {
	handler   http.Handler
	scheduler *scheduler.Scheduler
	limiter   *httpmiddleware.RateLimiter
	deps      deps
	logger    *logging.Logger
}

func (a *app) startScheduler(ctx context.Context, enabled bool) <-chan struct{} {
	if !enabled {
		a.logger.Info("scheduler disabled")
		done := make(chan struct{})
		close(done)
		return done
	}
	return a.scheduler.Start(ctx)
}

func (a *app) close() {
	a.limiter.Stop()
	if a.deps.redis != nil {
		_ = a.deps.redis.Close()
	}
	if a.deps.pool != nil {
		a.deps.pool.Close()
	}
}

// buildApp wires every component from config. Nothing is started here.
func buildApp(ctx context.Context, cfg *appconfig.Config, d deps, logger *logging.Logger) (*app, error) {
	stores := bootstrap.BuildStores(d.pool)
	if !stores.Persistent {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}

	metricsHandler, bookingMetrics := setupMetrics()

	hours, err := clinicHours(cfg)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub(bookingMetrics, logger)
	publisher := notify.NewPublisher(hub, logger)

	gateway, err := bootstrap.BuildGateway(cfg, logger)
	if err != nil {
		return nil, err
	}
	apptSvc := appointments.NewService(stores.Appointments, stores.Doctors, stores.Users, gateway, appointments.Options{
		Hours:          hours,
		Currency:       cfg.Currency,
		MinorUnits:     int64(cfg.CurrencyMinorUnits),
		GatewayTimeout: cfg.PaymentGatewayTimeout,
		KeySecret:      bootstrap.PaymentSecret(cfg),
	}, logger)
	apptSvc.SetPublisher(publisher)
	apptSvc.SetMetrics(bookingMetrics)
	if d.redis != nil {
		apptSvc.SetLimiter(payments.NewVelocityChecker(d.redis, payments.VelocityConfig{
			MaxOrdersPerPatient: cfg.OrderVelocityMax,
			Window:              cfg.OrderVelocityWindow,
			Enabled:             true,
		}, logger))
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, auth.TTLs{
		Access:  cfg.AccessTokenTTL,
		Refresh: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, err
	}
	smsSender, smsProvider := bootstrap.BuildSMSSender(cfg, logger)
	emailSender, emailProvider := bootstrap.BuildEmailSender(cfg, d.aws, logger)
	logger.Info("notification channels", "sms", smsProvider, "email", emailProvider)

	authSvc := auth.NewService(stores.Users, tokens, logger)
	if d.redis != nil {
		authSvc.SetOTP(auth.NewOTPStore(d.redis, auth.OTPConfig{
			TTL:            cfg.OTPTTL,
			MaxAttempts:    cfg.OTPMaxAttempts,
			ResendCooldown: cfg.OTPResendCooldown,
		}), smsSender, auth.TTLs{Access: cfg.OTPAccessTokenTTL, Refresh: cfg.OTPRefreshTokenTTL})
	} else {
		logger.Warn("redis not configured; OTP login disabled")
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("ensure admin: %w", err)
		}
	}
	google := auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)

	reminders := notify.NewReminders(smsSender, emailSender, hub, hours.Location, logger)
	sched := scheduler.New(stores.Appointments, apptSvc, reminders, publisher, scheduler.Config{
		Location:         hours.Location,
		ReminderInterval: cfg.ReminderInterval,
		ReminderWindow:   cfg.ReminderWindow,
		UnpaidTimeout:    cfg.UnpaidTimeout,
		CleanupAt:        mustClock(cfg.CleanupAt, 0),
		CompletionAt:     mustClock(cfg.CompletionAt, time.Hour),
	}, logger)
	sched.SetMetrics(bookingMetrics)

	aiClient, err := bootstrap.BuildAssistantClient(ctx, cfg, d.aws, logger)
	if err != nil {
		return nil, err
	}
	assistantSvc := assistant.NewService(aiClient, logger)
	images := bootstrap.BuildImageStore(cfg, d.aws, logger)
	skin := assistant.NewSkinAnalyzer(images, logger)
	usersHandler := users.NewHandler(stores.Users, logger)
	usersHandler.SetImageStore(images)

	var webhook *payments.RazorpayWebhookHandler
	if cfg.RazorpayWebhookSecret != "" {
		webhook = payments.NewRazorpayWebhookHandler(cfg.RazorpayWebhookSecret, apptSvc, stores.Processed, logger)
	} else {
		logger.Warn("RAZORPAY_WEBHOOK_SECRET not set; webhook confirmation disabled")
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.AuthRateLimitPerMin)

	handler := router.New(&router.Config{
		Logger:             logger,
		Verifier:           tokens,
		AuthHandler:        auth.NewHandler(authSvc, google, cfg.FrontendURL, logger),
		UsersHandler:       usersHandler,
		DoctorsHandler:     doctors.NewHandler(stores.Doctors, logger),
		AppointmentHandler: appointments.NewHandler(apptSvc, logger),
		AdminHandler:       admin.NewHandler(stores.Counts, apptSvc, sched, logger),
		AssistantHandler:   assistant.NewHandler(assistantSvc, skin, logger),
		RazorpayWebhook:    webhook,
		Realtime:           realtime.NewHandler(hub, tokens, cfg.CORSOrigins, logger),
		MetricsHandler:     metricsHandler,
		AuthLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSOrigins,
		HealthChecks:       healthChecks(d),
	})

	return &app{handler: handler, scheduler: sched, limiter: limiter, deps: d, logger: logger}, nil
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := database.Connect(ctx, url)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to postgres")
	return pool
}

// setupMetrics builds a private registry so tests can create it repeatedly.
func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewBookingMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), m
}

func clinicHours(cfg *appconfig.Config) (slots.Hours, error) {
	return slots.NewHours(cfg.ClinicOpen, cfg.ClinicClose, cfg.SlotStep, cfg.SlotDays, cfg.SameDayLead, cfg.ClinicTimezone)
}

func mustClock(s string, fallback time.Duration) time.Duration {
	d, err := slots.ParseClock(s)
	if err != nil {
		return fallback
	}
	return d
}

func healthChecks(d deps) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if d.pool != nil {
		checks["postgres"] = func(ctx context.Context) error { return d.pool.Ping(ctx) }
	}
	if d.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return d.redis.Ping(ctx).Err() }
	}
	return checks
}
