package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/wolfman30/doctor-booking-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/doctor-booking-platform/internal/config"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Env:                 "test",
		FrontendURL:         "http://localhost:3000",
		JWTSecret:           "main-test-secret",
		AccessTokenTTL:      time.Hour,
		RefreshTokenTTL:     24 * time.Hour,
		AuthRateLimitPerMin: 5,
		OTPTTL:              5 * time.Minute,
		OTPMaxAttempts:      3,
		OTPResendCooldown:   time.Minute,
		ClinicTimezone:      "UTC",
		ClinicOpen:          "10:00",
		ClinicClose:         "21:00",
		SlotStep:            30 * time.Minute,
		SlotDays:            7,
		PaymentProvider:     "fake",
		Currency:            "INR",
		CurrencyMinorUnits:  100,
		OrderVelocityMax:    10,
		OrderVelocityWindow: time.Hour,
		ReminderInterval:    time.Hour,
		ReminderWindow:      24 * time.Hour,
		UnpaidTimeout:       24 * time.Hour,
		CleanupAt:           "00:00",
		CompletionAt:        "01:00",
		EmailProvider:       "auto",
		AIProvider:          "canned",
		AdminEmail:          "admin@example.com",
		AdminPassword:       "admin-password",
	}
}

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveBooking("booked")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "doctor_booking_appointments_bookings_total") {
		t.Fatalf("expected booking counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestMustClock(t *testing.T) {
	if got := mustClock("01:30", 0); got != 90*time.Minute {
		t.Fatalf("expected 90m, got %s", got)
	}
	if got := mustClock("late", time.Hour); got != time.Hour {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestBuildAppInMemory(t *testing.T) {
	cfg := testConfig()
	application, err := buildApp(context.Background(), cfg, deps{}, logging.Discard())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer application.close()

	for _, path := range []string{"/health", "/metrics", "/api/doctors", "/api/ai/health-tips"} {
		rr := httptest.NewRecorder()
		application.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}

	// seeded admin can log in
	body := strings.NewReader(`{"email":"admin@example.com","password":"admin-password"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	application.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBuildAppWithRedisEnablesOTP(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	redisClient := bootstrap.BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	if redisClient == nil {
		t.Fatalf("expected redis client")
	}

	application, err := buildApp(context.Background(), cfg, deps{redis: redisClient}, logging.Discard())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer application.close()

	rr := httptest.NewRecorder()
	application.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"redis":"ok"`) {
		t.Fatalf("expected redis health ok, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestBuildAppRejectsBadClinicHours(t *testing.T) {
	cfg := testConfig()
	cfg.ClinicOpen = "22:00"
	if _, err := buildApp(context.Background(), cfg, deps{}, logging.Discard()); err == nil {
		t.Fatalf("expected error for inverted clinic hours")
	}
}

func TestStartSchedulerDisabledClosesImmediately(t *testing.T) {
	application, err := buildApp(context.Background(), testConfig(), deps{}, logging.Discard())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer application.close()

	select {
	case <-application.startScheduler(context.Background(), false):
	case <-time.After(time.Second):
		t.Fatalf("expected closed channel when scheduler disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := application.startScheduler(ctx, true)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}
}
