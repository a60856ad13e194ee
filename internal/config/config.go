package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	FrontendURL   string
	LogLevel      string
	DatabaseURL   string
	CORSOrigins   []string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Auth
	JWTSecret           string
	JWTRefreshSecret    string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	OTPAccessTokenTTL   time.Duration
	OTPRefreshTokenTTL  time.Duration
	AdminEmail          string
	AdminPassword       string
	AuthRateLimitPerMin int
	OTPTTL              time.Duration
	OTPMaxAttempts      int
	OTPResendCooldown   time.Duration
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleCallbackURL   string

	// Clinic hours and slot grid
	ClinicTimezone string
	ClinicOpen     string
	ClinicClose    string
	SlotStep       time.Duration
	SlotDays       int
	SameDayLead    time.Duration

	// Payments
	PaymentProvider       string
	AllowFakePayments     bool
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	Currency              string
	CurrencyMinorUnits    int
	PaymentGatewayTimeout time.Duration
	OrderVelocityMax      int
	OrderVelocityWindow   time.Duration

	// Scheduler
	SchedulerEnabled bool
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	UnpaidTimeout    time.Duration
	CleanupAt        string
	CompletionAt     string

	// SMS / email
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	S3UploadBucket      string

	// Assistant
	AIProvider     string
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModel    string
}

// Load reads configuration from environment variables
func Load() *Config {
	jwtSecret := getEnv("JWT_SECRET", "")
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		CORSOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS", nil),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		JWTSecret:           jwtSecret,
		JWTRefreshSecret:    getEnv("JWT_REFRESH_SECRET", jwtSecret),
		AccessTokenTTL:      getEnvAsDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		RefreshTokenTTL:     getEnvAsDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		OTPAccessTokenTTL:   getEnvAsDuration("OTP_ACCESS_TOKEN_TTL", 30*24*time.Hour),
		OTPRefreshTokenTTL:  getEnvAsDuration("OTP_REFRESH_TOKEN_TTL", 60*24*time.Hour),
		AdminEmail:          strings.ToLower(getEnv("ADMIN_EMAIL", "")),
		AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
		AuthRateLimitPerMin: getEnvAsInt("AUTH_RATE_LIMIT_PER_MIN", 5),
		OTPTTL:              getEnvAsDuration("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts:      getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
		OTPResendCooldown:   getEnvAsDuration("OTP_RESEND_COOLDOWN", time.Minute),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:   getEnv("GOOGLE_CALLBACK_URL", ""),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"),
		ClinicOpen:     getEnv("CLINIC_OPEN", "10:00"),
		ClinicClose:    getEnv("CLINIC_CLOSE", "21:00"),
		SlotStep:       getEnvAsDuration("SLOT_STEP", 30*time.Minute),
		SlotDays:       getEnvAsInt("SLOT_DAYS", 7),
		SameDayLead:    getEnvAsDuration("SAME_DAY_LEAD", 0),

		PaymentProvider:       strings.ToLower(strings.TrimSpace(getEnv("PAYMENT_PROVIDER", "razorpay"))),
		AllowFakePayments:     getEnvAsBool("ALLOW_FAKE_PAYMENTS", false),
		RazorpayKeyID:         getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		Currency:              strings.ToUpper(getEnv("CURRENCY", "INR")),
		CurrencyMinorUnits:    getEnvAsInt("CURRENCY_MINOR_UNITS", 100),
		PaymentGatewayTimeout: getEnvAsDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),
		OrderVelocityMax:      getEnvAsInt("ORDER_VELOCITY_MAX", 10),
		OrderVelocityWindow:   getEnvAsDuration("ORDER_VELOCITY_WINDOW", time.Hour),

		SchedulerEnabled: getEnvAsBool("SCHEDULER_ENABLED", true),
		ReminderInterval: getEnvAsDuration("REMINDER_INTERVAL", time.Hour),
		ReminderWindow:   getEnvAsDuration("REMINDER_WINDOW", 24*time.Hour),
		UnpaidTimeout:    getEnvAsDuration("UNPAID_TIMEOUT", 24*time.Hour),
		CleanupAt:        getEnv("CLEANUP_AT", "00:00"),
		CompletionAt:     getEnv("COMPLETION_AT", "01:00"),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:  getEnv("TWILIO_FROM_NUMBER", ""),
		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Prescripto"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Prescripto"),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		S3UploadBucket:      getEnv("S3_UPLOAD_BUCKET", ""),

		AIProvider:     strings.ToLower(strings.TrimSpace(getEnv("AI_PROVIDER", "canned"))),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
	}
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "production" || env == "prod"
}

// Validate reports settings the API cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.SlotStep <= 0 {
		errs = append(errs, fmt.Errorf("SLOT_STEP must be positive, got %s", c.SlotStep))
	}
	if c.SlotDays <= 0 {
		errs = append(errs, fmt.Errorf("SLOT_DAYS must be positive, got %d", c.SlotDays))
	}
	if c.CurrencyMinorUnits <= 0 {
		errs = append(errs, fmt.Errorf("CURRENCY_MINOR_UNITS must be positive, got %d", c.CurrencyMinorUnits))
	}
	switch c.PaymentProvider {
	case "razorpay":
		if c.RazorpayKeySecret == "" && !c.AllowFakePayments {
			errs = append(errs, errors.New("RAZORPAY_KEY_SECRET is required for the razorpay provider"))
		}
	case "fake":
		if c.IsProduction() && !c.AllowFakePayments {
			errs = append(errs, errors.New("fake payments are disabled in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider))
	}
	if _, err := time.LoadLocation(c.ClinicTimezone); err != nil {
		errs = append(errs, fmt.Errorf("CLINIC_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
