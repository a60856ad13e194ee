package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
)

var (
	ErrOTPNotFound  = apperr.Validation("OTP has expired or was not requested")
	ErrOTPInvalid   = apperr.Validation("invalid OTP")
	ErrOTPExhausted = apperr.Validation("too many failed attempts, please request a new OTP")
	ErrOTPCooldown  = apperr.Validation("please wait before requesting a new OTP")
)

// OTPConfig controls code lifetime and abuse limits.
type OTPConfig struct {
	TTL            time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

// DefaultOTPConfig is a 5 minute code, 3 attempts and a 1 minute resend cooldown.
func DefaultOTPConfig() OTPConfig {
	return OTPConfig{TTL: 5 * time.Minute, MaxAttempts: 3, ResendCooldown: time.Minute}
}

// OTPStore keeps one pending code per phone number in Redis, so every API replica
// sees the same codes and attempt counters.
type OTPStore struct {
	redis  *redis.Client
	config OTPConfig
	code   func() (string, error)
}

// verifyScript compares the code and counts the attempt in one round trip.
// Returns 1 on match, 0 on mismatch, -1 when no code exists, -2 when attempts ran out.
var verifyScript = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if not code then
  return -1
end
if code == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if attempts >= tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return -2
end
return 0
`)

// NewOTPStore builds a store. The client is required.
func NewOTPStore(client *redis.Client, cfg OTPConfig) *OTPStore {
	if client == nil {
		panic("auth: redis client required for OTP store")
	}
	def := DefaultOTPConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.ResendCooldown < 0 {
		cfg.ResendCooldown = 0
	}
	return &OTPStore{redis: client, config: cfg, code: generateCode}
}

// Issue creates a fresh code for phone, replacing any pending one. With
// enforceCooldown set, a code issued less than ResendCooldown ago blocks the request.
func (s *OTPStore) Issue(ctx context.Context, phone string, enforceCooldown bool) (string, error) {
	cooldownKey := otpCooldownKey(phone)
	if s.config.ResendCooldown > 0 {
		if enforceCooldown {
			ok, err := s.redis.SetNX(ctx, cooldownKey, 1, s.config.ResendCooldown).Result()
			if err != nil {
				return "", fmt.Errorf("auth: otp cooldown: %w", err)
			}
			if !ok {
				return "", ErrOTPCooldown
			}
		} else if err := s.redis.Set(ctx, cooldownKey, 1, s.config.ResendCooldown).Err(); err != nil {
			return "", fmt.Errorf("auth: otp cooldown: %w", err)
		}
	}

	code, err := s.code()
	if err != nil {
		return "", err
	}
	key := otpKey(phone)
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "code", code, "attempts", 0, "issued_at", time.Now().Unix())
	pipe.Expire(ctx, key, s.config.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("auth: store otp: %w", err)
	}
	return code, nil
}

// Verify consumes the code on a match. A mismatch counts against MaxAttempts; the
// code is discarded once they are used up.
func (s *OTPStore) Verify(ctx context.Context, phone, code string) error {
	res, err := verifyScript.Run(ctx, s.redis, []string{otpKey(phone)}, code, s.config.MaxAttempts).Int()
	if err != nil {
		return fmt.Errorf("auth: verify otp: %w", err)
	}
	switch res {
	case 1:
		return nil
	case -1:
		return ErrOTPNotFound
	case -2:
		return ErrOTPExhausted
	default:
		return ErrOTPInvalid
	}
}

// Discard drops a pending code, used when the SMS could not be delivered.
func (s *OTPStore) Discard(ctx context.Context, phone string) error {
	return s.redis.Del(ctx, otpKey(phone), otpCooldownKey(phone)).Err()
}

func otpKey(phone string) string         { return "otp:code:" + phone }
func otpCooldownKey(phone string) string { return "otp:cooldown:" + phone }

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("auth: generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
