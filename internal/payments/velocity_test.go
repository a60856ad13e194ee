package payments

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestVelocityChecker_AllowOrder(t *testing.T) {
	redisClient, _ := setupTestRedis(t)
	checker := NewVelocityChecker(redisClient, VelocityConfig{MaxOrdersPerPatient: 3, Window: time.Hour, Enabled: true}, nil)
	ctx := context.Background()

	tests := []struct {
		name        string
		patientID   string
		attempts    int
		wantAllowed bool
	}{
		{"first attempt allowed", "patient-1", 1, true},
		{"at limit allowed", "patient-2", 3, true},
		{"over limit blocked", "patient-3", 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result *VelocityResult
			var err error
			for i := 0; i < tt.attempts; i++ {
				result, err = checker.AllowOrder(ctx, tt.patientID)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantAllowed, result.Allowed)
			assert.Equal(t, tt.attempts, result.CurrentCount)
			if !tt.wantAllowed {
				assert.Contains(t, result.Message, "exceeded 3 payment orders")
			}
		})
	}
}

func TestVelocityChecker_WindowExpires(t *testing.T) {
	redisClient, mr := setupTestRedis(t)
	checker := NewVelocityChecker(redisClient, VelocityConfig{MaxOrdersPerPatient: 1, Window: time.Minute, Enabled: true}, nil)
	ctx := context.Background()

	first, _ := checker.AllowOrder(ctx, "patient-1")
	second, _ := checker.AllowOrder(ctx, "patient-1")
	assert.True(t, first.Allowed)
	assert.False(t, second.Allowed)

	mr.FastForward(2 * time.Minute)
	third, err := checker.AllowOrder(ctx, "patient-1")
	require.NoError(t, err)
	assert.True(t, third.Allowed)
}

func TestVelocityChecker_FailsOpen(t *testing.T) {
	redisClient, mr := setupTestRedis(t)
	checker := NewVelocityChecker(redisClient, DefaultVelocityConfig(), nil)
	mr.Close()

	result, err := checker.AllowOrder(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "velocity check unavailable", result.Message)
}

func TestVelocityChecker_DisabledWithoutRedis(t *testing.T) {
	checker := NewVelocityChecker(nil, DefaultVelocityConfig(), nil)
	result, err := checker.AllowOrder(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	require.NoError(t, checker.Reset(context.Background(), "patient-1"))
}

func TestVelocityChecker_Reset(t *testing.T) {
	redisClient, _ := setupTestRedis(t)
	checker := NewVelocityChecker(redisClient, VelocityConfig{MaxOrdersPerPatient: 1, Window: time.Hour, Enabled: true}, nil)
	ctx := context.Background()

	_, _ = checker.AllowOrder(ctx, "patient-1")
	blocked, _ := checker.AllowOrder(ctx, "patient-1")
	require.False(t, blocked.Allowed)

	require.NoError(t, checker.Reset(ctx, "patient-1"))
	again, _ := checker.AllowOrder(ctx, "patient-1")
	assert.True(t, again.Allowed)
}
