package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/doctor-booking-platform/internal/payments"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RAZORPAY_KEY_SECRET", "")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "")
	t.Setenv("CLINIC_TIMEZONE", "UTC")
	t.Setenv("SLOT_DAYS", "2")
}

func TestJobsList(t *testing.T) {
	out, err := runCmd(t, "", "jobs", "list")
	require.NoError(t, err)
	assert.Equal(t, "reminders\ncleanup\ncomplete\n", out)
}

func TestJobsRunRejectsUnknownJob(t *testing.T) {
	clearEnv(t)
	_, err := runCmd(t, "", "jobs", "run", "vacuum")
	require.Error(t, err)
}

func TestJobsRunRequiresDatabase(t *testing.T) {
	clearEnv(t)
	_, err := runCmd(t, "", "jobs", "run", "cleanup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestPaymentsSignUsesFakeSecretByDefault(t *testing.T) {
	clearEnv(t)
	out, err := runCmd(t, "", "payments", "sign", "order_1", "pay_1")
	require.NoError(t, err)
	assert.Equal(t, payments.Sign(payments.FakeKeySecret, "order_1", "pay_1")+"\n", out)
}

func TestPaymentsSignAndVerifyWithSecretFlag(t *testing.T) {
	clearEnv(t)
	out, err := runCmd(t, "", "payments", "sign", "--secret", "s3cret", "order_2", "pay_2")
	require.NoError(t, err)
	sig := strings.TrimSpace(out)
	assert.Equal(t, payments.Sign("s3cret", "order_2", "pay_2"), sig)

	out, err = runCmd(t, "", "payments", "verify", "--secret", "s3cret", "order_2", "pay_2", sig)
	require.NoError(t, err)
	assert.Equal(t, "signature ok\n", out)

	_, err = runCmd(t, "", "payments", "verify", "--secret", "other", "order_2", "pay_2", sig)
	require.Error(t, err)
}

func TestPaymentsSignWebhookFromStdin(t *testing.T) {
	clearEnv(t)
	body := `{"event":"payment.captured"}`

	_, err := runCmd(t, body, "payments", "sign-webhook", "-")
	require.Error(t, err, "no webhook secret configured")

	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "whsec")
	out, err := runCmd(t, body, "payments", "sign-webhook", "-")
	require.NoError(t, err)
	assert.Equal(t, payments.SignWebhook("whsec", []byte(body))+"\n", out)
}

func TestSlotsPrintsGrid(t *testing.T) {
	clearEnv(t)
	out, err := runCmd(t, "", "slots", "--at", "2025-01-05T21:15:00Z")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "SUN 5_1_2025"))
	assert.True(t, strings.HasSuffix(lines[0], " -"), "closed day prints a dash")
	assert.True(t, strings.HasPrefix(lines[1], "MON 6_1_2025"))
	assert.Contains(t, lines[1], "10:00 10:30")
	assert.True(t, strings.HasSuffix(lines[1], "20:30"))
}

func TestSlotsRejectsBadReferenceTime(t *testing.T) {
	clearEnv(t)
	_, err := runCmd(t, "", "slots", "--at", "yesterday")
	require.Error(t, err)
}
