// Command bookingctl runs operator tasks against the booking backend: scheduled jobs on
// demand, payment signature helpers for gateway testing and a slot grid preview.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/doctor-booking-platform/cmd/mainconfig"
	"github.com/wolfman30/doctor-booking-platform/internal/app/bootstrap"
	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	appconfig "github.com/wolfman30/doctor-booking-platform/internal/config"
	"github.com/wolfman30/doctor-booking-platform/internal/database"
	"github.com/wolfman30/doctor-booking-platform/internal/notify"
	"github.com/wolfman30/doctor-booking-platform/internal/payments"
	"github.com/wolfman30/doctor-booking-platform/internal/scheduler"
	"github.com/wolfman30/doctor-booking-platform/internal/slots"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bookingctl",
		Short:        "Operator tools for the doctor booking backend",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(paymentsCmd())
	rootCmd.AddCommand(slotsCmd())
	return rootCmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run scheduled jobs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List job names",
		Run: func(cmd *cobra.Command, args []string) {
			for _, j := range scheduler.Jobs {
				fmt.Fprintln(cmd.OutOrStdout(), j)
			}
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run one job now against the configured database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := scheduler.ParseJob(args[0])
			if err != nil {
				return err
			}
			cfg := appconfig.Load()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required to run %s", job)
			}
			logger := logging.New(cfg.LogLevel)

			ctx := cmd.Context()
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			var awsCfg *aws.Config
			if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err == nil {
				awsCfg = &loaded
			}
			sched, err := buildScheduler(cfg, bootstrap.BuildStores(pool), awsCfg, logger)
			if err != nil {
				return err
			}
			res, err := sched.RunOnce(ctx, job)
			if err != nil {
				return fmt.Errorf("%s failed: %w", job, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: affected=%d failed=%d\n", res.Job, res.Affected, res.Failed)
			return nil
		},
	}

	cmd.AddCommand(listCmd, runCmd)
	return cmd
}

// buildScheduler wires the scheduler without the realtime hub; reminders still go out
// over SMS and email.
func buildScheduler(cfg *appconfig.Config, stores *bootstrap.Stores, awsCfg *aws.Config, logger *logging.Logger) (*scheduler.Scheduler, error) {
	hours, err := clinicHours(cfg)
	if err != nil {
		return nil, err
	}
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

	smsSender, _ := bootstrap.BuildSMSSender(cfg, logger)
	emailSender, _ := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	reminders := notify.NewReminders(smsSender, emailSender, nil, hours.Location, logger)

	cleanupAt, err := slots.ParseClock(cfg.CleanupAt)
	if err != nil {
		return nil, fmt.Errorf("CLEANUP_AT: %w", err)
	}
	completionAt, err := slots.ParseClock(cfg.CompletionAt)
	if err != nil {
		return nil, fmt.Errorf("COMPLETION_AT: %w", err)
	}
	return scheduler.New(stores.Appointments, apptSvc, reminders, notify.NewPublisher(nil, logger), scheduler.Config{
		Location:         hours.Location,
		ReminderInterval: cfg.ReminderInterval,
		ReminderWindow:   cfg.ReminderWindow,
		UnpaidTimeout:    cfg.UnpaidTimeout,
		CleanupAt:        cleanupAt,
		CompletionAt:     completionAt,
	}, logger), nil
}

func paymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Payment signature helpers",
	}

	signCmd := &cobra.Command{
		Use:   "sign <orderID> <paymentID>",
		Short: "Print the checkout signature for an order and payment",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			secret := secretFlag(cmd)
			fmt.Fprintln(cmd.OutOrStdout(), payments.Sign(secret, args[0], args[1]))
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify <orderID> <paymentID> <signature>",
		Short: "Check a checkout signature",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !payments.VerifySignature(secretFlag(cmd), args[0], args[1], args[2]) {
				return fmt.Errorf("signature does not match")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature ok")
			return nil
		},
	}

	webhookCmd := &cobra.Command{
		Use:   "sign-webhook <file>",
		Short: "Print the webhook signature for a payload file (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				body []byte
				err  error
			)
			if args[0] == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				secret = appconfig.Load().RazorpayWebhookSecret
			}
			if secret == "" {
				return fmt.Errorf("--secret or RAZORPAY_WEBHOOK_SECRET is required")
			}
			fmt.Fprintln(cmd.OutOrStdout(), payments.SignWebhook(secret, body))
			return nil
		},
	}

	cmd.PersistentFlags().String("secret", "", "Signing secret (defaults to the configured key secret)")
	cmd.AddCommand(signCmd, verifyCmd, webhookCmd)
	return cmd
}

func secretFlag(cmd *cobra.Command) string {
	secret, _ := cmd.Flags().GetString("secret")
	if secret != "" {
		return secret
	}
	return bootstrap.PaymentSecret(appconfig.Load())
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots [doctorID]",
		Short: "Print the slot grid, excluding a doctor's bookings when a database is configured",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.Load()
			hours, err := clinicHours(cfg)
			if err != nil {
				return err
			}
			now := time.Now()
			if at, _ := cmd.Flags().GetString("at"); at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}

			var booked slots.BookedSet
			if len(args) == 1 && cfg.DatabaseURL != "" {
				ctx := cmd.Context()
				pool, err := database.Connect(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pool.Close()
				booked, err = appointments.NewPostgresStore(pool).BookedSlots(ctx, args[0], slots.WindowDates(now, hours))
				if err != nil {
					return err
				}
			}

			printGrid(cmd.OutOrStdout(), slots.Compute(now, booked, hours))
			return nil
		},
	}
	cmd.Flags().String("at", "", "Reference time in RFC3339 (defaults to now)")
	return cmd
}

func printGrid(w io.Writer, buckets []slots.DayBucket) {
	for _, b := range buckets {
		times := make([]string, 0, len(b.Slots))
		for _, s := range b.Slots {
			times = append(times, s.Time)
		}
		if len(times) == 0 {
			times = append(times, "-")
		}
		fmt.Fprintf(w, "%s %-10s %s\n", b.Weekday, b.Date, strings.Join(times, " "))
	}
}

func clinicHours(cfg *appconfig.Config) (slots.Hours, error) {
	return slots.NewHours(cfg.ClinicOpen, cfg.ClinicClose, cfg.SlotStep, cfg.SlotDays, cfg.SameDayLead, cfg.ClinicTimezone)
}
