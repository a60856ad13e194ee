package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/doctor-booking-platform/internal/config"
	"github.com/wolfman30/doctor-booking-platform/internal/notify"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// BuildSMSSender returns Twilio when configured and a logging stub otherwise.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) (notify.SMSSender, string) {
	logger = logging.OrDefault(logger)
	if sender := notify.NewTwilioSender(notify.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
	}, logger); sender != nil {
		return sender, "twilio"
	}
	logger.Warn("twilio not configured; SMS will be logged only")
	return notify.NewStubSMSSender(logger), "stub"
}

// BuildEmailSender honors EMAIL_PROVIDER (sendgrid, ses, auto). auto prefers SendGrid
// and then SES. awsCfg may be nil when AWS is unavailable.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	logger = logging.OrDefault(logger)

	sendgrid := func() notify.EmailSender {
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}
	ses := func() notify.EmailSender {
		if awsCfg == nil {
			return nil
		}
		if s := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if s := sendgrid(); s != nil {
			return s, "sendgrid"
		}
	case "ses":
		if s := ses(); s != nil {
			return s, "ses"
		}
	default:
		if s := sendgrid(); s != nil {
			return s, "sendgrid"
		}
		if s := ses(); s != nil {
			return s, "ses"
		}
	}
	logger.Warn("no email provider configured; email will be logged only", "preference", cfg.EmailProvider)
	return notify.NewStubEmailSender(logger), "stub"
}
