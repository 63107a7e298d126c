package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/asperus/agenda/internal/config"
	"github.com/asperus/agenda/internal/notify"
	"github.com/asperus/agenda/pkg/logging"
)

// BuildEmailSender selects the confirmation email provider. It always returns
// a sender; when nothing is configured the stub is used and reason says why.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub", "missing config"
	}
	if ctx == nil {
		ctx = context.Background()
	}

	preference := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	switch preference {
	case "stub", "none":
		return notify.NewStubEmailSender(logger), "stub", "disabled by EMAIL_PROVIDER"
	case "sendgrid":
		if sender := buildSendGrid(cfg, logger); sender != nil {
			return sender, "sendgrid", ""
		}
		return notify.NewStubEmailSender(logger), "stub", "SENDGRID_API_KEY not set"
	case "ses":
		sender, reason := buildSES(ctx, cfg, logger)
		if sender != nil {
			return sender, "ses", ""
		}
		return notify.NewStubEmailSender(logger), "stub", reason
	}

	// auto: SendGrid first, then SES.
	if sender := buildSendGrid(cfg, logger); sender != nil {
		return sender, "sendgrid", ""
	}
	if strings.TrimSpace(cfg.SESFromEmail) != "" {
		if sender, _ := buildSES(ctx, cfg, logger); sender != nil {
			return sender, "ses", ""
		}
	}
	return notify.NewStubEmailSender(logger), "stub", "no email provider configured"
}

func buildSendGrid(cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)
	if sender == nil {
		return nil
	}
	return sender
}

func buildSES(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if strings.TrimSpace(cfg.SESFromEmail) == "" {
		return nil, "SES_FROM_EMAIL not set"
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("failed to load aws config for ses", "error", err)
		return nil, "aws config unavailable"
	}
	return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
		FromEmail: cfg.SESFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger), ""
}
