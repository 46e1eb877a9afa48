package config

import (
	"context"
	"os"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/pkg/mailer"
	"github.com/akeren/waitlist-api/pkg/utils"
)

// Notifier sends a confirmation message to an address. Failure never affects
// persisted state; callers log and move on.
type Notifier interface {
	Notify(ctx context.Context, email string) error
}

type MailerConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewMailerConfig() *MailerConfig {
	return &MailerConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     utils.GetEnvOrDefault("SMTP_PORT", "587"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
}

func (mc *MailerConfig) IsConfigured() bool {
	return mc.Host != "" && mc.From != ""
}

// NewMailerOrNil returns nil when SMTP is not configured; registrations then
// proceed without confirmation emails.
func (mc *MailerConfig) NewMailerOrNil(logger *log.Logger) Notifier {
	if !mc.IsConfigured() {
		logger.Info("Mailer (SMTP) is not configured; confirmation emails disabled")
		return nil
	}

	m, err := mailer.NewSMTPMailer(&mailer.Config{
		Host:     mc.Host,
		Port:     mc.Port,
		Username: mc.Username,
		Password: mc.Password,
		From:     mc.From,
	}, logger)
	if err != nil {
		// Log error but don't fail - registration works without notification
		logger.Error("Failed to create Mailer (SMTP)", "error", err)
		return nil
	}

	logger.Info("Mailer (SMTP) configured", "host", mc.Host, "port", mc.Port, "from", mc.From)
	return m
}
