package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/akeren/waitlist-api/pkg/circuitbreaker"
)

// sendMail is swappable in tests, mirroring the factory hooks in pkg/migrations.
var sendMail = smtp.SendMail

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type Logger interface {
	Error(msg string, args ...interface{})
}

// SMTPMailer sends the waitlist confirmation email over a plain SMTP relay.
// A circuit breaker guards the relay so that a dead server fails sends fast
// instead of tying up confirmation goroutines; sends are best-effort either
// way and are never retried.
type SMTPMailer struct {
	config  *Config
	breaker circuitbreaker.CircuitBreaker
	logger  Logger
}

func NewSMTPMailer(cfg *Config, logger Logger) (*SMTPMailer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mailer: config is nil")
	}

	missing := []string{}
	if strings.TrimSpace(cfg.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		missing = append(missing, "port")
	}
	if strings.TrimSpace(cfg.From) == "" {
		missing = append(missing, "from")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("mailer: missing required config: %s", strings.Join(missing, ", "))
	}

	return &SMTPMailer{
		config: cfg,
		breaker: circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 1,
		}),
		logger: logger,
	}, nil
}

func (m *SMTPMailer) Notify(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := m.breaker.Call(func() error {
		return sendMail(
			m.config.Host+":"+m.config.Port,
			m.auth(),
			m.config.From,
			[]string{email},
			buildConfirmationMessage(m.config.From, email),
		)
	})
	if err != nil {
		if m.logger != nil {
			m.logger.Error("SMTP send failed", "error", err)
		}
		return fmt.Errorf("mailer: send to %s: %w", email, err)
	}

	return nil
}

func (m *SMTPMailer) auth() smtp.Auth {
	if m.config.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
}

func buildConfirmationMessage(from, to string) []byte {
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: You're on the waitlist\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Thanks for signing up! We'll let you know as soon as a spot opens up.\r\n")

	return []byte(b.String())
}
