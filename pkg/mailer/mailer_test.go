package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/akeren/waitlist-api/pkg/circuitbreaker"
)

func testConfig() *Config {
	return &Config{
		Host:     "smtp.example.com",
		Port:     "587",
		Username: "mailer",
		Password: "secret",
		From:     "noreply@example.com",
	}
}

func TestNewSMTPMailer_RequiresHostPortFrom(t *testing.T) {
	cases := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"missing host", &Config{Port: "587", From: "a@b.com"}},
		{"missing port", &Config{Host: "smtp.example.com", From: "a@b.com"}},
		{"missing from", &Config{Host: "smtp.example.com", Port: "587"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSMTPMailer(tc.cfg, nil); err == nil {
				t.Fatalf("expected config error, got nil")
			}
		})
	}
}

func TestNotify_SendsConfirmationToAddress(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	orig := sendMail
	sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}
	t.Cleanup(func() { sendMail = orig })

	m, err := NewSMTPMailer(testConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Notify(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected relay address %q", gotAddr)
	}
	if gotFrom != "noreply@example.com" {
		t.Fatalf("unexpected sender %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	if !strings.Contains(string(gotMsg), "To: user@example.com") {
		t.Fatalf("message is missing the recipient header: %q", gotMsg)
	}
	if !strings.Contains(string(gotMsg), "Subject: You're on the waitlist") {
		t.Fatalf("message is missing the subject: %q", gotMsg)
	}
}

func TestNotify_WrapsRelayError(t *testing.T) {
	orig := sendMail
	sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	t.Cleanup(func() { sendMail = orig })

	m, err := NewSMTPMailer(testConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = m.Notify(context.Background(), "user@example.com")
	if err == nil {
		t.Fatal("expected send error, got nil")
	}
	if !strings.Contains(err.Error(), "user@example.com") {
		t.Fatalf("error does not name the recipient: %v", err)
	}
}

func TestNotify_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	orig := sendMail
	calls := 0
	sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return errors.New("connection refused")
	}
	t.Cleanup(func() { sendMail = orig })

	m, err := NewSMTPMailer(testConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := m.Notify(context.Background(), "user@example.com"); err == nil {
			t.Fatalf("send %d should have failed", i)
		}
	}

	// Circuit is open now: the relay must not be touched again.
	err = m.Notify(context.Background(), "user@example.com")
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls != 5 {
		t.Fatalf("expected 5 relay calls, got %d", calls)
	}
}

func TestNotify_CancelledContext(t *testing.T) {
	orig := sendMail
	sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("relay must not be called with a cancelled context")
		return nil
	}
	t.Cleanup(func() { sendMail = orig })

	m, err := NewSMTPMailer(testConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Notify(ctx, "user@example.com"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
