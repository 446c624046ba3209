// Package notify delivers operator alerts for failed cycle runs by email.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"github.com/pfin-cycle-ledger/internal/config"
)

// RunFailure describes a cycle run the processor could not complete
type RunFailure struct {
	RunID         string
	UserID        string
	Source        string
	CorrelationID string
	Reason        string
	OccurredAt    time.Time
}

// Alerter is implemented by EmailAlerter
type Alerter interface {
	AlertRunFailure(ctx context.Context, failure RunFailure) error
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// EmailAlerter sends alerts through SMTP. A nil *EmailAlerter is valid and
// drops every alert.
type EmailAlerter struct {
	cfg    config.AlertConfig
	send   sendFunc
	logger *slog.Logger
}

// NewEmailAlerter returns nil when no SMTP host or recipient is configured
func NewEmailAlerter(cfg config.AlertConfig, logger *slog.Logger) *EmailAlerter {
	if !cfg.Enabled() {
		logger.Info("Alert email is not configured, failed runs will only be logged")
		return nil
	}
	return &EmailAlerter{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
		logger: logger,
	}
}

func (a *EmailAlerter) AlertRunFailure(_ context.Context, failure RunFailure) error {
	if a == nil {
		return nil
	}

	e := email.NewEmail()
	e.From = a.cfg.From
	e.To = a.cfg.To
	e.Subject = fmt.Sprintf("Cycle run failed for user %s", failure.UserID)
	e.Text = []byte(failureBody(failure))

	addr := a.cfg.SMTPHost + ":" + strconv.Itoa(a.cfg.SMTPPort)
	var auth smtp.Auth
	if a.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", a.cfg.SMTPUsername, a.cfg.SMTPPassword, a.cfg.SMTPHost)
	}

	if err := a.send(e, addr, auth); err != nil {
		a.logger.Error("Failed to send run failure alert", "run_id", failure.RunID, "error", err)
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	a.logger.Info("Run failure alert sent", "run_id", failure.RunID, "recipients", len(e.To))
	return nil
}

func failureBody(f RunFailure) string {
	var b strings.Builder
	b.WriteString("A monthly cycle run did not complete.\n\n")
	fmt.Fprintf(&b, "Run:         %s\n", f.RunID)
	fmt.Fprintf(&b, "User:        %s\n", f.UserID)
	fmt.Fprintf(&b, "Source:      %s\n", f.Source)
	if f.CorrelationID != "" {
		fmt.Fprintf(&b, "Correlation: %s\n", f.CorrelationID)
	}
	fmt.Fprintf(&b, "Time:        %s\n", f.OccurredAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "\nReason:\n%s\n", f.Reason)
	b.WriteString("\nThe run is marked FAILED and can be retried with the same idempotency key.\n")
	return b.String()
}
