package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

// EmailRequest is the uniform C1 email-send request shape (§4.1:
// "accepts recipient, subject, html+text body").
type EmailRequest struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// EmailResponse carries the provider message id (§4.1).
type EmailResponse struct {
	MessageID string
}

// EmailSender is the C1 email adapter contract.
type EmailSender interface {
	Call(ctx context.Context, req EmailRequest) (EmailResponse, error)
}

// SMTPEmailSender sends mail through a configured SMTP relay — the
// transactional email provider spec.md §1 treats as an external
// collaborator; this adapter is the thin boundary C5/C12 call through.
type SMTPEmailSender struct {
	addr string
	auth smtp.Auth
	from string
	log  *slog.Logger
}

// NewSMTPEmailSender constructs the adapter.
func NewSMTPEmailSender(addr, username, password, from string) *SMTPEmailSender {
	host := addr
	if idx := indexColon(addr); idx >= 0 {
		host = addr[:idx]
	}
	return &SMTPEmailSender{
		addr: addr,
		auth: smtp.PlainAuth("", username, password, host),
		from: from,
		log:  slog.With("component", "email-adapter"),
	}
}

func indexColon(s string) int {
	for i, c := range s {
		if c == ':' {
			return i
		}
	}
	return -1
}

func (e *SMTPEmailSender) Call(ctx context.Context, req EmailRequest) (EmailResponse, error) {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		e.from, req.To, req.Subject, req.HTMLBody)

	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(e.addr, e.auth, e.from, []string{req.To}, []byte(msg)) }()

	select {
	case <-ctx.Done():
		return EmailResponse{}, apperrors.Wrap(apperrors.KindTransient, "email send cancelled", ctx.Err())
	case err := <-done:
		if err != nil {
			return EmailResponse{}, apperrors.Wrap(apperrors.KindTransient, "smtp send failed", err)
		}
		return EmailResponse{MessageID: fmt.Sprintf("smtp-%d", len(msg))}, nil
	}
}

// LogOnlyFallback implements the §4.2 email fallback contract:
// "email -> log-only". It never fails, matching §4.12 ("a failed send
// does not fail the run").
func LogOnlyFallback(req EmailRequest) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		slog.Warn("email delivery degraded to log-only fallback", "to", req.To, "subject", req.Subject)
		return EmailResponse{MessageID: "logged-only"}, nil
	}
}
