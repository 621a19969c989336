// Package mailer is the notification gateway: it renders transactional mail
// and hands it to the SMTP transport.
package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/mail"
	"time"

	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/lib/smtp"
	"github.com/hdportal/helpdesk-api/internal/models"
)

// Service sends mail through a single SMTP relay.
type Service struct {
	transport smtp.TransportInterface
	fromName  string
	log       *slog.Logger
	now       func() time.Time
}

// New returns a Service that signs mail as fromName.
func New(transport smtp.TransportInterface, fromName string, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		fromName:  fromName,
		log:       log,
		now:       time.Now,
	}
}

// SendVerification mails the email verification link to a new account.
func (s *Service) SendVerification(ctx context.Context, to, npk, link string) error {
	const op = "mailer.SendVerification"
	body := fmt.Sprintf(
		`<p>Hello %s,</p><p>Click the link below to verify your account:</p><a href="%s">%s</a>`,
		html.EscapeString(npk), html.EscapeString(link), html.EscapeString(link))
	if err := s.Send(ctx, Message{To: to, Subject: "Verify your email", Body: body, HTML: true}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendPasswordReset mails the password reset link.
func (s *Service) SendPasswordReset(ctx context.Context, to, npk, link string) error {
	const op = "mailer.SendPasswordReset"
	body := fmt.Sprintf(
		`<p>Hello %s,</p><p>Click the link below to reset your password. The link expires in 15 minutes.</p><a href="%s">%s</a>`,
		html.EscapeString(npk), html.EscapeString(link), html.EscapeString(link))
	if err := s.Send(ctx, Message{To: to, Subject: "Reset your password", Body: body, HTML: true}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendStatusUpdate tells the owner of a helpdesk action about a status change.
func (s *Service) SendStatusUpdate(ctx context.Context, to string, event models.ActionEvent) error {
	const op = "mailer.SendStatusUpdate"
	body := fmt.Sprintf("Hello %s,\n\nYour helpdesk request %s (%s) changed status from %q to %q on %s.\n",
		event.NPK, event.ActionID, event.Request, event.OldStatus, event.NewStatus,
		event.ChangedAt.Format("2006-01-02 15:04"))
	msg := Message{
		To:      to,
		Subject: fmt.Sprintf("Helpdesk request %s: %s", event.ActionID, event.NewStatus),
		Body:    body,
	}
	if err := s.Send(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Send delivers msg. Failures are wrapped with models.ErrUpstream.
func (s *Service) Send(ctx context.Context, msg Message) error {
	const op = "mailer.Send"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sender := s.transport.GetSMTPUser()
	raw, err := compose(mail.Address{Name: s.fromName, Address: sender}, msg, s.now())
	if err != nil {
		return fmt.Errorf("%s: compose: %w", op, err)
	}

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, models.ErrUpstream, err)
	}
	defer func() {
		_ = client.Close()
	}()

	if err = client.Mail(sender); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", sender), sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, models.ErrUpstream, err)
	}
	if err = client.Rcpt(msg.To); err != nil {
		s.log.Error("failed to set RCPT TO", slog.String("recipient", msg.To), sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, models.ErrUpstream, err)
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, models.ErrUpstream, err)
	}
	if _, err = wc.Write(raw); err != nil {
		_ = wc.Close()
		s.log.Error("failed to write email body", sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, models.ErrUpstream, err)
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, models.ErrUpstream, err)
	}

	if err = client.Quit(); err != nil {
		s.log.Warn("failed to quit SMTP session", sl.Err(err))
	}

	s.log.Info("email sent", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}
