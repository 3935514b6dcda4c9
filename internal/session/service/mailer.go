package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/lamplight/frontsession/internal/session/domain"
)

// Notifier delivers one outbound message. Failures surface to the user as a
// generic error; detail stays in the logs.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPNotifier sends mail through a plain SMTP relay.
type SMTPNotifier struct {
	Addr string // host:port of the relay
	From string
}

func (n *SMTPNotifier) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + n.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	return smtp.SendMail(n.Addr, nil, n.From, []string{to}, []byte(msg))
}

// LogNotifier logs instead of sending. Used in dev and in tests.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.Logger.Info("outbound mail", "to", to, "subject", subject, "bytes", len(body))
	return nil
}

// Mailer composes the notification mails of the session lifecycle. When
// Notifier is nil (no from-address configured) every send is a silent no-op,
// matching the historical behavior.
type Mailer struct {
	Notifier   Notifier
	AdminRcpts []string // admin addresses notified about registrations
}

func (m *Mailer) enabled() bool { return m != nil && m.Notifier != nil }

func (m *Mailer) subject(tenant domain.Tenant, s string) string {
	return fmt.Sprintf("[%s] %s", tenant.Name, s)
}

// SendRegistrationMail confirms a signup to the user and notifies each
// configured admin address that an account awaits validation.
func (m *Mailer) SendRegistrationMail(ctx context.Context, tenant domain.Tenant, u domain.User, password string) error {
	if !m.enabled() {
		return nil
	}

	body := fmt.Sprintf(
		"Thank you for your registration on blog %q!\n\n"+
			"Site: %s - %s\n"+
			"Username: %s\n"+
			"Password: %s\n\n"+
			"Administrators need to review your account before activating it,\n"+
			"but they will do it as soon as possible.\n"+
			"You will receive an email when it is ready.\n",
		tenant.Name, tenant.Name, tenant.URL, u.ID, password,
	)
	if err := m.Notifier.Send(ctx, u.Email, m.subject(tenant, "Confirmation of registration"), body); err != nil {
		return err
	}

	adminBody := fmt.Sprintf(
		"A new user registration has been made on blog %q (%s)!\n\n"+
			"Username: %s\n"+
			"Email: %s\n"+
			"Administrators need to review the account and activate it.\n",
		tenant.Name, tenant.ID, u.ID, u.Email,
	)
	for _, rcpt := range m.AdminRcpts {
		rcpt = strings.TrimSpace(rcpt)
		if rcpt == "" {
			continue
		}
		if err := m.Notifier.Send(ctx, rcpt, m.subject(tenant, "New user registration"), adminBody); err != nil {
			return err
		}
	}
	return nil
}

// SendRecoveryMail delivers the single-use recovery link.
func (m *Mailer) SendRecoveryMail(ctx context.Context, tenant domain.Tenant, userID, key, email string) error {
	if !m.enabled() {
		return nil
	}
	body := fmt.Sprintf(
		"Someone has requested to reset the password for the following site and username.\n\n"+
			"Site: %s - %s\n"+
			"Username: %s\n\n"+
			"To reset your password visit the following address, otherwise just\n"+
			"ignore this email and nothing will happen.\n"+
			"%s\n",
		tenant.Name, tenant.URL, userID, tenant.PageURL("session/recover/"+key),
	)
	return m.Notifier.Send(ctx, email, m.subject(tenant, "Password reset"), body)
}

// SendPasswordMail delivers the freshly generated password after a recovery
// key was consumed.
func (m *Mailer) SendPasswordMail(ctx context.Context, tenant domain.Tenant, userID, password, email string) error {
	if !m.enabled() {
		return nil
	}
	body := fmt.Sprintf(
		"Someone has requested to reset the password for the following site and username.\n\n"+
			"Site: %s - %s\n"+
			"Username: %s\n"+
			"Password: %s\n"+
			"To change this password visit the following address and sign in with these idents.\n"+
			"%s\n",
		tenant.Name, tenant.URL, userID, password, tenant.PageURL("session"),
	)
	return m.Notifier.Send(ctx, email, m.subject(tenant, "Your new password"), body)
}
