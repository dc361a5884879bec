package authcore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPMailer sends the lifecycle mails as HTML through an authenticated SMTP
// relay. Port 465 uses implicit TLS; any other port upgrades with STARTTLS
// when the server offers it.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string

	// From defaults to Username
	From string

	Templates *MailTemplates

	// DialTimeout bounds connection setup; zero means 30s
	DialTimeout time.Duration
}

func NewSMTPMailer(host string, port int, username, password string) (*SMTPMailer, error) {
	templates, err := LoadMailTemplates()
	if err != nil {
		return nil, err
	}
	return &SMTPMailer{
		Host:      host,
		Port:      port,
		Username:  username,
		Password:  password,
		Templates: templates,
	}, nil
}

func (m *SMTPMailer) SendVerification(ctx context.Context, email, code string) error {
	body, err := m.Templates.Verification(VerificationData{VerificationCode: code})
	if err != nil {
		return ErrMailFailed.Wrap(err)
	}
	return m.send(ctx, email, SubjectVerification, body)
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, email, name string) error {
	body, err := m.Templates.Welcome(WelcomeData{Name: name})
	if err != nil {
		return ErrMailFailed.Wrap(err)
	}
	return m.send(ctx, email, SubjectWelcome, body)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	body, err := m.Templates.PasswordReset(PasswordResetData{ResetURL: resetURL})
	if err != nil {
		return ErrMailFailed.Wrap(err)
	}
	return m.send(ctx, email, SubjectPasswordReset, body)
}

func (m *SMTPMailer) SendResetSuccess(ctx context.Context, email string) error {
	body, err := m.Templates.ResetSuccess()
	if err != nil {
		return ErrMailFailed.Wrap(err)
	}
	return m.send(ctx, email, SubjectResetSuccess, body)
}

func (m *SMTPMailer) from() string {
	if m.From != "" {
		return m.From
	}
	return m.Username
}

// newMessage builds the HTML mail for one recipient.
func (m *SMTPMailer) newMessage(to, subject, html string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from()); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)
	return msg, nil
}

// newClient configures the relay connection. Port 465 uses implicit TLS;
// other ports use STARTTLS when offered.
func (m *SMTPMailer) newClient() (*mail.Client, error) {
	timeout := m.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(m.Port),
		mail.WithTimeout(timeout),
	}
	if m.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.Username),
			mail.WithPassword(m.Password),
		)
	}
	return mail.NewClient(m.Host, opts...)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, html string) error {
	if err := m.deliver(ctx, to, subject, html); err != nil {
		slog.Error("error sending email", "subject", subject, "to", to, "err", err)
		return ErrMailFailed.Wrap(err)
	}
	slog.Info("email sent", "subject", subject, "to", to)
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, to, subject, html string) error {
	msg, err := m.newMessage(to, subject, html)
	if err != nil {
		return err
	}
	client, err := m.newClient()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending via %s: %w", m.Host, err)
	}
	return nil
}
