package authcore

import (
	"context"
	"errors"
	"log"
)

// ErrMailFailed marks a transport failure while dispatching mail.
var ErrMailFailed = NewAuthError(KindMail, "Error sending email")

// mailError tags a bare transport error from a Mailer as ErrMailFailed.
func mailError(err error) error {
	var ae *AuthError
	if errors.As(err, &ae) {
		return err
	}
	return ErrMailFailed.Wrap(err)
}

// Mailer delivers the four account lifecycle mails. Every method blocks until
// the transport accepts or rejects the message.
type Mailer interface {
	SendVerification(ctx context.Context, email, code string) error
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordReset(ctx context.Context, email, resetURL string) error
	SendResetSuccess(ctx context.Context, email string) error
}

// ConsoleMailer is a development Mailer that logs each mail instead of
// sending it.
type ConsoleMailer struct{}

func (c *ConsoleMailer) SendVerification(ctx context.Context, email, code string) error {
	log.Printf("\n=== EMAIL: Verification ===")
	log.Printf("To: %s", email)
	log.Printf("Subject: %s", SubjectVerification)
	log.Printf("Code: %s", code)
	log.Printf("===========================\n")
	return nil
}

func (c *ConsoleMailer) SendWelcome(ctx context.Context, email, name string) error {
	log.Printf("\n=== EMAIL: Welcome ===")
	log.Printf("To: %s", email)
	log.Printf("Subject: %s", SubjectWelcome)
	log.Printf("Name: %s", name)
	log.Printf("======================\n")
	return nil
}

func (c *ConsoleMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	log.Printf("\n=== EMAIL: Password Reset ===")
	log.Printf("To: %s", email)
	log.Printf("Subject: %s", SubjectPasswordReset)
	log.Printf("Link: %s", resetURL)
	log.Printf("==============================\n")
	return nil
}

func (c *ConsoleMailer) SendResetSuccess(ctx context.Context, email string) error {
	log.Printf("\n=== EMAIL: Password Reset Successful ===")
	log.Printf("To: %s", email)
	log.Printf("Subject: %s", SubjectResetSuccess)
	log.Printf("=========================================\n")
	return nil
}
