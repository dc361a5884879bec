package authcore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	netmail "net/mail"
	"strings"
	"testing"
	"time"
)

func TestSMTPMailerMessage(t *testing.T) {
	m := &SMTPMailer{Host: "smtp.example.org", Port: 465, Username: "noreply@example.org"}
	msg, err := m.newMessage("ada@example.org", "Réinitialiser", "<p>hi</p>")
	if err != nil {
		t.Fatalf("newMessage: %v", err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	parsed, err := netmail.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	for header, want := range map[string]string{"From": "noreply@example.org", "To": "ada@example.org"} {
		addr, err := netmail.ParseAddress(parsed.Header.Get(header))
		if err != nil || addr.Address != want {
			t.Errorf("%s = %q, want %s", header, parsed.Header.Get(header), want)
		}
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil || subject != "Réinitialiser" {
		t.Errorf("Subject = %q (%v)", subject, err)
	}
	if ct := parsed.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(parsed.Body)
	if !strings.Contains(string(body), "<p>hi</p>") {
		t.Errorf("body = %q", body)
	}
}

func TestSMTPMailerRejectsBadRecipient(t *testing.T) {
	m := &SMTPMailer{Host: "smtp.example.org", Port: 465, Username: "noreply@example.org"}
	if _, err := m.newMessage("not an address", "Hi", "<p>hi</p>"); err == nil {
		t.Error("expected an error for a malformed recipient")
	}
}

func TestSMTPMailerDialFailure(t *testing.T) {
	for _, port := range []int{1, 465} {
		m, err := NewSMTPMailer("127.0.0.1", port, "user@example.org", "pass")
		if err != nil {
			t.Fatalf("NewSMTPMailer: %v", err)
		}
		m.DialTimeout = 200 * time.Millisecond

		err = m.SendResetSuccess(context.Background(), "ada@example.org")
		if !errors.Is(err, ErrMailFailed) {
			t.Errorf("port %d: expected ErrMailFailed, got %v", port, err)
		}
	}
}
