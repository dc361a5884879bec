package authcore

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

// Subjects of the lifecycle mails
const (
	SubjectVerification  = "Verify your email"
	SubjectWelcome       = "Welcome email"
	SubjectPasswordReset = "Reset your password"
	SubjectResetSuccess  = "Password Reset Successful"
)

//go:embed templates/*.html
var templateFS embed.FS

// VerificationData fills templates/verification.html.
type VerificationData struct {
	VerificationCode string
}

type WelcomeData struct {
	Name string
}

type PasswordResetData struct {
	ResetURL string
}

// MailTemplates renders the lifecycle mails from typed data. Each template
// is executed once at load with zero-valued data and missingkey=error, so a
// field name the data struct does not carry fails at startup.
type MailTemplates struct {
	verification  *template.Template
	welcome       *template.Template
	passwordReset *template.Template
	resetSuccess  *template.Template
}

// LoadMailTemplates parses and checks the embedded templates.
func LoadMailTemplates() (*MailTemplates, error) {
	load := func(name string, probe any) (*template.Template, error) {
		t, err := template.New(name).Option("missingkey=error").ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, probe); err != nil {
			return nil, fmt.Errorf("checking %s: %w", name, err)
		}
		return t, nil
	}

	var (
		mt  MailTemplates
		err error
	)
	if mt.verification, err = load("verification.html", VerificationData{}); err != nil {
		return nil, err
	}
	if mt.welcome, err = load("welcome.html", WelcomeData{}); err != nil {
		return nil, err
	}
	if mt.passwordReset, err = load("password_reset.html", PasswordResetData{}); err != nil {
		return nil, err
	}
	if mt.resetSuccess, err = load("reset_success.html", struct{}{}); err != nil {
		return nil, err
	}
	return &mt, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *MailTemplates) Verification(d VerificationData) (string, error) {
	return render(m.verification, d)
}

func (m *MailTemplates) Welcome(d WelcomeData) (string, error) {
	return render(m.welcome, d)
}

func (m *MailTemplates) PasswordReset(d PasswordResetData) (string, error) {
	return render(m.passwordReset, d)
}

func (m *MailTemplates) ResetSuccess() (string, error) {
	return render(m.resetSuccess, struct{}{})
}
