package authcore_test

import (
	"strings"
	"testing"

	oa "github.com/panyam/authcore"
)

func TestMailTemplates(t *testing.T) {
	mt, err := oa.LoadMailTemplates()
	if err != nil {
		t.Fatalf("LoadMailTemplates: %v", err)
	}

	html, err := mt.Verification(oa.VerificationData{VerificationCode: "123456"})
	if err != nil || !strings.Contains(html, "123456") {
		t.Errorf("verification: %v %q", err, html)
	}

	html, err = mt.Welcome(oa.WelcomeData{Name: "<script>"})
	if err != nil || strings.Contains(html, "<script>") {
		t.Errorf("welcome must escape the name: %v", err)
	}

	html, err = mt.PasswordReset(oa.PasswordResetData{ResetURL: "http://app.test/reset-password/abc"})
	if err != nil || !strings.Contains(html, "http://app.test/reset-password/abc") {
		t.Errorf("password reset: %v", err)
	}

	if _, err := mt.ResetSuccess(); err != nil {
		t.Errorf("reset success: %v", err)
	}
}
