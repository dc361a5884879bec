package authcore_test

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	oa "github.com/panyam/authcore"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Ada@Example.org", "ada@example.org"},
		{"  ada@example.org ", "ada@example.org"},
		{"A.D.A+news@gmail.com", "ada@gmail.com"},
		{"ada@googlemail.com", "ada@gmail.com"},
		{"ada+promo@outlook.com", "ada@outlook.com"},
		{"ada+x@icloud.com", "ada@icloud.com"},
		{"ada-list@yahoo.com", "ada@yahoo.com"},
		{"a.da+tag@example.org", "a.da+tag@example.org"},
		{"+only@gmail.com", "+only@gmail.com"},
	}
	for _, tt := range tests {
		if got := oa.NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"ada@example.org", "a.b+c@sub.example.co"}
	invalid := []string{"", "ada", "ada@", "@example.org", "ada@example", "Ada <ada@example.org>", "ada @example.org"}
	for _, e := range valid {
		if !oa.IsValidEmail(e) {
			t.Errorf("%q should be valid", e)
		}
	}
	for _, e := range invalid {
		if oa.IsValidEmail(e) {
			t.Errorf("%q should be invalid", e)
		}
	}
}

func TestEscapeHTML(t *testing.T) {
	got := oa.EscapeHTML(`<b>"Tom" & 'Jerry'</b>`)
	want := "&lt;b&gt;&quot;Tom&quot; &amp; &#x27;Jerry&#x27;&lt;&#x2F;b&gt;"
	if got != want {
		t.Errorf("EscapeHTML = %q, want %q", got, want)
	}
}

func TestValidateSignupFields(t *testing.T) {
	in, errs := oa.ValidateSignupFields(map[string]string{
		"name": "  <Ada>  ", "email": "Ada.Lovelace+x@Gmail.com", "password": " analytical ",
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %+v", errs)
	}
	if in.Name != "&lt;Ada&gt;" || in.Email != "adalovelace@gmail.com" || in.Password != "analytical" {
		t.Errorf("unexpected sanitized input %+v", in)
	}

	_, errs = oa.ValidateSignupFields(map[string]string{"name": strings.Repeat("x", 51), "email": "ada@example.org", "password": "1234567"})
	if len(errs) != 2 || errs[0].Path != "name" || errs[1].Path != "password" {
		t.Errorf("expected name and password errors, got %+v", errs)
	}

	_, errs = oa.ValidateSignupFields(map[string]string{})
	if len(errs) != 3 || errs[1].Message != "Email is required" {
		t.Errorf("expected three required-field errors, got %+v", errs)
	}
}

func TestValidateLoginFields(t *testing.T) {
	in, errs := oa.ValidateLoginFields(map[string]string{"email": "Ada@Example.org", "password": "analytical"})
	if len(errs) != 0 || in.Email != "Ada@Example.org" {
		t.Errorf("login email must not be rewritten: %+v %+v", in, errs)
	}

	_, errs = oa.ValidateLoginFields(map[string]string{"email": "", "password": "x"})
	if len(errs) != 2 || errs[0].Message != "Email is a required field" || errs[1].Message != "Password is too short" {
		t.Errorf("unexpected errors %+v", errs)
	}
}

func TestValidateSignupRequestBodies(t *testing.T) {
	form := url.Values{"name": {"Ada Lovelace"}, "email": {"ada@example.org"}, "password": {"analytical"}}
	r := httptest.NewRequest("POST", "/auth/signup", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if _, errs := oa.ValidateSignup(r); len(errs) != 0 {
		t.Errorf("form body: %+v", errs)
	}

	r = httptest.NewRequest("POST", "/auth/signup", strings.NewReader(`{"name":"Ada Lovelace","email":"ada@example.org","password":12345678}`))
	r.Header.Set("Content-Type", "application/json")
	_, errs := oa.ValidateSignup(r)
	if len(errs) != 1 || errs[0].Path != "password" {
		t.Errorf("non-string password should read as missing: %+v", errs)
	}

	r = httptest.NewRequest("POST", "/auth/signup", strings.NewReader(`{not json`))
	r.Header.Set("Content-Type", "application/json")
	_, errs = oa.ValidateSignup(r)
	if len(errs) != 1 || errs[0].Path != "body" || errs[0].Message != "invalid post body" {
		t.Errorf("malformed body: %+v", errs)
	}
}
