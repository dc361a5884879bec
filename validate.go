package authcore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Field limits for signup and login
const (
	MinNameLength     = 3
	MaxNameLength     = 50
	MinPasswordLength = 8
)

// SignupInput is the sanitized signup body.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput is the login body. Email is checked but not rewritten.
type LoginInput struct {
	Email    string
	Password string
}

// escaper mirrors the HTML escaping applied to free-text fields.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&#x27;",
	"<", "&lt;",
	">", "&gt;",
	"/", "&#x2F;",
	`\`, "&#x5C;",
	"`", "&#96;",
)

// EscapeHTML escapes the characters that are unsafe inside HTML text and
// attributes.
func EscapeHTML(s string) string { return escaper.Replace(s) }

// IsValidEmail accepts a bare addr-spec with a dotted domain.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return false
	}
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-2
}

// NormalizeEmail lowercases the address and applies the provider-specific
// canonicalization rules: gmail ignores dots and "+tag" suffixes, and the
// big consumer providers ignore their sub-address suffixes.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	switch domain {
	case "gmail.com", "googlemail.com":
		local = cutSuffix(local, "+")
		local = strings.ReplaceAll(local, ".", "")
		domain = "gmail.com"
	case "outlook.com", "hotmail.com", "live.com", "icloud.com", "me.com":
		local = cutSuffix(local, "+")
	case "yahoo.com", "ymail.com":
		local = cutSuffix(local, "-")
	}
	if local == "" {
		return email
	}
	return local + "@" + domain
}

func cutSuffix(local, sep string) string {
	before, _, _ := strings.Cut(local, sep)
	return before
}

// readBody decodes a JSON object body, or a urlencoded form, into a flat
// string map. Non-string JSON values are ignored.
func readBody(r *http.Request) (map[string]string, error) {
	out := map[string]string{}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("error parsing form")
		}
		for k := range r.PostForm {
			out[k] = r.PostForm.Get(k)
		}
		return out, nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return out, nil
	}
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid post body")
	}
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

func validateName(raw string) (string, *FieldError) {
	name := EscapeHTML(strings.TrimSpace(raw))
	if name == "" {
		return name, &FieldError{Path: "name", Message: "Name is required"}
	}
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return name, &FieldError{Path: "name", Message: fmt.Sprintf("Name must be between %d and %d characters", MinNameLength, MaxNameLength)}
	}
	return name, nil
}

func validateEmail(raw string) (string, *FieldError) {
	email := EscapeHTML(strings.TrimSpace(raw))
	if email != "" {
		email = NormalizeEmail(email)
	}
	if email == "" {
		return email, &FieldError{Path: "email", Message: "Email is required"}
	}
	if !IsValidEmail(email) {
		return email, &FieldError{Path: "email", Message: "Invalid email address"}
	}
	return email, nil
}

func validatePassword(raw string) (string, *FieldError) {
	password := strings.TrimSpace(raw)
	if password == "" {
		return password, &FieldError{Path: "password", Message: "Password is required"}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return password, &FieldError{Path: "password", Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)}
	}
	return password, nil
}

// ValidateSignupFields sanitizes and checks a signup body.
func ValidateSignupFields(body map[string]string) (SignupInput, []FieldError) {
	var (
		in   SignupInput
		errs []FieldError
		ferr *FieldError
	)
	if in.Name, ferr = validateName(body["name"]); ferr != nil {
		errs = append(errs, *ferr)
	}
	if in.Email, ferr = validateEmail(body["email"]); ferr != nil {
		errs = append(errs, *ferr)
	}
	if in.Password, ferr = validatePassword(body["password"]); ferr != nil {
		errs = append(errs, *ferr)
	}
	return in, errs
}

// ValidateLoginFields checks a login body.
func ValidateLoginFields(body map[string]string) (LoginInput, []FieldError) {
	var errs []FieldError
	in := LoginInput{Email: body["email"], Password: body["password"]}

	if in.Email == "" {
		errs = append(errs, FieldError{Path: "email", Message: "Email is a required field"})
	} else if !IsValidEmail(in.Email) {
		errs = append(errs, FieldError{Path: "email", Message: "Invalid email address"})
	}

	if in.Password == "" {
		errs = append(errs, FieldError{Path: "password", Message: "Password is a required field"})
	} else if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		errs = append(errs, FieldError{Path: "password", Message: "Password is too short"})
	}
	return in, errs
}

// ValidateSignup reads and validates the request body. An unreadable body
// is reported as a single error on the "body" path.
func ValidateSignup(r *http.Request) (SignupInput, []FieldError) {
	body, err := readBody(r)
	if err != nil {
		return SignupInput{}, []FieldError{{Path: "body", Message: err.Error()}}
	}
	return ValidateSignupFields(body)
}

func ValidateLogin(r *http.Request) (LoginInput, []FieldError) {
	body, err := readBody(r)
	if err != nil {
		return LoginInput{}, []FieldError{{Path: "body", Message: err.Error()}}
	}
	return ValidateLoginFields(body)
}
