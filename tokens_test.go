package authcore_test

import (
	"regexp"
	"strconv"
	"testing"

	oa "github.com/panyam/authcore"
)

func TestGenerateVerificationCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := oa.GenerateVerificationCode()
		if err != nil {
			t.Fatal(err)
		}
		n, err := strconv.Atoi(code)
		if err != nil || len(code) != 6 || n < 100000 || n > 999999 {
			t.Fatalf("bad code %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 150 {
		t.Errorf("codes look non-random: %d distinct of 200", len(seen))
	}
}

func TestGenerateResetToken(t *testing.T) {
	hex40 := regexp.MustCompile(`^[0-9a-f]{40}$`)
	a, _ := oa.GenerateResetToken()
	b, _ := oa.GenerateResetToken()
	if !hex40.MatchString(a) || !hex40.MatchString(b) {
		t.Errorf("expected 40 lowercase hex chars, got %q and %q", a, b)
	}
	if a == b {
		t.Error("tokens repeat")
	}
}
