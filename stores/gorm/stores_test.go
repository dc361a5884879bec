//go:build !wasm
// +build !wasm

package gorm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	oa "github.com/panyam/authcore"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPatchColumns(t *testing.T) {
	email := "Ada@Example.org"
	cols := patchColumns(oa.UserPatch{Email: &email}, now)

	assert.Equal(t, "Ada@Example.org", cols["email"])
	assert.Equal(t, "ada@example.org", *cols["email_key"].(*string))
	assert.Equal(t, now, cols["updated_at"])
	assert.Len(t, cols, 3)
}

func TestPatchColumnsClearsTokenPair(t *testing.T) {
	cols := patchColumns(oa.UserPatch{Verification: oa.ClearToken()}, now)

	assert.Nil(t, cols["verification_token"])
	assert.Nil(t, cols["verification_token_expires_at"])
	assert.Contains(t, cols, "verification_token")
	assert.Contains(t, cols, "verification_token_expires_at")
	assert.NotContains(t, cols, "reset_password_token")
}

func TestModelRoundTrip(t *testing.T) {
	u := &oa.User{
		ID:       "u1",
		Name:     "Octo",
		Username: "OctoCat",
		Reset:    oa.FlowToken{Token: "abc", ExpiresAt: now},
	}
	m := UserToModel(u)
	assert.Nil(t, m.EmailKey, "no email means no unique key")
	assert.Equal(t, "octocat", *m.UsernameKey)

	back := m.ToUser()
	assert.Nil(t, back.Email)
	assert.Equal(t, u.Reset, back.Reset)
	assert.True(t, back.Verification.IsZero())
}
