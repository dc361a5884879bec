//go:build !wasm
// +build !wasm

package gae

import (
	"testing"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/stretchr/testify/assert"

	oa "github.com/panyam/authcore"
)

func TestEntityRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	email := "ada@example.org"
	key := datastore.NameKey(KindUser, "u1", nil)

	u := &oa.User{ID: "u1", Name: "Ada", Email: &email, Verification: oa.FlowToken{Token: "123456", ExpiresAt: now}}
	e := UserToEntity(u, key)
	assert.True(t, e.HasEmail)

	back := e.ToUser()
	assert.Equal(t, "u1", back.ID)
	assert.Equal(t, "ada@example.org", back.EmailAddress())
	assert.Equal(t, u.Verification, back.Verification)

	noEmail := UserToEntity(&oa.User{ID: "u2", Username: "octocat"}, datastore.NameKey(KindUser, "u2", nil))
	assert.False(t, noEmail.HasEmail)
	assert.Nil(t, noEmail.ToUser().Email)
}
