// Package client is a Go SDK for the authcore HTTP API. It carries the
// credential cookie across calls and persists it through a CredentialStore.
package client

import (
	"sync"
	"time"
)

// ServerCredential is the credential cookie captured from one server.
type ServerCredential struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpiredAt reports whether the cookie lifetime has passed at now. The
// server still accepts the token at ExpiresAt itself.
func (c *ServerCredential) IsExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// CredentialStore keeps at most one credential per server origin
// (scheme://host). Writes are durable when the call returns.
type CredentialStore interface {
	// Credential returns nil, nil when origin has none
	Credential(origin string) (*ServerCredential, error)
	PutCredential(origin string, cred *ServerCredential) error
	DropCredential(origin string) error
}

// MemoryStore keeps credentials for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[string]ServerCredential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: map[string]ServerCredential{}}
}

func (m *MemoryStore) Credential(origin string) (*ServerCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[origin]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

func (m *MemoryStore) PutCredential(origin string, cred *ServerCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[origin] = *cred
	return nil
}

func (m *MemoryStore) DropCredential(origin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, origin)
	return nil
}
