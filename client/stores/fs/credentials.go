// Package fs keeps authcore client credentials in a single JSON file
// readable only by its owner.
package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/panyam/authcore/client"
)

// CredentialFile is a client.CredentialStore backed by one JSON document
// keyed by server origin. Each call re-reads the file so several processes
// can share it. A credential whose cookie has lapsed is dropped the next
// time the file is read.
type CredentialFile struct {
	path string

	// Now defaults to time.Now
	Now func() time.Time

	mu sync.Mutex
}

type document struct {
	Credentials map[string]*client.ServerCredential `json:"credentials"`
}

// DefaultPath is <user config dir>/authcore/credentials.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "authcore", "credentials.json"), nil
}

// Open returns the store at path, or at DefaultPath when path is empty.
// An existing file must parse; a missing one is created on first write.
func Open(path string) (*CredentialFile, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	f := &CredentialFile{path: path}
	if _, err := f.read(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *CredentialFile) Path() string { return f.path }

func (f *CredentialFile) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// read loads the document and drops lapsed entries, rewriting the file if
// anything was dropped.
func (f *CredentialFile) read() (map[string]*client.ServerCredential, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*client.ServerCredential{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	creds := doc.Credentials
	if creds == nil {
		creds = map[string]*client.ServerCredential{}
	}
	now := f.now()
	lapsed := false
	for origin, cred := range creds {
		if cred == nil || cred.Token == "" || cred.IsExpiredAt(now) {
			delete(creds, origin)
			lapsed = true
		}
	}
	if lapsed {
		if err := f.write(creds); err != nil {
			return nil, err
		}
	}
	return creds, nil
}

// write replaces the file through a temp file and rename.
func (f *CredentialFile) write(creds map[string]*client.ServerCredential) error {
	data, err := json.MarshalIndent(document{Credentials: creds}, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *CredentialFile) Credential(origin string) (*client.ServerCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	creds, err := f.read()
	if err != nil {
		return nil, err
	}
	return creds[origin], nil
}

func (f *CredentialFile) PutCredential(origin string, cred *client.ServerCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	creds, err := f.read()
	if err != nil {
		return err
	}
	creds[origin] = cred
	return f.write(creds)
}

func (f *CredentialFile) DropCredential(origin string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	creds, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := creds[origin]; !ok {
		return nil
	}
	delete(creds, origin)
	return f.write(creds)
}
