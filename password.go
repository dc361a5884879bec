package authcore

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor (2^10 rounds).
const DefaultPasswordCost = 10

// PasswordHasher hashes and checks passwords. Both calls burn CPU on purpose.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPassword(password, hash string) bool
}

// BcryptHasher is the PasswordHasher used everywhere outside tests.
type BcryptHasher struct {
	Cost int

	dummyOnce sync.Once
	dummy     []byte
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: DefaultPasswordCost}
}

func (h *BcryptHasher) cost() int {
	if h == nil || h.Cost == 0 {
		return DefaultPasswordCost
	}
	return h.Cost
}

func (h *BcryptHasher) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost())
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares in constant time. An empty hash (unknown account,
// or a federated one without a local password) never matches but still pays
// for a full comparison at the configured cost.
func (h *BcryptHasher) CheckPassword(password, hash string) bool {
	if hash == "" {
		bcrypt.CompareHashAndPassword(h.dummyHash(), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *BcryptHasher) dummyHash() []byte {
	h.dummyOnce.Do(func() {
		var err error
		h.dummy, err = bcrypt.GenerateFromPassword([]byte("authcore-no-such-account"), h.cost())
		if err != nil {
			panic(fmt.Sprintf("bcrypt: %v", err))
		}
	})
	return h.dummy
}
