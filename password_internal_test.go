package authcore

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherPlaceholderUsesConfiguredCost(t *testing.T) {
	h := &BcryptHasher{Cost: 5}
	if h.CheckPassword("anything", "") {
		t.Fatal("empty hash must never verify")
	}
	cost, err := bcrypt.Cost(h.dummyHash())
	if err != nil || cost != 5 {
		t.Errorf("placeholder cost = %d (%v), want 5", cost, err)
	}
	if &h.dummyHash()[0] != &h.dummyHash()[0] {
		t.Error("placeholder should be computed once")
	}
}
