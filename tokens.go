package authcore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// Default token lifetimes
const (
	TokenExpiryEmailVerification = 24 * time.Hour
	TokenExpiryPasswordReset     = 1 * time.Hour
	TokenExpiryCredential        = 7 * 24 * time.Hour
)

const (
	verificationCodeMin   = 100000
	verificationCodeRange = 900000
	resetTokenBytes       = 20
)

// GenerateVerificationCode returns a uniformly random 6 digit code in
// [100000, 999999].
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeRange))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+verificationCodeMin), nil
}

// GenerateResetToken returns 20 random bytes as 40 lowercase hex characters.
func GenerateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
