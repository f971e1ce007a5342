package utils

import "golang.org/x/crypto/bcrypt"

// HashSecret returns a bcrypt hash of a short-lived secret such as an OTP code.
func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckSecret compares a bcrypt hashed secret with its possible plaintext equivalent.
func CheckSecret(hashed, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret)) == nil
}
