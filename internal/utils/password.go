package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes the operator password for OPERATOR_PASSWORD_HASH.
// bookctl hash-password is the only caller; cost is its --cost flag.
func HashPassword(plain string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks an operator login attempt against the configured
// hash.  A malformed hash never verifies.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
