package security

import "golang.org/x/crypto/bcrypt"

// Cost matches the salt rounds the existing user base was hashed with.
const Cost = 10

// dummyHash is compared against when a login email is unknown so both failure paths spend a bcrypt round.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("herapt-placeholder"), Cost)

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// BurnCompare runs a comparison that always fails.
func BurnCompare(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
