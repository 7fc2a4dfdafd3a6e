// Package authn implements password hashing and JWT issuance/verification
// for the HTTP admin surface. It has no knowledge of RDCleanPath sessions.
package authn

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a bcrypt hash at the library default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
