package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used for link and account passwords
const PasswordCost = 10

// HashPassword returns a salted bcrypt hash
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches hash
func CheckPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
