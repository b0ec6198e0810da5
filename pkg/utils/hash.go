package utils

import "golang.org/x/crypto/bcrypt"

// passwordCost is bcrypt's default, sized for an interactive login flow.
const passwordCost = bcrypt.DefaultCost

// HashPassword derives the bcrypt hash stored in the users table.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches the stored hash.
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
