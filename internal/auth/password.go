package auth

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost matches the teacher's stack choice of
// golang.org/x/crypto/bcrypt for password hashing; overridable via
// Config.BcryptCost (BCRYPT_COST).
const DefaultBcryptCost = 12

func hashPassword(password string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// checkPassword performs the constant-time comparison spec.md §4.1
// requires ("passwords verified by constant-time hash comparison").
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
