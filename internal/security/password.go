package security

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt work factor (2^10 rounds).
const PasswordCost = 10

// MaxPasswordBytes is bcrypt's input limit. It counts bytes, so multibyte
// characters use it up faster.
const MaxPasswordBytes = 72

func PasswordTooLong(plain string) bool {
	return len(plain) > MaxPasswordBytes
}

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// dummyHash is compared against when the email is unknown so a miss costs
// about as much as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("bugzapp-timing-equalizer"), PasswordCost)

func BurnCompare(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
