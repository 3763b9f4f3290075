package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// PinDigits is the width of generated numeric codes.
const PinDigits = 6

var pinSpace = big.NewInt(1_000_000)

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// GeneratePin returns a random zero-padded 6-digit code. Codes rejected by
// IsWeakPin are redrawn so every issued code can be submitted back.
func GeneratePin() (string, error) {
	for {
		n, err := rand.Int(rand.Reader, pinSpace)
		if err != nil {
			return "", err
		}
		pin := fmt.Sprintf("%0*d", PinDigits, n.Int64())
		if !IsWeakPin(pin) {
			return pin, nil
		}
	}
}

// IsWeakPin reports codes that are trivially guessable: a single repeated
// digit or a run of consecutive ascending or descending digits.
func IsWeakPin(pin string) bool {
	if len(pin) < 2 {
		return true
	}

	same, ascending, descending := true, true, true
	for i := 1; i < len(pin); i++ {
		prev, cur := int(pin[i-1]), int(pin[i])
		if cur != prev {
			same = false
		}
		if cur != prev+1 {
			ascending = false
		}
		if cur != prev-1 {
			descending = false
		}
	}
	return same || ascending || descending
}

// HashToken returns the hex SHA-256 digest used to store bearer secrets at rest.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}

// EqualCodes compares two secrets in constant time.
func EqualCodes(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
