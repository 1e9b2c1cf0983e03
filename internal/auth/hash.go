package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// HashToken returns the hex SHA-256 digest stored in place of a single-use token.
func HashToken(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// tokenBytes is the amount of entropy behind each single-use token.
const tokenBytes = 32

func randomToken(r io.Reader) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

var defaultEntropy io.Reader = rand.Reader
