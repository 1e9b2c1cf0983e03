package auth

import (
	"fmt"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the lowest work factor accepted for new hashes.
const MinBcryptCost = 12

// MaxPasswordBytes is bcrypt's input limit. It counts bytes, not characters.
const MaxPasswordBytes = 72

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{Cost: cost}
}

func (b *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *BcryptHasher) Compare(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type Argon2Hasher struct {
	Config argon2.Config
}

func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{Config: argon2.DefaultConfig()}
}

func (a *Argon2Hasher) Hash(password string) (string, error) {
	encoded, err := a.Config.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (a *Argon2Hasher) Compare(hash, password string) bool {
	if hash == "" {
		return false
	}
	ok, err := argon2.VerifyEncoded([]byte(password), []byte(hash))
	return err == nil && ok
}

// DualHasher hashes with Primary and verifies both bcrypt and argon2 encodings,
// so switching algorithms does not lock out existing accounts.
type DualHasher struct {
	Primary PasswordHasher
	bcrypt  *BcryptHasher
	argon   *Argon2Hasher
}

// NewPasswordHasher builds the hasher for algorithm "bcrypt" (default) or "argon2".
func NewPasswordHasher(algorithm string, bcryptCost int) (*DualHasher, error) {
	h := &DualHasher{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon:  NewArgon2Hasher(),
	}
	switch strings.ToLower(algorithm) {
	case "", "bcrypt":
		h.Primary = h.bcrypt
	case "argon2", "argon2id":
		h.Primary = h.argon
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algorithm)
	}
	return h, nil
}

func (h *DualHasher) Hash(password string) (string, error) {
	return h.Primary.Hash(password)
}

func (h *DualHasher) Compare(hash, password string) bool {
	switch {
	case strings.HasPrefix(hash, "$argon2"):
		return h.argon.Compare(hash, password)
	case strings.HasPrefix(hash, "$2"):
		return h.bcrypt.Compare(hash, password)
	}
	return false
}
