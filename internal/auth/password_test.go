package auth_test

import (
	"strings"
	"testing"

	"github.com/matthewhartstonge/argon2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"accountforge/internal/auth"
)

func fastArgon() *auth.Argon2Hasher {
	cfg := argon2.DefaultConfig()
	cfg.MemoryCost = 8 * 1024
	cfg.TimeCost = 1
	return &auth.Argon2Hasher{Config: cfg}
}

func TestNewBcryptHasherEnforcesMinimumCost(t *testing.T) {
	assert.Equal(t, auth.MinBcryptCost, auth.NewBcryptHasher(4).Cost)
	assert.Equal(t, 13, auth.NewBcryptHasher(13).Cost)
	assert.Equal(t, bcrypt.MaxCost, auth.NewBcryptHasher(99).Cost)
}

func TestHashersRoundTrip(t *testing.T) {
	hashers := map[string]auth.PasswordHasher{
		"bcrypt": &auth.BcryptHasher{Cost: bcrypt.MinCost},
		"argon2": fastArgon(),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			hash, err := h.Hash("correct horse")
			require.NoError(t, err)
			assert.NotEqual(t, "correct horse", hash)
			assert.True(t, h.Compare(hash, "correct horse"))
			assert.False(t, h.Compare(hash, "correct hors"))
			assert.False(t, h.Compare("", "correct horse"))

			again, err := h.Hash("correct horse")
			require.NoError(t, err)
			assert.NotEqual(t, hash, again, "hashes must be salted")
		})
	}
}

func TestCompareRejectsSingleCharacterMutations(t *testing.T) {
	h := &auth.BcryptHasher{Cost: bcrypt.MinCost}
	password := "s3cret!"
	hash, err := h.Hash(password)
	require.NoError(t, err)

	for i := range password {
		mutated := []byte(password)
		mutated[i]++
		assert.False(t, h.Compare(hash, string(mutated)), "mutation at %d accepted", i)
	}
	assert.False(t, h.Compare(hash, password[:len(password)-1]))
	assert.False(t, h.Compare(hash, password+"x"))
}

func TestDualHasherVerifiesBothFormats(t *testing.T) {
	bcryptHash, err := (&auth.BcryptHasher{Cost: bcrypt.MinCost}).Hash("pw-123456")
	require.NoError(t, err)
	argonHash, err := fastArgon().Hash("pw-123456")
	require.NoError(t, err)

	h, err := auth.NewPasswordHasher("argon2", auth.MinBcryptCost)
	require.NoError(t, err)

	assert.True(t, h.Compare(bcryptHash, "pw-123456"))
	assert.True(t, h.Compare(argonHash, "pw-123456"))
	assert.False(t, h.Compare("plaintext", "plaintext"))
}

func TestNewPasswordHasherSelectsPrimary(t *testing.T) {
	h, err := auth.NewPasswordHasher("", 12)
	require.NoError(t, err)
	assert.IsType(t, &auth.BcryptHasher{}, h.Primary)

	h, err = auth.NewPasswordHasher("ARGON2", 12)
	require.NoError(t, err)
	assert.IsType(t, &auth.Argon2Hasher{}, h.Primary)

	_, err = auth.NewPasswordHasher("md5", 12)
	require.Error(t, err)
}

func TestArgonHashEncoding(t *testing.T) {
	hash, err := fastArgon().Hash("pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
}

func TestBcryptLimitCountsBytes(t *testing.T) {
	h := &auth.BcryptHasher{Cost: bcrypt.MinCost}

	_, err := h.Hash(strings.Repeat("a", auth.MaxPasswordBytes))
	require.NoError(t, err)

	// 40 runes, 80 bytes
	_, err = h.Hash(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, auth.ErrPasswordTooLong)
}
