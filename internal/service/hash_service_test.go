package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgon2HashService_HashAndVerify(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("482913")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"), "hash should carry the PHC prefix")
	assert.NotContains(t, hash, "482913")

	match, err := svc.Verify("482913", hash)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestArgon2HashService_VerifyWrongSecret(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("482913")
	require.NoError(t, err)

	match, err := svc.Verify("482914", hash)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestArgon2HashService_UniqueSalts(t *testing.T) {
	svc := NewArgon2HashService()

	hash1, err := svc.Hash("000000")
	require.NoError(t, err)
	hash2, err := svc.Hash("000000")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2, "each hash gets a fresh salt")
}

func TestArgon2HashService_HashContainsParams(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("123456")
	require.NoError(t, err)
	assert.Contains(t, hash, "m=65536,t=1,p=4")
}

func TestArgon2HashService_VerifyUsesEncodedParams(t *testing.T) {
	cheap := &Argon2HashService{params: argon2Params{memory: 8 * 1024, time: 2, threads: 1, keyLen: 16}}
	hash, err := cheap.Hash("123456")
	require.NoError(t, err)

	match, err := NewArgon2HashService().Verify("123456", hash)
	require.NoError(t, err)
	assert.True(t, match, "verification must follow the parameters stored in the hash")
}

func TestArgon2HashService_VerifyInvalidFormat(t *testing.T) {
	svc := NewArgon2HashService()

	tests := []string{
		"not-a-valid-hash",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
	}
	for _, encoded := range tests {
		_, err := svc.Verify("123456", encoded)
		assert.Error(t, err, encoded)
	}
}
