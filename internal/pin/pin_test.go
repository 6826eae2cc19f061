package pin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPin_KnownDigest(t *testing.T) {
	// sha256("1234")
	assert.Equal(t, "03ac674216f3e15c761ee1a5e255f067953623c8b388b4459e13f978d7c846f4", HashPin("1234"))
}

func TestHashPin_Deterministic(t *testing.T) {
	assert.Equal(t, HashPin("4821"), HashPin("4821"))
}

func TestVerifyPin(t *testing.T) {
	digest := HashPin("4821")

	assert.True(t, VerifyPin("4821", digest))
	assert.False(t, VerifyPin("4822", digest))
	assert.False(t, VerifyPin("", digest))
}

func TestVerifyPin_AcceptsUppercaseDigest(t *testing.T) {
	digest := "03AC674216F3E15C761EE1A5E255F067953623C8B388B4459E13F978D7C846F4"
	assert.True(t, VerifyPin("1234", digest))
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher("")
	require.NoError(t, err)
	assert.Equal(t, SchemeSHA256, h.Scheme())

	h, err = NewHasher("BCRYPT")
	require.NoError(t, err)
	assert.Equal(t, SchemeBcrypt, h.Scheme())

	_, err = NewHasher("md5")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestHasher_BcryptRoundTrip(t *testing.T) {
	h, err := NewHasher("bcrypt")
	require.NoError(t, err)

	digest, err := h.Hash("7788")
	require.NoError(t, err)
	assert.NotEqual(t, HashPin("7788"), digest)

	assert.True(t, h.Verify("7788", digest))
	assert.False(t, h.Verify("7789", digest))
}

func TestHasher_BcryptIsSalted(t *testing.T) {
	h, err := NewHasher("bcrypt")
	require.NoError(t, err)

	a, err := h.Hash("7788")
	require.NoError(t, err)
	b, err := h.Hash("7788")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHasher_VerifiesLegacyDigestUnderBcrypt(t *testing.T) {
	h, err := NewHasher("bcrypt")
	require.NoError(t, err)
	assert.True(t, h.Verify("1234", HashPin("1234")))
}
