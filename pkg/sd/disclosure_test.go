package sd

import (
	"crypto/sha256"
	"hash"
	"testing"

	"sdvc/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256New() func() hash.Hash {
	return func() hash.Hash { return sha256.New() }
}

func TestDisclosureRoundTripJSON(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	tts := []struct {
		name string
		make func() (*Disclosure, error)
	}{
		{
			name: "object_property",
			make: func() (*Disclosure, error) { return NewDisclosure(salt, "given_name", "John") },
		},
		{
			name: "array_element",
			make: func() (*Disclosure, error) { return NewArrayDisclosure(salt, "DE") },
		},
		{
			name: "nested_value",
			make: func() (*Disclosure, error) {
				return NewDisclosure(salt, "address", map[string]any{"locality": "Anytown"})
			},
		},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.make()
			require.NoError(t, err)

			encoded, err := d.EncodeJSON()
			require.NoError(t, err)

			parsed, err := ParseDisclosureJSON(encoded)
			require.NoError(t, err)

			assert.True(t, d.Equal(parsed))

			name, hasName := d.ClaimName()
			gotName, gotHasName := parsed.ClaimName()
			assert.Equal(t, hasName, gotHasName)
			assert.Equal(t, name, gotName)
		})
	}
}

func TestDisclosureRoundTripCBOR(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	d, err := NewDisclosure(salt, "family_name", "Möbius")
	require.NoError(t, err)

	encoded, err := d.EncodeCBOR()
	require.NoError(t, err)

	parsed, err := ParseDisclosureCBOR(encoded)
	require.NoError(t, err)

	assert.True(t, d.Equal(parsed))
	assert.Equal(t, "Möbius", parsed.Value())
}

func TestSaltValidation(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := NewDisclosure(nil, "claim", 1)
		assert.ErrorIs(t, err, model.ErrEmptySalt)
	})

	t.Run("too_short", func(t *testing.T) {
		_, err := NewDisclosure([]byte{1, 2, 3}, "claim", 1)
		assert.ErrorIs(t, err, model.ErrSaltTooShort)
	})

	t.Run("salts_are_unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 64; i++ {
			salt, err := GenerateSalt()
			require.NoError(t, err)
			require.Len(t, salt, MinSaltSize)
			assert.False(t, seen[string(salt)])
			seen[string(salt)] = true
		}
	})
}

func TestReservedClaimNames(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	for _, name := range []string{"_sd", "...", "_sd_alg"} {
		_, err := NewDisclosure(salt, name, 1)
		assert.ErrorIs(t, err, model.ErrReservedClaimName, name)
	}
}

// The disclosure vector from the selective disclosure JWT spec: the
// base64url of ["salt", "given_name", "John"] and its sha-256 digest.
func TestSpecVectorDigest(t *testing.T) {
	const encoded = "WyJzYWx0IiwgImdpdmVuX25hbWUiLCAiSm9obiJd"
	const wantDigest = "rcLAcaR4sE41DT7kDdVWlfPgZJ7NFoyQT9QPvfMwsWI"

	assert.Equal(t, wantDigest, DigestEncoded(encoded, sha256New()))

	parsed, err := ParseDisclosureJSON(encoded)
	require.NoError(t, err)

	name, hasName := parsed.ClaimName()
	assert.True(t, hasName)
	assert.Equal(t, "given_name", name)
	assert.Equal(t, "John", parsed.Value())
}

func TestDisclosureEqualityBySalt(t *testing.T) {
	saltA, err := GenerateSalt()
	require.NoError(t, err)
	saltB, err := GenerateSalt()
	require.NoError(t, err)

	d1, err := NewDisclosure(saltA, "a", 1)
	require.NoError(t, err)
	d2, err := NewDisclosure(saltA, "b", 2)
	require.NoError(t, err)
	d3, err := NewDisclosure(saltB, "a", 1)
	require.NoError(t, err)

	assert.True(t, d1.Equal(d2))
	assert.False(t, d1.Equal(d3))
}
