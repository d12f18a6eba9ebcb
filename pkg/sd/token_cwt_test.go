package sd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"sdvc/pkg/logger"
	"sdvc/pkg/sd/lattice"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueTestCwt(t *testing.T) (*Client, *SdCwtToken, *ecdsa.PrivateKey) {
	t.Helper()

	c := NewClient(logger.NewSimple("test"))

	issuerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	token, err := c.IssueCwt(&IssueCwtInput{
		Issuer: "https://issuer.example",
		KeyID:  "issuer-key-1",
		Claims: testClaims(),
		RedactPaths: []lattice.Path{
			lattice.Path{}.Child("given_name"),
			lattice.Path{}.Child("nationalities").Element(1),
		},
		PrivateKey: issuerKey,
		IssuedAt:   1700000000,
	})
	require.NoError(t, err)

	return c, token, issuerKey
}

func TestIssueCwtRedaction(t *testing.T) {
	_, token, issuerKey := issueTestCwt(t)

	require.Len(t, token.Disclosures, 2)
	require.NoError(t, token.VerifyCwt(&issuerKey.PublicKey))

	payload, err := token.Payload()
	require.NoError(t, err)

	// The redacted map entry is gone; its digest sits under the simple
	// value 59 key.
	assert.NotContains(t, payload, "given_name")

	var redactedKeys []any
	for key, value := range payload {
		if IsRedactedKeysEntry(key) {
			redactedKeys, _ = value.([]any)
		}
	}
	require.Len(t, redactedKeys, 1)
	_, ok := redactedKeys[0].([]byte)
	assert.True(t, ok, "redacted key digests are byte strings")

	// The redacted array element became tag 60 wrapping the digest.
	nats, ok := payload["nationalities"].([]any)
	require.True(t, ok)
	require.Len(t, nats, 2)
	assert.Equal(t, "US", nats[0])

	digest, ok := RedactedElementDigest(nats[1])
	assert.True(t, ok)
	assert.NotEmpty(t, digest)
}

func TestCwtWireRoundTrip(t *testing.T) {
	_, token, _ := issueTestCwt(t)

	wire, err := token.Serialize()
	require.NoError(t, err)

	parsed, err := ParseSdCwt(wire)
	require.NoError(t, err)

	assert.Equal(t, "sha-256", parsed.HashName())
	require.Len(t, parsed.Disclosures, 2)
	for i := range token.Disclosures {
		assert.True(t, token.Disclosures[i].Equal(parsed.Disclosures[i]))
	}
}

func TestCwtDisclosureDigestsMatchMarkers(t *testing.T) {
	_, token, _ := issueTestCwt(t)

	newHash := sha256New()

	payload, err := token.Payload()
	require.NoError(t, err)

	markerDigests := make(map[string]bool)
	for key, value := range payload {
		if IsRedactedKeysEntry(key) {
			for _, raw := range value.([]any) {
				markerDigests[string(raw.([]byte))] = true
			}
		}
	}
	if nats, ok := payload["nationalities"].([]any); ok {
		for _, elem := range nats {
			if digest, ok := RedactedElementDigest(elem); ok {
				markerDigests[string(digest)] = true
			}
		}
	}

	require.Len(t, markerDigests, 2)

	for _, d := range token.Disclosures {
		digest, err := d.DigestCBOR(newHash)
		require.NoError(t, err)
		assert.True(t, markerDigests[string(digest)], "disclosure digest missing from payload markers")
	}
}

// Marker recognition over foreign CBOR: a map entry keyed by simple
// value 59 and an array element under tag 60.
func TestRecognizeForeignRedactionMarkers(t *testing.T) {
	digest := []byte{0xaf, 0x37, 0x5d, 0xc3, 0x01, 0x02, 0x03, 0x04}

	encoded, err := cbor.Marshal(map[any]any{
		"visible":           "claim",
		cbor.SimpleValue(59): []any{digest},
	})
	require.NoError(t, err)

	var decoded map[any]any
	require.NoError(t, cbor.Unmarshal(encoded, &decoded))

	foundRedactedKeys := false
	for key := range decoded {
		if IsRedactedKeysEntry(key) {
			foundRedactedKeys = true
		}
	}
	assert.True(t, foundRedactedKeys)

	elemDigest := []byte{0x1b, 0x7f, 0xc8, 0xec, 0xaa, 0xbb}
	arrEncoded, err := cbor.Marshal([]any{"kept", cbor.Tag{Number: 60, Content: elemDigest}})
	require.NoError(t, err)

	var arrDecoded []any
	require.NoError(t, cbor.Unmarshal(arrEncoded, &arrDecoded))

	got, ok := RedactedElementDigest(arrDecoded[1])
	require.True(t, ok)
	assert.Equal(t, elemDigest, got)
}

func TestCwtPresentAndKeyBinding(t *testing.T) {
	c, token, _ := issueTestCwt(t)

	holderKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	presented, err := token.Present(token.Disclosures[:1])
	require.NoError(t, err)

	kb, err := c.CreateKeyBindingCWT(presented, kbNonce, kbAudience, kbNow-60, holderKey)
	require.NoError(t, err)
	presented.KeyBinding = kb

	result, err := c.ValidateKeyBindingCWT(presented, &holderKey.PublicKey, &KeyBindingExpectations{
		Audience:         kbAudience,
		RequireAudience:  true,
		Nonce:            kbNonce,
		RequireNonce:     true,
		Now:              kbNow,
		AllowedClockSkew: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, KeyBindingValid, result)

	t.Run("iat_in_future", func(t *testing.T) {
		kb, err := c.CreateKeyBindingCWT(presented, kbNonce, kbAudience, kbNow+3600, holderKey)
		require.NoError(t, err)

		future := &SdCwtToken{Envelope: presented.Envelope, Disclosures: presented.Disclosures, KeyBinding: kb, hashName: presented.hashName}
		result, err := c.ValidateKeyBindingCWT(future, &holderKey.PublicKey, &KeyBindingExpectations{
			Now:              kbNow,
			AllowedClockSkew: 60,
		})
		require.NoError(t, err)
		assert.Equal(t, KeyBindingIatInFuture, result)
	})

	t.Run("widened_presentation_invalidates_sd_hash", func(t *testing.T) {
		widened, err := token.Present(token.Disclosures)
		require.NoError(t, err)
		widened.KeyBinding = kb

		result, err := c.ValidateKeyBindingCWT(widened, &holderKey.PublicKey, &KeyBindingExpectations{
			Now:              kbNow,
			AllowedClockSkew: 60,
		})
		require.NoError(t, err)
		assert.Equal(t, KeyBindingSdHashMismatch, result)
	})

	t.Run("unknown_disclosure_rejected", func(t *testing.T) {
		salt, err := GenerateSalt()
		require.NoError(t, err)
		foreign, err := NewDisclosure(salt, "foreign", true)
		require.NoError(t, err)

		_, err = token.Present([]*Disclosure{foreign})
		assert.Error(t, err)
	})
}

func TestCwtLattice(t *testing.T) {
	_, token, _ := issueTestCwt(t)

	lat, err := token.Lattice()
	require.NoError(t, err)

	assert.True(t, lat.Contains(lattice.Path{}.Child("given_name")))
	assert.False(t, lat.IsMandatory(lattice.Path{}.Child("given_name")))
	assert.True(t, lat.IsMandatory(lattice.Path{}.Child("family_name")))
	assert.True(t, lat.Contains(lattice.Path{}.Child("nationalities").Element(1)))

	for digest, p := range lat.DisclosurePaths() {
		assert.True(t, lat.Contains(p), "disclosure %x path %s missing", digest, p)
	}
}
