package sd

import (
	"testing"

	"sdvc/pkg/sd/lattice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kbNonce    = "nonce-abc-123"
	kbAudience = "https://verifier.example"
	kbNow      = int64(1700000600)
)

func TestKeyBindingRoundTrip(t *testing.T) {
	c, token, _, holderKey := issueTestToken(t, allRedactPaths())

	presented, err := token.Present(nil)
	require.NoError(t, err)

	kbJwt, err := c.CreateKeyBindingJWT(presented, kbNonce, kbAudience, kbNow-60, holderKey)
	require.NoError(t, err)

	bound := presented.WithKeyBinding(kbJwt)

	result, err := c.ValidateKeyBinding(bound, &holderKey.PublicKey, &KeyBindingExpectations{
		Audience:         kbAudience,
		RequireAudience:  true,
		Nonce:            kbNonce,
		RequireNonce:     true,
		Now:              kbNow,
		AllowedClockSkew: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, KeyBindingValid, result)
}

func TestKeyBindingIatInFuture(t *testing.T) {
	c, token, _, holderKey := issueTestToken(t, allRedactPaths())

	presented, err := token.Present(nil)
	require.NoError(t, err)

	// iat one hour ahead with a 60 second skew allowance.
	kbJwt, err := c.CreateKeyBindingJWT(presented, kbNonce, kbAudience, kbNow+3600, holderKey)
	require.NoError(t, err)

	bound := presented.WithKeyBinding(kbJwt)

	result, err := c.ValidateKeyBinding(bound, &holderKey.PublicKey, &KeyBindingExpectations{
		Now:              kbNow,
		AllowedClockSkew: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, KeyBindingIatInFuture, result)
}

func TestKeyBindingMismatches(t *testing.T) {
	c, token, _, holderKey := issueTestToken(t, allRedactPaths())

	presented, err := token.Present(nil)
	require.NoError(t, err)

	kbJwt, err := c.CreateKeyBindingJWT(presented, kbNonce, kbAudience, kbNow-60, holderKey)
	require.NoError(t, err)
	bound := presented.WithKeyBinding(kbJwt)

	t.Run("audience_mismatch", func(t *testing.T) {
		result, err := c.ValidateKeyBinding(bound, &holderKey.PublicKey, &KeyBindingExpectations{
			Audience:         "https://other.example",
			RequireAudience:  true,
			Now:              kbNow,
			AllowedClockSkew: 60,
		})
		require.NoError(t, err)
		assert.Equal(t, KeyBindingAudienceMismatch, result)
	})

	t.Run("nonce_mismatch", func(t *testing.T) {
		result, err := c.ValidateKeyBinding(bound, &holderKey.PublicKey, &KeyBindingExpectations{
			Nonce:            "different-nonce",
			RequireNonce:     true,
			Now:              kbNow,
			AllowedClockSkew: 60,
		})
		require.NoError(t, err)
		assert.Equal(t, KeyBindingNonceMismatch, result)
	})
}

// Key binding freshness: changing the disclosure set after the KB-JWT
// was computed invalidates sd_hash.
func TestKeyBindingFreshness(t *testing.T) {
	c, token, _, holderKey := issueTestToken(t, allRedactPaths())

	lat, err := token.Lattice()
	require.NoError(t, err)

	digests, err := lat.MinimumDisclosure([]lattice.Path{lattice.Path{}.Child("given_name")})
	require.NoError(t, err)

	presented, err := token.Present(digests)
	require.NoError(t, err)

	kbJwt, err := c.CreateKeyBindingJWT(presented, kbNonce, kbAudience, kbNow-60, holderKey)
	require.NoError(t, err)

	// Swap in a different disclosure set behind the key binding's back.
	moreDigests, err := lat.MinimumDisclosure([]lattice.Path{
		lattice.Path{}.Child("given_name"),
		lattice.Path{}.Child("family_name"),
	})
	require.NoError(t, err)

	widened, err := token.Present(moreDigests)
	require.NoError(t, err)
	bound := widened.WithKeyBinding(kbJwt)

	result, err := c.ValidateKeyBinding(bound, &holderKey.PublicKey, &KeyBindingExpectations{
		Now:              kbNow,
		AllowedClockSkew: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, KeyBindingSdHashMismatch, result)
}

func TestKeyBindingFromConfirmationClaim(t *testing.T) {
	c, token, _, holderKey := issueTestToken(t, allRedactPaths())

	payload, err := token.Payload()
	require.NoError(t, err)

	cnf, ok := payload["cnf"].(map[string]any)
	require.True(t, ok)

	holderPub, err := HolderKeyFromConfirmation(cnf)
	require.NoError(t, err)

	presented, err := token.Present(nil)
	require.NoError(t, err)

	kbJwt, err := c.CreateKeyBindingJWT(presented, kbNonce, kbAudience, kbNow-60, holderKey)
	require.NoError(t, err)

	result, err := c.ValidateKeyBinding(presented.WithKeyBinding(kbJwt), holderPub, &KeyBindingExpectations{
		Now:              kbNow,
		AllowedClockSkew: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, KeyBindingValid, result)
}
