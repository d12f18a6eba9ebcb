package sd

import (
	"fmt"

	"sdvc/pkg/dataintegrity"
	"sdvc/pkg/model"

	"github.com/golang-jwt/jwt/v5"
)

// KeyBindingValidationResult is the single outcome of KB validation.
type KeyBindingValidationResult int

const (
	// KeyBindingValid means every check passed
	KeyBindingValid KeyBindingValidationResult = iota
	// KeyBindingAudienceMismatch means aud differs from the expected audience
	KeyBindingAudienceMismatch
	// KeyBindingNonceMismatch means nonce differs from the expected nonce
	KeyBindingNonceMismatch
	// KeyBindingMissingIat means the iat claim is absent
	KeyBindingMissingIat
	// KeyBindingIatInFuture means iat exceeds now plus the allowed skew
	KeyBindingIatInFuture
	// KeyBindingSdHashMismatch means sd_hash does not match the presentation
	KeyBindingSdHashMismatch
)

func (r KeyBindingValidationResult) String() string {
	switch r {
	case KeyBindingValid:
		return "Valid"
	case KeyBindingAudienceMismatch:
		return "AudienceMismatch"
	case KeyBindingNonceMismatch:
		return "NonceMismatch"
	case KeyBindingMissingIat:
		return "MissingIat"
	case KeyBindingIatInFuture:
		return "IatInFuture"
	case KeyBindingSdHashMismatch:
		return "SdHashMismatch"
	default:
		return "unknown"
	}
}

// CreateKeyBindingJWT signs a KB-JWT over the current presentation. The
// sd_hash covers the ASCII bytes of the presentation string: issuer JWT
// and every selected disclosure, each followed by ~, without a KB-JWT.
// The iat is caller-supplied; the engine never reads the clock.
func (c *Client) CreateKeyBindingJWT(token *SdJwtToken, nonce, audience string, issuedAt int64, holderPrivateKey any) (string, error) {
	hashName, err := token.HashName()
	if err != nil {
		return "", err
	}

	sdHash, err := presentationHash(token, hashName)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"nonce":   nonce,
		"aud":     audience,
		"iat":     issuedAt,
		"sd_hash": sdHash,
	}

	signingMethod, algName := SigningMethodFromKey(holderPrivateKey)

	header := jwt.MapClaims{
		"typ": "kb+jwt",
		"alg": algName,
	}

	signed, err := Sign(header, claims, signingMethod, holderPrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign KB-JWT: %w", err)
	}
	return signed, nil
}

// presentationHash computes the base64url hash over the presentation
// wire form without any key binding.
func presentationHash(token *SdJwtToken, hashName string) (string, error) {
	newHash, err := dataintegrity.DefaultHashSelector(hashName)
	if err != nil {
		return "", err
	}

	bare := &SdJwtToken{IssuerJwt: token.IssuerJwt, Disclosures: token.Disclosures}
	wire, err := bare.Serialize()
	if err != nil {
		return "", err
	}

	return DigestEncoded(wire, newHash), nil
}

// KeyBindingExpectations parameterizes KB validation. Audience and
// nonce are only checked when required; now and skew come from the
// caller.
type KeyBindingExpectations struct {
	Audience         string
	RequireAudience  bool
	Nonce            string
	RequireNonce     bool
	Now              int64
	AllowedClockSkew int64
}

// ValidateKeyBinding checks a presentation's KB-JWT in the normative
// order: structure, audience, nonce, iat presence, iat freshness, and
// finally the sd_hash over the recomputed presentation. Structural
// failures are errors; everything else is a result variant.
func (c *Client) ValidateKeyBinding(token *SdJwtToken, holderPublicKey any, expect *KeyBindingExpectations) (KeyBindingValidationResult, error) {
	if token.KeyBinding == "" {
		return KeyBindingValid, model.ErrInvalidJwtStructure
	}

	kbToken, err := VerifyJWT(token.KeyBinding, holderPublicKey)
	if err != nil {
		return KeyBindingValid, err
	}

	if typ, _ := kbToken.Header["typ"].(string); typ != "kb+jwt" {
		return KeyBindingValid, fmt.Errorf("%w: typ must be kb+jwt", model.ErrInvalidJwtStructure)
	}

	claims, ok := kbToken.Claims.(jwt.MapClaims)
	if !ok {
		return KeyBindingValid, model.ErrInvalidJwtStructure
	}

	if expect.RequireAudience {
		aud, _ := claims["aud"].(string)
		if aud != expect.Audience {
			return KeyBindingAudienceMismatch, nil
		}
	}

	if expect.RequireNonce {
		nonce, _ := claims["nonce"].(string)
		if nonce != expect.Nonce {
			return KeyBindingNonceMismatch, nil
		}
	}

	iatRaw, ok := claims["iat"]
	if !ok {
		return KeyBindingMissingIat, nil
	}
	iat, ok := numericClaim(iatRaw)
	if !ok {
		return KeyBindingMissingIat, nil
	}

	if iat > expect.Now+expect.AllowedClockSkew {
		return KeyBindingIatInFuture, nil
	}

	hashName, err := token.HashName()
	if err != nil {
		return KeyBindingValid, err
	}
	expectedHash, err := presentationHash(token, hashName)
	if err != nil {
		return KeyBindingValid, err
	}

	sdHash, _ := claims["sd_hash"].(string)
	if sdHash != expectedHash {
		return KeyBindingSdHashMismatch, nil
	}

	return KeyBindingValid, nil
}

func numericClaim(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
