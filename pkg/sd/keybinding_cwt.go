package sd

import (
	"crypto/ecdsa"
	"fmt"

	"sdvc/pkg/dataintegrity"
	"sdvc/pkg/model"

	"github.com/fxamacker/cbor/v2"
)

// CWT claim keys used by the key binding token (RFC 8392 plus the
// SD-CWT additions).
const (
	cwtClaimAud    = 3
	cwtClaimIat    = 6
	cwtClaimCnonce = 39
	cwtClaimSdHash = 18
)

// CreateKeyBindingCWT signs a KB-CWT over the current SD-CWT
// presentation. The sd_hash covers the serialized presentation bytes
// without any key binding.
func (c *Client) CreateKeyBindingCWT(token *SdCwtToken, nonce, audience string, issuedAt int64, holderPrivateKey *ecdsa.PrivateKey) ([]byte, error) {
	sdHash, err := presentationHashCwt(token)
	if err != nil {
		return nil, err
	}

	claims := map[int]any{
		cwtClaimAud:    audience,
		cwtClaimIat:    issuedAt,
		cwtClaimCnonce: nonce,
		cwtClaimSdHash: sdHash,
	}

	payloadBytes, err := cbor.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to encode KB-CWT claims: %w", err)
	}

	protected := map[int]any{
		coseHeaderAlg: -7, // ES256
		coseHeaderTyp: "application/kb+cwt",
	}
	protectedBytes, err := cbor.Marshal(protected)
	if err != nil {
		return nil, fmt.Errorf("failed to encode KB-CWT header: %w", err)
	}

	signature, err := signCoseSign1(protectedBytes, payloadBytes, holderPrivateKey)
	if err != nil {
		return nil, err
	}

	return cbor.Marshal(cbor.Tag{
		Number:  coseSign1Tag,
		Content: []any{protectedBytes, map[int]any{}, payloadBytes, signature},
	})
}

// presentationHashCwt hashes the serialized presentation without key binding.
func presentationHashCwt(token *SdCwtToken) ([]byte, error) {
	newHash, err := dataintegrity.DefaultHashSelector(token.HashName())
	if err != nil {
		return nil, err
	}

	bare := &SdCwtToken{Envelope: token.Envelope, Disclosures: token.Disclosures, hashName: token.hashName}
	wire, err := bare.Serialize()
	if err != nil {
		return nil, err
	}

	h := newHash()
	h.Write(wire)
	return h.Sum(nil), nil
}

// ValidateKeyBindingCWT checks a presentation's KB-CWT in the same
// normative order as the JWT variant: structure, audience, nonce, iat
// presence, iat freshness, sd_hash.
func (c *Client) ValidateKeyBindingCWT(token *SdCwtToken, holderPublicKey *ecdsa.PublicKey, expect *KeyBindingExpectations) (KeyBindingValidationResult, error) {
	if len(token.KeyBinding) == 0 {
		return KeyBindingValid, model.ErrInvalidJwtStructure
	}

	protected, _, payloadBytes, signature, err := splitCoseSign1(token.KeyBinding)
	if err != nil {
		return KeyBindingValid, err
	}

	if !verifyCoseSign1(protected, payloadBytes, signature, holderPublicKey) {
		return KeyBindingValid, model.ErrSignatureInvalid
	}

	var claims map[int64]any
	if err := cbor.Unmarshal(payloadBytes, &claims); err != nil {
		return KeyBindingValid, fmt.Errorf("failed to decode KB-CWT claims: %w", err)
	}

	if expect.RequireAudience {
		aud, _ := claims[cwtClaimAud].(string)
		if aud != expect.Audience {
			return KeyBindingAudienceMismatch, nil
		}
	}

	if expect.RequireNonce {
		nonce, _ := claims[cwtClaimCnonce].(string)
		if nonce != expect.Nonce {
			return KeyBindingNonceMismatch, nil
		}
	}

	iatRaw, ok := claims[cwtClaimIat]
	if !ok {
		return KeyBindingMissingIat, nil
	}
	iat, ok := toInt64(iatRaw)
	if !ok {
		return KeyBindingMissingIat, nil
	}

	if iat > expect.Now+expect.AllowedClockSkew {
		return KeyBindingIatInFuture, nil
	}

	expectedHash, err := presentationHashCwt(token)
	if err != nil {
		return KeyBindingValid, err
	}

	sdHash, _ := claims[cwtClaimSdHash].([]byte)
	if string(sdHash) != string(expectedHash) {
		return KeyBindingSdHashMismatch, nil
	}

	return KeyBindingValid, nil
}
