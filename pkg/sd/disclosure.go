// Package sd implements the selective disclosure engine: disclosure
// records, salted-hash redaction for SD-JWT and SD-CWT, presentation
// construction and key binding proofs.
package sd

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash"

	"sdvc/pkg/model"

	"github.com/fxamacker/cbor/v2"
)

// MinSaltSize is the minimum salt length, 128 bits of CSPRNG output.
const MinSaltSize = 16

// Reserved claim names that can never be selectively disclosed.
const (
	claimSD        = "_sd"
	claimSDAlg     = "_sd_alg"
	arrayElementSD = "..."
)

// Disclosure is an immutable record of (salt, optional claim name,
// claim value). Object-property disclosures carry a claim name; array
// element disclosures do not. Equality is by salt.
type Disclosure struct {
	salt    []byte
	name    string
	hasName bool
	value   any

	// rawJSON and rawCBOR hold the original wire encodings of a parsed
	// disclosure. Digests are computed over these when present, since a
	// re-encoding is not guaranteed to be byte-identical.
	rawJSON string
	rawCBOR []byte
}

// NewDisclosure creates an object-property disclosure.
func NewDisclosure(salt []byte, name string, value any) (*Disclosure, error) {
	if err := validateSalt(salt); err != nil {
		return nil, err
	}
	if name == claimSD || name == arrayElementSD || name == claimSDAlg {
		return nil, fmt.Errorf("%w: %q", model.ErrReservedClaimName, name)
	}

	return &Disclosure{salt: append([]byte(nil), salt...), name: name, hasName: true, value: value}, nil
}

// NewArrayDisclosure creates an array-element disclosure.
func NewArrayDisclosure(salt []byte, value any) (*Disclosure, error) {
	if err := validateSalt(salt); err != nil {
		return nil, err
	}
	return &Disclosure{salt: append([]byte(nil), salt...), value: value}, nil
}

func validateSalt(salt []byte) error {
	if len(salt) == 0 {
		return model.ErrEmptySalt
	}
	if len(salt) < MinSaltSize {
		return fmt.Errorf("%w: %d bytes, need at least %d", model.ErrSaltTooShort, len(salt), MinSaltSize)
	}
	return nil
}

// GenerateSalt produces MinSaltSize bytes of CSPRNG output. Every
// disclosure gets a fresh salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, MinSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Salt returns a copy of the salt bytes.
func (d *Disclosure) Salt() []byte {
	return append([]byte(nil), d.salt...)
}

// ClaimName returns the claim name and whether the disclosure has one.
func (d *Disclosure) ClaimName() (string, bool) {
	return d.name, d.hasName
}

// Value returns the claim value.
func (d *Disclosure) Value() any {
	return d.value
}

// Equal compares by salt.
func (d *Disclosure) Equal(other *Disclosure) bool {
	if d == nil || other == nil {
		return d == other
	}
	return bytes.Equal(d.salt, other.salt)
}

// EncodeJSON serializes the disclosure as the base64url of the JSON
// array [salt, name, value] or [salt, value], the SD-JWT wire form.
// Parsed disclosures reproduce their original wire bytes.
func (d *Disclosure) EncodeJSON() (string, error) {
	if d.rawJSON != "" {
		return d.rawJSON, nil
	}

	saltStr := base64.RawURLEncoding.EncodeToString(d.salt)

	var arr []any
	if d.hasName {
		arr = []any{saltStr, d.name, d.value}
	} else {
		arr = []any{saltStr, d.value}
	}

	raw, err := json.Marshal(arr)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DigestJSON computes the base64url-encoded hash over the ASCII bytes
// of the encoded disclosure.
func (d *Disclosure) DigestJSON(newHash func() hash.Hash) (string, error) {
	encoded, err := d.EncodeJSON()
	if err != nil {
		return "", err
	}
	return DigestEncoded(encoded, newHash), nil
}

// DigestEncoded hashes an already-encoded disclosure string.
func DigestEncoded(encoded string, newHash func() hash.Hash) string {
	h := newHash()
	h.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// ParseDisclosureJSON reverses EncodeJSON.
func ParseDisclosureJSON(encoded string) (*Disclosure, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode disclosure: %w", err)
	}

	var arr []any
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal disclosure: %w", err)
	}

	var d *Disclosure
	switch len(arr) {
	case 2:
		salt, err := saltFromWire(arr[0])
		if err != nil {
			return nil, err
		}
		d, err = parsedDisclosure(salt, "", false, arr[1])
		if err != nil {
			return nil, err
		}
	case 3:
		salt, err := saltFromWire(arr[0])
		if err != nil {
			return nil, err
		}
		name, ok := arr[1].(string)
		if !ok {
			return nil, fmt.Errorf("disclosure claim name must be a string")
		}
		d, err = parsedDisclosure(salt, name, true, arr[2])
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid disclosure format: expected 2 or 3 elements, got %d", len(arr))
	}

	d.rawJSON = encoded
	return d, nil
}

// parsedDisclosure builds a disclosure from wire data. Foreign issuers
// may use salts shorter than this library generates, so only emptiness
// and reserved names are enforced here.
func parsedDisclosure(salt []byte, name string, hasName bool, value any) (*Disclosure, error) {
	if len(salt) == 0 {
		return nil, model.ErrEmptySalt
	}
	if hasName && (name == claimSD || name == arrayElementSD || name == claimSDAlg) {
		return nil, fmt.Errorf("%w: %q", model.ErrReservedClaimName, name)
	}
	return &Disclosure{salt: salt, name: name, hasName: hasName, value: value}, nil
}

func saltFromWire(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("disclosure salt must be a string")
	}
	salt, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode disclosure salt: %w", err)
	}
	return salt, nil
}

// EncodeCBOR serializes the disclosure as the CBOR array
// [salt, name, value] or [salt, value], the SD-CWT wire form. Parsed
// disclosures reproduce their original wire bytes.
func (d *Disclosure) EncodeCBOR() ([]byte, error) {
	if d.rawCBOR != nil {
		return d.rawCBOR, nil
	}

	var arr []any
	if d.hasName {
		arr = []any{d.salt, d.name, d.value}
	} else {
		arr = []any{d.salt, d.value}
	}
	return cbor.Marshal(arr)
}

// DigestCBOR computes the raw hash bytes over the CBOR encoding of
// the disclosure.
func (d *Disclosure) DigestCBOR(newHash func() hash.Hash) ([]byte, error) {
	encoded, err := d.EncodeCBOR()
	if err != nil {
		return nil, err
	}
	h := newHash()
	h.Write(encoded)
	return h.Sum(nil), nil
}

// ParseDisclosureCBOR reverses EncodeCBOR.
func ParseDisclosureCBOR(encoded []byte) (*Disclosure, error) {
	var arr []any
	if err := cbor.Unmarshal(encoded, &arr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal disclosure: %w", err)
	}

	var d *Disclosure
	switch len(arr) {
	case 2:
		salt, ok := arr[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("disclosure salt must be a byte string")
		}
		var err error
		d, err = parsedDisclosure(salt, "", false, arr[1])
		if err != nil {
			return nil, err
		}
	case 3:
		salt, ok := arr[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("disclosure salt must be a byte string")
		}
		name, ok := arr[1].(string)
		if !ok {
			return nil, fmt.Errorf("disclosure claim name must be a string")
		}
		var err error
		d, err = parsedDisclosure(salt, name, true, arr[2])
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid disclosure format: expected 2 or 3 elements, got %d", len(arr))
	}

	d.rawCBOR = append([]byte(nil), encoded...)
	return d, nil
}
