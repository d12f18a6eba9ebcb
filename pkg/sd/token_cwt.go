package sd

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"hash"
	"math/big"
	"sort"

	"sdvc/pkg/dataintegrity"
	"sdvc/pkg/model"
	"sdvc/pkg/sd/lattice"

	"github.com/fxamacker/cbor/v2"
)

// COSE constants (RFC 9052) and the SD-CWT redaction markers.
const (
	coseSign1Tag  = 18
	coseHeaderAlg = 1  // Algorithm
	coseHeaderKid = 4  // Key ID
	coseHeaderTyp = 16 // Type (typ)

	// headerSdClaims carries the CBOR-encoded disclosures in the
	// unprotected header.
	headerSdClaims = 17
	// headerSdAlg names the disclosure hash in the protected header.
	headerSdAlg = 18
	// headerSdKbt carries the tag-61 key binding CWT in the
	// unprotected header.
	headerSdKbt = 19

	// tagRedactedElement wraps the digest of a redacted array element.
	tagRedactedElement = 60
	// tagKeyBinding wraps the KB-CWT in the unprotected header.
	tagKeyBinding = 61
)

// simpleRedactedKeys is the map key (CBOR simple value 59) whose value
// lists the digests of redacted map entries.
var simpleRedactedKeys = cbor.SimpleValue(59)

// COSE hash algorithm identifiers for sd_alg.
const (
	CoseAlgSHA256 = -16
	CoseAlgSHA384 = -43
	CoseAlgSHA512 = -44
)

func coseAlgForHash(hashName string) (int, error) {
	switch dataintegrity.NormalizeHashName(hashName) {
	case "SHA256":
		return CoseAlgSHA256, nil
	case "SHA384":
		return CoseAlgSHA384, nil
	case "SHA512":
		return CoseAlgSHA512, nil
	default:
		return 0, fmt.Errorf("unsupported hash algorithm: %s", hashName)
	}
}

func hashNameForCoseAlg(alg int64) (string, error) {
	switch alg {
	case CoseAlgSHA256:
		return "sha-256", nil
	case CoseAlgSHA384:
		return "sha-384", nil
	case CoseAlgSHA512:
		return "sha-512", nil
	default:
		return "", fmt.Errorf("unsupported sd_alg identifier: %d", alg)
	}
}

// SdCwtToken is an issuer-signed COSE_Sign1 envelope with its ordered
// disclosures and an optional key binding CWT.
type SdCwtToken struct {
	Envelope    []byte
	Disclosures []*Disclosure
	KeyBinding  []byte

	hashName string
}

// IssueCwtInput collects SD-CWT issuance parameters.
type IssueCwtInput struct {
	Issuer      string
	KeyID       string
	Claims      map[string]any
	RedactPaths []lattice.Path
	PrivateKey  *ecdsa.PrivateKey
	HashName    string
	IssuedAt    int64
	Expiry      int64
}

// IssueCwt builds a complete SD-CWT: redacts the requested paths into
// CBOR markers, signs the COSE_Sign1 envelope and attaches the
// disclosures in the unprotected header.
func (c *Client) IssueCwt(in *IssueCwtInput) (*SdCwtToken, error) {
	if in.HashName == "" {
		in.HashName = DefaultHashName
	}
	newHash, err := dataintegrity.DefaultHashSelector(in.HashName)
	if err != nil {
		return nil, err
	}

	coseAlg, err := coseAlgForHash(in.HashName)
	if err != nil {
		return nil, err
	}

	payload := deepCopyMap(in.Claims)
	payload["iss"] = in.Issuer
	if in.IssuedAt != 0 {
		payload["iat"] = in.IssuedAt
	}
	if in.Expiry != 0 {
		payload["exp"] = in.Expiry
	}

	redacted, disclosures, err := c.RedactCBOR(payload, in.RedactPaths, newHash)
	if err != nil {
		return nil, err
	}

	payloadBytes, err := cbor.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CWT payload: %w", err)
	}

	protected := map[int]any{
		coseHeaderAlg: -7, // ES256
		coseHeaderTyp: "application/sd-cwt",
		headerSdAlg:   coseAlg,
	}
	if in.KeyID != "" {
		protected[coseHeaderKid] = in.KeyID
	}

	protectedBytes, err := cbor.Marshal(protected)
	if err != nil {
		return nil, fmt.Errorf("failed to encode protected header: %w", err)
	}

	signature, err := signCoseSign1(protectedBytes, payloadBytes, in.PrivateKey)
	if err != nil {
		return nil, err
	}

	token := &SdCwtToken{Disclosures: disclosures, hashName: in.HashName}

	unprotected, err := token.unprotectedHeader()
	if err != nil {
		return nil, err
	}

	envelope, err := cbor.Marshal(cbor.Tag{
		Number:  coseSign1Tag,
		Content: []any{protectedBytes, unprotected, payloadBytes, signature},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode COSE_Sign1: %w", err)
	}

	token.Envelope = envelope
	return token, nil
}

// unprotectedHeader builds the sd_claims entry (key 17) and, when
// present, the tag-61 key binding.
func (t *SdCwtToken) unprotectedHeader() (map[int]any, error) {
	encoded := make([]any, 0, len(t.Disclosures))
	for _, d := range t.Disclosures {
		raw, err := d.EncodeCBOR()
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, raw)
	}

	header := map[int]any{
		headerSdClaims: encoded,
	}
	if len(t.KeyBinding) > 0 {
		header[headerSdKbt] = cbor.Tag{Number: tagKeyBinding, Content: t.KeyBinding}
	}
	return header, nil
}

// RedactCBOR removes the named paths from the payload, adding map-entry
// digests to the array under simple value 59 and replacing array
// elements with tag 60 wrapping the digest bytes.
func (c *Client) RedactCBOR(payload map[string]any, paths []lattice.Path, newHash func() hash.Hash) (map[any]any, []*Disclosure, error) {
	doc := toCborMap(deepCopyMap(payload))

	sorted := make([]lattice.Path, len(paths))
	copy(sorted, paths)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	var disclosures []*Disclosure

	for _, p := range sorted {
		if len(p) == 0 {
			return nil, nil, fmt.Errorf("cannot redact the payload root")
		}

		container, ok := resolveCbor(doc, p[:len(p)-1])
		if !ok {
			continue
		}
		last := p[len(p)-1]

		salt, err := GenerateSalt()
		if err != nil {
			return nil, nil, err
		}

		if last.IsIndex() {
			arr, ok := container.([]any)
			if !ok || last.Position() >= len(arr) {
				continue
			}

			d, err := NewArrayDisclosure(salt, arr[last.Position()])
			if err != nil {
				return nil, nil, err
			}
			digest, err := d.DigestCBOR(newHash)
			if err != nil {
				return nil, nil, err
			}

			arr[last.Position()] = cbor.Tag{Number: tagRedactedElement, Content: digest}
			disclosures = append(disclosures, d)
			continue
		}

		obj, ok := container.(map[any]any)
		if !ok {
			continue
		}
		value, ok := obj[last.Name()]
		if !ok {
			continue
		}

		d, err := NewDisclosure(salt, last.Name(), value)
		if err != nil {
			return nil, nil, err
		}
		digest, err := d.DigestCBOR(newHash)
		if err != nil {
			return nil, nil, err
		}

		delete(obj, last.Name())
		redactedKeys, _ := obj[simpleRedactedKeys].([]any)
		obj[simpleRedactedKeys] = append(redactedKeys, digest)
		disclosures = append(disclosures, d)
	}

	return doc, disclosures, nil
}

// Serialize renders the token: the COSE_Sign1 envelope already carries
// the disclosures and key binding in its unprotected header, so the
// wire form is the envelope bytes with the header rebuilt.
func (t *SdCwtToken) Serialize() ([]byte, error) {
	protected, _, payloadBytes, signature, err := splitCoseSign1(t.Envelope)
	if err != nil {
		return nil, err
	}

	unprotected, err := t.unprotectedHeader()
	if err != nil {
		return nil, err
	}

	return cbor.Marshal(cbor.Tag{
		Number:  coseSign1Tag,
		Content: []any{protected, unprotected, payloadBytes, signature},
	})
}

// ParseSdCwt decodes SD-CWT wire bytes into the token shape, reading
// disclosures from unprotected header key 17 and the hash algorithm
// from protected header key 18.
func ParseSdCwt(wire []byte) (*SdCwtToken, error) {
	protected, unprotected, _, _, err := splitCoseSign1(wire)
	if err != nil {
		return nil, err
	}

	var protectedMap map[int64]any
	if err := cbor.Unmarshal(protected, &protectedMap); err != nil {
		return nil, fmt.Errorf("failed to decode protected header: %w", err)
	}

	hashName := DefaultHashName
	if algRaw, ok := protectedMap[headerSdAlg]; ok {
		alg, ok := toInt64(algRaw)
		if !ok {
			return nil, fmt.Errorf("invalid sd_alg header")
		}
		hashName, err = hashNameForCoseAlg(alg)
		if err != nil {
			return nil, err
		}
	}

	token := &SdCwtToken{Envelope: wire, hashName: hashName}

	if rawClaims, ok := unprotected[headerSdClaims]; ok {
		list, ok := rawClaims.([]any)
		if !ok {
			return nil, fmt.Errorf("sd_claims must be an array")
		}
		for _, raw := range list {
			encoded, ok := raw.([]byte)
			if !ok {
				return nil, fmt.Errorf("sd_claims entries must be byte strings")
			}
			d, err := ParseDisclosureCBOR(encoded)
			if err != nil {
				return nil, err
			}
			token.Disclosures = append(token.Disclosures, d)
		}
	}

	if rawKb, ok := unprotected[headerSdKbt]; ok {
		if tagged, ok := rawKb.(cbor.Tag); ok && tagged.Number == tagKeyBinding {
			if kb, ok := tagged.Content.([]byte); ok {
				token.KeyBinding = kb
			}
		}
	}

	return token, nil
}

// HashName returns the disclosure hash negotiated in the protected header.
func (t *SdCwtToken) HashName() string {
	if t.hashName == "" {
		return DefaultHashName
	}
	return t.hashName
}

// Payload decodes the CWT claims without verifying the signature.
func (t *SdCwtToken) Payload() (map[any]any, error) {
	_, _, payloadBytes, _, err := splitCoseSign1(t.Envelope)
	if err != nil {
		return nil, err
	}

	var payload map[any]any
	if err := cbor.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode CWT payload: %w", err)
	}
	return payload, nil
}

// Present selects a subset of disclosures and returns a new token with
// any key binding dropped.
func (t *SdCwtToken) Present(selected []*Disclosure) (*SdCwtToken, error) {
	newHash, err := dataintegrity.DefaultHashSelector(t.HashName())
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(t.Disclosures))
	for _, d := range t.Disclosures {
		digest, err := d.DigestCBOR(newHash)
		if err != nil {
			return nil, err
		}
		known[string(digest)] = struct{}{}
	}

	for _, d := range selected {
		digest, err := d.DigestCBOR(newHash)
		if err != nil {
			return nil, err
		}
		if _, ok := known[string(digest)]; !ok {
			return nil, model.ErrDisclosureNotInToken
		}
	}

	return &SdCwtToken{Envelope: t.Envelope, Disclosures: selected, hashName: t.hashName}, nil
}

// IsRedactedKeysEntry recognizes the simple value 59 map key.
func IsRedactedKeysEntry(key any) bool {
	sv, ok := key.(cbor.SimpleValue)
	return ok && sv == simpleRedactedKeys
}

// RedactedElementDigest recognizes a tag-60 redacted array element and
// returns the digest bytes it wraps.
func RedactedElementDigest(elem any) ([]byte, bool) {
	tagged, ok := elem.(cbor.Tag)
	if !ok || tagged.Number != tagRedactedElement {
		return nil, false
	}
	digest, ok := tagged.Content.([]byte)
	return digest, ok
}

// VerifyCwt checks the COSE_Sign1 signature against an ECDSA public key.
func (t *SdCwtToken) VerifyCwt(pub *ecdsa.PublicKey) error {
	protected, _, payloadBytes, signature, err := splitCoseSign1(t.Envelope)
	if err != nil {
		return err
	}

	if !verifyCoseSign1(protected, payloadBytes, signature, pub) {
		return model.ErrSignatureInvalid
	}
	return nil
}

// splitCoseSign1 decodes a tag-18 COSE_Sign1 into its four fields.
func splitCoseSign1(wire []byte) (protected []byte, unprotected map[int64]any, payload []byte, signature []byte, err error) {
	var envelope cbor.Tag
	if err := cbor.Unmarshal(wire, &envelope); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to decode COSE_Sign1: %w", err)
	}
	if envelope.Number != coseSign1Tag {
		return nil, nil, nil, nil, fmt.Errorf("invalid COSE tag: expected 18, got %d", envelope.Number)
	}

	fields, ok := envelope.Content.([]any)
	if !ok || len(fields) != 4 {
		return nil, nil, nil, nil, fmt.Errorf("invalid COSE_Sign1 structure")
	}

	protected, ok = fields[0].([]byte)
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("invalid protected header in COSE_Sign1")
	}

	unprotected = make(map[int64]any)
	if rawHeader, ok := fields[1].(map[any]any); ok {
		for k, v := range rawHeader {
			if key, ok := toInt64(k); ok {
				unprotected[key] = v
			}
		}
	}

	payload, ok = fields[2].([]byte)
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("invalid payload in COSE_Sign1")
	}

	signature, ok = fields[3].([]byte)
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("invalid signature in COSE_Sign1")
	}

	return protected, unprotected, payload, signature, nil
}

// signCoseSign1 signs the Sig_structure of RFC 9052 section 4.4 with
// ES256.
func signCoseSign1(protectedBytes, payloadBytes []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sigStructure := []any{
		"Signature1",
		protectedBytes,
		[]byte{},
		payloadBytes,
	}

	toSign, err := cbor.Marshal(sigStructure)
	if err != nil {
		return nil, fmt.Errorf("failed to encode Sig_structure: %w", err)
	}

	digest := sha256Sum(toSign)

	sigR, sigS, err := ecdsa.Sign(rand.Reader, key, digest)
	if err != nil {
		return nil, fmt.Errorf("ECDSA signing failed: %w", err)
	}

	keyBytes := (key.Curve.Params().BitSize + 7) / 8
	signature := make([]byte, 2*keyBytes)
	rBytes := sigR.Bytes()
	sBytes := sigS.Bytes()
	copy(signature[keyBytes-len(rBytes):keyBytes], rBytes)
	copy(signature[2*keyBytes-len(sBytes):], sBytes)

	return signature, nil
}

func verifyCoseSign1(protectedBytes, payloadBytes, signature []byte, pub *ecdsa.PublicKey) bool {
	sigStructure := []any{
		"Signature1",
		protectedBytes,
		[]byte{},
		payloadBytes,
	}

	toVerify, err := cbor.Marshal(sigStructure)
	if err != nil {
		return false
	}

	keyBytes := (pub.Curve.Params().BitSize + 7) / 8
	if len(signature) != 2*keyBytes {
		return false
	}

	sigR := new(big.Int).SetBytes(signature[:keyBytes])
	sigS := new(big.Int).SetBytes(signature[keyBytes:])

	return ecdsa.Verify(pub, sha256Sum(toVerify), sigR, sigS)
}

func sha256Sum(data []byte) []byte {
	digest := sha256.Sum256(data)
	return digest[:]
}

// toCborMap converts a string-keyed claims document into the mixed-key
// map shape CBOR redaction markers need.
func toCborMap(in map[string]any) map[any]any {
	out := make(map[any]any, len(in))
	for k, v := range in {
		out[k] = toCborValue(v)
	}
	return out
}

func toCborValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return toCborMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toCborValue(e)
		}
		return out
	default:
		return v
	}
}

// resolveCbor walks a mixed-key CBOR document along a path.
func resolveCbor(doc any, p lattice.Path) (any, bool) {
	current := doc
	for _, s := range p {
		switch v := current.(type) {
		case map[any]any:
			if s.IsIndex() {
				return nil, false
			}
			next, ok := v[s.Name()]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			if !s.IsIndex() || s.Position() >= len(v) {
				return nil, false
			}
			current = v[s.Position()]
		default:
			return nil, false
		}
	}
	return current, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
