package sd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash"
	"sort"
	"strings"

	"sdvc/pkg/dataintegrity"
	"sdvc/pkg/logger"
	"sdvc/pkg/model"
	"sdvc/pkg/sd/lattice"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// DefaultHashName is the disclosure hash used when none is configured.
const DefaultHashName = "sha-256"

// Client issues, parses and presents SD-JWT tokens.
type Client struct {
	log *logger.Log
}

// NewClient creates an SD-JWT client.
func NewClient(log *logger.Log) *Client {
	return &Client{log: log}
}

// SdJwtToken is an issuer-signed SD-JWT envelope with its ordered
// disclosures and an optional key binding JWT. Disclosures are shared
// by reference; they are immutable.
type SdJwtToken struct {
	IssuerJwt   string
	Disclosures []*Disclosure
	KeyBinding  string
}

// IssueInput collects the issuance parameters. Timestamps are
// caller-supplied unix seconds; zero values are omitted from the payload.
type IssueInput struct {
	Issuer          string
	KeyID           string
	Claims          map[string]any
	RedactPaths     []lattice.Path
	PrivateKey      any
	HolderPublicKey any
	HashName        string
	DecoyCount      int
	IssuedAt        int64
	NotBefore       int64
	Expiry          int64
}

// Issue builds a complete SD-JWT: redacts the requested paths, signs
// the issuer payload and attaches the disclosures.
func (c *Client) Issue(in *IssueInput) (*SdJwtToken, error) {
	if in.HashName == "" {
		in.HashName = DefaultHashName
	}

	payload := deepCopyMap(in.Claims)
	payload["iss"] = in.Issuer
	payload["jti"] = uuid.NewString()
	if in.IssuedAt != 0 {
		payload["iat"] = in.IssuedAt
	}
	if in.NotBefore != 0 {
		payload["nbf"] = in.NotBefore
	}
	if in.Expiry != 0 {
		payload["exp"] = in.Expiry
	}

	if in.HolderPublicKey != nil {
		cnf, err := confirmationClaim(in.HolderPublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to build cnf claim: %w", err)
		}
		payload["cnf"] = cnf
	}

	redacted, disclosures, err := c.Redact(payload, in.RedactPaths, in.HashName, in.DecoyCount)
	if err != nil {
		return nil, err
	}

	signingMethod, algName := SigningMethodFromKey(in.PrivateKey)

	header := jwt.MapClaims{
		"typ": "dc+sd-jwt",
		"alg": algName,
	}
	if in.KeyID != "" {
		header["kid"] = in.KeyID
	}

	signed, err := Sign(header, jwt.MapClaims(redacted), signingMethod, in.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign SD-JWT: %w", err)
	}

	return &SdJwtToken{IssuerJwt: signed, Disclosures: disclosures}, nil
}

// confirmationClaim renders a holder public key as a cnf claim with an
// embedded JWK.
func confirmationClaim(holderKey any) (map[string]any, error) {
	key, err := jwk.Import(holderKey)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}

	var jwkMap map[string]any
	if err := json.Unmarshal(raw, &jwkMap); err != nil {
		return nil, err
	}

	return map[string]any{"jwk": jwkMap}, nil
}

// HolderKeyFromConfirmation extracts the holder public key from a cnf claim.
func HolderKeyFromConfirmation(cnf map[string]any) (any, error) {
	jwkMap, ok := cnf["jwk"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing jwk in cnf claim")
	}

	raw, err := json.Marshal(jwkMap)
	if err != nil {
		return nil, err
	}

	key, err := jwk.ParseKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cnf jwk: %w", err)
	}

	var pub any
	if err := jwk.Export(key, &pub); err != nil {
		return nil, fmt.Errorf("failed to export cnf jwk: %w", err)
	}
	return pub, nil
}

// Redact removes the named paths from the payload, replacing object
// properties with digests in _sd arrays and array elements with
// {"...": digest} markers. It returns the redacted payload and the
// disclosures, one per path actually present.
func (c *Client) Redact(payload map[string]any, paths []lattice.Path, hashName string, decoyCount int) (map[string]any, []*Disclosure, error) {
	if hashName == "" {
		hashName = DefaultHashName
	}
	newHash, err := dataintegrity.DefaultHashSelector(hashName)
	if err != nil {
		return nil, nil, err
	}

	doc := deepCopyMap(payload)

	// Deepest paths first so nested disclosures are folded into their
	// parents before the parents are redacted.
	sorted := make([]lattice.Path, len(paths))
	copy(sorted, paths)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	var disclosures []*Disclosure
	seen := make(map[string]struct{})

	for _, p := range sorted {
		if len(p) == 0 {
			return nil, nil, fmt.Errorf("cannot redact the payload root")
		}

		parent := p[:len(p)-1]
		last := p[len(p)-1]

		container, ok := parent.Resolve(doc)
		if !ok {
			continue
		}

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

			digest, err := d.DigestJSON(newHash)
			if err != nil {
				return nil, nil, err
			}
			if _, dup := seen[digest]; dup {
				return nil, nil, fmt.Errorf("%w: %s", model.ErrDuplicateDigest, digest)
			}
			seen[digest] = struct{}{}

			arr[last.Position()] = map[string]any{arrayElementSD: digest}
			disclosures = append(disclosures, d)
			continue
		}

		obj, ok := container.(map[string]any)
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

		digest, err := d.DigestJSON(newHash)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := seen[digest]; dup {
			return nil, nil, fmt.Errorf("%w: %s", model.ErrDuplicateDigest, digest)
		}
		seen[digest] = struct{}{}

		delete(obj, last.Name())
		appendSDDigest(obj, digest)
		disclosures = append(disclosures, d)
	}

	if decoyCount > 0 {
		if err := addDecoyDigests(doc, newHash, decoyCount); err != nil {
			return nil, nil, err
		}
	}

	doc[claimSDAlg] = hashName
	sortSDArrays(doc)

	return doc, disclosures, nil
}

func appendSDDigest(obj map[string]any, digest string) {
	arr, _ := obj[claimSD].([]any)
	obj[claimSD] = append(arr, digest)
}

// addDecoyDigests pads every _sd array with digests of random data so
// the true number of redacted claims is hidden.
func addDecoyDigests(node any, newHash func() hash.Hash, count int) error {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			if key == claimSD {
				arr, ok := value.([]any)
				if !ok {
					continue
				}
				for i := 0; i < count; i++ {
					salt, err := GenerateSalt()
					if err != nil {
						return err
					}
					arr = append(arr, DigestEncoded(base64.RawURLEncoding.EncodeToString(salt), newHash))
				}
				v[key] = arr
				continue
			}
			if err := addDecoyDigests(value, newHash, count); err != nil {
				return err
			}
		}
	case []any:
		for _, elem := range v {
			if err := addDecoyDigests(elem, newHash, count); err != nil {
				return err
			}
		}
	}
	return nil
}

// sortSDArrays orders every _sd array alphanumerically, hiding the
// original claim order.
func sortSDArrays(node any) {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			if key == claimSD {
				if arr, ok := value.([]any); ok {
					sort.Slice(arr, func(i, j int) bool {
						si, _ := arr[i].(string)
						sj, _ := arr[j].(string)
						return si < sj
					})
					v[key] = arr
				}
				continue
			}
			sortSDArrays(value)
		}
	case []any:
		for _, elem := range v {
			sortSDArrays(elem)
		}
	}
}

// Serialize renders the SD-JWT wire form:
// <issuerJwt>~<d1>~<d2>~…~[<kbJwt>] with an empty trailing token when
// no key binding is attached.
func (t *SdJwtToken) Serialize() (string, error) {
	var b strings.Builder
	b.WriteString(t.IssuerJwt)

	for _, d := range t.Disclosures {
		encoded, err := d.EncodeJSON()
		if err != nil {
			return "", err
		}
		b.WriteByte('~')
		b.WriteString(encoded)
	}

	b.WriteByte('~')
	b.WriteString(t.KeyBinding)
	return b.String(), nil
}

// ParseSdJwt parses the SD-JWT wire form.
func ParseSdJwt(wire string) (*SdJwtToken, error) {
	parts := strings.Split(wire, "~")
	if len(parts) == 0 || strings.Count(parts[0], ".") != 2 {
		return nil, model.ErrInvalidJwtStructure
	}

	token := &SdJwtToken{IssuerJwt: parts[0]}

	disclosureParts := parts[1:]
	if len(disclosureParts) > 0 {
		last := disclosureParts[len(disclosureParts)-1]
		if last != "" && strings.Count(last, ".") == 2 {
			token.KeyBinding = last
		}
		if last == "" || token.KeyBinding != "" {
			disclosureParts = disclosureParts[:len(disclosureParts)-1]
		}
	}

	for _, part := range disclosureParts {
		if part == "" {
			continue
		}
		d, err := ParseDisclosureJSON(part)
		if err != nil {
			return nil, err
		}
		token.Disclosures = append(token.Disclosures, d)
	}

	return token, nil
}

// Payload decodes the issuer JWT payload without verifying the signature.
func (t *SdJwtToken) Payload() (map[string]any, error) {
	parts := strings.Split(t.IssuerJwt, ".")
	if len(parts) != 3 {
		return nil, model.ErrInvalidJwtStructure
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode issuer payload: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issuer payload: %w", err)
	}
	return payload, nil
}

// HashName reads _sd_alg from the payload, defaulting to sha-256 per
// the SD-JWT draft.
func (t *SdJwtToken) HashName() (string, error) {
	payload, err := t.Payload()
	if err != nil {
		return "", err
	}
	if name, ok := payload[claimSDAlg].(string); ok && name != "" {
		return name, nil
	}
	return DefaultHashName, nil
}

// Present selects a subset of disclosures by digest and returns a new
// token. Any existing key binding is dropped; it must be recomputed
// over the new presentation.
func (t *SdJwtToken) Present(digests []string) (*SdJwtToken, error) {
	hashName, err := t.HashName()
	if err != nil {
		return nil, err
	}
	newHash, err := dataintegrity.DefaultHashSelector(hashName)
	if err != nil {
		return nil, err
	}

	byDigest := make(map[string]*Disclosure, len(t.Disclosures))
	for _, d := range t.Disclosures {
		digest, err := d.DigestJSON(newHash)
		if err != nil {
			return nil, err
		}
		byDigest[digest] = d
	}

	selected := make([]*Disclosure, 0, len(digests))
	for _, digest := range digests {
		d, ok := byDigest[digest]
		if !ok {
			return nil, fmt.Errorf("%w: digest %s", model.ErrDisclosureNotInToken, digest)
		}
		selected = append(selected, d)
	}

	return &SdJwtToken{IssuerJwt: t.IssuerJwt, Disclosures: selected}, nil
}

// WithKeyBinding attaches a KB-JWT to a presentation.
func (t *SdJwtToken) WithKeyBinding(kbJwt string) *SdJwtToken {
	return &SdJwtToken{IssuerJwt: t.IssuerJwt, Disclosures: t.Disclosures, KeyBinding: kbJwt}
}

// Resolve reconstructs the claims visible in this token by applying its
// disclosures to the issuer payload. A disclosure whose digest appears
// nowhere reachable fails: with DescendantRevealedBeforeAncestor when
// the digest hides inside another unrevealed disclosure, otherwise with
// DisclosureDigestUnknown.
func (t *SdJwtToken) Resolve() (map[string]any, error) {
	payload, err := t.Payload()
	if err != nil {
		return nil, err
	}

	hashName, err := t.HashName()
	if err != nil {
		return nil, err
	}
	newHash, err := dataintegrity.DefaultHashSelector(hashName)
	if err != nil {
		return nil, err
	}

	byDigest := make(map[string]*Disclosure, len(t.Disclosures))
	for _, d := range t.Disclosures {
		digest, err := d.DigestJSON(newHash)
		if err != nil {
			return nil, err
		}
		if _, dup := byDigest[digest]; dup {
			return nil, fmt.Errorf("%w: %s", model.ErrDuplicateDigest, digest)
		}
		byDigest[digest] = d
	}

	used := make(map[string]bool)
	resolved := resolveNode(payload, byDigest, used).(map[string]any)

	for digest := range byDigest {
		if used[digest] {
			continue
		}
		if digestInsideDisclosures(digest, t.Disclosures) {
			return nil, fmt.Errorf("%w: digest %s", model.ErrDescendantRevealedBeforeAncestor, digest)
		}
		return nil, fmt.Errorf("%w: digest %s", model.ErrDisclosureDigestUnknown, digest)
	}

	return resolved, nil
}

// resolveNode walks a payload node replacing digests with disclosed values.
func resolveNode(node any, byDigest map[string]*Disclosure, used map[string]bool) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			switch key {
			case claimSD:
				digests, _ := value.([]any)
				for _, raw := range digests {
					digest, _ := raw.(string)
					d, ok := byDigest[digest]
					if !ok {
						// Unmatched digests are redacted claims or decoys.
						continue
					}
					used[digest] = true
					name, _ := d.ClaimName()
					out[name] = resolveNode(d.Value(), byDigest, used)
				}
			case claimSDAlg:
				// Processing artifact, dropped from resolved claims.
			default:
				out[key] = resolveNode(value, byDigest, used)
			}
		}
		return out

	case []any:
		out := make([]any, 0, len(v))
		for _, elem := range v {
			if digest, ok := arrayRedactionDigest(elem); ok {
				d, known := byDigest[digest]
				if !known {
					// Element stays redacted.
					continue
				}
				used[digest] = true
				out = append(out, resolveNode(d.Value(), byDigest, used))
				continue
			}
			out = append(out, resolveNode(elem, byDigest, used))
		}
		return out

	default:
		return node
	}
}

// arrayRedactionDigest recognizes the {"...": digest} array marker.
func arrayRedactionDigest(elem any) (string, bool) {
	m, ok := elem.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	digest, ok := m[arrayElementSD].(string)
	return digest, ok
}

// digestInsideDisclosures reports whether a digest is referenced from
// within any supplied disclosure's value.
func digestInsideDisclosures(digest string, disclosures []*Disclosure) bool {
	for _, d := range disclosures {
		if valueReferencesDigest(d.Value(), digest) {
			return true
		}
	}
	return false
}

func valueReferencesDigest(node any, digest string) bool {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			if key == claimSD {
				if digests, ok := value.([]any); ok {
					for _, raw := range digests {
						if s, _ := raw.(string); s == digest {
							return true
						}
					}
				}
				continue
			}
			if valueReferencesDigest(value, digest) {
				return true
			}
		}
	case []any:
		for _, elem := range v {
			if s, ok := arrayRedactionDigest(elem); ok && s == digest {
				return true
			}
			if valueReferencesDigest(elem, digest) {
				return true
			}
		}
	}
	return false
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
