// Package credential models a W3C Verifiable Credential as a
// serialization-agnostic document. The proof engine only touches
// credentials through this DOM and the injected codec delegates, so no
// format-specific code leaks into the pipeline.
package credential

import (
	"encoding/json"
	"fmt"
)

// ContextV2 is the base JSON-LD context of the VC Data Model 2.0.
const ContextV2 = "https://www.w3.org/ns/credentials/v2"

// SerializeDelegate renders a credential document to its wire string.
type SerializeDelegate func(doc map[string]any) (string, error)

// DeserializeDelegate parses a wire string into a credential document.
type DeserializeDelegate func(serialized string) (map[string]any, error)

// JSONSerialize is the default JSON codec binding.
func JSONSerialize(doc map[string]any) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// JSONDeserialize is the default JSON codec binding.
func JSONDeserialize(serialized string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(serialized), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Credential wraps a credential document. The zero value is unusable;
// construct with New or FromWire.
type Credential struct {
	doc map[string]any
}

// New wraps an existing document. The document is deep-copied so the
// credential owns its state.
func New(doc map[string]any) *Credential {
	return &Credential{doc: deepCopyMap(doc)}
}

// FromWire parses a wire string through the supplied codec.
func FromWire(serialized string, deserialize DeserializeDelegate) (*Credential, error) {
	doc, err := deserialize(serialized)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize credential: %w", err)
	}
	return &Credential{doc: doc}, nil
}

// Document returns a deep copy of the underlying document.
func (c *Credential) Document() map[string]any {
	return deepCopyMap(c.doc)
}

// Context returns the @context entry, if any.
func (c *Credential) Context() (any, bool) {
	ctx, ok := c.doc["@context"]
	return ctx, ok
}

// Types returns the credential type entries normalized to a slice.
func (c *Credential) Types() []string {
	switch t := c.doc["type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Proofs returns the proof entries normalized to a slice. A single
// embedded proof object and an array of proofs are both supported.
func (c *Credential) Proofs() []map[string]any {
	switch p := c.doc["proof"].(type) {
	case map[string]any:
		return []map[string]any{deepCopyMap(p)}
	case []any:
		out := make([]map[string]any, 0, len(p))
		for _, v := range p {
			if m, ok := v.(map[string]any); ok {
				out = append(out, deepCopyMap(m))
			}
		}
		return out
	default:
		return nil
	}
}

// WithoutProof returns a copy of the credential with the proof entry removed.
func (c *Credential) WithoutProof() *Credential {
	doc := deepCopyMap(c.doc)
	delete(doc, "proof")
	return &Credential{doc: doc}
}

// WithProof returns a copy of the credential with the proof appended to
// its proof array.
func (c *Credential) WithProof(proof map[string]any) *Credential {
	doc := deepCopyMap(c.doc)

	switch existing := doc["proof"].(type) {
	case nil:
		doc["proof"] = []any{proof}
	case []any:
		doc["proof"] = append(existing, proof)
	default:
		doc["proof"] = []any{existing, proof}
	}

	return &Credential{doc: doc}
}

// Wire renders the credential through the supplied codec.
func (c *Credential) Wire(serialize SerializeDelegate) (string, error) {
	return serialize(c.doc)
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
