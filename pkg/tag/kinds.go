// Package tag implements the normalized context tags that make opaque
// key and signature buffers meaningful. Each context kind is a small
// integer domain with pre-registered members, open for extension with
// custom codes at process initialization.
package tag

import (
	"fmt"

	"sdvc/pkg/model"
)

// Kind identifies a context-kind domain within a Tag.
type Kind string

// The recognized context kinds.
const (
	KindAlgorithm         Kind = "algorithm"
	KindPurpose           Kind = "purpose"
	KindEncodingScheme    Kind = "encoding-scheme"
	KindMaterialSemantics Kind = "material-semantics"
)

// CustomCodeFloor is the first code available to user-defined members.
// Codes below it are reserved for the library.
const CustomCodeFloor = 1000

// Algorithm codes
const (
	AlgorithmP256 = iota + 1
	AlgorithmP384
	AlgorithmP521
	AlgorithmEd25519
	AlgorithmX25519
	AlgorithmBls12381G1
	AlgorithmBls12381G2
	AlgorithmBls12381G1G2
	AlgorithmRsa2048
	AlgorithmRsa4096
	AlgorithmSecp256k1
)

// Purpose codes
const (
	PurposeSigning = iota + 1
	PurposeVerification
	PurposeExchange
	PurposeWrapped
	PurposeSignature
	PurposeEncryption
	PurposeNonce
	PurposeAuth
	PurposeDigest
	PurposeTransport
	PurposeData
)

// EncodingScheme codes
const (
	EncodingDer = iota + 1
	EncodingPem
	EncodingEcCompressed
	EncodingEcUncompressed
	EncodingPkcs1
	EncodingPkcs8
	EncodingRaw
)

// MaterialSemantics codes
const (
	MaterialDirect = iota + 1
	MaterialTpmHandle
)

// kindRegistry maps codes to names for one context kind. Registration is
// append-only and intended for process initialization; the registry
// freezes on first lookup.
type kindRegistry struct {
	kind   Kind
	names  map[int]string
	frozen bool
}

func newKindRegistry(kind Kind, names map[int]string) *kindRegistry {
	return &kindRegistry{kind: kind, names: names}
}

func (r *kindRegistry) register(code int, name string) error {
	if r.frozen {
		return fmt.Errorf("%w: %s registry is frozen", model.ErrRegistryFrozen, r.kind)
	}
	if code < CustomCodeFloor {
		return fmt.Errorf("custom %s code %d must be >= %d", r.kind, code, CustomCodeFloor)
	}
	if _, ok := r.names[code]; ok {
		return fmt.Errorf("%w: %s code %d", model.ErrDuplicateRegistration, r.kind, code)
	}
	r.names[code] = name
	return nil
}

func (r *kindRegistry) lookup(code int) (string, bool) {
	r.frozen = true
	name, ok := r.names[code]
	return name, ok
}

var registries = map[Kind]*kindRegistry{
	KindAlgorithm: newKindRegistry(KindAlgorithm, map[int]string{
		AlgorithmP256:         "P256",
		AlgorithmP384:         "P384",
		AlgorithmP521:         "P521",
		AlgorithmEd25519:      "Ed25519",
		AlgorithmX25519:       "X25519",
		AlgorithmBls12381G1:   "BLS12-381-G1",
		AlgorithmBls12381G2:   "BLS12-381-G2",
		AlgorithmBls12381G1G2: "BLS12-381-G1G2",
		AlgorithmRsa2048:      "RSA-2048",
		AlgorithmRsa4096:      "RSA-4096",
		AlgorithmSecp256k1:    "Secp256k1",
	}),
	KindPurpose: newKindRegistry(KindPurpose, map[int]string{
		PurposeSigning:      "Signing",
		PurposeVerification: "Verification",
		PurposeExchange:     "Exchange",
		PurposeWrapped:      "Wrapped",
		PurposeSignature:    "Signature",
		PurposeEncryption:   "Encryption",
		PurposeNonce:        "Nonce",
		PurposeAuth:         "Auth",
		PurposeDigest:       "Digest",
		PurposeTransport:    "Transport",
		PurposeData:         "Data",
	}),
	KindEncodingScheme: newKindRegistry(KindEncodingScheme, map[int]string{
		EncodingDer:            "Der",
		EncodingPem:            "Pem",
		EncodingEcCompressed:   "EcCompressed",
		EncodingEcUncompressed: "EcUncompressed",
		EncodingPkcs1:          "Pkcs1",
		EncodingPkcs8:          "Pkcs8",
		EncodingRaw:            "Raw",
	}),
	KindMaterialSemantics: newKindRegistry(KindMaterialSemantics, map[int]string{
		MaterialDirect:    "Direct",
		MaterialTpmHandle: "TpmHandle",
	}),
}

// Register adds a custom member to a context kind. Not safe for
// concurrent use; call during process initialization only. Fails on
// duplicate codes, codes below CustomCodeFloor, and after the kind
// has been used for lookups.
func Register(kind Kind, code int, name string) error {
	r, ok := registries[kind]
	if !ok {
		return fmt.Errorf("unknown context kind: %s", kind)
	}
	return r.register(code, name)
}

// Name resolves a code within a kind to its registered name.
func Name(kind Kind, code int) (string, bool) {
	r, ok := registries[kind]
	if !ok {
		return "", false
	}
	return r.lookup(code)
}

// IsRegistered reports whether a code is a member of a kind.
func IsRegistered(kind Kind, code int) bool {
	_, ok := Name(kind, code)
	return ok
}
