// Package dataintegrity implements the W3C Data Integrity proof engine:
// a canonicalize-hash-sign pipeline over credentials and its verifying
// counterpart. The engine is strictly serialization-agnostic; codecs,
// canonicalizers, encoders and hash selection are all injected.
package dataintegrity

import (
	"fmt"

	"sdvc/pkg/canon"
	"sdvc/pkg/model"
	"sdvc/pkg/tag"
)

// Cryptosuite names defined by the EdDSA cryptosuite specification.
const (
	SuiteEddsaRdfc2022 = "eddsa-rdfc-2022"
	SuiteEddsaJcs2022  = "eddsa-jcs-2022"
)

// ProofTypeDataIntegrity is the proof type shared by all suites.
const ProofTypeDataIntegrity = "DataIntegrityProof"

// Proof purposes from the VC Data Integrity specification.
const (
	PurposeAssertionMethod      = "assertionMethod"
	PurposeAuthentication       = "authentication"
	PurposeCapabilityInvocation = "capabilityInvocation"
	PurposeCapabilityDelegation = "capabilityDelegation"
	PurposeKeyAgreement         = "keyAgreement"
)

// CryptosuiteInfo is the immutable descriptor of a cryptosuite:
// canonicalization algorithm, hash, signature algorithm, required
// JSON-LD contexts and a verification-method compatibility predicate.
// Consumers may register additional suites at startup.
type CryptosuiteInfo struct {
	Name               string
	Canonicalization   canon.Algorithm
	Hash               string
	SignatureAlgorithm int
	RequiredContexts   []string
	CompatibleMethod   func(methodType string) bool
}

func multikeyCompatible(methodType string) bool {
	return methodType == "Multikey" || methodType == "Ed25519VerificationKey2020"
}

var builtinSuites = map[string]*CryptosuiteInfo{
	SuiteEddsaRdfc2022: {
		Name:               SuiteEddsaRdfc2022,
		Canonicalization:   canon.Rdfc10,
		Hash:               "SHA-256",
		SignatureAlgorithm: tag.AlgorithmEd25519,
		RequiredContexts:   []string{"https://www.w3.org/ns/credentials/v2"},
		CompatibleMethod:   multikeyCompatible,
	},
	SuiteEddsaJcs2022: {
		Name:               SuiteEddsaJcs2022,
		Canonicalization:   canon.Jcs,
		Hash:               "SHA-256",
		SignatureAlgorithm: tag.AlgorithmEd25519,
		RequiredContexts:   []string{"https://www.w3.org/ns/credentials/v2"},
		CompatibleMethod:   multikeyCompatible,
	},
}

// SuiteCatalog resolves cryptosuite names to descriptors. The catalog
// is append-only at startup and read-only afterwards.
type SuiteCatalog struct {
	suites map[string]*CryptosuiteInfo
	frozen bool
}

// NewSuiteCatalog creates a catalog seeded with the built-in suites.
func NewSuiteCatalog() *SuiteCatalog {
	suites := make(map[string]*CryptosuiteInfo, len(builtinSuites))
	for name, info := range builtinSuites {
		suites[name] = info
	}
	return &SuiteCatalog{suites: suites}
}

// Register adds a consumer-defined suite. Not safe for concurrent use;
// call during process initialization only.
func (c *SuiteCatalog) Register(info *CryptosuiteInfo) error {
	if c.frozen {
		return model.ErrRegistryFrozen
	}
	if _, ok := c.suites[info.Name]; ok {
		return fmt.Errorf("%w: cryptosuite %s", model.ErrDuplicateRegistration, info.Name)
	}
	c.suites[info.Name] = info
	return nil
}

// Lookup resolves a suite by name and freezes the catalog.
func (c *SuiteCatalog) Lookup(name string) (*CryptosuiteInfo, bool) {
	c.frozen = true
	info, ok := c.suites[name]
	return info, ok
}
