package dataintegrity

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashSelector resolves a hash algorithm name to a constructor.
type HashSelector func(name string) (func() hash.Hash, error)

// NormalizeHashName strips hyphens and upper-cases so wire names like
// "SHA-256" and runtime names like "SHA256" resolve identically.
// TODO: replace the name normalization with a registered-algorithm table.
func NormalizeHashName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", ""))
}

// DefaultHashSelector covers the SHA-2 members used by the built-in
// cryptosuites plus the SHA-3 family for consumer-defined suites.
func DefaultHashSelector(name string) (func() hash.Hash, error) {
	switch NormalizeHashName(name) {
	case "SHA256":
		return sha256.New, nil
	case "SHA384":
		return sha512.New384, nil
	case "SHA512":
		return sha512.New, nil
	case "SHA3256":
		return sha3.New256, nil
	case "SHA3512":
		return sha3.New512, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", name)
	}
}
