// Package multiformat implements the multicodec and multibase layers
// used for key identifiers and proof values. A multicodec value is a
// varint code prefixed to raw key bytes; multibase wraps the result in
// a self-describing character-set tag.
package multiformat

import (
	"encoding/binary"
	"fmt"

	"sdvc/pkg/model"
	"sdvc/pkg/tag"
)

// Multicodec varint codes from the multiformats registry.
const (
	CodecSecp256k1Pub    = 0xe7
	CodecBls12381G1Pub   = 0xea
	CodecBls12381G2Pub   = 0xeb
	CodecX25519Pub       = 0xec
	CodecEd25519Pub      = 0xed
	CodecBls12381G1G2Pub = 0xee
	CodecP256Pub         = 0x1200
	CodecP384Pub         = 0x1201
	CodecP521Pub         = 0x1202
	CodecRsaPub          = 0x1205
	CodecEd25519Priv     = 0x1300
)

// codecAlgorithms maps each known codec to its Algorithm tag code and
// whether the material is private.
var codecAlgorithms = map[uint64]struct {
	algorithm int
	private   bool
}{
	CodecSecp256k1Pub:    {tag.AlgorithmSecp256k1, false},
	CodecBls12381G1Pub:   {tag.AlgorithmBls12381G1, false},
	CodecBls12381G2Pub:   {tag.AlgorithmBls12381G2, false},
	CodecX25519Pub:       {tag.AlgorithmX25519, false},
	CodecEd25519Pub:      {tag.AlgorithmEd25519, false},
	CodecBls12381G1G2Pub: {tag.AlgorithmBls12381G1G2, false},
	CodecP256Pub:         {tag.AlgorithmP256, false},
	CodecP384Pub:         {tag.AlgorithmP384, false},
	CodecP521Pub:         {tag.AlgorithmP521, false},
	CodecRsaPub:          {tag.AlgorithmRsa2048, false},
	CodecEd25519Priv:     {tag.AlgorithmEd25519, true},
}

// EncodeCodec prefixes raw bytes with the codec varint.
func EncodeCodec(codec uint64, raw []byte) ([]byte, error) {
	if _, ok := codecAlgorithms[codec]; !ok {
		return nil, fmt.Errorf("%w: 0x%x", model.ErrUnknownMulticodec, codec)
	}

	prefix := binary.AppendUvarint(nil, codec)
	out := make([]byte, 0, len(prefix)+len(raw))
	out = append(out, prefix...)
	out = append(out, raw...)
	return out, nil
}

// DecodeCodec splits a multicodec-prefixed buffer into its codec and
// raw bytes. Unknown varints are rejected.
func DecodeCodec(data []byte) (uint64, []byte, error) {
	codec, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, model.ErrTruncatedInput
	}
	if _, ok := codecAlgorithms[codec]; !ok {
		return 0, nil, fmt.Errorf("%w: 0x%x", model.ErrUnknownMulticodec, codec)
	}
	if len(data) == n {
		return 0, nil, model.ErrTruncatedInput
	}
	return codec, data[n:], nil
}

// AlgorithmForCodec resolves a codec to its Algorithm tag code.
func AlgorithmForCodec(codec uint64) (algorithm int, private bool, err error) {
	entry, ok := codecAlgorithms[codec]
	if !ok {
		return 0, false, fmt.Errorf("%w: 0x%x", model.ErrUnknownMulticodec, codec)
	}
	return entry.algorithm, entry.private, nil
}

// CodecForAlgorithm resolves an Algorithm tag code to its public key
// codec. Only public key codecs are addressable this way; the Ed25519
// private codec is selected explicitly.
func CodecForAlgorithm(algorithm int) (uint64, error) {
	for codec, entry := range codecAlgorithms {
		if entry.algorithm == algorithm && !entry.private {
			return codec, nil
		}
	}
	return 0, fmt.Errorf("%w: no codec for algorithm %d", model.ErrUnknownMulticodec, algorithm)
}
