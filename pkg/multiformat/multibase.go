package multiformat

import (
	"fmt"

	"sdvc/pkg/model"
	"sdvc/pkg/securemem"
	"sdvc/pkg/tag"

	"github.com/multiformats/go-multibase"
)

// EncodeDelegate turns raw bytes into an encoded string.
type EncodeDelegate func(data []byte) (string, error)

// DecodeDelegate turns an encoded string into pooled sensitive memory.
type DecodeDelegate func(encoded string, pool *securemem.Pool) (*securemem.SensitiveMemory, error)

// EncodeBase58Btc wraps bytes in multibase base58-btc (prefix 'z').
func EncodeBase58Btc(data []byte) (string, error) {
	return multibase.Encode(multibase.Base58BTC, data)
}

// EncodeBase64Url wraps bytes in multibase base64url (prefix 'u').
func EncodeBase64Url(data []byte) (string, error) {
	return multibase.Encode(multibase.Base64url, data)
}

// Decode strips the multibase tag and returns the raw bytes.
func Decode(encoded string) ([]byte, error) {
	_, data, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidMultibase, err)
	}
	return data, nil
}

// DecodeKey decodes a multibase string carrying a multicodec-prefixed
// key and wraps the raw key bytes in pooled memory tagged with the
// resolved algorithm. Public material is tagged Verification, private
// material Signing; both carry Raw encoding and Direct semantics.
func DecodeKey(encoded string, pool *securemem.Pool) (*securemem.SensitiveMemory, error) {
	data, err := Decode(encoded)
	if err != nil {
		return nil, err
	}

	codec, raw, err := DecodeCodec(data)
	if err != nil {
		return nil, err
	}

	algorithm, private, err := AlgorithmForCodec(codec)
	if err != nil {
		return nil, err
	}

	purpose := tag.PurposeVerification
	if private {
		purpose = tag.PurposeSigning
	}

	keyTag, err := tag.New(map[tag.Kind]int{
		tag.KindAlgorithm:         algorithm,
		tag.KindPurpose:           purpose,
		tag.KindEncodingScheme:    tag.EncodingRaw,
		tag.KindMaterialSemantics: tag.MaterialDirect,
	})
	if err != nil {
		return nil, err
	}

	return securemem.New(pool, raw, keyTag)
}

// EncodeKey wraps raw key bytes with the codec varint and multibase
// base58-btc tag, the conventional form for did:key identifiers.
func EncodeKey(codec uint64, raw []byte) (string, error) {
	prefixed, err := EncodeCodec(codec, raw)
	if err != nil {
		return "", err
	}
	return EncodeBase58Btc(prefixed)
}
