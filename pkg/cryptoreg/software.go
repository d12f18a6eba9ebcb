package cryptoreg

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"fmt"
	"math/big"

	"sdvc/pkg/model"
	"sdvc/pkg/securemem"
	"sdvc/pkg/tag"
)

// RegisterSoftwareBackend registers in-process implementations for
// Ed25519, ECDSA (P-256/P-384/P-521) and RSA (2048/4096). Key bytes
// are read in fixed encodings; the EncodingScheme in the key tag is not
// consulted: a 32-byte seed or 64-byte key for Ed25519 private keys,
// 32 raw bytes for Ed25519 public keys, uncompressed points for EC
// public keys, PKCS#8 for EC and RSA private keys, PKCS#1 for RSA
// public keys.
func RegisterSoftwareBackend(r *Registry) error {
	type algo struct {
		code   int
		sign   SignFunc
		verify VerifyFunc
	}

	algos := []algo{
		{code: tag.AlgorithmEd25519, sign: signEd25519, verify: verifyEd25519},
		{code: tag.AlgorithmP256, sign: signECDSA(elliptic.P256(), crypto.SHA256), verify: verifyECDSA(elliptic.P256(), crypto.SHA256)},
		{code: tag.AlgorithmP384, sign: signECDSA(elliptic.P384(), crypto.SHA384), verify: verifyECDSA(elliptic.P384(), crypto.SHA384)},
		{code: tag.AlgorithmP521, sign: signECDSA(elliptic.P521(), crypto.SHA512), verify: verifyECDSA(elliptic.P521(), crypto.SHA512)},
		{code: tag.AlgorithmRsa2048, sign: signRSA(crypto.SHA256), verify: verifyRSA(crypto.SHA256)},
		{code: tag.AlgorithmRsa4096, sign: signRSA(crypto.SHA512), verify: verifyRSA(crypto.SHA512)},
	}

	for _, a := range algos {
		if err := r.RegisterSign(a.code, tag.PurposeSigning, 0, a.sign); err != nil {
			return err
		}
		if err := r.RegisterVerify(a.code, tag.PurposeVerification, 0, a.verify); err != nil {
			return err
		}
	}

	return nil
}

// signatureTag builds the tag for signature output: the signing
// algorithm under the Verification purpose.
func signatureTag(algorithm int) (tag.Tag, error) {
	return tag.New(map[tag.Kind]int{
		tag.KindAlgorithm: algorithm,
		tag.KindPurpose:   tag.PurposeVerification,
	})
}

func signEd25519(ctx context.Context, priv *securemem.PrivateKeyMemory, data []byte, pool *securemem.Pool) (*securemem.Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.ErrCancelled
	}

	raw, err := priv.Bytes()
	if err != nil {
		return nil, err
	}

	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("%w: ed25519 private key must be %d or %d bytes, got %d",
			model.ErrUnsupportedAlgorithm, ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}

	sig := ed25519.Sign(key, data)

	st, err := signatureTag(tag.AlgorithmEd25519)
	if err != nil {
		return nil, err
	}
	return securemem.NewSignature(pool, sig, st)
}

func verifyEd25519(ctx context.Context, data []byte, sig *securemem.Signature, pub *securemem.PublicKeyMemory) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, model.ErrCancelled
	}

	raw, err := pub.Bytes()
	if err != nil {
		return false, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return false, fmt.Errorf("%w: ed25519 public key must be %d bytes", model.ErrUnsupportedAlgorithm, ed25519.PublicKeySize)
	}

	sigBytes, err := sig.Bytes()
	if err != nil {
		return false, err
	}

	return ed25519.Verify(ed25519.PublicKey(raw), data, sigBytes), nil
}

func signECDSA(curve elliptic.Curve, hash crypto.Hash) SignFunc {
	return func(ctx context.Context, priv *securemem.PrivateKeyMemory, data []byte, pool *securemem.Pool) (*securemem.Signature, error) {
		if err := ctx.Err(); err != nil {
			return nil, model.ErrCancelled
		}

		raw, err := priv.Bytes()
		if err != nil {
			return nil, err
		}

		parsed, err := x509.ParsePKCS8PrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrUnsupportedAlgorithm, err)
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok || key.Curve != curve {
			return nil, fmt.Errorf("%w: key is not on %s", model.ErrUnsupportedAlgorithm, curve.Params().Name)
		}

		digest := digestFor(hash, data)

		sigR, sigS, err := ecdsa.Sign(rand.Reader, key, digest)
		if err != nil {
			return nil, err
		}

		algorithm, _ := priv.Tag().Value(tag.KindAlgorithm)
		st, err := signatureTag(algorithm)
		if err != nil {
			return nil, err
		}
		return securemem.NewSignature(pool, rawECDSASignature(curve, sigR, sigS), st)
	}
}

func verifyECDSA(curve elliptic.Curve, hash crypto.Hash) VerifyFunc {
	return func(ctx context.Context, data []byte, sig *securemem.Signature, pub *securemem.PublicKeyMemory) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, model.ErrCancelled
		}

		raw, err := pub.Bytes()
		if err != nil {
			return false, err
		}

		x, y := elliptic.Unmarshal(curve, raw)
		if x == nil {
			return false, fmt.Errorf("%w: invalid uncompressed EC point", model.ErrUnsupportedAlgorithm)
		}
		key := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}

		sigBytes, err := sig.Bytes()
		if err != nil {
			return false, err
		}

		keyBytes := (curve.Params().BitSize + 7) / 8
		if len(sigBytes) != 2*keyBytes {
			return false, nil
		}

		sigR := new(big.Int).SetBytes(sigBytes[:keyBytes])
		sigS := new(big.Int).SetBytes(sigBytes[keyBytes:])

		return ecdsa.Verify(key, digestFor(hash, data), sigR, sigS), nil
	}
}

func signRSA(hash crypto.Hash) SignFunc {
	return func(ctx context.Context, priv *securemem.PrivateKeyMemory, data []byte, pool *securemem.Pool) (*securemem.Signature, error) {
		if err := ctx.Err(); err != nil {
			return nil, model.ErrCancelled
		}

		raw, err := priv.Bytes()
		if err != nil {
			return nil, err
		}

		parsed, err := x509.ParsePKCS8PrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrUnsupportedAlgorithm, err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: key is not RSA", model.ErrUnsupportedAlgorithm)
		}

		sig, err := rsa.SignPKCS1v15(rand.Reader, key, hash, digestFor(hash, data))
		if err != nil {
			return nil, err
		}

		algorithm, _ := priv.Tag().Value(tag.KindAlgorithm)
		st, err := signatureTag(algorithm)
		if err != nil {
			return nil, err
		}
		return securemem.NewSignature(pool, sig, st)
	}
}

func verifyRSA(hash crypto.Hash) VerifyFunc {
	return func(ctx context.Context, data []byte, sig *securemem.Signature, pub *securemem.PublicKeyMemory) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, model.ErrCancelled
		}

		raw, err := pub.Bytes()
		if err != nil {
			return false, err
		}

		key, err := x509.ParsePKCS1PublicKey(raw)
		if err != nil {
			return false, fmt.Errorf("%w: %v", model.ErrUnsupportedAlgorithm, err)
		}

		sigBytes, err := sig.Bytes()
		if err != nil {
			return false, err
		}

		if err := rsa.VerifyPKCS1v15(key, hash, digestFor(hash, data), sigBytes); err != nil {
			return false, nil
		}
		return true, nil
	}
}

// rawECDSASignature concatenates r and s at fixed curve width.
func rawECDSASignature(curve elliptic.Curve, sigR, sigS *big.Int) []byte {
	keyBytes := (curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*keyBytes)

	rBytes := sigR.Bytes()
	sBytes := sigS.Bytes()

	copy(sig[keyBytes-len(rBytes):keyBytes], rBytes)
	copy(sig[2*keyBytes-len(sBytes):], sBytes)

	return sig
}

func digestFor(hash crypto.Hash, data []byte) []byte {
	switch hash {
	case crypto.SHA384:
		d := sha512.Sum384(data)
		return d[:]
	case crypto.SHA512:
		d := sha512.Sum512(data)
		return d[:]
	default:
		d := sha256.Sum256(data)
		return d[:]
	}
}
