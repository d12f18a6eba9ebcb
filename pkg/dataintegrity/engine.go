package dataintegrity

import (
	"context"
	"encoding/json"
	"fmt"

	"sdvc/pkg/canon"
	"sdvc/pkg/credential"
	"sdvc/pkg/cryptoreg"
	"sdvc/pkg/logger"
	"sdvc/pkg/model"
	"sdvc/pkg/multiformat"
	"sdvc/pkg/securemem"
	"sdvc/pkg/tag"
)

// ProofOptionsSerializer renders the proof options document that gets
// canonicalized alongside the credential. The context argument is nil
// for JCS suites and the credential's @context for RDFC suites.
type ProofOptionsSerializer func(proofType, cryptosuite, created, verificationMethod, purpose string, context any) (string, error)

// ProofValueDecoder turns an encoded proof value into a pooled signature.
type ProofValueDecoder func(encoded string, sigTag tag.Tag, pool *securemem.Pool) (*securemem.Signature, error)

// JSONProofOptions is the default proof options serializer.
func JSONProofOptions(proofType, cryptosuite, created, verificationMethod, purpose string, context any) (string, error) {
	opts := map[string]any{
		"type":               proofType,
		"cryptosuite":        cryptosuite,
		"created":            created,
		"verificationMethod": verificationMethod,
		"proofPurpose":       purpose,
	}
	if context != nil {
		opts["@context"] = context
	}

	b, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MultibaseProofValue encodes signature bytes as multibase base58-btc,
// the conventional proofValue form.
func MultibaseProofValue(data []byte) (string, error) {
	return multiformat.EncodeBase58Btc(data)
}

// MultibaseSignatureDecoder decodes a multibase proofValue into pooled
// signature memory.
func MultibaseSignatureDecoder(encoded string, sigTag tag.Tag, pool *securemem.Pool) (*securemem.Signature, error) {
	raw, err := multiformat.Decode(encoded)
	if err != nil {
		return nil, err
	}
	return securemem.NewSignature(pool, raw, sigTag)
}

// Engine runs the sign and verify pipelines. All format- and
// algorithm-specific behavior arrives through the injected delegates.
type Engine struct {
	registry *cryptoreg.Registry
	catalog  *SuiteCatalog
	pool     *securemem.Pool
	log      *logger.Log
}

// NewEngine creates a proof engine over a crypto registry and pool.
func NewEngine(registry *cryptoreg.Registry, catalog *SuiteCatalog, pool *securemem.Pool, log *logger.Log) *Engine {
	return &Engine{
		registry: registry,
		catalog:  catalog,
		pool:     pool,
		log:      log,
	}
}

// SignInput collects everything the sign pipeline needs. Timestamps are
// caller-supplied; the engine never reads the system clock.
type SignInput struct {
	Credential           *credential.Credential
	PrivateKey           *securemem.PrivateKeyMemory
	VerificationMethodID string
	Suite                *CryptosuiteInfo
	Created              string
	Expires              string
	ProofPurpose         string
	Domain               string
	Challenge            string
	Nonce                string

	Canonicalizer          canon.Delegate
	ContextResolver        canon.ContextResolver
	HashSelector           HashSelector
	Serializer             credential.SerializeDelegate
	ProofOptionsSerializer ProofOptionsSerializer
	ProofValueEncoder      multiformat.EncodeDelegate
}

func (in *SignInput) defaults() {
	if in.ProofPurpose == "" {
		in.ProofPurpose = PurposeAssertionMethod
	}
	if in.HashSelector == nil {
		in.HashSelector = DefaultHashSelector
	}
	if in.Serializer == nil {
		in.Serializer = credential.JSONSerialize
	}
	if in.ProofOptionsSerializer == nil {
		in.ProofOptionsSerializer = JSONProofOptions
	}
	if in.ProofValueEncoder == nil {
		in.ProofValueEncoder = MultibaseProofValue
	}
}

// Sign produces a copy of the credential with exactly one
// DataIntegrityProof appended to its proof array.
func (e *Engine) Sign(ctx context.Context, in *SignInput) (*credential.Credential, error) {
	if in.Credential == nil {
		return nil, fmt.Errorf("credential is nil")
	}
	if in.PrivateKey == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	if in.Suite == nil {
		return nil, model.ErrMissingCryptosuite
	}
	if in.Canonicalizer == nil {
		return nil, fmt.Errorf("canonicalizer is nil")
	}
	if err := ValidateDateTimeStamp(in.Created); err != nil {
		return nil, err
	}
	if in.Expires != "" {
		if err := ValidateDateTimeStamp(in.Expires); err != nil {
			return nil, err
		}
	}
	in.defaults()

	combined, err := e.signedBytes(ctx, in.Credential, DataIntegrityProof{
		Type:               ProofTypeDataIntegrity,
		Cryptosuite:        in.Suite.Name,
		Created:            in.Created,
		VerificationMethod: in.VerificationMethodID,
		ProofPurpose:       in.ProofPurpose,
	}, in.Suite, in.Canonicalizer, in.ContextResolver, in.HashSelector, in.Serializer, in.ProofOptionsSerializer)
	if err != nil {
		return nil, err
	}

	sig, err := e.registry.Sign(ctx, in.PrivateKey, combined, e.pool)
	if err != nil {
		return nil, err
	}
	defer sig.Release()

	sigBytes, err := sig.Bytes()
	if err != nil {
		return nil, err
	}

	proofValue, err := in.ProofValueEncoder(sigBytes)
	if err != nil {
		return nil, err
	}

	proof := DataIntegrityProof{
		Type:               ProofTypeDataIntegrity,
		Cryptosuite:        in.Suite.Name,
		VerificationMethod: in.VerificationMethodID,
		ProofPurpose:       in.ProofPurpose,
		Created:            in.Created,
		Expires:            in.Expires,
		Domain:             in.Domain,
		Challenge:          in.Challenge,
		Nonce:              in.Nonce,
		ProofValue:         proofValue,
	}

	return in.Credential.WithProof(proof.ToMap()), nil
}

// signedBytes serializes, canonicalizes and hashes the credential and
// proof options, returning H(proofOptions) || H(credential). Both sign
// and verify flow through here so the byte sequence is identical by
// construction.
func (e *Engine) signedBytes(
	ctx context.Context,
	cred *credential.Credential,
	proof DataIntegrityProof,
	suite *CryptosuiteInfo,
	canonicalize canon.Delegate,
	resolver canon.ContextResolver,
	selectHash HashSelector,
	serialize credential.SerializeDelegate,
	serializeOptions ProofOptionsSerializer,
) ([]byte, error) {
	unsigned := cred.WithoutProof()

	wire, err := unsigned.Wire(serialize)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credential: %w", err)
	}

	// The credential's @context rides along in the proof options only
	// for RDFC suites. Omitting it on one side of the pipeline yields a
	// valid-looking but non-matching hash.
	var optionsContext any
	if suite.Canonicalization == canon.Rdfc10 {
		optionsContext, _ = cred.Context()
	}

	optionsWire, err := serializeOptions(proof.Type, proof.Cryptosuite, proof.Created, proof.VerificationMethod, proof.ProofPurpose, optionsContext)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize proof options: %w", err)
	}

	credCanonical, err := canonicalize(ctx, wire, resolver)
	if err != nil {
		return nil, err
	}

	optionsCanonical, err := canonicalize(ctx, optionsWire, resolver)
	if err != nil {
		return nil, err
	}

	newHash, err := selectHash(suite.Hash)
	if err != nil {
		return nil, err
	}

	credHasher := newHash()
	credHasher.Write([]byte(credCanonical))
	credHash := credHasher.Sum(nil)

	optionsHasher := newHash()
	optionsHasher.Write([]byte(optionsCanonical))
	optionsHash := optionsHasher.Sum(nil)

	combined := make([]byte, 0, len(optionsHash)+len(credHash))
	combined = append(combined, optionsHash...)
	combined = append(combined, credHash...)
	return combined, nil
}
