package dataintegrity

import (
	"context"

	"sdvc/pkg/canon"
	"sdvc/pkg/credential"
	"sdvc/pkg/model"
	"sdvc/pkg/multiformat"
	"sdvc/pkg/securemem"
	"sdvc/pkg/tag"
)

// VerifyStatus is the outcome of a verification run. Cryptographic
// invalidity is an expected outcome and is returned, not raised.
type VerifyStatus int

const (
	// Success means the proof verified against the resolved method
	Success VerifyStatus = iota
	// NoProof means the credential carries no proof entry
	NoProof
	// MissingCryptosuite means the proof names no known cryptosuite
	MissingCryptosuite
	// MissingVerificationMethod means the proof carries no method reference
	MissingVerificationMethod
	// VerificationMethodNotFound means the DID document has no matching method
	VerificationMethodNotFound
	// SignatureInvalid means the recomputed bytes do not verify
	SignatureInvalid
)

func (s VerifyStatus) String() string {
	switch s {
	case Success:
		return "Success"
	case NoProof:
		return "NoProof"
	case MissingCryptosuite:
		return "MissingCryptosuite"
	case MissingVerificationMethod:
		return "MissingVerificationMethod"
	case VerificationMethodNotFound:
		return "VerificationMethodNotFound"
	case SignatureInvalid:
		return "SignatureInvalid"
	default:
		return "unknown"
	}
}

// Err maps a failed status to its sentinel error, nil on Success.
func (s VerifyStatus) Err() error {
	switch s {
	case Success:
		return nil
	case NoProof:
		return model.ErrNoProof
	case MissingCryptosuite:
		return model.ErrMissingCryptosuite
	case MissingVerificationMethod:
		return model.ErrMissingVerificationMethod
	case VerificationMethodNotFound:
		return model.ErrVerificationMethodNotFound
	default:
		return model.ErrSignatureInvalid
	}
}

// VerifyInput collects everything the verify pipeline needs.
type VerifyInput struct {
	Credential *credential.Credential
	IssuerDoc  *DIDDocument

	Canonicalizer          canon.Delegate
	ContextResolver        canon.ContextResolver
	HashSelector           HashSelector
	Serializer             credential.SerializeDelegate
	ProofOptionsSerializer ProofOptionsSerializer
	ProofValueDecoder      ProofValueDecoder
	KeyDecoder             multiformat.DecodeDelegate
}

func (in *VerifyInput) defaults() {
	if in.HashSelector == nil {
		in.HashSelector = DefaultHashSelector
	}
	if in.Serializer == nil {
		in.Serializer = credential.JSONSerialize
	}
	if in.ProofOptionsSerializer == nil {
		in.ProofOptionsSerializer = JSONProofOptions
	}
	if in.ProofValueDecoder == nil {
		in.ProofValueDecoder = MultibaseSignatureDecoder
	}
	if in.KeyDecoder == nil {
		in.KeyDecoder = multiformat.DecodeKey
	}
}

// Verify checks the first proof entry of a signed credential against
// the supplied issuer DID document. Validity windows
// (validFrom/validUntil) are a policy decision left to the caller.
func (e *Engine) Verify(ctx context.Context, in *VerifyInput) (VerifyStatus, error) {
	if in.Credential == nil || in.Canonicalizer == nil {
		return SignatureInvalid, model.ErrSignatureInvalid
	}
	in.defaults()

	proofs := in.Credential.Proofs()
	if len(proofs) == 0 {
		return NoProof, nil
	}

	// Proof chains via previousProof iterate here eventually; the
	// engine currently judges the first entry.
	proof := ProofFromMap(proofs[0])

	suite, ok := e.catalog.Lookup(proof.Cryptosuite)
	if !ok || proof.Type != ProofTypeDataIntegrity {
		return MissingCryptosuite, nil
	}

	if proof.VerificationMethod == "" {
		return MissingVerificationMethod, nil
	}

	if in.IssuerDoc == nil {
		return VerificationMethodNotFound, nil
	}
	method, ok := in.IssuerDoc.FindVerificationMethod(proof.VerificationMethod)
	if !ok || !suite.CompatibleMethod(method.Type) {
		return VerificationMethodNotFound, nil
	}

	pubMem, err := in.KeyDecoder(method.PublicKeyMultibase, e.pool)
	if err != nil {
		return VerificationMethodNotFound, err
	}
	defer pubMem.Release()

	combined, err := e.signedBytes(ctx, in.Credential, proof, suite,
		in.Canonicalizer, in.ContextResolver, in.HashSelector, in.Serializer, in.ProofOptionsSerializer)
	if err != nil {
		return SignatureInvalid, err
	}

	sigTag, err := tag.New(map[tag.Kind]int{
		tag.KindAlgorithm: suite.SignatureAlgorithm,
		tag.KindPurpose:   tag.PurposeVerification,
	})
	if err != nil {
		return SignatureInvalid, err
	}

	sig, err := in.ProofValueDecoder(proof.ProofValue, sigTag, e.pool)
	if err != nil {
		return SignatureInvalid, err
	}
	defer sig.Release()

	verified, err := e.registry.Verify(ctx, combined, sig, &securemem.PublicKeyMemory{SensitiveMemory: pubMem})
	if err != nil {
		return SignatureInvalid, err
	}
	if !verified {
		return SignatureInvalid, nil
	}

	return Success, nil
}
