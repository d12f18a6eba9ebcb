// Package cryptoreg dispatches cryptographic operations to concrete
// backends keyed by the context tag of the supplied key material. The
// registry is append-only during process initialization and freezes on
// first dispatch, after which concurrent readers need no locking.
package cryptoreg

import (
	"context"
	"fmt"

	"sdvc/pkg/logger"
	"sdvc/pkg/model"
	"sdvc/pkg/securemem"
	"sdvc/pkg/tag"
)

// SignFunc produces a signature over data using pooled private key
// material. Implementations may cross process or hardware boundaries,
// so every call carries a context.
type SignFunc func(ctx context.Context, priv *securemem.PrivateKeyMemory, data []byte, pool *securemem.Pool) (*securemem.Signature, error)

// VerifyFunc checks a signature over data against public key material.
type VerifyFunc func(ctx context.Context, data []byte, sig *securemem.Signature, pub *securemem.PublicKeyMemory) (bool, error)

// discriminator composes the dispatch key. material is zero when the
// function serves any material semantics.
type discriminator struct {
	algorithm int
	purpose   int
	material  int
}

// Registry routes operations to registered functions. Callers never
// learn which backend served a call; only its output is returned.
type Registry struct {
	signers   map[discriminator]SignFunc
	verifiers map[discriminator]VerifyFunc
	frozen    bool
	log       *logger.Log
}

// New creates an empty registry.
func New(log *logger.Log) *Registry {
	return &Registry{
		signers:   make(map[discriminator]SignFunc),
		verifiers: make(map[discriminator]VerifyFunc),
		log:       log,
	}
}

// RegisterSign adds a signing function for (algorithm, purpose) with an
// optional material semantics qualifier (0 matches any). Registration
// is append-only and not safe for concurrent use.
func (r *Registry) RegisterSign(algorithm, purpose, material int, fn SignFunc) error {
	if r.frozen {
		return model.ErrRegistryFrozen
	}
	key := discriminator{algorithm: algorithm, purpose: purpose, material: material}
	if _, ok := r.signers[key]; ok {
		return fmt.Errorf("%w: sign %+v", model.ErrDuplicateRegistration, key)
	}
	r.signers[key] = fn
	return nil
}

// RegisterVerify adds a verification function, mirroring RegisterSign.
func (r *Registry) RegisterVerify(algorithm, purpose, material int, fn VerifyFunc) error {
	if r.frozen {
		return model.ErrRegistryFrozen
	}
	key := discriminator{algorithm: algorithm, purpose: purpose, material: material}
	if _, ok := r.verifiers[key]; ok {
		return fmt.Errorf("%w: verify %+v", model.ErrDuplicateRegistration, key)
	}
	r.verifiers[key] = fn
	return nil
}

// discriminate reads the dispatch key from a tag. The purpose carried
// by the tag must match the requested operation.
func discriminate(t tag.Tag, wantPurpose int) (discriminator, error) {
	algorithm, ok := t.Value(tag.KindAlgorithm)
	if !ok {
		return discriminator{}, fmt.Errorf("%w: tag carries no algorithm", model.ErrUnsupportedAlgorithm)
	}

	purpose, ok := t.Value(tag.KindPurpose)
	if !ok || purpose != wantPurpose {
		return discriminator{}, fmt.Errorf("%w: tag purpose does not match operation", model.ErrUnsupportedAlgorithm)
	}

	material, ok := t.Value(tag.KindMaterialSemantics)
	if !ok {
		material = tag.MaterialDirect
	}

	return discriminator{algorithm: algorithm, purpose: purpose, material: material}, nil
}

// Sign resolves the signing function for the key's tag and forwards.
// A TpmHandle-tagged key routes to the hardware backend even for the
// same algorithm and purpose.
func (r *Registry) Sign(ctx context.Context, priv *securemem.PrivateKeyMemory, data []byte, pool *securemem.Pool) (*securemem.Signature, error) {
	r.frozen = true

	key, err := discriminate(priv.Tag(), tag.PurposeSigning)
	if err != nil {
		return nil, err
	}

	fn, ok := r.signers[key]
	if !ok {
		// Fall back to a function registered without a material qualifier.
		fn, ok = r.signers[discriminator{algorithm: key.algorithm, purpose: key.purpose}]
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNoBackendRegistered, priv.Tag())
	}

	return fn(ctx, priv, data, pool)
}

// Verify resolves the verification function for the key's tag and forwards.
func (r *Registry) Verify(ctx context.Context, data []byte, sig *securemem.Signature, pub *securemem.PublicKeyMemory) (bool, error) {
	r.frozen = true

	key, err := discriminate(pub.Tag(), tag.PurposeVerification)
	if err != nil {
		return false, err
	}

	fn, ok := r.verifiers[key]
	if !ok {
		fn, ok = r.verifiers[discriminator{algorithm: key.algorithm, purpose: key.purpose}]
	}
	if !ok {
		return false, fmt.Errorf("%w: %s", model.ErrNoBackendRegistered, pub.Tag())
	}

	return fn(ctx, data, sig, pub)
}
