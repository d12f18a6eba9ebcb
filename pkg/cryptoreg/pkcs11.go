//go:build pkcs11

package cryptoreg

import (
	"context"
	"fmt"

	"sdvc/pkg/model"
	"sdvc/pkg/securemem"
	"sdvc/pkg/tag"

	"github.com/miekg/pkcs11"
)

// HSMBackend drives signing through a PKCS#11 module. Keys tagged with
// TpmHandle material semantics route here: the private key memory
// holds the key label, not key material, so the same high-level code
// drives software and hardware uniformly.
type HSMBackend struct {
	ctx     *pkcs11.Ctx
	session pkcs11.SessionHandle
}

// NewHSMBackend loads the PKCS#11 module and opens an authenticated session.
func NewHSMBackend(cfg *model.HSMCfg) (*HSMBackend, error) {
	ctx := pkcs11.New(cfg.ModulePath)
	if ctx == nil {
		return nil, fmt.Errorf("failed to load PKCS#11 module: %s", cfg.ModulePath)
	}

	if err := ctx.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PKCS#11: %w", err)
	}

	session, err := ctx.OpenSession(cfg.SlotID, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		ctx.Finalize()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	if err := ctx.Login(session, pkcs11.CKU_USER, cfg.PIN); err != nil {
		ctx.CloseSession(session)
		ctx.Finalize()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return &HSMBackend{ctx: ctx, session: session}, nil
}

// Close logs out and releases the PKCS#11 session.
func (b *HSMBackend) Close() {
	b.ctx.Logout(b.session)
	b.ctx.CloseSession(b.session)
	b.ctx.Finalize()
}

// Register wires the backend into the registry for every supported
// algorithm under the TpmHandle material qualifier.
func (b *HSMBackend) Register(r *Registry) error {
	for _, algorithm := range []int{tag.AlgorithmP256, tag.AlgorithmP384, tag.AlgorithmRsa2048, tag.AlgorithmRsa4096} {
		if err := r.RegisterSign(algorithm, tag.PurposeSigning, tag.MaterialTpmHandle, b.sign); err != nil {
			return err
		}
	}
	return nil
}

// findKey locates the private key object by label.
func (b *HSMBackend) findKey(label []byte) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}

	if err := b.ctx.FindObjectsInit(b.session, template); err != nil {
		return 0, fmt.Errorf("failed to init find objects: %w", err)
	}

	objs, _, err := b.ctx.FindObjects(b.session, 1)
	if err != nil {
		b.ctx.FindObjectsFinal(b.session)
		return 0, fmt.Errorf("failed to find objects: %w", err)
	}

	if err := b.ctx.FindObjectsFinal(b.session); err != nil {
		return 0, fmt.Errorf("failed to finalize find objects: %w", err)
	}

	if len(objs) == 0 {
		return 0, fmt.Errorf("no private key with label %q", label)
	}

	return objs[0], nil
}

// sign resolves the handle named by the key memory and signs on-module.
func (b *HSMBackend) sign(ctx context.Context, priv *securemem.PrivateKeyMemory, data []byte, pool *securemem.Pool) (*securemem.Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.ErrCancelled
	}

	label, err := priv.Bytes()
	if err != nil {
		return nil, err
	}

	key, err := b.findKey(label)
	if err != nil {
		return nil, err
	}

	algorithm, _ := priv.Tag().Value(tag.KindAlgorithm)
	var mechanism uint
	switch algorithm {
	case tag.AlgorithmP384:
		mechanism = pkcs11.CKM_ECDSA_SHA384
	case tag.AlgorithmRsa2048:
		mechanism = pkcs11.CKM_SHA256_RSA_PKCS
	case tag.AlgorithmRsa4096:
		mechanism = pkcs11.CKM_SHA512_RSA_PKCS
	default:
		mechanism = pkcs11.CKM_ECDSA_SHA256
	}
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(mechanism, nil)}
	if err := b.ctx.SignInit(b.session, mech, key); err != nil {
		return nil, fmt.Errorf("failed to init sign: %w", err)
	}

	sig, err := b.ctx.Sign(b.session, data)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	st, err := signatureTag(algorithm)
	if err != nil {
		return nil, err
	}
	return securemem.NewSignature(pool, sig, st)
}
