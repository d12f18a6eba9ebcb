//go:build !pkcs11

package cryptoreg

import (
	"errors"

	"sdvc/pkg/model"
)

// HSMBackend is unavailable without the pkcs11 build tag.
type HSMBackend struct{}

// NewHSMBackend fails when built without PKCS#11 support.
func NewHSMBackend(cfg *model.HSMCfg) (*HSMBackend, error) {
	return nil, errors.New("PKCS#11 support not compiled in (build with -tags pkcs11)")
}

// Close is a no-op on the stub.
func (b *HSMBackend) Close() {}

// Register fails when built without PKCS#11 support.
func (b *HSMBackend) Register(r *Registry) error {
	return errors.New("PKCS#11 support not compiled in (build with -tags pkcs11)")
}
