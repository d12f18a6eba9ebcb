package securemem

import (
	"crypto/subtle"
	"sync"

	"sdvc/pkg/model"
	"sdvc/pkg/tag"
)

// SensitiveMemory pairs a pooled byte buffer with the Tag that gives it
// meaning. The buffer is exclusively owned until Release, which zeroes
// the storage before handing it back to the pool. Allocation and
// wrapping happen in a single step so no exception path can leak an
// unowned buffer.
type SensitiveMemory struct {
	mu       sync.Mutex
	buf      []byte
	tag      tag.Tag
	pool     *Pool
	released bool
}

// New copies data into a pooled buffer and wraps it. The caller keeps
// ownership of data and should discard it after the copy.
func New(pool *Pool, data []byte, t tag.Tag) (*SensitiveMemory, error) {
	buf, err := pool.rent(len(data))
	if err != nil {
		return nil, err
	}
	copy(buf, data)

	return &SensitiveMemory{buf: buf, tag: t, pool: pool}, nil
}

// Bytes returns a read-only view of the buffer. The view is only valid
// until Release.
func (m *SensitiveMemory) Bytes() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return nil, model.ErrAlreadyReleased
	}
	return m.buf, nil
}

// Tag returns the context tag of the buffer.
func (m *SensitiveMemory) Tag() tag.Tag {
	return m.tag
}

// Release zeroes the buffer and returns it to the pool. Further use of
// the memory fails with AlreadyReleased.
func (m *SensitiveMemory) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return model.ErrAlreadyReleased
	}
	m.released = true
	m.pool.release(m.buf)
	return nil
}

// PublicKeyMemory is sensitive memory holding public key material.
type PublicKeyMemory struct {
	*SensitiveMemory
}

// NewPublicKey wraps public key bytes in pooled memory.
func NewPublicKey(pool *Pool, data []byte, t tag.Tag) (*PublicKeyMemory, error) {
	m, err := New(pool, data, t)
	if err != nil {
		return nil, err
	}
	return &PublicKeyMemory{SensitiveMemory: m}, nil
}

// PrivateKeyMemory is sensitive memory holding private key material.
type PrivateKeyMemory struct {
	*SensitiveMemory
}

// NewPrivateKey wraps private key bytes in pooled memory.
func NewPrivateKey(pool *Pool, data []byte, t tag.Tag) (*PrivateKeyMemory, error) {
	m, err := New(pool, data, t)
	if err != nil {
		return nil, err
	}
	return &PrivateKeyMemory{SensitiveMemory: m}, nil
}

// Signature is sensitive memory holding raw signature bytes. Its tag
// carries the signature algorithm under the Verification purpose.
type Signature struct {
	*SensitiveMemory
}

// NewSignature wraps signature bytes in pooled memory.
func NewSignature(pool *Pool, data []byte, t tag.Tag) (*Signature, error) {
	m, err := New(pool, data, t)
	if err != nil {
		return nil, err
	}
	return &Signature{SensitiveMemory: m}, nil
}

// Equal reports value equality over (bytes, tag). Released signatures
// are never equal to anything.
func (s *Signature) Equal(other *Signature) bool {
	if s == nil || other == nil {
		return s == other
	}

	a, err := s.Bytes()
	if err != nil {
		return false
	}
	b, err := other.Bytes()
	if err != nil {
		return false
	}

	if !s.Tag().Equal(other.Tag()) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
