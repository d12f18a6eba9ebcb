// Package securemem provides pooled, zero-on-release buffers for key
// material and signatures. Buffers are exact-size, owned by exactly one
// SensitiveMemory at a time, and their storage is overwritten with
// zeros before returning to the pool.
package securemem

import (
	"sync"

	"sdvc/pkg/model"
)

// Pool is a concurrent-safe exact-size allocator for sensitive buffers.
// It never right-pads: a rented buffer has exactly the requested length.
type Pool struct {
	mu          sync.Mutex
	free        map[int][][]byte
	maxBuffers  int
	outstanding int
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	// MaxBuffers bounds simultaneously rented buffers; 0 means unbounded.
	MaxBuffers int
}

// NewPool creates a Pool. A nil options value means an unbounded pool.
func NewPool(opts *PoolOptions) *Pool {
	p := &Pool{
		free: make(map[int][][]byte),
	}
	if opts != nil {
		p.maxBuffers = opts.MaxBuffers
	}
	return p
}

// rent returns a buffer of exactly size bytes, reusing zeroed storage
// when available.
func (p *Pool) rent(size int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxBuffers > 0 && p.outstanding >= p.maxBuffers {
		return nil, model.ErrPoolExhaustion
	}

	p.outstanding++

	if list := p.free[size]; len(list) > 0 {
		buf := list[len(list)-1]
		p.free[size] = list[:len(list)-1]
		return buf, nil
	}

	return make([]byte, size), nil
}

// release zeroes the buffer and returns its storage to the pool.
func (p *Pool) release(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.outstanding--
	p.free[len(buf)] = append(p.free[len(buf)], buf)
}

// Outstanding reports the number of currently rented buffers.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}
