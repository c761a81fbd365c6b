package ane

import "sync"

// scratchPool hands out tile-sized buffers for the tiled transfers so a
// steady stream of jobs does not allocate per call.
type scratchPool struct {
	pool sync.Pool
}

// get returns a buffer of exactly size bytes. Reused buffers keep their old
// contents unless zero is set.
func (p *scratchPool) get(size int, zero bool) *[]byte {
	if v := p.pool.Get(); v != nil {
		b := v.(*[]byte)
		if cap(*b) >= size {
			*b = (*b)[:size]
			if zero {
				clear(*b)
			}
			return b
		}
	}
	b := make([]byte, size)
	return &b
}

func (p *scratchPool) put(b *[]byte) {
	if b != nil {
		p.pool.Put(b)
	}
}
