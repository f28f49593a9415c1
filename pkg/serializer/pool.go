package serializer

import (
	"github.com/sirupsen/logrus"
)

// Pool is the process-wide fixed array of P serializers used as the
// affinity fallback when no dialog or transaction tells the distributor
// where a message belongs. P should be a small prime (31 by default) so
// that hash collisions distribute evenly across unrelated conversations.
type Pool struct {
	dir     *Directory
	entries []*Serializer
}

// NewPool creates size serializers named base-<uuid> and registers them in
// dir. The pool holds one permanent reference to each; callers obtain their
// own reference via Get.
func NewPool(dir *Directory, base string, size int, logger *logrus.Logger) *Pool {
	p := &Pool{dir: dir, entries: make([]*Serializer, size)}
	for i := range p.entries {
		p.entries[i] = dir.Create(base)
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"pool_size": size,
			"base_name": base,
		}).Info("Distributor serializer pool created")
	}
	return p
}

// Size returns P, the configured pool size.
func (p *Pool) Size() int {
	return len(p.entries)
}

// Get returns a ref-bumped serializer at the given bucket index, wrapping
// out-of-range indices defensively. Callers must Release the returned
// reference once they are done dispatching onto it.
func (p *Pool) Get(bucket int) *Serializer {
	if len(p.entries) == 0 {
		return nil
	}
	idx := bucket % len(p.entries)
	if idx < 0 {
		idx += len(p.entries)
	}
	return p.entries[idx].Retain()
}

// Shutdown releases the pool's permanent references to every entry. Any
// serializer still referenced elsewhere (an in-flight dispatch, a lingering
// transaction annotation) survives until those references drop too.
func (p *Pool) Shutdown() {
	for i, s := range p.entries {
		if s != nil {
			s.Release()
		}
		p.entries[i] = nil
	}
}
