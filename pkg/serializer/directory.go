package serializer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Directory is the process-wide name -> *Serializer index, standing in for
// Asterisk's ast_taskprocessor_get(name, ...) lookup table. Serializers
// remove themselves from the directory when their last reference is
// released, so a name can legitimately stop resolving while a stale
// reference to it (e.g. a transaction's recorded name) lingers elsewhere.
type Directory struct {
	mu       sync.RWMutex
	byName   map[string]*Serializer
	registry *Registry
	logger   *logrus.Logger
	hwm      int
}

// NewDirectory creates an empty serializer directory. highWaterMark is
// applied to every serializer subsequently created through it.
func NewDirectory(registry *Registry, highWaterMark int, logger *logrus.Logger) *Directory {
	return &Directory{
		byName:   make(map[string]*Serializer),
		registry: registry,
		logger:   logger,
		hwm:      highWaterMark,
	}
}

// Create allocates a new serializer with a unique name derived from base and
// registers it in the directory. The returned serializer carries one
// reference owned by the caller.
func (d *Directory) Create(base string) *Serializer {
	name := fmt.Sprintf("%s-%s", base, uuid.NewString())

	d.mu.Lock()
	s := newSerializer(name, d.hwm, d.registry, d.logger, d.remove)
	d.byName[name] = s
	d.mu.Unlock()

	return s
}

// Lookup resolves a serializer by name, bumping its reference count on
// success. Returns nil if no serializer by that name currently exists.
func (d *Directory) Lookup(name string) *Serializer {
	if name == "" {
		return nil
	}
	d.mu.RLock()
	s, ok := d.byName[name]
	d.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.Retain()
}

func (d *Directory) remove(name string) {
	d.mu.Lock()
	delete(d.byName, name)
	d.mu.Unlock()
}

// Len reports how many serializers are currently registered.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byName)
}
