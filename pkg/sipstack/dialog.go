package sipstack

import (
	"sync"

	"sip-distributor/pkg/endpoint"
	"sip-distributor/pkg/serializer"
)

// DialogKey identifies a dialog by (Call-ID, local-tag, remote-tag). Which
// header supplies "local" and "remote" depends on direction: for a request,
// local is the To-tag and remote is the From-tag; for a response it is
// reversed. Callers compute the right key for the message they're matching.
type DialogKey struct {
	CallID    string
	LocalTag  string
	RemoteTag string
}

// DialogAnnotation is the optional {serializer, endpoint} record attached to
// a dialog the first time either is set. Its own mutex protects lookup;
// dialogs have no separate lock of their own, so the annotation carries
// one.
type DialogAnnotation struct {
	mu         sync.Mutex
	serializer *serializer.Serializer
	endpoint   *endpoint.Endpoint
}

// Serializer returns the dialog's annotated serializer, or nil.
func (d *DialogAnnotation) Serializer() *serializer.Serializer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serializer
}

// SetSerializer attaches s to the dialog, releasing whatever was there
// before. Passing nil clears the annotation.
func (d *DialogAnnotation) SetSerializer(s *serializer.Serializer) {
	d.mu.Lock()
	prev := d.serializer
	d.serializer = s
	d.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
}

// Endpoint returns the dialog's annotated endpoint, or nil.
func (d *DialogAnnotation) Endpoint() *endpoint.Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endpoint
}

// SetEndpoint attaches ep to the dialog, releasing whatever was there
// before. Passing nil clears the annotation.
func (d *DialogAnnotation) SetEndpoint(ep *endpoint.Endpoint) {
	d.mu.Lock()
	prev := d.endpoint
	d.endpoint = ep
	d.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
}

// DialogRegistry stands in for pjsip's dialog hash table. A real SIP stack
// owns dialog lifetime via its own state machine — dialog creation/teardown
// is out of scope for this core — so this registry only supports what the
// distributor needs: find-or-create on establishment, lookup on every
// subsequent message, and removal when the owning application tears the
// dialog down.
type DialogRegistry struct {
	mu  sync.RWMutex
	byK map[DialogKey]*DialogAnnotation
}

// NewDialogRegistry creates an empty registry.
func NewDialogRegistry() *DialogRegistry {
	return &DialogRegistry{byK: make(map[DialogKey]*DialogAnnotation)}
}

// Find looks up a dialog by key without creating one. Returns nil if no
// dialog is known under that key — the normal "no affinity yet" case.
func (r *DialogRegistry) Find(key DialogKey) *DialogAnnotation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byK[key]
}

// GetOrCreate returns the dialog annotation for key, creating an empty one
// if none exists yet.
func (r *DialogRegistry) GetOrCreate(key DialogKey) *DialogAnnotation {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byK[key]
	if !ok {
		d = &DialogAnnotation{}
		r.byK[key] = d
	}
	return d
}

// Remove drops the dialog's annotation, matching "freed when the dialog's
// arena is freed" — the registry entry does not outlive the dialog.
func (r *DialogRegistry) Remove(key DialogKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byK, key)
}

// Len reports how many dialogs are currently tracked, for tests.
func (r *DialogRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byK)
}
