package sipstack

import "sync"

// TransactionRole distinguishes which side of a request/response exchange a
// transaction represents, matching pjsip's PJSIP_ROLE_UAC/PJSIP_ROLE_UAS.
type TransactionRole int

const (
	// RoleUAC identifies a transaction for a request this process sent.
	RoleUAC TransactionRole = iota
	// RoleUAS identifies a transaction for a request this process received.
	RoleUAS
)

// TransactionKey identifies a transaction by role, method, and the Call-ID
// carried in rdata. A real pjsip transaction key also folds in the branch
// parameter; this core tracks one transaction per (role, method, Call-ID),
// which is sufficient for the affinity decisions the distributor makes and
// keeps the lookup free of any dependency on a specific wire-level
// transaction matching algorithm.
type TransactionKey struct {
	Role   TransactionRole
	Method string
	CallID string
}

// Transaction is the subset of a SIP transaction's state the distributor
// reads: the dialog it belongs to (for CANCEL-without-to-tag dialog
// extraction) and the last request it transmitted (for response-side
// serializer-name affinity).
type Transaction struct {
	Dialog            *DialogAnnotation
	LastRequestTxData *TxData
}

// TransactionRegistry stands in for pjsip's transaction hash table,
// restricted to the two lookups the distributor performs. Entries are
// created by whatever issues the request (the application, for UAC; the
// transport layer, for UAS) and removed when the transaction terminates;
// neither of those lifecycles is this package's concern, so only Put/Find/
// Remove are exposed.
type TransactionRegistry struct {
	mu  sync.RWMutex
	byK map[TransactionKey]*Transaction
}

// NewTransactionRegistry creates an empty registry.
func NewTransactionRegistry() *TransactionRegistry {
	return &TransactionRegistry{byK: make(map[TransactionKey]*Transaction)}
}

// Put registers tx under key, replacing whatever was there.
func (r *TransactionRegistry) Put(key TransactionKey, tx *Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byK[key] = tx
}

// Find looks up a transaction by key, acquiring and releasing the
// registry's lock internally so callers never hold it across their own
// work.
func (r *TransactionRegistry) Find(key TransactionKey) *Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byK[key]
}

// Remove drops the transaction registered under key.
func (r *TransactionRegistry) Remove(key TransactionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byK, key)
}
