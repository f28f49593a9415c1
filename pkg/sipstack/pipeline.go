package sipstack

import (
	"sort"
	"sync"
)

// Pipeline is the ordered, priority-sorted module chain standing in for the
// host SIP library's generic module-registration surface. It is
// deliberately small: register modules once at startup, then drive
// every inbound message through ProcessRxRequest/ProcessRxResponse, exactly
// as the distributor's distribute task re-submits a cloned buffer with
// start_module=Distributor, idx_after_start=1 to resume the chain on a
// serializer. Registration and traversal may race during shutdown, so the
// module list is guarded by its own lock.
type Pipeline struct {
	mu      sync.RWMutex
	modules []Module
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Register adds m to the chain and keeps the chain sorted by ascending
// priority (lower runs earlier), matching pjsip_endpt_register_module's
// ordering contract.
func (p *Pipeline) Register(m Module) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules = append(p.modules, m)
	sort.SliceStable(p.modules, func(i, j int) bool {
		return p.modules[i].Priority() < p.modules[j].Priority()
	})
}

// Unregister removes a previously registered module by name.
func (p *Pipeline) Unregister(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.modules[:0]
	for _, m := range p.modules {
		if m.Name() != name {
			out = append(out, m)
		}
	}
	p.modules = out
}

// chainAfter snapshots the modules to run, starting just after startAfter
// (or from the beginning if startAfter is "" or unknown).
func (p *Pipeline) chainAfter(startAfter string) []Module {
	p.mu.RLock()
	defer p.mu.RUnlock()
	start := 0
	if startAfter != "" {
		for i, m := range p.modules {
			if m.Name() == startAfter {
				start = i + 1
				break
			}
		}
	}
	out := make([]Module, len(p.modules)-start)
	copy(out, p.modules[start:])
	return out
}

// ProcessRxRequest runs rd through every registered module's OnRxRequest in
// priority order, starting just after startAfter (or from the beginning if
// startAfter is ""), stopping at the first Consumed verdict. It reports
// whether any module consumed the message, which the distribute task uses
// to decide whether a stateless 501 is warranted.
func (p *Pipeline) ProcessRxRequest(rd *RxData, startAfter string) (handled bool) {
	for _, m := range p.chainAfter(startAfter) {
		if m.OnRxRequest(rd) == Consumed {
			return true
		}
	}
	return false
}

// ProcessRxResponse is ProcessRxRequest's response-side counterpart.
func (p *Pipeline) ProcessRxResponse(rd *RxData, startAfter string) (handled bool) {
	for _, m := range p.chainAfter(startAfter) {
		if m.OnRxResponse(rd) == Consumed {
			return true
		}
	}
	return false
}

// NotifyTxRequest runs td through every registered module's OnTxRequest in
// priority order, passing rd, the receive buffer whose task is sending the
// request. It does not short-circuit on Consumed — tx hooks in this core
// are observational (recording, not gating) so every module sees every
// outbound message.
func (p *Pipeline) NotifyTxRequest(rd *RxData, td *TxData) {
	for _, m := range p.chainAfter("") {
		m.OnTxRequest(rd, td)
	}
}
