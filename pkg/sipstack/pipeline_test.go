package sipstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	name     string
	priority int
	verdict  Result
	calls    *[]string
}

func (f *fakeModule) Name() string  { return f.name }
func (f *fakeModule) Priority() int { return f.priority }
func (f *fakeModule) OnRxRequest(rd *RxData) Result {
	*f.calls = append(*f.calls, f.name)
	return f.verdict
}
func (f *fakeModule) OnRxResponse(rd *RxData) Result {
	*f.calls = append(*f.calls, f.name)
	return f.verdict
}
func (f *fakeModule) OnTxRequest(rd *RxData, td *TxData) Result {
	*f.calls = append(*f.calls, f.name)
	return NotConsumed
}

func TestPipelineRegisterOrdersByPriority(t *testing.T) {
	p := NewPipeline()
	var calls []string
	p.Register(&fakeModule{name: "late", priority: 300, calls: &calls})
	p.Register(&fakeModule{name: "early", priority: 100, calls: &calls})
	p.Register(&fakeModule{name: "middle", priority: 200, calls: &calls})

	req := newBareRequest()
	p.ProcessRxRequest(req, "")
	assert.Equal(t, []string{"early", "middle", "late"}, calls)
}

func TestPipelineStopsAtFirstConsumed(t *testing.T) {
	p := NewPipeline()
	var calls []string
	p.Register(&fakeModule{name: "a", priority: 100, verdict: NotConsumed, calls: &calls})
	p.Register(&fakeModule{name: "b", priority: 200, verdict: Consumed, calls: &calls})
	p.Register(&fakeModule{name: "c", priority: 300, verdict: NotConsumed, calls: &calls})

	handled := p.ProcessRxRequest(newBareRequest(), "")
	assert.True(t, handled)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestPipelineStartAfterResumesPastNamedModule(t *testing.T) {
	p := NewPipeline()
	var calls []string
	p.Register(&fakeModule{name: "a", priority: 100, calls: &calls})
	p.Register(&fakeModule{name: "b", priority: 200, calls: &calls})
	p.Register(&fakeModule{name: "c", priority: 300, calls: &calls})

	p.ProcessRxRequest(newBareRequest(), "a")
	assert.Equal(t, []string{"b", "c"}, calls)
}

func TestPipelineUnregisterRemovesModule(t *testing.T) {
	p := NewPipeline()
	var calls []string
	p.Register(&fakeModule{name: "a", priority: 100, calls: &calls})
	p.Register(&fakeModule{name: "b", priority: 200, calls: &calls})

	p.Unregister("a")
	p.ProcessRxRequest(newBareRequest(), "")
	assert.Equal(t, []string{"b"}, calls)
}

func TestPipelineNotifyTxRequestVisitsEveryModule(t *testing.T) {
	p := NewPipeline()
	var calls []string
	p.Register(&fakeModule{name: "a", priority: 100, verdict: Consumed, calls: &calls})
	p.Register(&fakeModule{name: "b", priority: 200, verdict: Consumed, calls: &calls})

	p.NotifyTxRequest(newBareRequest(), &TxData{})
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestPipelineUnknownStartAfterRunsFromBeginning(t *testing.T) {
	p := NewPipeline()
	var calls []string
	p.Register(&fakeModule{name: "a", priority: 100, calls: &calls})

	handled := p.ProcessRxRequest(newBareRequest(), "nonexistent")
	require.False(t, handled)
	assert.Equal(t, []string{"a"}, calls)
}

func newBareRequest() *RxData {
	return NewRxDataFromRequest(nil)
}
