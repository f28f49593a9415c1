package sipstack

// Result is a module's verdict on an rx callback: whether the pipeline
// should stop (the module produced a final disposition for the message) or
// continue to the next module in priority order.
type Result int

const (
	// NotConsumed lets the pipeline continue to the next module.
	NotConsumed Result = iota
	// Consumed halts the pipeline; the message has been fully handled.
	Consumed
)

// Module mirrors a pjsip_module registered on the inbound/outbound path:
// a stable name, a priority that fixes its position in the chain (lower
// numbers run earlier), and the callbacks the Pipeline invokes. The tx
// hook receives, alongside the transmit buffer, the receive buffer whose
// task is transmitting — the hook's window into which serializer is
// currently running, since the chosen serializer's name is stamped on
// every dispatched receive buffer. A module that doesn't care about a
// given callback embeds BaseModule and gets a NotConsumed no-op for free.
type Module interface {
	Name() string
	Priority() int
	OnRxRequest(rd *RxData) Result
	OnRxResponse(rd *RxData) Result
	OnTxRequest(rd *RxData, td *TxData) Result
}

// BaseModule supplies NotConsumed no-ops for every callback so a concrete
// module only needs to override what it cares about.
type BaseModule struct{}

func (BaseModule) OnRxRequest(rd *RxData) Result             { return NotConsumed }
func (BaseModule) OnRxResponse(rd *RxData) Result            { return NotConsumed }
func (BaseModule) OnTxRequest(rd *RxData, td *TxData) Result { return NotConsumed }
