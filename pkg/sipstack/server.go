package sipstack

import "github.com/emiago/sipgo/sip"

// TxSender adapts a live sip.ServerTransaction to Sender, the normal path
// for any response to an inbound request sipgo is tracking statefully.
type TxSender struct {
	Tx sip.ServerTransaction
}

// Send implements Sender.
func (s TxSender) Send(resp *sip.Response) error {
	return s.Tx.Respond(resp)
}

// NewRequestRxData builds the original (not yet cloned) RxData for an
// inbound request delivered by sipgo, attaching the transaction as its
// Sender and req's source address for logging.
func NewRequestRxData(req *sip.Request, tx sip.ServerTransaction, sourceAddr string) *RxData {
	rd := NewRxDataFromRequest(req)
	rd.SourceAddr = sourceAddr
	rd.SetSender(TxSender{Tx: tx})
	return rd
}
