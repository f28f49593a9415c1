package distributor

import (
	"sip-distributor/pkg/endpoint"
	derrors "sip-distributor/pkg/errors"
	"sip-distributor/pkg/metrics"
	"sip-distributor/pkg/serializer"
	"sip-distributor/pkg/sipstack"
)

// Distributor resolves which serializer owns an inbound message, sheds load
// under overload, clones the message and dispatches it, and records which
// serializer handled an outbound request's transaction. It is always the
// first module in the pipeline and always returns Consumed: the transport
// thread must never do further synchronous work once the Distributor has
// seen a message.
type Distributor struct {
	sub *Subsystem
}

func (d *Distributor) Name() string  { return ModuleName }
func (d *Distributor) Priority() int { return PriorityDistributor }

// OnRxRequest resolves affinity for an inbound request — an existing
// dialog first, a stray BYE/CANCEL answered statelessly next, then the
// overload gate and hash fallback — and dispatches the winner.
func (d *Distributor) OnRxRequest(rd *sipstack.RxData) sipstack.Result {
	if !d.sub.booted.Load() {
		d.drop(rd, derrors.ErrNotBooted)
		return sipstack.Consumed
	}

	method := rd.Method()
	dlg := d.findDialogForRequest(rd, method)

	// The dialog's endpoint travels with the message no matter which step
	// ends up choosing the serializer.
	var ep *endpoint.Endpoint
	if dlg != nil {
		ep = dlg.Endpoint()
		if s := dlg.Serializer(); s != nil {
			d.dispatch(rd, s.Retain(), ep, "dialog")
			return sipstack.Consumed
		}
	}

	if method == "BYE" || method == "CANCEL" {
		d.sub.logger.WithError(derrors.Wrap(derrors.ErrNoDialog, "answering statelessly").WithFields(map[string]interface{}{
			"call_id": rd.CallID(),
			"method":  method,
		})).Debug("No dialog for BYE/CANCEL, responding 481")
		rd.Respond(481, "Call/Transaction Does Not Exist")
		if metrics.DistributorStatelessResponses != nil {
			metrics.DistributorStatelessResponses.WithLabelValues("481").Inc()
		}
		return sipstack.Consumed
	}

	if d.sub.overload.Alert() {
		d.drop(rd, derrors.ErrOverload)
		return sipstack.Consumed
	}

	bucket := serializer.Bucket(d.sub.pool.Size(), rd.CallID(), rd.FromTag())
	s := d.sub.pool.Get(bucket)
	d.dispatch(rd, s, ep, "hash")
	return sipstack.Consumed
}

// OnRxResponse resolves affinity for an inbound response — dialog, then the
// transaction that sent the matching request, then the overload gate and
// hash fallback — and dispatches the winner.
func (d *Distributor) OnRxResponse(rd *sipstack.RxData) sipstack.Result {
	if !d.sub.booted.Load() {
		d.drop(rd, derrors.ErrNotBooted)
		return sipstack.Consumed
	}

	dlg := d.sub.dialogs.Find(sipstack.DialogKey{
		CallID:    rd.CallID(),
		LocalTag:  rd.FromTag(),
		RemoteTag: rd.ToTag(),
	})
	var ep *endpoint.Endpoint
	if dlg != nil {
		ep = dlg.Endpoint()
		if s := dlg.Serializer(); s != nil {
			d.dispatch(rd, s.Retain(), ep, "dialog")
			return sipstack.Consumed
		}
	}

	var chosen *serializer.Serializer
	tx := d.sub.txs.Find(sipstack.TransactionKey{
		Role:   sipstack.RoleUAC,
		Method: rd.CSeqMethod(),
		CallID: rd.CallID(),
	})
	if tx != nil && tx.LastRequestTxData != nil {
		if name := tx.LastRequestTxData.SerializerName(); name != "" {
			if s := d.sub.dir.Lookup(name); s != nil {
				chosen = s
			}
		}
	}

	if chosen == nil {
		if d.sub.overload.Alert() {
			d.drop(rd, derrors.ErrOverload)
			return sipstack.Consumed
		}
		bucket := serializer.Bucket(d.sub.pool.Size(), rd.CallID(), rd.ToTag())
		chosen = d.sub.pool.Get(bucket)
		d.dispatch(rd, chosen, ep, "hash")
		return sipstack.Consumed
	}

	d.dispatch(rd, chosen, ep, "transaction")
	return sipstack.Consumed
}

// OnTxRequest records the name of the serializer currently transmitting
// onto the transmit buffer, so the response to this request can later be
// routed back to the same serializer by name. The name comes off rd, the
// receive buffer whose task is sending: dispatch stamps the chosen
// serializer's name onto every clone it enqueues, so the name is the
// serializer the running task belongs to. Recording an already-matching
// name is a no-op, and the hook always succeeds.
func (d *Distributor) OnTxRequest(rd *sipstack.RxData, td *sipstack.TxData) sipstack.Result {
	if rd != nil {
		td.RecordSerializer(rd.SerializerName())
	}
	return sipstack.NotConsumed
}

func (d *Distributor) findDialogForRequest(rd *sipstack.RxData, method string) *sipstack.DialogAnnotation {
	if method == "CANCEL" && rd.ToTag() == "" {
		tx := d.sub.txs.Find(sipstack.TransactionKey{
			Role:   sipstack.RoleUAS,
			Method: "INVITE",
			CallID: rd.CallID(),
		})
		if tx != nil {
			return tx.Dialog
		}
		return nil
	}
	return d.sub.dialogs.Find(sipstack.DialogKey{
		CallID:    rd.CallID(),
		LocalTag:  rd.ToTag(),
		RemoteTag: rd.FromTag(),
	})
}

// dispatch clones rd, copies ep onto the clone's endpoint slot if present,
// and enqueues a distribute task onto s. Always releases the caller's
// reference to s once enqueue has been attempted, whether or not it
// succeeded.
func (d *Distributor) dispatch(rd *sipstack.RxData, s *serializer.Serializer, ep *endpoint.Endpoint, affinity string) {
	if s == nil {
		d.drop(rd, derrors.ErrSerializerGone)
		return
	}
	defer s.Release()

	clone := rd.Clone()
	clone.SetSerializerName(s.Name())
	if ep != nil {
		clone.SetEndpoint(ep.Retain())
	}

	ok := s.Push(func() {
		d.runDistributeTask(clone)
	})
	if !ok {
		clone.ReleaseEndpoint()
		clone.Free()
		d.drop(rd, derrors.ErrEnqueueFailed)
		return
	}

	if metrics.DistributorEnqueuedTotal != nil {
		metrics.DistributorEnqueuedTotal.WithLabelValues(affinity).Inc()
	}
	if metrics.DistributorSerializerQueueDepth != nil {
		metrics.DistributorSerializerQueueDepth.WithLabelValues(s.Name()).Set(float64(s.Depth()))
	}
}

// runDistributeTask is the distribute task body, run on the chosen
// serializer: push the message through the rest of the pipeline, answer
// with a stateless 501 if nothing claimed it, then release the clone.
func (d *Distributor) runDistributeTask(rd *sipstack.RxData) {
	var handled bool
	if rd.IsRequest() {
		handled = d.sub.Pipeline.ProcessRxRequest(rd, ModuleName)
	} else {
		handled = d.sub.Pipeline.ProcessRxResponse(rd, ModuleName)
	}

	if !handled && rd.IsRequest() && !rd.IsACK() {
		rd.Respond(501, "Not Implemented")
		if metrics.DistributorStatelessResponses != nil {
			metrics.DistributorStatelessResponses.WithLabelValues("501").Inc()
		}
	}

	rd.ReleaseEndpoint()
	rd.Free()
}

// drop records a message that could not be dispatched: it logs the reason
// with call context and bumps the dropped-messages counter under the
// reason's metric label.
func (d *Distributor) drop(rd *sipstack.RxData, reason error) {
	wrapped := derrors.Wrap(reason, "dropping message").WithFields(map[string]interface{}{
		"call_id": rd.CallID(),
		"method":  rd.Method(),
	})
	d.sub.logger.WithError(wrapped).Warn("Distributor dropped message")

	if metrics.DistributorDroppedTotal != nil {
		metrics.DistributorDroppedTotal.WithLabelValues(dropMetricLabel(reason)).Inc()
	}
}

func dropMetricLabel(reason error) string {
	switch reason {
	case derrors.ErrNotBooted:
		return "not_booted"
	case derrors.ErrOverload:
		return "overload"
	case derrors.ErrSerializerGone:
		return "no_serializer"
	case derrors.ErrEnqueueFailed:
		return "enqueue_failed"
	default:
		return "unknown"
	}
}
