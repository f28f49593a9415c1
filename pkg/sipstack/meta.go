package sipstack

// FromUser returns the From header's user part, or "" if absent. Used by
// the endpoint identifier to resolve an endpoint store entry and by secevent
// logging for unidentified requests.
func (r *RxData) FromUser() string {
	msg := r.message()
	if msg == nil {
		return ""
	}
	from := msg.From()
	if from == nil {
		return ""
	}
	return from.Address.User
}

// FromURI renders the From header's URI for logging.
func (r *RxData) FromURI() string {
	msg := r.message()
	if msg == nil {
		return ""
	}
	from := msg.From()
	if from == nil {
		return ""
	}
	return from.Address.String()
}

// AuthHeader returns the Authorization header's raw value, or "" if the
// request carries none.
func (r *RxData) AuthHeader() string {
	if r.Request == nil {
		return ""
	}
	h := r.Request.GetHeader("Authorization")
	if h == nil {
		return ""
	}
	return h.Value()
}

// IsACK reports whether this buffer carries an ACK request.
func (r *RxData) IsACK() bool {
	return r.IsRequest() && r.Method() == "ACK"
}

// IsCANCEL reports whether this buffer carries a CANCEL request.
func (r *RxData) IsCANCEL() bool {
	return r.IsRequest() && r.Method() == "CANCEL"
}

// IsBYE reports whether this buffer carries a BYE request.
func (r *RxData) IsBYE() bool {
	return r.IsRequest() && r.Method() == "BYE"
}
