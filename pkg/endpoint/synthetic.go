package endpoint

// NewSynthetic creates the process-wide "artificial" endpoint and its
// matching artificial auth. It carries exactly one InboundAuth entry, a
// sentinel that RequiresAuthentication() checks for but that is never
// dereferenced for its credentials — do not remove it, and do not give it
// real-looking values; both would defeat its purpose of denying account
// enumeration to unidentified callers.
//
// realm is used on the synthetic auth; username and password are always
// empty, matching Asterisk's artificial auth (realm "asterisk", empty user
// and pass, type ARTIFICIAL).
func NewSynthetic(realm string) *Endpoint {
	ep := New("<artificial>")
	ep.Artificial = true
	ep.InboundAuths = []*InboundAuth{
		{
			Username:   "",
			Password:   "",
			Realm:      realm,
			Artificial: true,
		},
	}
	return ep
}
