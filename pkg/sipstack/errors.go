package sipstack

import "errors"

var (
	errNoRequest = errors.New("sipstack: no request to respond to")
	errNoSender  = errors.New("sipstack: no sender attached to receive buffer")
)
