package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel values for the failure modes the distributor subsystem reports
// on its own, as opposed to errors bubbled up from a dependency.
var (
	ErrNotBooted      = errors.New("subsystem not fully booted")
	ErrOverload       = errors.New("serializer pool overloaded")
	ErrSerializerGone = errors.New("serializer no longer exists")
	ErrNoDialog       = errors.New("no matching dialog")
	ErrEnqueueFailed  = errors.New("failed to enqueue task on serializer")
	ErrInitFailed     = errors.New("distributor subsystem initialization failed")
)

// Error pairs a sentinel with call-site context: a human-readable message,
// arbitrary structured fields for logging, and the file:line it was
// constructed at.
type Error struct {
	original error
	message  string
	fields   map[string]interface{}
	file     string
	line     int
}

// Wrap wraps err with a message, returning nil if err is nil so callers can
// write `return derrors.Wrap(someErr, "...")` without a separate nil check.
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: err,
		message:  message,
		fields:   firstOrEmpty(fields),
		file:     file,
		line:     line,
	}
}

func firstOrEmpty(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 && fields[0] != nil {
		return fields[0]
	}
	return make(map[string]interface{})
}

// WithFields adds fields to the error context, returning a copy.
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+len(fields)),
		file:     e.file,
		line:     e.line,
	}
	for k, v := range e.fields {
		result.fields[k] = v
	}
	for k, v := range fields {
		result.fields[k] = v
	}
	return result
}

// Fields returns the error's context fields, for callers that log structured
// errors through something other than logrus's WithError/WithFields pair.
func (e *Error) Fields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}
	if e.message == "" {
		return e.original.Error()
	}
	return fmt.Sprintf("%s: %v (%s:%d)", e.message, e.original, e.file, e.line)
}

// Unwrap implements the errors.Unwrap interface.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}
