package dispatch

import (
	"fmt"

	"orus/internal/value"
)

// runtimeError is a dispatch-detected fault (type mismatch, division by
// zero, array bounds, ...). It carries both a Go error view (for returning
// out of Run when uncaught) and the boxed value.ErrorObj view try/catch
// binds to a catch register (spec §4.8's runtime error taxonomy, reusing
// the ErrorType enum spec §7 defines for compile-time diagnostics).
type runtimeError struct {
	kind value.ErrorType
	msg  string
}

func (e *runtimeError) Error() string { return e.msg }

func (e *runtimeError) value() value.Value {
	return value.BoxError(&value.ErrorObj{Kind: e.kind, Message: e.msg})
}

func typeErrorf(format string, args ...interface{}) error {
	return &runtimeError{kind: value.ErrType, msg: fmt.Sprintf(format, args...)}
}

func valueErrorf(format string, args ...interface{}) error {
	return &runtimeError{kind: value.ErrValue, msg: fmt.Sprintf(format, args...)}
}

func runtimeErrorf(format string, args ...interface{}) error {
	return &runtimeError{kind: value.ErrRuntime, msg: fmt.Sprintf(format, args...)}
}

// asErrorValue converts any error Run's opcode handlers produced into the
// boxed Value a catch block binds, so raising treats host runtimeErrors and
// language-level `throw`d values uniformly.
func asErrorValue(err error) value.Value {
	if re, ok := err.(*runtimeError); ok {
		return re.value()
	}
	return value.BoxError(&value.ErrorObj{Kind: value.ErrRuntime, Message: err.Error()})
}
