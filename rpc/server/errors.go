package server

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolved reports a device or object handle that is not registered. The message
	// is dropped, the connection is kept.
	ErrUnresolved = errors.New("unresolved handle")

	// ErrMalformedMessage reports a payload that can not be decoded. The message is
	// dropped, the connection is kept.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnsupportedEncoding reports a value the protocol can not encode. Skipping the
	// reply would leave the client waiting for it, so the connection is closed.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrEngine reports an engine call that did not produce a usable result
	ErrEngine = errors.New("engine failure")
)

func malformed(field string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedMessage, field, err)
}
