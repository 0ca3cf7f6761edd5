package client

import (
	"errors"
	"fmt"

	"github.com/calimero-network/calimero-go/pkg/id"
)

// ValidationError reports malformed caller input (identifier or URL). It is
// the same type produced by the id package so callers can match either
// source with one errors.As target.
type ValidationError = id.ValidationError

// ErrNotFound is returned when the node reports that the requested alias or
// identifier does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotImplemented is returned when the node explicitly marks a capability
// as unimplemented. It is distinct from a generic HTTP failure because
// callers branch on it.
var ErrNotImplemented = errors.New("capability not implemented by node")

// TransportError wraps a connect, DNS, reset, or timeout failure that
// occurred before any HTTP status was received.
type TransportError struct {
	Op      string // e.g. "POST admin-api/contexts"
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError reports that the node rejected the request semantics. Status is
// the verbatim HTTP status code; Message carries any decodable error body.
type HTTPError struct {
	Status  int
	Message string
	Code    string // node error code when present
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("node returned HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("node returned HTTP %d", e.Status)
}

// DecodeError reports a response body that did not match the expected shape.
// This is a contract violation between client and node version and is never
// silently defaulted.
type DecodeError struct {
	Field string // logical field name when a required field is missing
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode response: missing required field %q", e.Field)
	}
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
