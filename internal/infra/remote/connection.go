// Package remote provides a client for the external analysis bridge, a
// helper process spoken to over line-delimited JSON on stdin/stdout.
// The client layers circuit breaking, retries, and reconnection on top of
// a raw Connection so callers only see a request/response interface.
package remote

import (
	"context"
	"encoding/json"
)

// Request is the envelope sent to the bridge process.
type Request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Response is the envelope received from the bridge process. Exactly one
// of Result and Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

// ResponseError is an error reported inside a response envelope.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Connection is a single session with the bridge process.
//
// Implementations must be safe for concurrent use. Connect and Close are
// idempotent. After Close, Invoke returns ErrBridgeClosed.
type Connection interface {
	// Connect starts the session. Calling Connect on a live session is a no-op.
	Connect(ctx context.Context) error

	// Invoke sends one request and waits for its matching response.
	Invoke(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// Connected reports whether the session is currently usable.
	Connected() bool

	// Close terminates the session and releases its resources.
	Close() error
}
