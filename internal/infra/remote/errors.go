package remote

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotConnected indicates the bridge process is not running.
	ErrNotConnected = errors.New("bridge not connected")

	// ErrBridgeClosed indicates the connection was closed and cannot be reused.
	ErrBridgeClosed = errors.New("bridge connection closed")

	// ErrBridgeUnavailable indicates the bridge could not be reached after retries.
	ErrBridgeUnavailable = errors.New("bridge unavailable")

	// ErrCircuitOpen indicates too many failures, calls are temporarily rejected.
	ErrCircuitOpen = errors.New("bridge temporarily disabled (circuit breaker open)")
)

// ClientError is an error reported by the remote side of the bridge.
// These are application-level failures, not transport failures, and are
// never retried.
type ClientError struct {
	Method  string
	Code    string
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("bridge call %s failed: %s (%s)", e.Method, e.Message, e.Code)
}

// IsClientError reports whether err is an application-level bridge error.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}
