package chain

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned when the RPC endpoint applies backpressure.
var ErrRateLimited = errors.New("rate limited")

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Is reports rate-limit error codes as ErrRateLimited.
func (e *RPCError) Is(target error) bool {
	return target == ErrRateLimited && (e.Code == 429 || e.Code == -32429)
}

// HTTPStatusError is returned for non-200 responses other than 429.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
