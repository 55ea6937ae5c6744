package ledger

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned once every attempt of a call was throttled.
var ErrRateLimited = errors.New("rate limited")

// TransportError wraps a non-throttling failure of the remote call.
// Such failures are surfaced on the first occurrence.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
