package extraction

import (
	"fmt"
	"time"
)

// MalformedResponseError reports a generator answer that was not a JSON object.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed extraction response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// TimeoutError reports an extraction call that ran past its deadline.
type TimeoutError struct {
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("extraction timed out after %s", e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
