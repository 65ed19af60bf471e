package utility

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
)

// UpstreamError is returned when the supplier cannot be reached or answers
// with something other than a usable 2xx response.
type UpstreamError struct {
	Kind types.Kind
	Day  civil.Date
	// StatusCode is 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s rates for %s: status %d: %v", e.Kind, e.Day, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s rates for %s: %v", e.Kind, e.Day, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
