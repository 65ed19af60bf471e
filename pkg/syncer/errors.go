package syncer

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
)

// SyncError wraps the upstream or store failure of one (kind, day) sync.
type SyncError struct {
	Kind types.Kind
	Day  civil.Date
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s %s: %v", e.Kind, e.Day, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// RangeError collects the failed days of a range sync that continued past
// failures.
type RangeError struct {
	Failures []*SyncError
}

func (e *RangeError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%d day syncs failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes every day failure to errors.Is and errors.As.
func (e *RangeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// ErrInvalidRange is returned when a range starts after it ends.
var ErrInvalidRange = errors.New("start date is after end date")
