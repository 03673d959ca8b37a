package services

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks caller mistakes such as an unknown ranking metric
// or a non-positive forecast horizon.
var ErrInvalidArgument = errors.New("invalid argument")

// LookupError reports a store, category or product that is not in the
// master tables.
type LookupError struct {
	Kind string
	Key  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Key)
}

// InsufficientDataError means a forecast was refused because the series is
// shorter than the configured minimum.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough data to forecast: have %d observations, need %d", e.Have, e.Need)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
