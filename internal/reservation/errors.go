package reservation

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the Engine wraps exactly one of them,
// except persistence failures that have no fallback.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
)

var (
	ErrUserRequired = fmt.Errorf("%w: user is required", ErrValidation)
	ErrNameRequired = fmt.Errorf("%w: name is required", ErrValidation)
	ErrInvalidETA   = fmt.Errorf("%w: eta is not a valid timestamp", ErrValidation)
	ErrETAInPast    = fmt.Errorf("%w: eta is in the past", ErrValidation)
	ErrETATooFar    = fmt.Errorf("%w: eta is too far in the future", ErrValidation)
	ErrInvalidDate  = fmt.Errorf("%w: invalid date", ErrValidation)

	ErrDeviceInUse = fmt.Errorf("%w: device is in use", ErrConflict)

	ErrDeviceNotFound = fmt.Errorf("%w: device", ErrNotFound)
)
