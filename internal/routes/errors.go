package routes

import (
	"errors"
	"net/http"

	"device-reservation/internal/access"
	"device-reservation/internal/reservation"
)

// HTTPError represents an error with an associated HTTP status code and user message
type HTTPError struct {
	Err        error    // The underlying error
	StatusCode int      // HTTP status code
	Message    string   // User-friendly message
	StopCodes  []string // Optional stop codes for client-side handling
	Internal   bool     // Whether this is an internal error (hide details from user)
}

// ErrorInfo contains error metadata for user-facing errors
type ErrorInfo struct {
	Message   string   // User-friendly message
	StopCodes []string // Optional stop codes, also used as dashboard notices
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(statusCode int, err error, message string, stopCodes ...string) *HTTPError {
	return &HTTPError{
		Err:        err,
		StatusCode: statusCode,
		Message:    message,
		StopCodes:  stopCodes,
		Internal:   statusCode >= 500,
	}
}

// Request level errors. Domain errors come from the reservation package.
var (
	ErrInvalidDeviceID = errors.New("invalid device id")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInternalServer  = errors.New("internal server error")
	ErrQRGeneration    = errors.New("failed to generate QR code")
)

// errorStatusMap maps errors to HTTP status codes. Specific errors are listed
// next to their class; lookups try exact matches first.
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrInvalidDeviceID:          http.StatusBadRequest,
	ErrInvalidRequest:           http.StatusBadRequest,
	reservation.ErrValidation:   http.StatusBadRequest,
	reservation.ErrUserRequired: http.StatusBadRequest,
	reservation.ErrNameRequired: http.StatusBadRequest,
	reservation.ErrInvalidETA:   http.StatusBadRequest,
	reservation.ErrETAInPast:    http.StatusBadRequest,
	reservation.ErrETATooFar:    http.StatusBadRequest,
	reservation.ErrInvalidDate:  http.StatusBadRequest,

	// 403 Forbidden
	reservation.ErrPermission: http.StatusForbidden,
	access.ErrNotHost:         http.StatusForbidden,

	// 404 Not Found
	reservation.ErrNotFound:       http.StatusNotFound,
	reservation.ErrDeviceNotFound: http.StatusNotFound,

	// 409 Conflict
	reservation.ErrConflict:    http.StatusConflict,
	reservation.ErrDeviceInUse: http.StatusConflict,

	// 500 Internal Server Error
	ErrInternalServer: http.StatusInternalServerError,
	ErrQRGeneration:   http.StatusInternalServerError,
}

// errorInfoMap maps errors to user-friendly messages and optional stop codes
var errorInfoMap = map[error]ErrorInfo{
	ErrInvalidDeviceID: {
		Message:   "Device ID must be a number",
		StopCodes: []string{"INVALID_DEVICE_ID"},
	},
	ErrInvalidRequest: {
		Message:   "Invalid request format",
		StopCodes: []string{"INVALID_REQUEST"},
	},
	reservation.ErrUserRequired: {
		Message:   "Enter your name to reserve a device",
		StopCodes: []string{"USER_REQUIRED"},
	},
	reservation.ErrNameRequired: {
		Message:   "Device name is required",
		StopCodes: []string{"NAME_REQUIRED"},
	},
	reservation.ErrInvalidETA: {
		Message:   "Return time is not a valid date and time",
		StopCodes: []string{"INVALID_ETA"},
	},
	reservation.ErrETAInPast: {
		Message:   "Return time is in the past",
		StopCodes: []string{"ETA_IN_PAST"},
	},
	reservation.ErrETATooFar: {
		Message:   "Return time is too far in the future",
		StopCodes: []string{"ETA_TOO_FAR"},
	},
	reservation.ErrInvalidDate: {
		Message:   "Dates must be given as YYYY-MM-DD",
		StopCodes: []string{"INVALID_DATE"},
	},
	reservation.ErrValidation: {
		Message:   "Invalid input",
		StopCodes: []string{"INVALID_INPUT"},
	},
	reservation.ErrDeviceInUse: {
		Message:   "Device is in use",
		StopCodes: []string{"DEVICE_IN_USE"},
	},
	reservation.ErrDeviceNotFound: {
		Message:   "Device not found",
		StopCodes: []string{"DEVICE_NOT_FOUND"},
	},
	access.ErrNotHost: {
		Message:   "Only available on the host machine",
		StopCodes: []string{"HOST_ONLY"},
	},

	// Internal (no stop codes for internal errors)
	ErrInternalServer: {
		Message: "An internal error occurred",
	},
	ErrQRGeneration: {
		Message: "Failed to generate QR code",
	},
}

// lookupError walks the wrap chain of err and returns the entry of the most
// specific known error. Reservation sentinels wrap their class, so a specific
// error is found before its class.
func lookupError[V any](m map[error]V, err error) (V, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if v, ok := m[e]; ok {
			return v, true
		}
	}
	for knownErr, v := range m {
		if errors.Is(err, knownErr) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	if status, ok := lookupError(errorStatusMap, err); ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetErrorInfo returns error information including message and stop codes
func GetErrorInfo(err error) ErrorInfo {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ErrorInfo{
			Message:   httpErr.Message,
			StopCodes: httpErr.StopCodes,
		}
	}
	if info, ok := lookupError(errorInfoMap, err); ok {
		return info
	}

	// For unknown errors, return a generic message for 5xx, specific for others
	if GetErrorStatus(err) >= 500 {
		return ErrorInfo{Message: "An internal error occurred"}
	}
	return ErrorInfo{Message: err.Error()}
}

func GetErrorMessage(err error) string {
	return GetErrorInfo(err).Message
}

func GetErrorStopCodes(err error) []string {
	return GetErrorInfo(err).StopCodes
}
