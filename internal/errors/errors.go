package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a fishscroll error code.
type ErrorCode string

const (
	ErrDecode             ErrorCode = "DECODE_ERROR"        // 422
	ErrRender             ErrorCode = "RENDER_ERROR"        // 500
	ErrNoFrameAvailable   ErrorCode = "NO_FRAME_AVAILABLE"  // 409
	ErrCaptureBusy        ErrorCode = "CAPTURE_BUSY"        // 409
	ErrMissingInput       ErrorCode = "MISSING_INPUT"       // 400
	ErrNetwork            ErrorCode = "NETWORK_ERROR"       // 502
	ErrBackend            ErrorCode = "BACKEND_ERROR"       // 502
	ErrMalformedResponse  ErrorCode = "MALFORMED_RESPONSE"  // 502
	ErrPersistenceWarning ErrorCode = "PERSISTENCE_WARNING" // 507
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrInvalidState       ErrorCode = "INVALID_STATE"       // 409
	ErrStaleResult        ErrorCode = "STALE_RESULT"        // 409
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrCancelled          ErrorCode = "CANCELLED"           // 499
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// FishError represents a structured error with code, status, and details.
type FishError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *FishError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *FishError) Unwrap() error {
	return e.Cause
}

// NewDecode creates a 422 error for payloads that cannot be decoded as an image.
func NewDecode(err error) *FishError {
	return &FishError{
		Code:    ErrDecode,
		Status:  422,
		Message: fmt.Sprintf("image could not be decoded: %v", err),
		Cause:   err,
	}
}

// NewRender creates a 500 error for when the encoding surface cannot be produced.
func NewRender(err error) *FishError {
	return &FishError{
		Code:    ErrRender,
		Status:  500,
		Message: fmt.Sprintf("image could not be re-encoded: %v", err),
		Cause:   err,
	}
}

// NewNoFrameAvailable creates a 409 error for a shutter press with no ready feed.
func NewNoFrameAvailable(facing string, err error) *FishError {
	msg := fmt.Sprintf("no frame available from %s camera", facing)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &FishError{
		Code:    ErrNoFrameAvailable,
		Status:  409,
		Message: msg,
		Details: map[string]any{"facing": facing},
		Cause:   err,
	}
}

// NewCaptureBusy creates a 409 error when a capture or analysis is already in flight.
func NewCaptureBusy() *FishError {
	return &FishError{
		Code:    ErrCaptureBusy,
		Status:  409,
		Message: "a capture is already in progress",
	}
}

// NewMissingInput creates a 400 error for an empty image payload.
func NewMissingInput(msg string) *FishError {
	return &FishError{
		Code:    ErrMissingInput,
		Status:  400,
		Message: msg,
	}
}

// NewNetwork creates a 502 error for transport failures talking to the backend.
func NewNetwork(err error) *FishError {
	return &FishError{
		Code:    ErrNetwork,
		Status:  502,
		Message: fmt.Sprintf("analysis request failed: %v", err),
		Cause:   err,
	}
}

// NewBackend creates a 502 error for a non-success response from the backend.
// The backend's own status code is kept in Details["status"].
func NewBackend(status int, msg, rawResponse string) *FishError {
	details := map[string]any{"status": status}
	if rawResponse != "" {
		details["raw_response"] = rawResponse
	}
	if msg == "" {
		msg = fmt.Sprintf("analysis backend returned status %d", status)
	}
	return &FishError{
		Code:    ErrBackend,
		Status:  502,
		Message: msg,
		Details: details,
	}
}

// NewMalformedResponse creates a 502 error for a response that is not a valid
// analysis record. The raw text is retained for diagnostics.
func NewMalformedResponse(reason, rawResponse string) *FishError {
	return &FishError{
		Code:    ErrMalformedResponse,
		Status:  502,
		Message: fmt.Sprintf("analysis response is malformed: %s", reason),
		Details: map[string]any{"raw_response": rawResponse},
	}
}

// NewPersistenceWarning creates a 507 warning for history writes that did not
// reach durable storage. In-memory state is still updated.
func NewPersistenceWarning(err error) *FishError {
	return &FishError{
		Code:    ErrPersistenceWarning,
		Status:  507,
		Message: fmt.Sprintf("history was not persisted: %v", err),
		Cause:   err,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *FishError {
	return &FishError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidState creates a 409 error for session transitions that are not allowed.
func NewInvalidState(from, op string) *FishError {
	return &FishError{
		Code:    ErrInvalidState,
		Status:  409,
		Message: fmt.Sprintf("cannot %s while session is %s", op, from),
		Details: map[string]any{"state": from, "operation": op},
	}
}

// NewStaleResult creates a 409 error for an analysis that finished after the
// session moved on.
func NewStaleResult() *FishError {
	return &FishError{
		Code:    ErrStaleResult,
		Status:  409,
		Message: "analysis result discarded: session changed while request was in flight",
	}
}

// NewNotFound creates a 404 error for a missing history entry.
func NewNotFound(identifier string) *FishError {
	return &FishError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("history entry not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import or image file.
func NewFileNotFound(path string) *FishError {
	return &FishError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates a 499 error for an operation stopped by its context.
func NewCancelled(op string) *FishError {
	return &FishError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *FishError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &FishError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if an error is (or wraps) a FishError with the given code.
func Is(err error, code ErrorCode) bool {
	var fErr *FishError
	if stderrors.As(err, &fErr) {
		return fErr.Code == code
	}
	return false
}

// As returns the FishError in err's chain, if any.
func As(err error) (*FishError, bool) {
	var fErr *FishError
	ok := stderrors.As(err, &fErr)
	return fErr, ok
}

// RawResponse returns the raw backend text carried by err, or "".
func RawResponse(err error) string {
	fErr, ok := As(err)
	if !ok || fErr.Details == nil {
		return ""
	}
	raw, _ := fErr.Details["raw_response"].(string)
	return raw
}
