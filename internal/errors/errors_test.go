package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestFishError_Error(t *testing.T) {
	err := &FishError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "history entry not found",
	}

	expected := "NOT_FOUND: history entry not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewDecode(t *testing.T) {
	cause := fmt.Errorf("image: unknown format")
	err := NewDecode(cause)

	if err.Code != ErrDecode {
		t.Errorf("Code = %q, want %q", err.Code, ErrDecode)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}

func TestNewRender(t *testing.T) {
	err := NewRender(fmt.Errorf("empty bounds"))

	if err.Code != ErrRender {
		t.Errorf("Code = %q, want %q", err.Code, ErrRender)
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
}

func TestNewNoFrameAvailable(t *testing.T) {
	err := NewNoFrameAvailable("environment", nil)

	if err.Code != ErrNoFrameAvailable {
		t.Errorf("Code = %q, want %q", err.Code, ErrNoFrameAvailable)
	}
	if err.Details["facing"] != "environment" {
		t.Errorf("Details[facing] = %v, want environment", err.Details["facing"])
	}
	if err.Message != "no frame available from environment camera" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewBackend(t *testing.T) {
	err := NewBackend(429, "rate limited", "")

	if err.Code != ErrBackend {
		t.Errorf("Code = %q, want %q", err.Code, ErrBackend)
	}
	if err.Details["status"] != 429 {
		t.Errorf("Details[status] = %v, want 429", err.Details["status"])
	}
	if _, ok := err.Details["raw_response"]; ok {
		t.Error("raw_response should be omitted when empty")
	}
}

func TestNewBackend_DefaultMessage(t *testing.T) {
	err := NewBackend(500, "", "oops")

	if err.Message != "analysis backend returned status 500" {
		t.Errorf("Message = %q", err.Message)
	}
	if RawResponse(err) != "oops" {
		t.Errorf("RawResponse = %q, want oops", RawResponse(err))
	}
}

func TestNewMalformedResponse(t *testing.T) {
	err := NewMalformedResponse("missing field \"confidence\"", "{}")

	if err.Code != ErrMalformedResponse {
		t.Errorf("Code = %q, want %q", err.Code, ErrMalformedResponse)
	}
	if RawResponse(err) != "{}" {
		t.Errorf("RawResponse = %q, want {}", RawResponse(err))
	}
}

func TestNewPersistenceWarning(t *testing.T) {
	err := NewPersistenceWarning(fmt.Errorf("quota exceeded"))

	if err.Status != 507 {
		t.Errorf("Status = %d, want 507", err.Status)
	}
}

func TestNewInvalidState(t *testing.T) {
	err := NewInvalidState("idle", "analyze")

	if err.Message != "cannot analyze while session is idle" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrInternal, false},
		{"wrapped", fmt.Errorf("ctx: %w", NewCaptureBusy()), ErrCaptureBusy, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRawResponse_NonFishError(t *testing.T) {
	if got := RawResponse(fmt.Errorf("plain")); got != "" {
		t.Errorf("RawResponse = %q, want empty", got)
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/tmp/nope.jsonl")
	if err.Code != ErrFileNotFound || err.Status != 404 {
		t.Errorf("got %s/%d, want FILE_NOT_FOUND/404", err.Code, err.Status)
	}
	if err.Details["path"] != "/tmp/nope.jsonl" {
		t.Errorf("Details[path] = %v", err.Details["path"])
	}
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled("export")
	if err.Code != ErrCancelled || err.Status != 499 {
		t.Errorf("got %s/%d, want CANCELLED/499", err.Code, err.Status)
	}
}
