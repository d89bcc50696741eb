package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantErr  string
		wantUser string
	}{
		{
			name:     "what only",
			err:      &Error{What: "something broke"},
			wantErr:  "something broke",
			wantUser: "Error: something broke",
		},
		{
			name:     "what and why",
			err:      &Error{What: "something broke", Why: "bad input"},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input",
		},
		{
			name: "full error",
			err: &Error{
				What: "something broke",
				Why:  "bad input",
				Fix:  "try again",
			},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input\n\nFix: try again",
		},
		{
			name: "with cause",
			err: &Error{
				What:  "something broke",
				Cause: errors.New("underlying error"),
			},
			wantErr:  "something broke: underlying error",
			wantUser: "Error: something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantErr {
				t.Errorf("Error() = %q, want %q", got, tt.wantErr)
			}
			if got := tt.err.UserMessage(); got != tt.wantUser {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestErrorJSON(t *testing.T) {
	err := ErrNotFound("feature/42").WithCause(errors.New("row missing"))

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("MarshalJSON failed: %v", marshalErr)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if result["code"] != string(CodeNotFound) {
		t.Errorf("code = %v, want %v", result["code"], CodeNotFound)
	}
	if result["what"] != "feature/42 not found" {
		t.Errorf("what = %v, want %v", result["what"], "feature/42 not found")
	}
	if result["cause"] != "row missing" {
		t.Errorf("cause = %v, want %v", result["cause"], "row missing")
	}
}

func TestErrCycle(t *testing.T) {
	err := ErrCycle([]string{"3", "2", "1", "3"})

	if err.Code != CodeCycle {
		t.Errorf("Code = %v, want %v", err.Code, CodeCycle)
	}
	if err.Why != "3 -> 2 -> 1 -> 3" {
		t.Errorf("Why = %q, want cycle path", err.Why)
	}
}

func TestErrorCodeUniqueness(t *testing.T) {
	codes := []Code{
		CodeValidation,
		CodeCycle,
		CodeNotFound,
		CodeUnauthorized,
		CodeConflict,
		CodeNetwork,
		CodeTimeout,
		CodeSessionClosed,
		CodeConfigInvalid,
		CodeInternal,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("duplicate error code: %s", code)
		}
		seen[code] = true
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err        *Error
		wantStatus int
	}{
		{ErrValidation("title", "required"), 400},
		{ErrCycle([]string{"a", "a"}), 400},
		{ErrNotFound("feature/1"), 404},
		{ErrUnauthorized("expired"), 401},
		{ErrConflict("feature/1", "stale"), 409},
		{ErrNetwork(nil), 503},
		{ErrTimeout(nil), 504},
		{ErrSessionClosed(), 503},
		{ErrConfigInvalid("gateway.kind", "unknown"), 400},
		{Wrap(errors.New("x"), "boom"), 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestWithCause(t *testing.T) {
	original := ErrConflict("feature/1", "stale")
	cause := errors.New("updated_at mismatch")
	wrapped := original.WithCause(cause)

	if wrapped.Cause != cause {
		t.Error("WithCause should set the cause")
	}
	if original.Cause != nil {
		t.Error("Original should not be modified")
	}
	if wrapped.Code != original.Code || wrapped.What != original.What {
		t.Error("Code and What should be copied")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestIs(t *testing.T) {
	err1 := ErrNotFound("feature/1")
	err2 := ErrNotFound("task/2")
	err3 := ErrConflict("feature/1", "stale")

	if !errors.Is(err1, err2) {
		t.Error("errors with same code should match with Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match")
	}
	if !errors.Is(fmt.Errorf("submit: %w", err1), err2) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestAsError(t *testing.T) {
	if AsError(ErrCycle(nil)) == nil {
		t.Error("AsError should return the error")
	}
	if AsError(fmt.Errorf("ctx: %w", ErrTimeout(nil))) == nil {
		t.Error("AsError should return wrapped Error")
	}
	if AsError(errors.New("regular error")) != nil {
		t.Error("AsError should return nil for plain errors")
	}
	if AsError(nil) != nil {
		t.Error("AsError should return nil for nil error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNetwork(errors.New("reset")), true},
		{ErrTimeout(nil), true},
		{ErrConflict("feature/1", "stale"), true},
		{ErrValidation("title", "required"), false},
		{ErrNotFound("feature/1"), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrValidation("title", "required"))
	if !HasCode(err, CodeValidation) {
		t.Error("HasCode should find VALIDATION")
	}
	if HasCode(err, CodeCycle) {
		t.Error("HasCode should not find CYCLE")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(cause, "operation failed")

	if err.What != "operation failed" {
		t.Errorf("What = %v, want 'operation failed'", err.What)
	}
	if err.Cause != cause {
		t.Error("Cause should be set")
	}
	if err.Code != CodeInternal {
		t.Errorf("Code = %v, want INTERNAL", err.Code)
	}
}
