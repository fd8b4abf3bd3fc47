package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "codejudge/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{InvalidParams, "Invalid parameters"},
		{LanguageNotSupported, "Programming language not supported"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{ValidationFailed, 400},
		{CodeTooLarge, 400},
		{TooManyTestCases, 400},
		{NotFound, 404},
		{JudgeQueueFull, 429},
		{SubmissionAborted, 504},
		{LanguageNotSupported, 500},
		{WorkspaceStorageError, 500},
		{ExecutionInfraError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestErrorCode_IsInfra(t *testing.T) {
	for _, code := range []ErrorCode{LanguageNotSupported, WorkspaceStorageError, ExecutionInfraError, SubmissionAborted} {
		if !code.IsInfra() {
			t.Errorf("%v should be infra", code)
		}
	}
	for _, code := range []ErrorCode{ValidationFailed, JudgeQueueFull, NotFound} {
		if code.IsInfra() {
			t.Errorf("%v should not be infra", code)
		}
	}
}

func TestNewf(t *testing.T) {
	err := Newf(LanguageNotSupported, "language %s not supported", "brainfuck")

	want := "language brainfuck not supported"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("permission denied")
	wrappedErr := Wrap(originalErr, WorkspaceStorageError)

	if wrappedErr.Code != WorkspaceStorageError {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, WorkspaceStorageError)
	}
	if wrappedErr.Unwrap() != originalErr {
		t.Error("Unwrap() should return original error")
	}
	if Wrap(nil, WorkspaceStorageError) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapfKeepsCause(t *testing.T) {
	err := Wrapf(context.DeadlineExceeded, SubmissionAborted, "run canceled")

	if err.Error() != "run canceled: context deadline exceeded" {
		t.Errorf("Error() = %v", err.Error())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is should reach the cause")
	}
	if Wrapf(nil, SubmissionAborted, "x") != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestError_WithDetail(t *testing.T) {
	err := New(ValidationFailed).
		WithDetail("field", "language").
		WithDetail("reason", "required")

	if err.Details["field"] != "language" {
		t.Error("Field detail not set correctly")
	}
	if err.Details["reason"] != "required" {
		t.Error("Reason detail not set correctly")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, Success},
		{"coded", New(JudgeQueueFull), JudgeQueueFull},
		{"wrapped coded", fmt.Errorf("outer: %w", New(ExecutionInfraError)), ExecutionInfraError},
		{"plain", errors.New("boom"), InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("test_cases", "required")
	if !Is(err, ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err.Code)
	}
	if err.Details["field"] != "test_cases" {
		t.Errorf("unexpected details %v", err.Details)
	}
}
