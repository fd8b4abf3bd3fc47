package model

import (
	"strconv"

	appErr "codejudge/pkg/errors"
)

// RunRequest is the boundary payload for one submission, over HTTP or Kafka.
type RunRequest struct {
	// SubmissionID is optional; a fresh id is generated when empty.
	SubmissionID string          `json:"submissionId,omitempty"`
	Language     string          `json:"language"`
	SourceCode   string          `json:"sourceCode"`
	TestCases    []TestCaseInput `json:"testCases"`

	TimeLimitMs   int64 `json:"timeLimitMs,omitempty"`
	MemoryLimitMB int64 `json:"memoryLimitMb,omitempty"`
}

// TestCaseInput is one positional test case; duplicates are judged independently.
type TestCaseInput struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// RequestLimits bounds what a caller may submit.
type RequestLimits struct {
	MaxSourceBytes int
	MaxTestCases   int
	MaxTimeLimitMs int64
	MaxMemoryMB    int64
}

// Validate checks the request shape against limits. Zero limits are not enforced.
func (r *RunRequest) Validate(limits RequestLimits) error {
	if r.Language == "" {
		return appErr.ValidationError("language", "required")
	}
	if r.SourceCode == "" {
		return appErr.ValidationError("sourceCode", "required")
	}
	if limits.MaxSourceBytes > 0 && len(r.SourceCode) > limits.MaxSourceBytes {
		return appErr.New(appErr.CodeTooLarge).
			WithMessagef("source code exceeds %d bytes", limits.MaxSourceBytes).
			WithDetail("size", len(r.SourceCode))
	}
	if len(r.TestCases) == 0 {
		return appErr.ValidationError("testCases", "at least one test case is required")
	}
	if limits.MaxTestCases > 0 && len(r.TestCases) > limits.MaxTestCases {
		return appErr.New(appErr.TooManyTestCases).
			WithMessagef("at most %d test cases are allowed", limits.MaxTestCases).
			WithDetail("count", len(r.TestCases))
	}
	if r.TimeLimitMs < 0 {
		return appErr.ValidationError("timeLimitMs", "must not be negative")
	}
	if limits.MaxTimeLimitMs > 0 && r.TimeLimitMs > limits.MaxTimeLimitMs {
		return appErr.ValidationError("timeLimitMs", "must not exceed "+strconv.FormatInt(limits.MaxTimeLimitMs, 10))
	}
	if r.MemoryLimitMB < 0 {
		return appErr.ValidationError("memoryLimitMb", "must not be negative")
	}
	if limits.MaxMemoryMB > 0 && r.MemoryLimitMB > limits.MaxMemoryMB {
		return appErr.ValidationError("memoryLimitMb", "must not exceed "+strconv.FormatInt(limits.MaxMemoryMB, 10))
	}
	return nil
}

// Inputs returns the test case inputs in positional order.
func (r *RunRequest) Inputs() []string {
	inputs := make([]string, len(r.TestCases))
	for i, tc := range r.TestCases {
		inputs[i] = tc.Input
	}
	return inputs
}
