package model

import (
	"strings"
	"testing"

	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"
)

func validRequest() RunRequest {
	return RunRequest{
		Language:   "python",
		SourceCode: "print(input())",
		TestCases:  []TestCaseInput{{Input: "1\n", ExpectedOutput: "1"}},
	}
}

func TestRunRequestValidate(t *testing.T) {
	limits := RequestLimits{MaxSourceBytes: 16, MaxTestCases: 2, MaxTimeLimitMs: 5000, MaxMemoryMB: 512}
	cases := []struct {
		name   string
		mutate func(*RunRequest)
		code   appErr.ErrorCode
	}{
		{"ok", func(*RunRequest) {}, appErr.Success},
		{"no language", func(r *RunRequest) { r.Language = "" }, appErr.ValidationFailed},
		{"no source", func(r *RunRequest) { r.SourceCode = "" }, appErr.ValidationFailed},
		{"source too large", func(r *RunRequest) { r.SourceCode = strings.Repeat("x", 17) }, appErr.CodeTooLarge},
		{"no tests", func(r *RunRequest) { r.TestCases = nil }, appErr.ValidationFailed},
		{"too many tests", func(r *RunRequest) { r.TestCases = make([]TestCaseInput, 3) }, appErr.TooManyTestCases},
		{"negative time", func(r *RunRequest) { r.TimeLimitMs = -1 }, appErr.ValidationFailed},
		{"time above max", func(r *RunRequest) { r.TimeLimitMs = 6000 }, appErr.ValidationFailed},
		{"memory above max", func(r *RunRequest) { r.MemoryLimitMB = 1024 }, appErr.ValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate(limits)
			if tc.code == appErr.Success {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !appErr.Is(err, tc.code) {
				t.Fatalf("expected code %d, got %v", tc.code, err)
			}
		})
	}
}

func TestNewRunResponseCompileError(t *testing.T) {
	resp := NewRunResponse(result.JudgeResult{
		SubmissionID: "s",
		Status:       result.StatusDone,
		Verdict:      result.VerdictCompileError,
		Compile:      &result.CompileResult{OK: false, Error: "syntax error", TimeMs: 12},
		Tests:        []result.TestcaseResult{},
		Total:        2,
		FirstFailure: -1,
	})
	if resp.OverallVerdict != "CompileError" || resp.CompileError != "syntax error" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.TestCaseResults == nil || len(resp.TestCaseResults) != 0 || resp.Attempted != 0 {
		t.Fatalf("compile error must carry an empty result list: %+v", resp)
	}
}

func TestNewRunResponseFirstFailure(t *testing.T) {
	resp := NewRunResponse(result.JudgeResult{
		SubmissionID: "s",
		Status:       result.StatusDone,
		Verdict:      result.VerdictWrongAnswer,
		Tests: []result.TestcaseResult{
			{Index: 0, Verdict: result.VerdictAccepted, Stdout: "1", TimeMs: 3},
			{Index: 1, Verdict: result.VerdictWrongAnswer, Stdout: "3", Message: "line 1",
				Diagnostics: &result.Diagnostics{Input: "1 1", Expected: "2", Actual: "3"}},
		},
		Total:        2,
		FirstFailure: 1,
	})
	if resp.Attempted != 2 || len(resp.TestCaseResults) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.FirstFailure == nil || resp.FirstFailure.Index != 1 || resp.FirstFailure.Expected != "2" {
		t.Fatalf("unexpected first failure: %+v", resp.FirstFailure)
	}
	if resp.TestCaseResults[0].ActualOutput != "1" || resp.TestCaseResults[0].ElapsedMs != 3 {
		t.Fatalf("unexpected case: %+v", resp.TestCaseResults[0])
	}
}
