package model

import "codejudge/internal/judge/sandbox/result"

// RunResponse is the boundary result of one submission.
type RunResponse struct {
	SubmissionID    string           `json:"submissionId"`
	Status          string           `json:"status"`
	OverallVerdict  string           `json:"overallVerdict"`
	Language        string           `json:"language"`
	TestCaseResults []TestCaseResult `json:"testCaseResults"`
	CompileError    string           `json:"compileError,omitempty"`
	CompileTimeMs   int64            `json:"compileTimeMs,omitempty"`
	Attempted       int              `json:"attempted"`
	Total           int              `json:"total"`
	FirstFailure    *FailureDetail   `json:"firstFailure,omitempty"`
}

// TestCaseResult is the per-case view returned to callers.
type TestCaseResult struct {
	Index        int    `json:"index"`
	Verdict      string `json:"verdict"`
	ActualOutput string `json:"actualOutput,omitempty"`
	ElapsedMs    int64  `json:"elapsedMs"`
	MemoryKB     int64  `json:"memoryKb,omitempty"`
	ExitCode     int    `json:"exitCode"`
	Message      string `json:"message,omitempty"`
}

// FailureDetail is the literal triple of the first failing case.
type FailureDetail struct {
	Index    int    `json:"index"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// NewRunResponse converts a judge result to its boundary form.
func NewRunResponse(res result.JudgeResult) RunResponse {
	resp := RunResponse{
		SubmissionID:    res.SubmissionID,
		Status:          string(res.Status),
		OverallVerdict:  string(res.Verdict),
		Language:        res.Language,
		TestCaseResults: make([]TestCaseResult, 0, len(res.Tests)),
		Attempted:       res.Attempted(),
		Total:           res.Total,
	}
	if res.Compile != nil {
		resp.CompileTimeMs = res.Compile.TimeMs
		if !res.Compile.OK {
			resp.CompileError = res.Compile.Error
		}
	}
	for _, tc := range res.Tests {
		resp.TestCaseResults = append(resp.TestCaseResults, TestCaseResult{
			Index:        tc.Index,
			Verdict:      string(tc.Verdict),
			ActualOutput: tc.Stdout,
			ElapsedMs:    tc.TimeMs,
			MemoryKB:     tc.MemoryKB,
			ExitCode:     tc.ExitCode,
			Message:      tc.Message,
		})
		if tc.Diagnostics != nil && resp.FirstFailure == nil {
			resp.FirstFailure = &FailureDetail{
				Index:    tc.Index,
				Input:    tc.Diagnostics.Input,
				Expected: tc.Diagnostics.Expected,
				Actual:   tc.Diagnostics.Actual,
			}
		}
	}
	return resp
}
