// Package sandbox runs one submission through compile and ordered test execution.
package sandbox

import (
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/spec"
)

// JudgeRequest contains all data needed to execute one submission.
// All paths must point to files already materialized in the workspace.
type JudgeRequest struct {
	SubmissionID string
	Language     profile.LanguageSpec

	WorkDir    string
	SourcePath string
	BuildDir   string

	Tests  []TestcaseSpec
	Limits spec.ResourceLimit
}

// TestcaseSpec describes one test case in positional order.
type TestcaseSpec struct {
	Index     int
	InputPath string
	// Input is the literal input text, kept for diagnostics.
	Input    string
	Expected string
}
