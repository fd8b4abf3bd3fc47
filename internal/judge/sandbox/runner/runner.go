// Package runner turns language recipes into engine runs and classifies them.
package runner

import (
	"context"

	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
)

// CompileRequest describes one compilation task.
type CompileRequest struct {
	SubmissionID string
	Language     profile.LanguageSpec
	WorkDir      string
	SourcePath   string
	BuildDir     string
}

// RunRequest describes one test case execution.
type RunRequest struct {
	SubmissionID string
	Index        int
	Language     profile.LanguageSpec
	WorkDir      string
	SourcePath   string
	BuildDir     string
	InputPath    string
	Expected     string
	Limits       spec.ResourceLimit
}

// Runner orchestrates compile and run workflows.
// Judged outcomes are values; an error is returned only for infra failures.
type Runner interface {
	Compile(ctx context.Context, req CompileRequest) (result.CompileResult, error)
	Run(ctx context.Context, req RunRequest) (result.TestcaseResult, error)
}
