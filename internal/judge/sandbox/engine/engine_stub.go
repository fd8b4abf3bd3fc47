//go:build !linux

package engine

import (
	"context"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	appErr "codejudge/pkg/errors"
)

type stubEngine struct{}

// NewEngine returns an engine that refuses to run on this platform.
func NewEngine(cfg Config) (Engine, error) {
	return &stubEngine{}, nil
}

func (s *stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	return result.RunResult{}, appErr.New(appErr.ExecutionInfraError).WithMessage("process engine is only supported on linux")
}
