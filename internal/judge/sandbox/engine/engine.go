// Package engine spawns and supervises one external process per run.
package engine

import (
	"context"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
)

// Engine executes a RunSpec and reports what happened.
// A returned error means the process could not be supervised at all.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}

// Config controls engine behavior.
type Config struct {
	// StdoutStderrMaxBytes caps each captured stream when a RunSpec sets no ceiling.
	StdoutStderrMaxBytes int64
	// CgroupRoot must be a delegated cgroup v2 directory when EnableCgroup is set.
	CgroupRoot   string
	EnableCgroup bool
	// PathEnv is the PATH given to child processes. Empty inherits the host PATH.
	PathEnv string
}

const defaultStdoutStderrMaxBytes int64 = 64 * 1024
