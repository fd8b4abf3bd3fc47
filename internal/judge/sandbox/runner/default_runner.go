package runner

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"codejudge/internal/judge/sandbox/config"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	"codejudge/internal/judge/sandbox/verdict"
	appErr "codejudge/pkg/errors"
)

const (
	msgOutputLimit  = "output limit exceeded"
	msgMemoryLimit  = "memory limit exceeded"
	msgCompileLimit = "compilation timed out"
)

// Options tunes the default runner.
type Options struct {
	// CompileLimits applies to every compile step.
	CompileLimits spec.ResourceLimit
	Comparer      *verdict.Comparer
	Metrics       observer.MetricsRecorder
}

// DefaultRunner implements compile/run workflows for any registered language.
type DefaultRunner struct {
	eng           engine.Engine
	comparer      *verdict.Comparer
	metrics       observer.MetricsRecorder
	compileLimits spec.ResourceLimit
}

// NewRunner creates a new runner backed by the engine.
func NewRunner(eng engine.Engine, opts Options) *DefaultRunner {
	if opts.Comparer == nil {
		opts.Comparer = verdict.NewComparer(verdict.PolicyFull)
	}
	if opts.Metrics == nil {
		opts.Metrics = observer.NoopMetricsRecorder{}
	}
	return &DefaultRunner{
		eng:           eng,
		comparer:      opts.Comparer,
		metrics:       opts.Metrics,
		compileLimits: opts.CompileLimits,
	}
}

func (r *DefaultRunner) Compile(ctx context.Context, req CompileRequest) (result.CompileResult, error) {
	if err := validateCompileRequest(req); err != nil {
		return result.CompileResult{}, err
	}
	if !req.Language.CompileEnabled() {
		return result.CompileResult{OK: true}, nil
	}

	paths := config.Paths{Dir: req.WorkDir, Source: req.SourcePath, Build: req.BuildDir}
	cmd, err := config.ExpandCommand(req.Language.CompileCmd, req.Language, paths)
	if err != nil {
		return result.CompileResult{}, err
	}
	runRes, err := r.eng.Run(ctx, spec.RunSpec{
		SubmissionID: req.SubmissionID,
		TestID:       "compile",
		WorkDir:      req.WorkDir,
		Cmd:          cmd,
		Env:          config.ExpandEnv(req.Language.Env, req.Language, paths),
		Limits:       r.compileLimits,
	})
	if err != nil {
		r.metrics.ObserveCompile(ctx, req.Language.ID, false, runRes.WallTimeMs)
		return result.CompileResult{}, err
	}
	if runRes.Canceled {
		cause := context.Cause(ctx)
		if cause == nil {
			cause = context.Canceled
		}
		return result.CompileResult{}, appErr.Wrapf(cause, appErr.SubmissionAborted, "compile canceled")
	}

	compileRes := result.CompileResult{
		OK:       runRes.ExitCode == 0 && !runRes.TimedOut,
		ExitCode: runRes.ExitCode,
		TimeMs:   runRes.WallTimeMs,
		TimedOut: runRes.TimedOut,
	}
	switch {
	case runRes.TimedOut:
		compileRes.Error = msgCompileLimit
	case runRes.ExitCode != 0:
		compileRes.Error = compilerMessage(runRes)
	}
	r.metrics.ObserveCompile(ctx, req.Language.ID, compileRes.OK, compileRes.TimeMs)
	return compileRes, nil
}

func (r *DefaultRunner) Run(ctx context.Context, req RunRequest) (result.TestcaseResult, error) {
	if err := validateRunRequest(req); err != nil {
		return result.TestcaseResult{}, err
	}

	limits := applyMultipliers(req.Limits, req.Language)
	paths := config.Paths{Dir: req.WorkDir, Source: req.SourcePath, Build: req.BuildDir}
	cmd, err := config.ExpandCommand(req.Language.RunCmd, req.Language, paths)
	if err != nil {
		return result.TestcaseResult{}, err
	}

	runRes, runErr := r.eng.Run(ctx, spec.RunSpec{
		SubmissionID: req.SubmissionID,
		TestID:       strconv.Itoa(req.Index),
		WorkDir:      req.WorkDir,
		Cmd:          cmd,
		Env:          config.ExpandEnv(req.Language.Env, req.Language, paths),
		StdinPath:    req.InputPath,
		Limits:       limits,
	})
	if runErr != nil {
		r.metrics.ObserveRun(ctx, req.Language.ID, string(result.VerdictExecutionInfraError), 0, 0)
		return result.TestcaseResult{Index: req.Index, Verdict: result.VerdictAborted}, runErr
	}

	res := result.TestcaseResult{
		Index:    req.Index,
		Stdout:   runRes.Stdout,
		Stderr:   runRes.Stderr,
		ExitCode: runRes.ExitCode,
		TimeMs:   runRes.WallTimeMs,
		MemoryKB: runRes.MemoryKB,
	}
	res.Verdict, res.Message = mapRunVerdict(runRes, limits)
	if res.Verdict == result.VerdictAccepted {
		if ok, msg := r.comparer.Compare(req.Expected, runRes.Stdout); !ok {
			res.Verdict = result.VerdictWrongAnswer
			res.Message = msg
		}
	}
	if res.Verdict != result.VerdictAborted {
		r.metrics.ObserveRun(ctx, req.Language.ID, string(res.Verdict), res.TimeMs, res.MemoryKB)
	}
	return res, nil
}

// mapRunVerdict classifies raw facts. Accepted here only means the
// process exited cleanly; the comparer decides the rest.
//
// Only a kernel OOM kill (cgroup mode) is labelled as a memory failure.
// Under RLIMIT_AS the allocation fails inside the program, so the run is
// reported by how the program itself died.
func mapRunVerdict(res result.RunResult, limits spec.ResourceLimit) (result.Verdict, string) {
	if res.Canceled {
		return result.VerdictAborted, "submission aborted"
	}
	if res.TimedOut {
		return result.VerdictTimeLimitExceeded, fmt.Sprintf("wall time limit %d ms exceeded", limits.WallTimeMs)
	}
	if res.OutputExceeded {
		return result.VerdictRuntimeError, msgOutputLimit
	}
	if res.OomKilled {
		return result.VerdictRuntimeError, msgMemoryLimit
	}
	if res.ExitCode != 0 {
		if res.Signal != "" {
			return result.VerdictRuntimeError, "killed by " + res.Signal
		}
		return result.VerdictRuntimeError, fmt.Sprintf("exit code %d", res.ExitCode)
	}
	return result.VerdictAccepted, ""
}

func applyMultipliers(limits spec.ResourceLimit, lang profile.LanguageSpec) spec.ResourceLimit {
	limits.WallTimeMs = scaleLimit(limits.WallTimeMs, lang.TimeMultiplier)
	limits.MemoryMB = scaleLimit(limits.MemoryMB, lang.MemoryMultiplier)
	if lang.UnlimitedMemory {
		limits.MemoryMB = 0
	}
	return limits
}

func scaleLimit(value int64, multiplier float64) int64 {
	if value <= 0 {
		return 0
	}
	if multiplier <= 0 {
		return value
	}
	return int64(math.Ceil(float64(value) * multiplier))
}

func compilerMessage(res result.RunResult) string {
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(res.Stdout)
	}
	if msg == "" {
		msg = fmt.Sprintf("compiler exited with code %d", res.ExitCode)
	}
	return msg
}

func validateCompileRequest(req CompileRequest) error {
	if req.Language.ID == "" {
		return appErr.ValidationError("language_id", "required")
	}
	if req.WorkDir == "" {
		return appErr.ValidationError("work_dir", "required")
	}
	if req.SourcePath == "" {
		return appErr.ValidationError("source_path", "required")
	}
	return nil
}

func validateRunRequest(req RunRequest) error {
	if req.Language.ID == "" {
		return appErr.ValidationError("language_id", "required")
	}
	if req.WorkDir == "" {
		return appErr.ValidationError("work_dir", "required")
	}
	if req.InputPath == "" {
		return appErr.ValidationError("input_path", "required")
	}
	return nil
}
