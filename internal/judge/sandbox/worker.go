package sandbox

import (
	"context"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/runner"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Worker executes one submission: compile once, then every test case in order.
type Worker struct {
	runner         runner.Runner
	statusReporter StatusReporter
}

// NewWorker creates a new worker with required dependencies.
func NewWorker(r runner.Runner) *Worker {
	return &Worker{runner: r}
}

// SetStatusReporter injects a status reporter for intermediate updates.
func (w *Worker) SetStatusReporter(reporter StatusReporter) {
	w.statusReporter = reporter
}

// Execute runs the judge workflow for one submission.
//
// Judged outcomes, compile errors included, return a nil error. On an infra
// failure or cancellation the returned result still holds every case: the
// ones finished before the failure plus Aborted markers for the rest.
func (w *Worker) Execute(ctx context.Context, req JudgeRequest) (result.JudgeResult, error) {
	if err := validateJudgeRequest(req); err != nil {
		return result.JudgeResult{}, err
	}
	if w.runner == nil {
		return result.JudgeResult{}, appErr.New(appErr.JudgeSystemError).WithMessage("worker dependencies are not initialized")
	}

	total := len(req.Tests)
	res := result.JudgeResult{
		SubmissionID: req.SubmissionID,
		Status:       result.StatusCompiling,
		Language:     req.Language.ID,
		Total:        total,
		FirstFailure: -1,
	}

	if req.Language.CompileEnabled() {
		w.reportStatus(ctx, req, result.StatusCompiling, 0)
		compileRes, err := w.runner.Compile(ctx, runner.CompileRequest{
			SubmissionID: req.SubmissionID,
			Language:     req.Language,
			WorkDir:      req.WorkDir,
			SourcePath:   req.SourcePath,
			BuildDir:     req.BuildDir,
		})
		if err != nil {
			w.abort(ctx, req, &res, 0, err)
			return res, err
		}
		res.Compile = &compileRes
		if !compileRes.OK {
			res.Status = result.StatusDone
			res.Verdict = result.VerdictCompileError
			res.Tests = []result.TestcaseResult{}
			w.reportStatus(ctx, req, result.StatusDone, 0)
			logger.Info(ctx, "compile failed", zap.String("language", req.Language.ID), zap.Int("exit_code", compileRes.ExitCode))
			return res, nil
		}
	}

	res.Status = result.StatusRunning
	res.Tests = make([]result.TestcaseResult, 0, total)
	for i, tc := range req.Tests {
		w.reportStatus(ctx, req, result.StatusRunning, i)
		caseRes, err := w.runner.Run(ctx, runner.RunRequest{
			SubmissionID: req.SubmissionID,
			Index:        tc.Index,
			Language:     req.Language,
			WorkDir:      req.WorkDir,
			SourcePath:   req.SourcePath,
			BuildDir:     req.BuildDir,
			InputPath:    tc.InputPath,
			Expected:     tc.Expected,
			Limits:       req.Limits,
		})
		if err == nil && caseRes.Verdict == result.VerdictAborted {
			cause := context.Cause(ctx)
			if cause == nil {
				cause = context.Canceled
			}
			err = appErr.Wrapf(cause, appErr.SubmissionAborted, "submission aborted at test %d", tc.Index)
		}
		if err != nil {
			w.abort(ctx, req, &res, i, err)
			return res, err
		}
		if caseRes.Verdict != result.VerdictAccepted && res.FirstFailure < 0 {
			res.FirstFailure = tc.Index
			caseRes.Diagnostics = &result.Diagnostics{
				Input:    tc.Input,
				Expected: tc.Expected,
				Actual:   caseRes.Stdout,
			}
		}
		logger.Debug(ctx, "test case finished",
			zap.Int("test_index", tc.Index),
			zap.String("verdict", string(caseRes.Verdict)),
			zap.Int64("time_ms", caseRes.TimeMs),
		)
		res.Tests = append(res.Tests, caseRes)
	}

	w.reportStatus(ctx, req, result.StatusAggregating, total)
	res.Verdict = result.Worst(res.Verdicts()...)
	res.Status = result.StatusDone
	w.reportStatus(ctx, req, result.StatusDone, total)
	return res, nil
}

// abort marks the case at index from and every later case as Aborted.
func (w *Worker) abort(ctx context.Context, req JudgeRequest, res *result.JudgeResult, from int, cause error) {
	for _, tc := range req.Tests[from:] {
		res.Tests = append(res.Tests, result.TestcaseResult{
			Index:   tc.Index,
			Verdict: result.VerdictAborted,
			Message: "not attempted",
		})
	}
	res.Status = result.StatusAborted
	res.Verdict = result.VerdictExecutionInfraError
	w.reportStatus(ctx, req, result.StatusAborted, from)
	logger.Error(ctx, "submission aborted",
		zap.String("language", req.Language.ID),
		zap.Int("test_index", from),
		zap.Int("code", int(appErr.GetCode(cause))),
		zap.Error(cause),
	)
}

func (w *Worker) reportStatus(ctx context.Context, req JudgeRequest, status result.JudgeStatus, done int) {
	logger.Debug(ctx, "judge state transition",
		zap.String("state", string(status)),
		zap.String("language", req.Language.ID),
		zap.Int("done_tests", done),
	)
	if w.statusReporter == nil {
		return
	}
	// Progress is advisory; the reporter never fails the run.
	_ = w.statusReporter.ReportStatus(context.WithoutCancel(ctx), StatusUpdate{
		SubmissionID: req.SubmissionID,
		Status:       status,
		Language:     req.Language.ID,
		TotalTests:   len(req.Tests),
		DoneTests:    done,
	})
}

func validateJudgeRequest(req JudgeRequest) error {
	if req.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if req.Language.ID == "" {
		return appErr.ValidationError("language", "required")
	}
	if req.WorkDir == "" {
		return appErr.ValidationError("work_dir", "required")
	}
	if req.SourcePath == "" {
		return appErr.ValidationError("source_path", "required")
	}
	if len(req.Tests) == 0 {
		return appErr.ValidationError("test_cases", "required")
	}
	for _, tc := range req.Tests {
		if tc.InputPath == "" {
			return appErr.ValidationError("input_path", "required")
		}
	}
	return nil
}
