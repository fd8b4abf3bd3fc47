package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	"codejudge/internal/judge/repository"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/config"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	"codejudge/internal/judge/sandbox/workspace"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrKilled is the cancellation cause of a submission stopped through Kill.
var ErrKilled = errors.New("submission killed")

// LanguageCatalog resolves language strategies and lists what is available.
type LanguageCatalog interface {
	config.LanguageSpecRepository
	Languages() []string
}

// Service runs submissions end to end: validate, materialize, judge, clean up.
type Service struct {
	worker       *sandbox.Worker
	languages    LanguageCatalog
	materializer *workspace.Materializer
	statusRepo   *repository.StatusRepository
	publisher    repository.RunEventPublisher
	retry        *poolRetry

	requestLimits     model.RequestLimits
	defaultLimits     spec.ResourceLimit
	submissionTimeout time.Duration
	acquireTimeout    time.Duration
	statusTimeout     time.Duration
	sem               *semaphore.Weighted

	mu       sync.Mutex
	inflight map[string]context.CancelCauseFunc
}

// Config holds service dependencies and settings.
type Config struct {
	Worker       *sandbox.Worker
	Languages    LanguageCatalog
	Materializer *workspace.Materializer

	// StatusRepo and Publisher are optional.
	StatusRepo *repository.StatusRepository
	Publisher  repository.RunEventPublisher

	// RetryQueue and RetryTopic enable requeueing Kafka messages while the pool is full.
	RetryQueue         mq.Producer
	RetryTopic         string
	DeadLetterTopic    string
	PoolRetryMax       int
	PoolRetryBaseDelay time.Duration
	PoolRetryMaxDelay  time.Duration

	RequestLimits     model.RequestLimits
	DefaultLimits     spec.ResourceLimit
	SubmissionTimeout time.Duration
	AcquireTimeout    time.Duration
	StatusTimeout     time.Duration
	WorkerPoolSize    int
}

// NewService creates a new judge service and registers it as the worker's status reporter.
func NewService(cfg Config) (*Service, error) {
	if cfg.Worker == nil {
		return nil, fmt.Errorf("worker is required")
	}
	if cfg.Languages == nil {
		return nil, fmt.Errorf("language catalog is required")
	}
	if cfg.Materializer == nil {
		return nil, fmt.Errorf("materializer is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = 2 * time.Second
	}
	s := &Service{
		worker:            cfg.Worker,
		languages:         cfg.Languages,
		materializer:      cfg.Materializer,
		statusRepo:        cfg.StatusRepo,
		publisher:         cfg.Publisher,
		requestLimits:     cfg.RequestLimits,
		defaultLimits:     cfg.DefaultLimits,
		submissionTimeout: cfg.SubmissionTimeout,
		acquireTimeout:    acquireTimeout,
		statusTimeout:     cfg.StatusTimeout,
		sem:               semaphore.NewWeighted(int64(poolSize)),
		inflight:          make(map[string]context.CancelCauseFunc),
	}
	if cfg.RetryQueue != nil && cfg.RetryTopic != "" {
		s.retry = &poolRetry{
			queue:      cfg.RetryQueue,
			topic:      cfg.RetryTopic,
			deadLetter: cfg.DeadLetterTopic,
			maxRetry:   cfg.PoolRetryMax,
			baseDelay:  cfg.PoolRetryBaseDelay,
			maxDelay:   cfg.PoolRetryMaxDelay,
		}
	}
	s.worker.SetStatusReporter(s)
	return s, nil
}

// Languages lists the supported language ids.
func (s *Service) Languages() []string {
	return s.languages.Languages()
}

// Run judges one submission synchronously.
//
// Judged outcomes return a nil error. Infra failures and cancellation return
// an error together with whatever partial result exists; the workspace is
// removed on every path.
func (s *Service) Run(ctx context.Context, req model.RunRequest) (result.JudgeResult, error) {
	if err := req.Validate(s.requestLimits); err != nil {
		return result.JudgeResult{}, err
	}
	lang, err := s.languages.GetLanguageSpec(ctx, req.Language)
	if err != nil {
		return result.JudgeResult{}, err
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}
	ctx = logger.WithSubmission(ctx, req.SubmissionID)

	if err := s.acquireSlot(ctx); err != nil {
		return result.JudgeResult{}, err
	}
	defer s.sem.Release(1)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if err := s.register(req.SubmissionID, cancel); err != nil {
		return result.JudgeResult{}, err
	}
	defer s.unregister(req.SubmissionID)
	if s.submissionTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, s.submissionTimeout)
		defer cancelTimeout()
	}
	defer s.clearStatus(ctx, req.SubmissionID)

	start := time.Now()
	_ = s.ReportStatus(ctx, sandbox.StatusUpdate{
		SubmissionID: req.SubmissionID,
		Status:       result.StatusMaterializing,
		Language:     lang.ID,
		TotalTests:   len(req.TestCases),
	})
	ws, err := s.materializer.Materialize(runCtx, lang, req.SourceCode, req.Inputs())
	if err != nil {
		logger.Error(ctx, "materialize workspace failed", zap.Error(err))
		return result.JudgeResult{}, err
	}
	defer func() {
		if cleanupErr := ws.Cleanup(); cleanupErr != nil {
			logger.Warn(ctx, "workspace cleanup failed", zap.String("dir", ws.Dir), zap.Error(cleanupErr))
		}
	}()

	inputPaths, err := ws.ListInputs()
	if err != nil {
		return result.JudgeResult{}, err
	}
	if len(inputPaths) != len(req.TestCases) {
		return result.JudgeResult{}, appErr.Newf(appErr.WorkspaceStorageError,
			"workspace holds %d inputs, want %d", len(inputPaths), len(req.TestCases))
	}
	tests := make([]sandbox.TestcaseSpec, len(req.TestCases))
	for i, tc := range req.TestCases {
		tests[i] = sandbox.TestcaseSpec{
			Index:     i,
			InputPath: inputPaths[i],
			Input:     tc.Input,
			Expected:  tc.ExpectedOutput,
		}
	}
	res, err := s.worker.Execute(runCtx, sandbox.JudgeRequest{
		SubmissionID: req.SubmissionID,
		Language:     lang,
		WorkDir:      ws.Dir,
		SourcePath:   ws.SourcePath,
		BuildDir:     ws.BuildDir,
		Tests:        tests,
		Limits:       s.resolveLimits(req),
	})
	logger.Info(ctx, "submission finished",
		zap.String("language", lang.ID),
		zap.String("verdict", string(res.Verdict)),
		zap.Int("attempted", res.Attempted()),
		zap.Int("total", len(req.TestCases)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, err
}

// Kill cancels an in-flight submission. The run returns SubmissionAborted.
func (s *Service) Kill(ctx context.Context, submissionID string) error {
	if submissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	s.mu.Lock()
	cancel, ok := s.inflight[submissionID]
	s.mu.Unlock()
	if !ok {
		return appErr.New(appErr.NotFound).WithMessage("run is not in flight")
	}
	cancel(ErrKilled)
	logger.Info(ctx, "submission kill requested", zap.String("submission_id", submissionID))
	return nil
}

// Progress returns the live progress of an in-flight submission.
func (s *Service) Progress(ctx context.Context, submissionID string) (model.RunProgress, error) {
	if s.statusRepo == nil {
		return model.RunProgress{}, appErr.New(appErr.ServiceUnavailable).WithMessage("progress store is not configured")
	}
	return s.statusRepo.Get(ctx, submissionID)
}

func (s *Service) resolveLimits(req model.RunRequest) spec.ResourceLimit {
	return s.defaultLimits.Merge(spec.ResourceLimit{
		WallTimeMs: req.TimeLimitMs,
		MemoryMB:   req.MemoryLimitMB,
	})
}

func (s *Service) acquireSlot(ctx context.Context) error {
	ctxAcquire, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	if err := s.sem.Acquire(ctxAcquire, 1); err != nil {
		if ctx.Err() != nil {
			return appErr.Wrapf(context.Cause(ctx), appErr.SubmissionAborted, "canceled while waiting for a worker")
		}
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
	return nil
}

func (s *Service) register(submissionID string, cancel context.CancelCauseFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[submissionID]; ok {
		return appErr.ValidationError("submissionId", "already running")
	}
	s.inflight[submissionID] = cancel
	return nil
}

func (s *Service) unregister(submissionID string) {
	s.mu.Lock()
	delete(s.inflight, submissionID)
	s.mu.Unlock()
}
