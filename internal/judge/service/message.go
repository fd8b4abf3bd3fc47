package service

import (
	"context"
	"encoding/json"
	"time"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HandleMessage judges one Kafka run request and publishes its outcome.
//
// It returns nil for every judged or failed submission so the broker never
// redelivers it. A full worker pool requeues through the retry topic instead.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return nil
	}
	var req model.RunRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		logger.Warn(ctx, "decode run request failed", zap.String("message_id", msg.ID), zap.Error(err))
		s.publishOutcome(ctx, msg.ID, result.JudgeResult{}, appErr.Wrapf(err, appErr.InvalidParams, "decode run request failed"))
		return nil
	}
	if req.SubmissionID == "" {
		req.SubmissionID = msg.ID
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}

	ctx = logger.WithSubmission(ctx, req.SubmissionID)

	if s.statusRepo != nil {
		ok, err := s.statusRepo.Claim(ctx, req.SubmissionID)
		if err != nil {
			logger.Warn(ctx, "claim submission failed, judging anyway", zap.String("submission_id", req.SubmissionID), zap.Error(err))
		} else if !ok {
			logger.Info(ctx, "duplicate run request skipped", zap.String("submission_id", req.SubmissionID))
			return nil
		}
	}

	res, err := s.Run(ctx, req)
	if appErr.Is(err, appErr.JudgeQueueFull) && s.retry != nil {
		if s.statusRepo != nil {
			_ = s.statusRepo.Release(ctx, req.SubmissionID)
		}
		rqErr := s.retry.requeue(ctx, msg)
		if rqErr == nil {
			return nil
		}
		logger.Warn(ctx, "requeue run request failed", zap.String("submission_id", req.SubmissionID), zap.Error(rqErr))
	}
	s.publishOutcome(ctx, req.SubmissionID, res, err)
	return nil
}

func (s *Service) publishOutcome(ctx context.Context, submissionID string, res result.JudgeResult, runErr error) {
	if s.publisher == nil || submissionID == "" {
		return
	}
	event := model.RunEvent{
		SubmissionID: submissionID,
		FinishedAt:   time.Now().Unix(),
	}
	if res.SubmissionID != "" {
		resp := model.NewRunResponse(res)
		event.Result = &resp
	}
	if runErr != nil {
		event.ErrorCode = int(appErr.GetCode(runErr))
		event.Error = runErr.Error()
	}
	ctxPublish, cancel := s.withStatusTimeout(ctx)
	defer cancel()
	if err := s.publisher.PublishRunEvent(ctxPublish, event); err != nil {
		logger.Error(ctx, "publish run event failed", zap.String("submission_id", submissionID), zap.Error(err))
	}
}
