package service

import (
	"context"
	"time"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

func (s *Service) withStatusTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.statusTimeout > 0 {
		return context.WithTimeout(context.WithoutCancel(ctx), s.statusTimeout)
	}
	return context.WithoutCancel(ctx), func() {}
}

// ReportStatus stores intermediate progress for GET /runs/:id.
func (s *Service) ReportStatus(ctx context.Context, update sandbox.StatusUpdate) error {
	if s.statusRepo == nil {
		return nil
	}
	ctxStatus, cancel := s.withStatusTimeout(ctx)
	defer cancel()
	progress := model.RunProgress{
		SubmissionID: update.SubmissionID,
		State:        string(update.Status),
		Language:     update.Language,
		TotalTests:   update.TotalTests,
		DoneTests:    update.DoneTests,
		UpdatedAt:    time.Now().Unix(),
		Final:        update.Status.Terminal(),
	}
	if err := s.statusRepo.Save(ctxStatus, progress); err != nil {
		logger.Warn(ctx, "update intermediate status failed", zap.Error(err))
		return err
	}
	return nil
}

// clearStatus removes progress once the run ends so no state outlives it.
func (s *Service) clearStatus(ctx context.Context, submissionID string) {
	if s.statusRepo == nil {
		return
	}
	ctxStatus, cancel := s.withStatusTimeout(ctx)
	defer cancel()
	if err := s.statusRepo.Delete(ctxStatus, submissionID); err != nil {
		logger.Warn(ctx, "clear status failed", zap.Error(err))
	}
}
