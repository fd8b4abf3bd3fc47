package sandbox

import (
	"context"

	"codejudge/internal/judge/sandbox/result"
)

// StatusUpdate carries intermediate judge status data.
type StatusUpdate struct {
	SubmissionID string
	Status       result.JudgeStatus
	Language     string
	TotalTests   int
	DoneTests    int
}

// StatusReporter receives every state transition of a run.
type StatusReporter interface {
	ReportStatus(ctx context.Context, update StatusUpdate) error
}
