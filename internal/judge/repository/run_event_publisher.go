package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

// RunEventPublisher publishes one event per finished submission.
type RunEventPublisher interface {
	PublishRunEvent(ctx context.Context, event model.RunEvent) error
}

// MQRunEventPublisher publishes run events to a message queue.
type MQRunEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQRunEventPublisher creates a new MQ run event publisher.
func NewMQRunEventPublisher(producer mq.Producer, topic string) *MQRunEventPublisher {
	return &MQRunEventPublisher{producer: producer, topic: topic}
}

// PublishRunEvent publishes a run event keyed by submission id.
func (p *MQRunEventPublisher) PublishRunEvent(ctx context.Context, event model.RunEvent) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("run event publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("result topic is required")
	}
	if event.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal run event failed: %w", err)
	}
	message := mq.NewMessage(event.SubmissionID, payload)
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish run event failed")
	}
	return nil
}
