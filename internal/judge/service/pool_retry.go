package service

import (
	"context"
	"strconv"
	"time"

	"codejudge/internal/common/mq"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const poolRetryHeader = "x-pool-retry"

// poolRetry republishes intake messages that arrived while every worker was busy.
type poolRetry struct {
	queue      mq.Producer
	topic      string
	deadLetter string
	maxRetry   int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// requeue waits out the backoff and republishes msg, or dead-letters it
// once maxRetry attempts are spent.
func (p *poolRetry) requeue(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	retryCount := parsePoolRetryCount(msg.Headers)
	if p.maxRetry > 0 && retryCount >= p.maxRetry {
		if p.deadLetter == "" {
			logger.Warn(ctx, "worker pool retry exhausted without dead letter", zap.Int("retry_count", retryCount), zap.String("message_id", msg.ID))
			return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
		}
		logger.Warn(ctx, "worker pool retry exhausted, sending to dead letter", zap.Int("retry_count", retryCount), zap.String("message_id", msg.ID), zap.String("topic", p.deadLetter))
		return p.queue.Publish(ctx, p.deadLetter, cloneForRetry(msg, retryCount))
	}

	delay := poolBackoff(retryCount, p.baseDelay, p.maxDelay)
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	logger.Info(ctx, "worker pool requeue", zap.Int("retry_count", retryCount+1), zap.String("message_id", msg.ID), zap.Duration("delay", delay))
	return p.queue.Publish(ctx, p.topic, cloneForRetry(msg, retryCount+1))
}

func parsePoolRetryCount(headers map[string]string) int {
	raw, ok := headers[poolRetryHeader]
	if !ok {
		return 0
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

func cloneForRetry(msg *mq.Message, retryCount int) *mq.Message {
	out := mq.NewMessage(msg.ID, msg.Body)
	out.Expiration = msg.Expiration
	for k, v := range msg.Headers {
		out.SetHeader(k, v)
	}
	out.SetHeader(poolRetryHeader, strconv.Itoa(retryCount))
	return out
}

// poolBackoff doubles base per attempt, capped at max.
func poolBackoff(retryCount int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		if max > 0 && delay >= max {
			break
		}
		delay *= 2
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}
