package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

const (
	progressKeyPrefix = "judge:run:"
	claimKeyPrefix    = "judge:claim:"
)

// StatusRepository keeps in-flight run progress in the cache.
type StatusRepository struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewStatusRepository creates a new repository.
func NewStatusRepository(cacheClient cache.Cache, ttl time.Duration) *StatusRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StatusRepository{cache: cacheClient, TTL: ttl}
}

// Get returns progress by submission id.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (model.RunProgress, error) {
	if submissionID == "" {
		return model.RunProgress{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.RunProgress{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, progressKeyPrefix+submissionID)
	if err != nil {
		return model.RunProgress{}, appErr.Wrapf(err, appErr.CacheError, "load progress failed")
	}
	if val == "" {
		return model.RunProgress{}, appErr.New(appErr.NotFound).WithMessage("run is not in flight")
	}
	var progress model.RunProgress
	if err := json.Unmarshal([]byte(val), &progress); err != nil {
		return model.RunProgress{}, appErr.Wrapf(err, appErr.CacheError, "decode progress failed")
	}
	return progress, nil
}

// Save persists progress with a jittered TTL.
func (r *StatusRepository) Save(ctx context.Context, progress model.RunProgress) error {
	if progress.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress failed: %w", err)
	}
	if err := r.cache.Set(ctx, progressKeyPrefix+progress.SubmissionID, string(data), cache.JitterTTL(r.TTL)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store progress failed")
	}
	return nil
}

// Delete drops progress once a run has ended.
func (r *StatusRepository) Delete(ctx context.Context, submissionID string) error {
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if err := r.cache.Del(ctx, progressKeyPrefix+submissionID); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "delete progress failed")
	}
	return nil
}

// Claim marks a submission id as taken. It returns false when another
// consumer already claimed it within the TTL.
func (r *StatusRepository) Claim(ctx context.Context, submissionID string) (bool, error) {
	if r.cache == nil {
		return false, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	ok, err := r.cache.SetNX(ctx, claimKeyPrefix+submissionID, time.Now().Unix(), r.TTL)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.CacheError, "claim submission failed")
	}
	return ok, nil
}

// Release drops a claim so a requeued message can be claimed again.
func (r *StatusRepository) Release(ctx context.Context, submissionID string) error {
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if err := r.cache.Del(ctx, claimKeyPrefix+submissionID); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "release claim failed")
	}
	return nil
}
