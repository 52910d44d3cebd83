package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amouradev/amoura/backend/internal/domain/model"
	reconcilesvc "github.com/amouradev/amoura/backend/internal/services/reconcile"
)

const (
	defaultBatchLimit   = 100
	defaultFetchTimeout = 10 * time.Second
)

// SnapshotFetcher pulls the subscription platform's view of a user.
// ok=false means the platform has no snapshot for the user.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, userID int64) (model.Snapshot, bool, error)
}

// StaleLister finds users whose ledger has not been reconciled recently.
type StaleLister interface {
	ListReconciledBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}

type Applier interface {
	Apply(ctx context.Context, userID int64, snapshot model.Snapshot) (reconcilesvc.Result, error)
}

// Job periodically pulls store snapshots for users with stale ledgers and
// feeds them through the reconciler. A fetch failure or timeout skips the
// user and leaves the ledger untouched.
type Job struct {
	lister       StaleLister
	fetcher      SnapshotFetcher
	applier      Applier
	staleness    time.Duration
	batchLimit   int
	fetchTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

func New(lister StaleLister, fetcher SnapshotFetcher, applier Applier, staleness time.Duration, logger *zap.Logger) *Job {
	if staleness <= 0 {
		staleness = reconcilesvc.StalenessWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		lister:       lister,
		fetcher:      fetcher,
		applier:      applier,
		staleness:    staleness,
		batchLimit:   defaultBatchLimit,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.lister == nil || j.fetcher == nil || j.applier == nil {
		return nil
	}

	cutoff := j.now().UTC().Add(-j.staleness)
	userIDs, err := j.lister.ListReconciledBefore(ctx, cutoff, j.batchLimit)
	if err != nil {
		return fmt.Errorf("list stale ledgers: %w", err)
	}
	if len(userIDs) == 0 {
		return nil
	}

	var applied, discarded, skipped int
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		snapshot, ok, err := j.fetchOne(ctx, userID)
		if err != nil {
			j.logger.Warn("snapshot fetch failed", zap.Int64("user_id", userID), zap.Error(err))
			skipped++
			continue
		}
		if !ok {
			skipped++
			continue
		}

		result, err := j.applier.Apply(ctx, userID, snapshot)
		if err != nil {
			j.logger.Warn("snapshot apply failed", zap.Int64("user_id", userID), zap.Error(err))
			skipped++
			continue
		}
		if result.Applied {
			applied++
		} else {
			discarded++
		}
	}

	j.logger.Info("ledger sync pass completed",
		zap.Int("candidates", len(userIDs)),
		zap.Int("applied", applied),
		zap.Int("discarded", discarded),
		zap.Int("skipped", skipped),
	)
	return nil
}

// Start runs sync passes on the interval until the context is cancelled.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = j.staleness
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("ledger sync pass failed", zap.Error(err))
			}
		}
	}
}

func (j *Job) fetchOne(ctx context.Context, userID int64) (model.Snapshot, bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, j.fetchTimeout)
	defer cancel()

	return j.fetcher.FetchSnapshot(fetchCtx, userID)
}
