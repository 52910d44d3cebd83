package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/model"
	reconcilesvc "github.com/amouradev/amoura/backend/internal/services/reconcile"
)

type fakeLister struct {
	stale []int64
}

func (f *fakeLister) ListReconciledBefore(_ context.Context, _ time.Time, _ int) ([]int64, error) {
	return f.stale, nil
}

type fakeFetcher struct {
	snapshots map[int64]model.Snapshot
	failing   map[int64]error
}

func (f *fakeFetcher) FetchSnapshot(_ context.Context, userID int64) (model.Snapshot, bool, error) {
	if err, ok := f.failing[userID]; ok {
		return model.Snapshot{}, false, err
	}
	snapshot, ok := f.snapshots[userID]
	return snapshot, ok, nil
}

type recordingApplier struct {
	applied map[int64]model.Snapshot
	stale   map[int64]bool
}

func (a *recordingApplier) Apply(_ context.Context, userID int64, snapshot model.Snapshot) (reconcilesvc.Result, error) {
	if a.applied == nil {
		a.applied = map[int64]model.Snapshot{}
	}
	if a.stale[userID] {
		return reconcilesvc.Result{Applied: false}, nil
	}
	a.applied[userID] = snapshot
	return reconcilesvc.Result{Applied: true}, nil
}

func TestRunAppliesSnapshotsForStaleUsers(t *testing.T) {
	now := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

	lister := &fakeLister{stale: []int64{1, 2, 3, 4}}
	fetcher := &fakeFetcher{
		snapshots: map[int64]model.Snapshot{
			1: {Tier: "gold", AsOf: now.Add(-time.Minute)},
			2: {Tier: "silver", AsOf: now.Add(-2 * time.Minute)},
			// user 3 has no snapshot on the platform
		},
		failing: map[int64]error{
			4: errors.New("provider timeout"),
		},
	}
	applier := &recordingApplier{stale: map[int64]bool{2: true}}

	job := New(lister, fetcher, applier, 15*time.Minute, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run sync job: %v", err)
	}

	if len(applier.applied) != 1 {
		t.Fatalf("expected exactly one applied snapshot, got %d", len(applier.applied))
	}
	snapshot, ok := applier.applied[1]
	if !ok || snapshot.Tier != "gold" {
		t.Fatalf("user 1 snapshot not applied: %+v", applier.applied)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	lister := &fakeLister{stale: []int64{1, 2}}
	fetcher := &fakeFetcher{snapshots: map[int64]model.Snapshot{}}
	applier := &recordingApplier{}

	job := New(lister, fetcher, applier, 15*time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := job.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(applier.applied) != 0 {
		t.Fatalf("no snapshot should be applied after cancellation")
	}
}
