package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

type fakeCartSweeper struct {
	swept      int64
	err        error
	lastCutoff time.Time
}

func (f *fakeCartSweeper) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.swept, nil
}

func newCartExpiryJob(t *testing.T, sweeper *fakeCartSweeper) *cartExpiryJob {
	t.Helper()
	jobIface, err := NewCartExpiryJob(CartExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Carts:  sweeper,
	})
	if err != nil {
		t.Fatalf("NewCartExpiryJob: %v", err)
	}
	job, ok := jobIface.(*cartExpiryJob)
	if !ok {
		t.Fatalf("expected cartExpiryJob, got %T", jobIface)
	}
	return job
}

func TestCartExpiryJobSweepsAtCurrentTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeCartSweeper{swept: 4}
	job := newCartExpiryJob(t, sweeper)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sweeper.lastCutoff.Equal(now) {
		t.Fatalf("expected cutoff %s, got %s", now, sweeper.lastCutoff)
	}
}

func TestCartExpiryJobPropagatesError(t *testing.T) {
	job := newCartExpiryJob(t, &fakeCartSweeper{err: errors.New("boom")})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
