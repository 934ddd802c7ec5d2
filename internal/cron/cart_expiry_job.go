package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

type cartSweeper interface {
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CartExpiryJobParams configure the abandoned cart sweeper.
type CartExpiryJobParams struct {
	Logger *logger.Logger
	Carts  cartSweeper
}

// NewCartExpiryJob builds the cron job that abandons active carts whose TTL
// elapsed. The sweep is a single bulk update; carts already frozen into an
// order carry the ordered status and are never touched.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &cartExpiryJob{
		logg:  params.Logger,
		carts: params.Carts,
		now:   time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg  *logger.Logger
	carts cartSweeper
	now   func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	swept, err := j.carts.SweepExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep expired carts: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"carts_swept": swept,
	})
	j.logg.Info(logCtx, "cart expiry sweep complete")
	return nil
}
