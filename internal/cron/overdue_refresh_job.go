package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/libris-app/libris-backend/pkg/logger"
)

// overdueReclassifier flips active loans past their due date to overdue.
type overdueReclassifier interface {
	ReclassifyOverdue(ctx context.Context, dueBefore time.Time) (int64, error)
}

// OverdueRefreshJobParams configure the overdue loan sweep.
type OverdueRefreshJobParams struct {
	Logger *logger.Logger
	Loans  overdueReclassifier
}

// NewOverdueRefreshJob builds the cron job that keeps stored loan statuses in
// line with the calendar. Loans due today stay active until tomorrow's run.
func NewOverdueRefreshJob(params OverdueRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loans reclassifier required")
	}
	return &overdueRefreshJob{
		logg:  params.Logger,
		loans: params.Loans,
		now:   time.Now,
	}, nil
}

type overdueRefreshJob struct {
	logg  *logger.Logger
	loans overdueReclassifier
	now   func() time.Time
}

func (j *overdueRefreshJob) Name() string { return "overdue-refresh" }

func (j *overdueRefreshJob) Run(ctx context.Context) error {
	now := j.now()
	year, month, day := now.Date()
	cutoff := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	flipped, err := j.loans.ReclassifyOverdue(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("reclassify overdue loans: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": flipped})
	j.logg.Info(logCtx, "overdue refresh sweep complete")
	return nil
}
