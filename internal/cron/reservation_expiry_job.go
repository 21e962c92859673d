package cron

import (
	"context"
	"fmt"

	"github.com/libris-app/libris-backend/pkg/logger"
)

// reservationSweeper cancels approved reservations whose pickup window lapsed.
type reservationSweeper interface {
	ExpireLapsed(ctx context.Context) (int64, error)
}

// ReservationExpiryJobParams configure the reservation expiry sweep.
type ReservationExpiryJobParams struct {
	Logger       *logger.Logger
	Reservations reservationSweeper
}

// NewReservationExpiryJob builds the cron job that cancels approved
// reservations nobody picked up in time.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservations sweeper required")
	}
	return &reservationExpiryJob{
		logg:         params.Logger,
		reservations: params.Reservations,
	}, nil
}

type reservationExpiryJob struct {
	logg         *logger.Logger
	reservations reservationSweeper
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	expired, err := j.reservations.ExpireLapsed(ctx)
	if err != nil {
		return fmt.Errorf("expire lapsed reservations: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	return nil
}
