package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/libs/db"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/booking"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/outbox"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/storage"
)

// CancelReason is written on every booking the sweeper expires.
const CancelReason = "payment not received in time"

// Sweeper cancels pending bookings whose payment never arrived, so their
// slots go back on the market. Each pass runs in one transaction; SKIP LOCKED
// on the fetch keeps concurrent replicas out of each other's way.
type Sweeper struct {
	pool      *db.Pool
	bookings  *storage.Bookings
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	ttl       time.Duration
}

type Config struct {
	Interval   time.Duration
	BatchSize  int
	PendingTTL time.Duration
}

func New(pool *db.Pool, bookings *storage.Bookings, outboxRepo *outbox.Repository, logger *slog.Logger, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 30 * time.Minute
	}
	return &Sweeper{
		pool:      pool,
		bookings:  bookings,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		ttl:       cfg.PendingTTL,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("pending sweep failed", "err", err)
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	cutoff := now.Add(-s.ttl)

	expired, err := s.bookings.ExpiredPendingForUpdate(ctx, tx, cutoff, s.batchSize)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return tx.Commit(ctx)
	}

	ids := make([]string, 0, len(expired))
	for _, b := range expired {
		ids = append(ids, b.ID)

		payload, err := booking.SystemCancelledPayload(b, CancelReason)
		if err != nil {
			return err
		}
		if err := s.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "booking",
			AggregateID:   b.ID,
			EventType:     booking.EventCancelled,
			Payload:       payload,
		}); err != nil {
			return err
		}
	}

	if err := s.bookings.SystemCancel(ctx, tx, ids, CancelReason, now); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.logger.Info("expired pending bookings cancelled", "count", len(ids))
	return nil
}
