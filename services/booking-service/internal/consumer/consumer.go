package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-tanzil-ahmed/salonslot/libs/kafkax"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/booking"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/inbox"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/storage"
)

// Confirmer is the slice of the booking workflow the payment consumer needs.
type Confirmer interface {
	ConfirmFromPayment(ctx context.Context, bookingID, paymentID string) (model.Booking, error)
}

// Payments consumes payment.succeeded events and confirms the pending
// booking they pay for.
type Payments struct {
	reader   *kafka.Reader
	logger   *slog.Logger
	inbox    *inbox.Repository
	bookings Confirmer
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func NewPayments(logger *slog.Logger, inboxRepo *inbox.Repository, bookings Confirmer, cfg Config) *Payments {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Payments{
		reader:   reader,
		logger:   logger,
		inbox:    inboxRepo,
		bookings: bookings,
	}
}

type paymentSucceeded struct {
	PaymentID  string `json:"payment_id"`
	BookingID  string `json:"booking_id"`
	AmountCent int64  `json:"amount_cents"`
	Currency   string `json:"currency"`
	PaidAt     string `json:"paid_at"`
}

func (c *Payments) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.handle(ctxSpan, msg); err != nil {
			c.logger.Error("payment event failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
		}
		span.End()
	}
}

// handle confirms the paid booking. Malformed payloads and bookings that can
// no longer be confirmed are logged and dropped; retrying cannot fix either.
func (c *Payments) handle(ctx context.Context, msg kafka.Message) error {
	var evt paymentSucceeded
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		c.logger.Error("invalid payment event", "err", err)
		return nil
	}
	if evt.BookingID == "" || evt.PaymentID == "" {
		c.logger.Error("payment event missing booking_id or payment_id")
		return nil
	}

	b, err := c.bookings.ConfirmFromPayment(ctx, evt.BookingID, evt.PaymentID)
	if err != nil {
		if storage.IsNotFound(err) {
			c.logger.Warn("payment for unknown booking", "booking_id", evt.BookingID, "payment_id", evt.PaymentID)
			return nil
		}
		var invalid *booking.InvalidTransitionError
		if errors.As(err, &invalid) {
			c.logger.Warn("payment for non-confirmable booking",
				"booking_id", evt.BookingID, "status", invalid.From)
			return nil
		}
		return err
	}

	c.logger.Info("booking confirmed by payment",
		"booking_id", b.ID, "payment_id", evt.PaymentID, "shop_id", b.ShopID)
	return nil
}
