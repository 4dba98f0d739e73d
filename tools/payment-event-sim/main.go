package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/md-tanzil-ahmed/salonslot/libs/kafkax"
)

// Publishes a payment.succeeded.v1 event the way the payments system would,
// so the booking confirmation flow can be exercised locally without it.
func main() {
	var (
		brokers   = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma-separated kafka brokers")
		topic     = flag.String("topic", getenv("TOPIC", "payment.succeeded.v1"), "topic to publish to")
		bookingID = flag.String("booking-id", getenv("BOOKING_ID", ""), "booking the payment pays for")
		paymentID = flag.String("payment-id", getenv("PAYMENT_ID", ""), "payment id (generated when empty)")
		amount    = flag.Int64("amount-cents", 2500, "paid amount in cents")
		currency  = flag.String("currency", getenv("CURRENCY", "USD"), "ISO currency code")
	)
	flag.Parse()

	if strings.TrimSpace(*bookingID) == "" {
		fatal("BOOKING_ID is required")
	}
	pid := strings.TrimSpace(*paymentID)
	if pid == "" {
		pid = "pay_" + uuid.NewString()
	}

	payload, err := json.Marshal(map[string]any{
		"payment_id":   pid,
		"booking_id":   *bookingID,
		"amount_cents": *amount,
		"currency":     *currency,
		"paid_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		fatal(err.Error())
	}

	list := kafkax.SplitBrokers(*brokers)
	if len(list) == 0 {
		fatal("KAFKA_BROKERS is required")
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  list,
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	})
	defer writer.Close()

	eventID := uuid.NewString()
	msg := kafka.Message{
		// Keyed by booking id, matching the outbox publisher, so replays
		// land on the same partition as the booking's own events.
		Key:     []byte(*bookingID),
		Value:   payload,
		Headers: kafkax.EventHeaders(eventID, *topic),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := writer.WriteMessages(ctx, msg); err != nil {
		fatal(err.Error())
	}

	fmt.Printf("published event_id=%s booking_id=%s payment_id=%s topic=%s\n", eventID, *bookingID, pid, *topic)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
