package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/libs/config"
	"github.com/md-tanzil-ahmed/salonslot/libs/db"
	"github.com/md-tanzil-ahmed/salonslot/libs/httpx"
	"github.com/md-tanzil-ahmed/salonslot/libs/kafkax"
	otelx "github.com/md-tanzil-ahmed/salonslot/libs/otel"
	"github.com/md-tanzil-ahmed/salonslot/libs/runtime"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/booking"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/consumer"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/handlers"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/inbox"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/outbox"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/storage"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/sweeper"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	catalogRepo := storage.NewCatalog(pool)
	outboxRepo := outbox.NewRepository(pool)
	bookingsRepo := storage.NewBookings(pool, outboxRepo)
	inboxRepo := inbox.NewRepository(pool)

	engine := availability.NewEngine(catalogRepo, catalogRepo, bookingsRepo, catalogRepo, logger)
	workflow := booking.NewService(bookingsRepo, engine, catalogRepo, catalogRepo, logger)

	brokers := config.String("KAFKA_BROKERS", "")

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	pendingTTL, err := config.Duration("PENDING_TTL", 30*time.Minute)
	if err != nil {
		logger.Warn("invalid PENDING_TTL, using 30m", "err", err)
		pendingTTL = 30 * time.Minute
	}
	expirySweeper := sweeper.New(pool, bookingsRepo, outboxRepo, logger, sweeper.Config{
		Interval:   time.Minute,
		BatchSize:  50,
		PendingTTL: pendingTTL,
	})
	go expirySweeper.Run(ctx)

	if strings.TrimSpace(brokers) != "" {
		paymentConsumer := consumer.NewPayments(logger, inboxRepo, workflow, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", "payment.succeeded.v1"),
		})
		go paymentConsumer.Run(ctx)
	} else {
		logger.Warn("payment consumer disabled (no kafka brokers configured)")
	}

	availabilityHandler := handlers.NewAvailabilityHandler(engine, logger)
	bookingsHandler := handlers.NewBookingsHandler(workflow, bookingsRepo, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, logger)

	limitPerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil || limitPerMinute <= 0 {
		logger.Warn("invalid RATE_LIMIT_PER_MINUTE, using 120", "err", err)
		limitPerMinute = 120
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}

	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil || redisDB < 0 {
			redisDB = 0
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, "booking")
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)

	// Customer-facing endpoints are rate limited per client; the management
	// surface is not.
	limited := func(h http.HandlerFunc) http.Handler { return rateLimitMW(h) }
	mux.Handle("/api/v1/public/service-slots", limited(availabilityHandler.ServiceSlots))
	mux.Handle("/api/v1/public/deal-slots", limited(availabilityHandler.DealSlots))
	mux.Handle("/api/v1/public/book", limited(bookingsHandler.Create))

	mux.HandleFunc("/api/v1/bookings", bookingsHandler.List)
	mux.HandleFunc("/api/v1/bookings/get", bookingsHandler.Get)
	mux.HandleFunc("/api/v1/bookings/reschedule", bookingsHandler.Reschedule)
	mux.HandleFunc("/api/v1/bookings/reassign", bookingsHandler.Reassign)
	mux.HandleFunc("/api/v1/bookings/confirm", bookingsHandler.Confirm)
	mux.HandleFunc("/api/v1/bookings/complete", bookingsHandler.Complete)
	mux.HandleFunc("/api/v1/bookings/no-show", bookingsHandler.NoShow)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingsHandler.Cancel)
	mux.HandleFunc("/api/v1/bookings/stats", bookingsHandler.Stats)

	mux.HandleFunc("/api/v1/admin/shops", catalogHandler.Shops)
	mux.HandleFunc("/api/v1/admin/shops/get", catalogHandler.GetShop)
	mux.HandleFunc("/api/v1/admin/hours", catalogHandler.Hours)
	mux.HandleFunc("/api/v1/admin/holidays", catalogHandler.Holidays)
	mux.HandleFunc("/api/v1/admin/services", catalogHandler.Services)
	mux.HandleFunc("/api/v1/admin/services/staff", catalogHandler.ServiceStaff)
	mux.HandleFunc("/api/v1/admin/deals", catalogHandler.Deals)
	mux.HandleFunc("/api/v1/admin/staff", catalogHandler.Staff)
	mux.HandleFunc("/api/v1/admin/blocks", catalogHandler.Blocks)
	mux.HandleFunc("/api/v1/admin/blocks/delete", catalogHandler.DeleteBlock)

	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil || bodyLimit <= 0 {
		bodyLimit = 1 << 20
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil || requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(requestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	if err := startGrpcServer(ctx, logger, engine); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
