package main

import (
	"context"
	"net/http"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/auth"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/availability"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/booking"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/config"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/handlers"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/httpx"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/kafkax"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/otelx"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/outbox"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/postgres"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/runtime"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.ServiceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := postgres.Migrate(ctx, pool, cfg.MigrationsDir, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	outboxRepo := outbox.NewRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo)
	scheduleRepo := storage.NewScheduleRepository(pool)
	paymentEvents := storage.NewPaymentEventRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	policy := availability.OpenExceptionClosed
	if cfg.OpenExceptionPolicy == "inherits_rule" {
		policy = availability.OpenExceptionInheritsRule
	}
	svc := booking.NewService(scheduleRepo, bookingRepo, logger, cfg.CommitTimeout, policy)

	slotsHandler := handlers.NewSlotsHandler(svc, logger)
	bookingHandler := handlers.NewBookingHandler(svc, bookingRepo, logger)
	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, logger)
	stripeHandler := handlers.NewStripeWebhookHandler(svc, paymentEvents, cfg.StripeWebhookSecret, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: postgres.ReadyCheck(pool)},
	}
	if cfg.KafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	requireActor := auth.RequireActor(cfg.JWTSecret)
	mux.HandleFunc("/api/v1/mentors/slots", slotsHandler.List)
	mux.HandleFunc("/api/v1/mentors/schedule", scheduleHandler.Get)
	mux.Handle("/api/v1/mentors/schedule/rules", requireActor(http.HandlerFunc(scheduleHandler.Rules)))
	mux.Handle("/api/v1/mentors/schedule/exceptions", requireActor(http.HandlerFunc(scheduleHandler.Exceptions)))
	mux.Handle("/api/v1/bookings", requireActor(methodSplit(bookingHandler.Create, bookingHandler.List)))
	mux.Handle("/api/v1/bookings/cancel", requireActor(http.HandlerFunc(bookingHandler.Cancel)))
	mux.HandleFunc("/api/v1/payments/stripe/webhook", stripeHandler.Handle)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key"},
			MaxAge:         10 * time.Minute,
		}),
	}
	if rdb != nil {
		limiter := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.ServiceName)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "api")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func methodSplit(post, get http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			post(w, r)
		case http.MethodGet:
			get(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
