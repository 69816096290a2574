package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/agendoai/agendo/libs/config"
	"github.com/agendoai/agendo/libs/db"
	"github.com/agendoai/agendo/libs/grpcx"
	"github.com/agendoai/agendo/libs/httpx"
	"github.com/agendoai/agendo/libs/kafkax"
	otelx "github.com/agendoai/agendo/libs/otel"
	"github.com/agendoai/agendo/libs/runtime"
	"github.com/agendoai/agendo/services/scheduling-service/internal/grpcapi"
	"github.com/agendoai/agendo/services/scheduling-service/internal/handlers"
	"github.com/agendoai/agendo/services/scheduling-service/internal/metrics"
	"github.com/agendoai/agendo/services/scheduling-service/internal/outbox"
	"github.com/agendoai/agendo/services/scheduling-service/internal/scheduling"
	"github.com/agendoai/agendo/services/scheduling-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	_ = config.LoadDotEnv()

	service := config.String("SERVICE_NAME", "scheduling-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))
	fatal := func(msg string, err error) {
		logger.Error(msg, "err", err)
		os.Exit(1)
	}

	port, err := config.Port("PORT", "8080")
	if err != nil {
		fatal("invalid config", err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		fatal("invalid config", err)
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		fatal("invalid config", err)
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		fatal("invalid config", err)
	}
	defaultInterval, err := config.Int("DEFAULT_SLOT_INTERVAL_MINUTES", 30)
	if err != nil {
		fatal("invalid config", err)
	}
	rateLimit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		fatal("invalid config", err)
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		fatal("invalid config", err)
	}
	pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		fatal("invalid config", err)
	}
	batchSize, err := config.Int("OUTBOX_BATCH_SIZE", 50)
	if err != nil {
		fatal("invalid config", err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(service)
	if err != nil {
		fatal("invalid config", err)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		otelShutdown = nil
	}

	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		fatal("db connection failed", err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSchedulingMetrics(reg)

	outboxRepo := outbox.NewRepository()
	store := storage.NewStore(pool, outboxRepo)
	svc := scheduling.NewService(store, m, logger, scheduling.Config{DefaultIntervalMinutes: defaultInterval})

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	var writer outbox.MessageWriter
	var stopWriter func(context.Context) error
	if len(brokers) > 0 {
		kw := kafkax.NewWriter(brokers)
		writer = kw
		stopWriter = func(context.Context) error { return kw.Close() }
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
	}
	publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
		PollEvery:   pollEvery,
		BatchSize:   batchSize,
		OnPublished: m.ObserveOutboxPublished,
	})
	go publisher.Run(ctx)

	var limiter httpx.Limiter = httpx.NewMemoryRateLimiter(rateLimit, time.Minute)
	var stopRedis func(context.Context) error
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service)
		stopRedis = func(context.Context) error { return rdb.Close() }
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Logger:             logger,
		Scheduling:         handlers.NewSchedulingHandler(svc, logger),
		Limiter:            limiter,
		RateLimitFailOpen:  config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		ReadyChecks:        readyChecks,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
		RequestTimeout:     requestTimeout,
	})
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(router, "scheduling"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, health := grpcx.NewServer(logger)
	grpcapi.Register(grpcServer, grpcapi.NewServer(svc))
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		fatal("grpc listen failed", err)
	}
	health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	health.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	health.Shutdown()

	runtime.Shutdown(logger, 10*time.Second,
		runtime.Stopper{Name: "http", Stop: srv.Shutdown},
		runtime.Stopper{Name: "grpc", Stop: func(context.Context) error {
			grpcServer.GracefulStop()
			return nil
		}},
		runtime.Stopper{Name: "kafka", Stop: stopWriter},
		runtime.Stopper{Name: "redis", Stop: stopRedis},
		runtime.Stopper{Name: "otel", Stop: otelShutdown},
	)
	logger.Info("stopped")
}
