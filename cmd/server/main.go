package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cohere/internal/lifecycle"
	"cohere/internal/notify"
	"cohere/internal/platform/config"
	"cohere/internal/platform/httpserver"
	"cohere/internal/platform/logger"
	"cohere/internal/platform/metrics"
	platformredis "cohere/internal/platform/redis"
	"cohere/internal/records"
	"cohere/internal/records/handler"
	"cohere/internal/relink"
	"cohere/internal/storage"
)

// defaultCollections declares how the stock CRM collections reference
// contact records. Deployments with custom schemas override this wiring.
var defaultCollections = []relink.CollectionSpec{
	{Name: "contacts", RefListFields: []string{"linkedContactIds"}},
	{Name: "companies", RefFields: []string{"primaryContactId"}},
	{Name: "deals", RefFields: []string{"contactId", "companyId"}, RefListFields: []string{"participantIds"}},
	{Name: "tasks", RefFields: []string{"contactId"}},
	{Name: "relationships", Edges: true},
}

// main wires dependencies and keeps the server lifecycle small. Engine logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		log.Error("notifier init failed", "error", err)
		os.Exit(1)
	}
	defer closeNotifier()

	manager := lifecycle.New(store, notifier,
		lifecycle.WithTTL(cfg.SoftDeleteTTL),
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(m),
	)
	relinker := relink.New(store, log)
	service := records.NewService(store, relinker, manager, notifier,
		records.WithLogger(log),
		records.WithMetrics(m),
		records.WithCollections(defaultCollections),
	)

	// Background sweep backstops per-record finalization timers.
	go func() {
		if err := manager.Run(ctx, service.Collections(), cfg.SweepInterval); err != nil && ctx.Err() == nil {
			log.Error("lifecycle sweeper stopped", "error", err)
		}
	}()

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.New(service, log, m).Register(router)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting cohere", "addr", cfg.Addr, "soft_delete_ttl", cfg.SoftDeleteTTL.String())

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// buildStore picks the persistence backend: Redis when configured, else
// Postgres, else in-memory.
func buildStore(ctx context.Context, cfg config.Server, log *slog.Logger) (storage.Store, func(), error) {
	if cfg.RedisURL != "" {
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis record store")
		return storage.NewRedisStore(client.Client), func() { _ = client.Close() }, nil
	}
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("using postgres record store")
		return store, func() { _ = db.Close() }, nil
	}
	log.Info("using in-memory record store")
	return storage.NewInMemoryStore(), func() {}, nil
}

// buildNotifier publishes to Kafka when brokers are configured, else logs
// change events.
func buildNotifier(ctx context.Context, cfg config.Server, log *slog.Logger) (notify.Notifier, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return notify.NewLogNotifier(log), func() {}, nil
	}
	kafka, err := notify.NewKafkaNotifier(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("publishing change notifications to kafka", "topic", cfg.KafkaTopic)
	return kafka, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = kafka.Close(flushCtx)
	}, nil
}
