package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/finvault/custody-ledger/internal/custody"
	"github.com/finvault/custody-ledger/internal/events"
	eventskafka "github.com/finvault/custody-ledger/internal/events/kafka"
	"github.com/finvault/custody-ledger/internal/server"
	"github.com/finvault/custody-ledger/internal/storage/memory"
	"github.com/finvault/custody-ledger/internal/storage/postgres"
	"github.com/finvault/custody-ledger/internal/vault"
)

func main() {
	// Local overrides live in .env; absence is fine in production.
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, log)
	if err != nil {
		log.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	pub, closePub := newPublisher(log)
	defer closePub()

	registry := custody.NewRegistry(store, pub, vault.NewLogGateway(log), log)
	if err := registry.Load(ctx); err != nil {
		log.Fatal("state restore failed", zap.Error(err))
	}

	addr := envOr("LISTEN_ADDR", ":8080")
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.NewServer(registry, log).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("custody ledger listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// newStore picks postgres when DATABASE_URL is set, the in-memory store
// otherwise.
func newStore(ctx context.Context, log *zap.Logger) (custody.Store, func(), error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Info("using in-memory store")
		return memory.NewStore(), func() {}, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	store := postgres.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("using postgres store")
	return store, func() { db.Close() }, nil
}

// newPublisher picks kafka when KAFKA_BROKERS is set, a no-op otherwise.
func newPublisher(log *zap.Logger) (events.Publisher, func()) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		log.Info("event publishing disabled")
		return events.Nop{}, func() {}
	}
	topic := envOr("KAFKA_TOPIC", "account_created")
	p := eventskafka.NewPublisher(strings.Split(brokers, ","), topic)
	log.Info("publishing events to kafka", zap.String("topic", topic))
	return p, func() { _ = p.Close() }
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
