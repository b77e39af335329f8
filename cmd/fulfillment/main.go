package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/campus-market/internal/config"
	"github.com/ariefcatur/campus-market/internal/fulfillment"
	kafkax "github.com/ariefcatur/campus-market/internal/kafka"
	"github.com/ariefcatur/campus-market/internal/logging"
	"github.com/ariefcatur/campus-market/internal/orders"
	"github.com/ariefcatur/campus-market/internal/postgres"
	"github.com/ariefcatur/campus-market/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	name := cfg.ServiceName + "-fulfillment"
	log = log.With(zap.String("service", name))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// completions are published like any other lifecycle change; the producer
	// outlives ctx so events from in-flight handlers still drain on Close
	prod := kafkax.NewProducer(cfg.Brokers(), 256, log)
	prod.Start(context.Background())

	cache := &redisx.StatusCache{RDB: rdb}
	svc := &fulfillment.Service{
		Orders: &orders.Service{
			Store:       &postgres.Store{DB: db},
			Events:      prod,
			Cache:       cache,
			Log:         log,
			ServiceName: name,
		},
		Dedup: &redisx.Deduper{RDB: rdb, Service: "fulfillment"},
		Cache: cache,
		Log:   log,
	}

	topics := fulfillment.Topics()
	cons := kafkax.NewConsumer(cfg.Brokers(), cfg.FulfillmentGroup, topics, cfg.FulfillmentWorkers, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("consumer started",
			zap.String("group", cfg.FulfillmentGroup),
			zap.Strings("topics", topics),
			zap.Int("workers", cfg.FulfillmentWorkers))
		if err := cons.Start(ctx, svc.Handle); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-done
	prod.Close()
	prod.WaitClosed()
}
