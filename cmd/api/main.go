package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/campus-market/internal/config"
	"github.com/ariefcatur/campus-market/internal/httpx"
	"github.com/ariefcatur/campus-market/internal/inventory"
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
	log = log.With(zap.String("service", cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
	}
	store := &postgres.Store{DB: db}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, one writer for every order topic
	prod := kafkax.NewProducer(cfg.Brokers(), 1024, log)
	prod.Start(ctx)

	svc := &orders.Service{
		Store:       store,
		Events:      prod,
		Cache:       &redisx.StatusCache{RDB: rdb},
		Log:         log,
		ServiceName: cfg.ServiceName,
	}
	router := httpx.NewRouter(log)
	h := &httpx.Handler{
		Orders:  svc,
		Catalog: &inventory.Catalog{Store: store},
		Admin:   store,
		Log:     log,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		// handlers still running publish into a closed producer, which drops
		log.Warn("http shutdown incomplete", zap.Error(err))
		_ = srv.Close()
	}
	prod.Close() // closes the inbox so the loop flushes and exits
	cancel()
	prod.WaitClosed()
}
