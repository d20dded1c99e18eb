package main

import (
	"context"
	"github.com/ariefcatur/go-esim-orders/internal/audit"
	"github.com/ariefcatur/go-esim-orders/internal/config"
	kafkax "github.com/ariefcatur/go-esim-orders/internal/kafka"
	"github.com/ariefcatur/go-esim-orders/internal/orders"
	"github.com/ariefcatur/go-esim-orders/internal/postgres"
	"github.com/ariefcatur/go-esim-orders/internal/redisx"
	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"os/signal"
	"syscall"
)

var log = logging.Logger("auditor")

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("load config", "err", err)
	}
	if lvl, err := logging.LevelFromString(cfg.LogLevel); err == nil {
		logging.SetAllLoggers(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalw("db", "err", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Service
	svc := &audit.Service{
		Sink:        &postgres.EventRepo{DB: db},
		Dedup:       &redisx.Dedup{Client: rdb},
		ServiceName: cfg.ServiceName + "-auditor",
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditorGroup, orders.TopicOrderStatus, cfg.AuditorWorkers)
	log.Infow("auditor consumer started", "group", cfg.AuditorGroup, "topic", orders.TopicOrderStatus, "workers", cfg.AuditorWorkers)
	if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
		log.Errorw("consumer exit", "err", err)
	}
	log.Info("auditor stopped")
}
