package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-esim-orders/internal/airalo"
	"github.com/ariefcatur/go-esim-orders/internal/catalog"
	"github.com/ariefcatur/go-esim-orders/internal/config"
	"github.com/ariefcatur/go-esim-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-esim-orders/internal/kafka"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"github.com/ariefcatur/go-esim-orders/internal/metrics"
	"github.com/ariefcatur/go-esim-orders/internal/orders"
	"github.com/ariefcatur/go-esim-orders/internal/postgres"
	"github.com/ariefcatur/go-esim-orders/internal/pricefeed"
	"github.com/ariefcatur/go-esim-orders/internal/redisx"
	"github.com/ariefcatur/go-esim-orders/internal/settlement"
	"github.com/ariefcatur/go-esim-orders/internal/solana"
	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"github.com/raulk/clock"
	"golang.org/x/sync/errgroup"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

var log = logging.Logger("main")

// provider is what both the real partner API client and the mock offer.
type provider interface {
	orders.Fulfiller
	catalog.Source
	httpx.SIMInfo
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("load config", "err", err)
	}
	if lvl, err := logging.LevelFromString(cfg.LogLevel); err == nil {
		logging.SetAllLoggers(lvl)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalw("invalid config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable store
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalw("open store", "backend", cfg.StoreBackend, "err", err)
	}
	defer closeStore()

	clk := clock.New()
	met := metrics.New()

	// Kafka producer (opsional)
	var (
		prod *kafkax.Producer
		pub  orders.EventPublisher
	)
	if cfg.KafkaEnabled {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatus, 1024)
		prod.Start()
		pub = prod
	}

	// Settlement
	engine := settlement.NewEngine(
		pricefeed.NewCoinGecko(cfg.PriceFeedURL),
		solana.NewLedger(cfg.SolanaRPCURL),
		settlement.Config{
			SettlementAddress: cfg.SettlementPubKey,
			BroadcastAttempts: cfg.BroadcastAttempts,
			BroadcastBackoff:  cfg.BroadcastBackoff,
			ConfirmAttempts:   cfg.ConfirmAttempts,
			ConfirmBackoff:    cfg.ConfirmBackoff,
		},
		met,
	)

	// Provider
	var prov provider
	if cfg.UseMockAiralo {
		log.Warn("using mock airalo provider")
		prov = airalo.NewMock(clk, uint64(time.Now().UnixNano()))
	} else {
		prov = airalo.NewClient(airalo.Config{
			BaseURL:      cfg.AiraloURL,
			ClientID:     cfg.AiraloClientID,
			ClientSecret: cfg.AiraloClientSecret,
		}, store, clk)
	}

	// Repo, saga & handler
	repo := orders.NewRepo(store)
	machine := orders.NewMachine(repo, engine, prov, pub, clk, orders.Config{
		PollInterval:  cfg.PollInterval,
		PaymentWindow: cfg.PaymentWindow,
		Producer:      cfg.ServiceName,
	}, met)

	router := httpx.NewRouter(met.Handler())
	(&httpx.OrdersHandler{
		Orders:   machine,
		Profiles: orders.NewProfiles(repo, solana.NewWallet),
	}).Register(router)
	(&httpx.CatalogHandler{
		Plans: catalog.NewPlanCache(prov, store, clk, cfg.CatalogTTL, met),
		SIMs:  prov,
		Store: store,
		Clock: clk,
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("HTTP listening", "addr", cfg.HTTPAddr, "store", cfg.StoreBackend, "kafka", cfg.KafkaEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err = g.Wait()

	// stop polling before the producer so no event is published after Close
	machine.Close()
	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
	if err != nil {
		log.Errorw("server exit", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (kv.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return &postgres.Store{DB: db}, db.Close, nil
	case "memory":
		log.Warn("memory store: orders are lost on restart")
		return kv.NewMemory(), func() {}, nil
	default:
		rdb := redisx.New(cfg.RedisAddr)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return &redisx.Store{Client: rdb}, func() { _ = rdb.Close() }, nil
	}
}
