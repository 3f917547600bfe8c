package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"ambos-norte-backend/internal/client"
	"ambos-norte-backend/internal/config"
	"ambos-norte-backend/internal/messaging/events"
	"ambos-norte-backend/internal/messaging/kafka"
	"ambos-norte-backend/internal/metrics"
	"ambos-norte-backend/internal/repository"
	"ambos-norte-backend/internal/server"
	"ambos-norte-backend/internal/service"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		log.WithError(err).Fatal("parse config")
	}

	setupLogger(&cfg.Log)

	db := client.InitMysqlClient(cfg.DatabaseURL)
	gateway := client.NewMercadoPagoClient(&cfg.MercadoPago)

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.WithError(err).Fatal("init kafka producer")
		}
		defer producer.Close()
		publisher = producer
	}

	productRepo := repository.NewProductRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	shopMetrics := metrics.NewShopMetrics()
	ledger := service.NewStatusLedger(orderRepo, historyRepo, publisher)

	orderService := service.NewOrderService(
		db,
		productRepo,
		variantRepo,
		orderRepo,
		historyRepo,
		addressRepo,
		ledger,
		shopMetrics,
	)
	paymentService := service.NewPaymentService(
		db,
		gateway,
		cfg,
		orderRepo,
		paymentRepo,
		ledger,
		shopMetrics,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(orderService, paymentService, cfg.Auth.JWTSecret)

	log.WithField("addr", serverAddr).Info("starting HTTP server")
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		log.WithError(err).Fatal("HTTP server shutdown error")
	}
}

func setupLogger(logCfg *config.Log) {
	level, err := log.ParseLevel(logCfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if logCfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
