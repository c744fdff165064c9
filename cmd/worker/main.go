package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/lobsim/config"
	postgres_wrapper "github.com/joripage/lobsim/pkg/infra/postgres"
	kafkawrapper "github.com/joripage/lobsim/pkg/kafka_wrapper"
	"github.com/joripage/lobsim/pkg/logging"
	"github.com/joripage/lobsim/pkg/recorder"
	"github.com/joripage/lobsim/pkg/repo"
	"github.com/joripage/lobsim/pkg/worker"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.Zap())

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	if cfg.TradeDB == nil {
		zap.S().Fatal("trade_db is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// init db
	db, err := postgres_wrapper.InitPostgresWithBackoff(cfg.TradeDB)
	if err != nil {
		zap.S().Fatalf("init db fail with err: %v", err)
	}

	w := worker.NewWorker(repo.NewRepo(db), logger.With(zap.String("service", cfg.ServiceName+"-worker")))
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Kafka != nil && cfg.Kafka.TradeTopic != "" {
		cg, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
			Brokers:     cfg.Kafka.Brokers,
			GroupID:     cfg.Kafka.GroupID,
			Topic:       cfg.Kafka.TradeTopic,
			WorkerCount: cfg.Kafka.WorkerCount,
			BatchSize:   cfg.Kafka.BatchSize,
			MaxRetries:  cfg.Kafka.MaxRetries,
			DLQTopic:    cfg.Kafka.DLQTopic,
		})
		if err != nil {
			zap.S().Fatalf("init kafka consumer: %v", err)
		}
		defer cg.Close()
		g.Go(func() error { return w.RunTradeConsumer(ctx, cg) })
	}

	if cfg.Nats != nil && cfg.Nats.BookSubject != "" {
		nc, err := nats.Connect(cfg.Nats.URL, nats.Name(cfg.ServiceName+"-worker"))
		if err != nil {
			zap.S().Fatalf("connect nats: %v", err)
		}
		defer nc.Close()
		js, err := nc.JetStream()
		if err != nil {
			zap.S().Fatalf("jetstream: %v", err)
		}
		if err := recorder.EnsureStream(js, *cfg.Nats); err != nil {
			zap.S().Fatalf("ensure stream: %v", err)
		}
		g.Go(func() error { return w.StartBookStateConsumer(ctx, js, cfg.Nats.BookSubject, cfg.Nats.Durable) })
	}

	zap.S().Info("worker started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Errorf("worker stopped: %v", err)
	}
}
