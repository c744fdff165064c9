package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/lobsim/config"
	postgres_wrapper "github.com/joripage/lobsim/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/lobsim/pkg/infra/redis"
	"github.com/joripage/lobsim/pkg/latency"
	"github.com/joripage/lobsim/pkg/logging"
	"github.com/joripage/lobsim/pkg/orderbook"
	"github.com/joripage/lobsim/pkg/recorder"
	"github.com/joripage/lobsim/pkg/repo"
	"github.com/joripage/lobsim/pkg/simulator"
	"github.com/joripage/lobsim/pkg/strategy"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	var configFile, csvDir string
	var noMaker bool
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&csvDir, "csv-dir", "", "Override output.csv_dir")
	flag.BoolVar(&noMaker, "no-maker", false, "Run noise flow only, without the market maker")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	if csvDir != "" {
		cfg.Output.CSVDir = csvDir
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger.Zap())
	defer undo()

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.IntoContext(ctx, logger)
	log := logging.FromContext(ctx)

	if err := run(ctx, cfg, runID, noMaker, log); err != nil {
		log.Error(ctx, "simulation failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, runID string, noMaker bool, log *logging.Logger) error {
	book := orderbook.NewOrderBook(orderbook.WithEpsilon(cfg.Engine.Epsilon))
	engine := orderbook.NewMatchingEngine(book)
	engine.RegisterTradeCallback(func(trades []orderbook.Trade) {
		for _, tr := range trades {
			log.Debug(ctx, "trade",
				zap.Uint64("resting_id", tr.RestingOrderID),
				zap.Uint64("aggressive_id", tr.AggressiveOrderID),
				zap.Float64("price", tr.Price),
				zap.Float64("qty", tr.Qty),
			)
		}
	})

	sched, err := latency.NewScheduler(cfg.Latency)
	if err != nil {
		return err
	}
	noise, err := simulator.NewNoiseGenerator(cfg.Noise)
	if err != nil {
		return err
	}

	rec, closeSinks, err := buildRecorder(ctx, cfg, runID, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	opts := []simulator.Option{
		simulator.WithNoise(noise),
		simulator.WithRecorder(rec),
		simulator.WithLogger(log),
	}
	if !noMaker {
		strat, err := strategy.New(cfg.Strategy)
		if err != nil {
			return err
		}
		opts = append(opts, simulator.WithStrategy(strat))
	}

	sim, err := simulator.New(cfg.Simulation, engine, sched, opts...)
	if err != nil {
		return err
	}

	sum, runErr := sim.Run(ctx)
	if err := rec.Close(ctx); err != nil {
		log.Error(ctx, "close recorders", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	log.Info(ctx, "summary",
		zap.Int("trades", sum.Trades),
		zap.Float64("volume", sum.Volume),
		zap.Float64("inventory", sum.Inventory),
		zap.Float64("best_bid", sum.BestBid),
		zap.Float64("best_ask", sum.BestAsk),
		zap.Float64("mid_price", sum.MidPrice),
		zap.String("csv_dir", cfg.Output.CSVDir),
	)
	return nil
}

// buildRecorder wires every configured sink. The CSV sink is authoritative and
// fails the run on error; network sinks are best effort. The returned func
// releases the connections the sinks borrowed.
func buildRecorder(ctx context.Context, cfg *config.AppConfig, runID string, log *logging.Logger) (recorder.Recorder, func(), error) {
	var recs []recorder.Recorder
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// fail closes the sinks built so far, then the connections they borrowed.
	fail := func(err error) (recorder.Recorder, func(), error) {
		if cerr := recorder.Multi(recs...).Close(ctx); cerr != nil {
			log.Warn(ctx, "close recorders after setup failure", zap.Error(cerr))
		}
		cleanup()
		return nil, func() {}, err
	}

	if cfg.Output.CSVDir != "" {
		csvRec, err := recorder.NewCSVRecorder(cfg.Output.CSVDir)
		if err != nil {
			return nil, cleanup, err
		}
		recs = append(recs, csvRec)
	}

	if cfg.TradeDB != nil {
		db, err := postgres_wrapper.InitPostgresWithBackoff(cfg.TradeDB)
		if err != nil {
			return fail(err)
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		recs = append(recs, recorder.BestEffort("sql", recorder.NewSQLRecorder(repo.NewRepo(db), runID)))
	}

	if cfg.Redis != nil {
		rdb, err := redis_wrapper.InitRedis(ctx, cfg.RedisConnection())
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		recs = append(recs, recorder.BestEffort("redis", recorder.NewRedisRecorder(rdb, *cfg.Redis, runID)))
	}

	if cfg.Kafka != nil {
		kRec, err := recorder.NewKafkaRecorder(*cfg.Kafka, runID)
		if err != nil {
			return fail(err)
		}
		recs = append(recs, recorder.BestEffort("kafka", kRec))
	}

	if cfg.Nats != nil {
		nc, err := nats.Connect(cfg.Nats.URL, nats.Name(cfg.ServiceName))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, nc.Close)
		js, err := nc.JetStream()
		if err != nil {
			return fail(err)
		}
		nRec, err := recorder.NewNatsRecorder(js, *cfg.Nats, runID)
		if err != nil {
			return fail(err)
		}
		recs = append(recs, recorder.BestEffort("nats", nRec))
	}

	log.Info(ctx, "recorders ready", zap.Int("count", len(recs)))
	return recorder.Multi(recs...), cleanup, nil
}
