package main

import (
	"flag"

	"github.com/joripage/lobsim/config"
	"github.com/joripage/lobsim/pkg/infra"
	"github.com/joripage/lobsim/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	var configFile, source string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", "file://migration/sql", "Migration source URL")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.Zap())

	if cfg.TradeDB == nil {
		zap.S().Fatal("trade_db is not configured")
	}

	mgTool := infra.GetMigrateTool()
	if err := mgTool.Migrate(source, cfg.TradeDB.MigrationConnURL); err != nil {
		zap.S().Fatalf("migrate: %v", err)
	}
}
