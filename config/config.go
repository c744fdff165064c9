package config

import (
	"errors"
	"fmt"
	"os"

	postgres_wrapper "github.com/joripage/lobsim/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/lobsim/pkg/infra/redis"
	"github.com/joripage/lobsim/pkg/latency"
	"github.com/joripage/lobsim/pkg/orderbook"
	"github.com/joripage/lobsim/pkg/recorder"
	"github.com/joripage/lobsim/pkg/simulator"
	"github.com/joripage/lobsim/pkg/strategy"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type EngineConfig struct {
	Epsilon float64 `yaml:"epsilon"`
}

type OutputConfig struct {
	CSVDir string `yaml:"csv_dir"`
}

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	LogLevel    string                           `yaml:"log_level"`
	Simulation  simulator.Config                 `yaml:"simulation"`
	Noise       simulator.NoiseConfig            `yaml:"noise"`
	Latency     latency.Config                   `yaml:"latency"`
	Engine      EngineConfig                     `yaml:"engine"`
	Strategy    strategy.Config                  `yaml:"strategy"`
	Output      OutputConfig                     `yaml:"output"`
	TradeDB     *postgres_wrapper.PostgresConfig `yaml:"trade_db"`
	Redis       *recorder.RedisConfig            `yaml:"redis"`
	Kafka       *recorder.KafkaConfig            `yaml:"kafka"`
	Nats        *recorder.NatsConfig             `yaml:"nats"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}

	cfg, err := Parse(configBytes)
	if err != nil {
		sugar.Errorf("Failed to parse config file: %v", err)
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}

// Parse expands environment variables in raw YAML, decodes it, fills defaults and
// validates the result.
func Parse(raw []byte) (*AppConfig, error) {
	raw = []byte(os.ExpandEnv(string(raw)))

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default mirrors the reference run: a ten minute session in 50ms steps with
// 50ms +/- 10ms latency.
func Default() *AppConfig {
	return &AppConfig{
		ServiceName: "lobsim",
		LogLevel:    "info",
		Simulation:  simulator.DefaultConfig(),
		Noise:       simulator.DefaultNoiseConfig(),
		Latency:     latency.Config{Mean: 0.05, StdDev: 0.01, Seed: 42},
		Engine:      EngineConfig{Epsilon: orderbook.DefaultEpsilon},
		Strategy: strategy.Config{
			Name:    strategy.AvellanedaStoikovName,
			Gamma:   0.1,
			Sigma:   2.0,
			K:       1.5,
			Horizon: 600,
		},
		Output: OutputConfig{CSVDir: "."},
	}
}

func (c *AppConfig) Validate() error {
	if c.Engine.Epsilon < 0 {
		return fmt.Errorf("%w: engine.epsilon must be >= 0", ErrInvalidConfig)
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("%w: simulation: %v", ErrInvalidConfig, err)
	}
	if err := c.Noise.Validate(); err != nil {
		return fmt.Errorf("%w: noise: %v", ErrInvalidConfig, err)
	}
	if err := c.Latency.Validate(); err != nil {
		return fmt.Errorf("%w: latency: %v", ErrInvalidConfig, err)
	}
	if _, err := strategy.New(c.Strategy); err != nil {
		return fmt.Errorf("%w: strategy: %v", ErrInvalidConfig, err)
	}
	if c.Kafka != nil && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka.brokers is empty", ErrInvalidConfig)
	}
	return nil
}

// RedisConnection is the connection part of the redis sink config, if any.
func (c *AppConfig) RedisConnection() *redis_wrapper.RedisConfig {
	if c.Redis == nil {
		return nil
	}
	return &c.Redis.RedisConfig
}
