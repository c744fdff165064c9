package infra

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	postgres_wrapper "github.com/joripage/lobsim/pkg/infra/postgres"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IMigrateTool tool to migrate the trade store schema.
type IMigrateTool interface {
	// Connect to the trade DB and bring it to the latest schema.
	ConnectAndMigrate(cfg *postgres_wrapper.PostgresConfig, source string) (*gorm.DB, error)

	// Migrate from current version to latest verion.
	Migrate(source string, connStr string) error
}

type migrateTool struct{}

var once sync.Once         // nolint
var mutex = &sync.Mutex{}  // nolint
var singleton IMigrateTool // nolint

// GetMigrateTool get singleton instance for migrate tool
func GetMigrateTool() IMigrateTool { // nolint
	once.Do(func() {
		singleton = &migrateTool{}
	})
	return singleton
}

// Migrate execute migration in serialize.
func (mt *migrateTool) Migrate(source string, connStr string) error {
	mutex.Lock()
	defer mutex.Unlock()

	zap.S().Infof("migrating %s", source)

	mg, err := migrate.New(source, connStr)
	if err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}

	if dirty {
		zap.S().Warnf("schema version %d is dirty, forcing %d", version, int(version)-1)
		if err := mg.Force(int(version) - 1); err != nil {
			return err
		}
	}

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	zap.S().Info("migration done")
	return nil
}

// ConnectAndMigrate waits for the trade DB and migrates it.
func (mt *migrateTool) ConnectAndMigrate(cfg *postgres_wrapper.PostgresConfig, source string) (*gorm.DB, error) {
	db, err := postgres_wrapper.InitPostgresWithBackoff(cfg)
	if err != nil {
		return nil, err
	}

	if err := mt.Migrate(source, cfg.MigrationConnURL); err != nil {
		return nil, err
	}
	return db, nil
}
