package main

import (
	"errors"
	"fmt"

	mysqlrepo "loan-ledger/internal/adapter/repository/mysql"
	"loan-ledger/internal/adapter/repository/memory"
	"loan-ledger/internal/config"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/infrastructure/db"
	"loan-ledger/internal/infrastructure/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var errNoJournal = errors.New("the memory store keeps no journal")

// setup loads and validates config for cmd and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.LogLevel, cmd.ErrOrStderr()), nil
}

// openJournal returns the journal for the configured store and a closer for
// whatever it opened.
func openJournal(cfg *config.Config, log logrus.FieldLogger) (loan.Journal, func() error, error) {
	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.NewJournal(), func() error { return nil }, nil
	case config.DriverMySQL:
		gdb, err = db.OpenGorm(cfg.MySQLDSN(), db.WithLogger(log))
	case config.DriverSQLite:
		gdb, err = db.OpenSQLite(cfg.SQLitePath, db.WithLogger(log))
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.StoreDriver, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, err
	}
	if err := mysqlrepo.Migrate(gdb); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.WithField("driver", cfg.StoreDriver).Info("journal store ready")
	j := mysqlrepo.NewJournal(mysqlrepo.NewGormUoW(gdb), mysqlrepo.NewEntryRepository(gdb), mysqlrepo.NewBindingRepository(gdb))
	return j, sqlDB.Close, nil
}
