package db

import (
	"fmt"
	"time"

	"lager_lending_tool/config"
	"lager_lending_tool/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the configured store, applies pool limits and migrates the schema.
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gdb, err := Open(dialector)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite {
		// sqlite has a single writer; one connection keeps transactions serialised.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return gdb, nil
}

func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Credential{},
		&models.Item{},
		&models.Loan{},
		&models.Flag{},
	); err != nil {
		return err
	}

	loans := models.Loan{}.TableName()
	stmts := []string{
		// active loans per item, used by the resolver and the catalogue
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_open_item ON %s (item_id, loan_date) WHERE return_date IS NULL`, loans, loans),
		// overdue sweep
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_open_due ON %s (due_date) WHERE return_date IS NULL`, loans, loans),
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
