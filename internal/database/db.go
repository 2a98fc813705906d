package database

import (
	"fmt"

	"salesforecast-backend/internal/config"
	"salesforecast-backend/internal/logger"
	"salesforecast-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// scenarioColumns were added to sales_data after the first release; older
// databases get them through upgradeSalesColumns before AutoMigrate runs.
var scenarioColumns = []string{"DiscountPct", "Seasonality", "IsHoliday", "WeatherCondition", "BatchID"}

func Init(cfg *config.Config) error {
	gormCfg := &gorm.Config{}
	if cfg.IsProduction() {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return err
	}

	DB = db
	logger.Infof("Database connection established, migration completed")
	return nil
}

// Migrate brings the schema up to date. Also used by tests against SQLite.
func Migrate(db *gorm.DB) error {
	if err := upgradeSalesColumns(db); err != nil {
		return err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.SalesRecord{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}
	return nil
}

func upgradeSalesColumns(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(&models.SalesRecord{}) {
		return nil
	}

	for _, col := range scenarioColumns {
		if m.HasColumn(&models.SalesRecord{}, col) {
			continue
		}
		logger.Infof("[DB UPGRADE] adding missing sales_data column: %s", col)
		if err := m.AddColumn(&models.SalesRecord{}, col); err != nil {
			return fmt.Errorf("could not add sales_data.%s: %w", col, err)
		}
	}
	return nil
}

// Ping is used by the health endpoint.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
