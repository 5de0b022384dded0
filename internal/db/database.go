package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"story-palace/internal/config"
	"story-palace/internal/models"
	"story-palace/internal/pkg/logger"
)

type Client struct {
	DB  *gorm.DB
	log *logger.Logger
}

// New opens the history database described by cfg. sqlite is the
// default; postgres is used when several devices share one history.
func New(cfg *config.Config, log *logger.Logger) (*Client, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Database.Host,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
			cfg.Database.Port,
		)
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	c, err := open(dialector, log)
	if err != nil {
		return nil, err
	}

	// Connection Pool Settings
	if cfg.Database.Driver == "postgres" {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Info("✅ Database Connected", "driver", dialector.Name())
	return c, nil
}

// NewSQLite opens a sqlite database at path (":memory:" works for tests).
func NewSQLite(path string, log *logger.Logger) (*Client, error) {
	return open(sqlite.Open(path), log)
}

func open(dialector gorm.Dialector, log *logger.Logger) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &Client{DB: db, log: log}, nil
}

// AutoMigrate creates/updates tables based on struct definitions
func (c *Client) AutoMigrate() error {
	c.log.Debug("Running Database Migrations...")
	if err := c.DB.AutoMigrate(&models.ListenEvent{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	c.log.Debug("✅ Migrations Complete")
	return nil
}
