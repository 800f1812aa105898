package database

import (
	"fmt"
	"time"

	"github.com/aihub/plugin-hello-world/internal/config"
	"github.com/aihub/plugin-hello-world/internal/extension"
	"github.com/aihub/plugin-hello-world/internal/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB 连接PostgreSQL并创建扩展存储表
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		// 唯一键冲突翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层的sql.DB设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	DB = db
	logger.Info("Database connected successfully")
	return db, nil
}

// autoMigrate 创建 extension_stores 表
func autoMigrate(db *gorm.DB) error {
	if err := extension.NewGormStore(db).AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate extension_stores: %w", err)
	}
	return nil
}

// CloseDB 关闭数据库连接
func CloseDB() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
		return err
	}
	DB = nil
	return nil
}
