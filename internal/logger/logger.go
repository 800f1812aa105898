package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// InitLogger 初始化日志系统，env 为 development 时使用开发配置
func InitLogger(env, levelName string) error {
	config := zap.NewProductionConfig()

	// 开发环境使用更详细的日志
	if env == "development" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if err := SetLevel(levelName); err != nil {
		return err
	}
	config.Level = level

	var err error
	Logger, err = config.Build()
	if err != nil {
		return err
	}

	// 使用全局Logger
	zap.ReplaceGlobals(Logger)

	return nil
}

// SetLevel 运行时调整日志级别，空字符串视为info
func SetLevel(levelName string) error {
	if levelName == "" {
		levelName = "info"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(levelName)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	level.SetLevel(l)
	return nil
}

// Level 当前日志级别
func Level() zapcore.Level {
	return level.Level()
}

// GetLogger 获取Logger实例
func GetLogger() *zap.Logger {
	if Logger == nil {
		// 如果没有初始化，使用默认配置
		Logger, _ = zap.NewProduction()
	}
	return Logger
}

// Sync 同步日志缓冲区
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Info 记录Info级别日志
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Error 记录Error级别日志
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Warn 记录Warn级别日志
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Fatal 记录Fatal级别日志并退出程序
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}
