package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Pinger 可探活的存储后端
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 函数形式的 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// SQLPinger 探活 database/sql 连接
func SQLPinger(db *sql.DB) Pinger {
	return PingFunc(db.PingContext)
}

// RedisPinger 探活 Redis 连接
func RedisPinger(rdb *redis.Client) Pinger {
	return PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}

// HealthChecker 存储后端健康检查器
type HealthChecker struct {
	name          string
	target        Pinger
	logger        *logrus.Logger
	checkInterval time.Duration
	timeout       time.Duration

	mu           sync.RWMutex
	isHealthy    bool
	lastCheck    time.Time
	lastError    error
	responseTime time.Duration
	stopChan     chan struct{}
	running      bool
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Name         string    `json:"name"`
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

// NewHealthChecker 创建健康检查器，name 用于日志与结果展示
func NewHealthChecker(name string, target Pinger, logger *logrus.Logger) *HealthChecker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HealthChecker{
		name:          name,
		target:        target,
		logger:        logger,
		checkInterval: 30 * time.Second,
		timeout:       5 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// SetCheckInterval 设置检查间隔
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// Start 周期性检查，阻塞直到 ctx 结束或调用 Stop
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	interval := hc.checkInterval
	stop := hc.stopChan
	hc.mu.Unlock()

	log := hc.logger.WithField("target", hc.name)
	log.Info("Starting health checker")

	// 立即执行一次检查
	_ = hc.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hc.setStopped()
			log.Info("Health checker stopped")
			return
		case <-stop:
			hc.setStopped()
			log.Info("Health checker stopped")
			return
		case <-ticker.C:
			_ = hc.Check(ctx)
		}
	}
}

func (hc *HealthChecker) setStopped() {
	hc.mu.Lock()
	hc.running = false
	hc.mu.Unlock()
}

// Stop 停止健康检查
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.running {
		return
	}
	close(hc.stopChan)
	hc.stopChan = make(chan struct{})
}

// Check 执行单次健康检查
func (hc *HealthChecker) Check(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	err := hc.target.Ping(ctx)
	responseTime := time.Since(start)

	hc.mu.Lock()
	wasHealthy := hc.isHealthy
	hc.lastCheck = time.Now()
	hc.responseTime = responseTime
	hc.lastError = err
	hc.isHealthy = err == nil
	hc.mu.Unlock()

	fields := logrus.Fields{"target": hc.name, "response_time": responseTime}
	if err != nil {
		fields["error"] = err.Error()
		hc.logger.WithFields(fields).Warn("Health check failed")
		return err
	}
	if !wasHealthy {
		hc.logger.WithFields(fields).Info("Connection healthy")
	}
	return nil
}

// IsHealthy 获取当前健康状态
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.isHealthy
}

// GetHealthResult 获取最近一次检查结果
func (hc *HealthChecker) GetHealthResult() HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := HealthCheckResult{
		Name:      hc.name,
		Healthy:   hc.isHealthy,
		LastCheck: hc.lastCheck,
	}
	if hc.lastError != nil {
		result.LastError = hc.lastError.Error()
	}
	if !hc.lastCheck.IsZero() {
		result.ResponseTime = hc.responseTime.String()
	}
	return result
}

// WaitForHealthy 等待后端变为健康状态
func (hc *HealthChecker) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if hc.IsHealthy() {
			return nil
		}
		select {
		case <-timeoutCtx.Done():
			return timeoutCtx.Err()
		case <-ticker.C:
		}
	}
}
