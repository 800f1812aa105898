package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/beego/beego/v2/server/web"
	beecontext "github.com/beego/beego/v2/server/web/context"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const requestStartKey = "request_start"

// MiddlewareManager 中间件管理器
type MiddlewareManager struct {
	logger *zap.Logger

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMiddlewareManager 创建中间件管理器，reg 为 nil 时不采集HTTP指标
func NewMiddlewareManager(logger *zap.Logger, reg prometheus.Registerer) *MiddlewareManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	mm := &MiddlewareManager{
		logger: logger,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(mm.requestsTotal, mm.requestDuration)
	}
	return mm
}

// Apply 在路由表上注册全局过滤器
func (mm *MiddlewareManager) Apply(h *web.ControllerRegister) error {
	if err := h.InsertFilter("/*", web.BeforeRouter, mm.requestStart()); err != nil {
		return err
	}
	// FinishRouter 在响应写出后仍需执行
	return h.InsertFilter("/*", web.FinishRouter, mm.loggingMiddleware(), web.WithReturnOnOutput(false))
}

func (mm *MiddlewareManager) requestStart() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		ctx.Input.SetData(requestStartKey, time.Now())
	}
}

// loggingMiddleware 请求日志中间件
func (mm *MiddlewareManager) loggingMiddleware() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		var duration time.Duration
		if start, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
			duration = time.Since(start)
		}

		status := ctx.ResponseWriter.Status
		if status == 0 {
			status = http.StatusOK
		}
		method := ctx.Input.Method()

		mm.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
		mm.requestDuration.WithLabelValues(method).Observe(duration.Seconds())

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", ctx.Input.URI()),
			zap.Int("status", status),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("remote_addr", ctx.Input.IP()),
		}

		switch {
		case status >= 500:
			mm.logger.Error("Request completed", fields...)
		case status >= 400:
			mm.logger.Warn("Request completed", fields...)
		default:
			mm.logger.Info("Request completed", fields...)
		}
	}
}
