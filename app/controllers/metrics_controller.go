package controllers

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsController 指标控制器
type MetricsController struct {
	BaseController
}

// Metrics 返回Prometheus格式的指标
func (c *MetricsController) Metrics() {
	handler := promhttp.HandlerFor(services.Registry(), promhttp.HandlerOpts{})
	handler.ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
