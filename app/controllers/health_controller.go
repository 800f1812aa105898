package controllers

import (
	"net/http"
	"time"
)

// topErrorLimit /health 中返回的错误码数量
const topErrorLimit = 5

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
}

// Health GET /health
func (c *HealthController) Health() {
	status := "UP"
	code := http.StatusOK

	payload := map[string]interface{}{
		"plugins": len(services.PluginManager().ListPlugins()),
		"schemes": len(services.Schemes().List()),
		"time":    time.Now().UTC().Format(time.RFC3339),
	}

	if monitor := services.ErrorMonitor(); monitor != nil {
		payload["errors"] = monitor.GetTopErrors(topErrorLimit)
	}

	if health := services.Health(); health != nil {
		result := health.GetHealthResult()
		payload["store"] = result
		if !result.Healthy {
			status = "DOWN"
			code = http.StatusServiceUnavailable
		}
	}
	payload["status"] = status

	c.JSON(code, payload)
}
