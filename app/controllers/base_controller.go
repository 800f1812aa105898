package controllers

import (
	"io"
	"net/http"

	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
	"github.com/aihub/plugin-hello-world/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

var translator = apperrors.NewErrorTranslator()

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// Prepare 服务未注入时直接返回 503
func (c *BaseController) Prepare() {
	if services == nil {
		c.JSONError(http.StatusServiceUnavailable, "service not initialized")
		c.StopRun()
	}
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError 按 AppError 的 HTTP 状态码输出错误，非 AppError 一律 500
func (c *BaseController) JSONAppError(err error) {
	appErr := translator.Translate(err)
	if services != nil {
		if monitor := services.ErrorMonitor(); monitor != nil {
			monitor.RecordError(appErr)
		}
	}

	// 系统错误不向客户端暴露内部原因
	message := err.Error()
	if appErr.Type == apperrors.ErrorTypeSystem {
		message = appErr.Message
		logger.Error("Request failed",
			zap.String("method", c.Ctx.Input.Method()),
			zap.String("path", c.Ctx.Input.URL()),
			zap.Error(err))
	}

	status := appErr.HTTPCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    appErr.Code,
	})
}

// requestBody 读取请求体；开启 CopyRequestBody 时直接使用已缓存的内容
func (c *BaseController) requestBody() ([]byte, error) {
	if len(c.Ctx.Input.RequestBody) > 0 {
		return c.Ctx.Input.RequestBody, nil
	}
	if c.Ctx.Request.Body == nil {
		return nil, nil
	}
	return io.ReadAll(c.Ctx.Request.Body)
}
