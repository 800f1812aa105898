package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorTranslator 错误转换器
type ErrorTranslator struct{}

// NewErrorTranslator 创建错误转换器
func NewErrorTranslator() *ErrorTranslator {
	return &ErrorTranslator{}
}

// Translate 将各种类型的错误转换为AppError，nil 返回 nil
func (t *ErrorTranslator) Translate(err error) *AppError {
	if err == nil {
		return nil
	}

	// 已经是AppError（包括被包装的），直接返回
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return t.TranslateValidation("validation failed", validationErrors)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return NewInvalidInputError("body", err.Error()).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return timeoutError(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return timeoutError(err)
	}

	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// TranslateValidation 转换验证错误，消息形如 "prefix: Spec.Title(required)"
func (t *ErrorTranslator) TranslateValidation(prefix string, validationErrors validator.ValidationErrors) *AppError {
	fields := make([]string, 0, len(validationErrors))
	details := make([]map[string]interface{}, 0, len(validationErrors))

	for _, fieldError := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s(%s)", fieldError.Namespace(), fieldError.Tag()))
		details = append(details, map[string]interface{}{
			"field":   fieldError.Namespace(),
			"tag":     fieldError.Tag(),
			"message": t.getValidationErrorMessage(fieldError),
		})
	}

	return NewValidationError(prefix + ": " + strings.Join(fields, ", ")).
		WithDetails(map[string]interface{}{
			"errors": details,
		})
}

func timeoutError(err error) *AppError {
	appErr := NewSystemError(ErrCodeTimeout, "Operation timed out").WithCause(err)
	appErr.HTTPCode = http.StatusGatewayTimeout
	return appErr
}

// getValidationErrorMessage 获取验证错误消息
func (t *ErrorTranslator) getValidationErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()
	tag := fieldError.Tag()

	switch tag {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fieldError.Param()
	case "max":
		return field + " must be at most " + fieldError.Param()
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	default:
		return field + " is invalid"
	}
}

