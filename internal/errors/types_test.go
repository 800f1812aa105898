package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorIsMatchesByCode(t *testing.T) {
	base := NewBusinessError(ErrCodeSchemeNotFound, "scheme not found")
	derived := base.WithMessage("scheme %s not found", "todos")

	assert.True(t, errors.Is(derived, base))
	assert.False(t, errors.Is(derived, NewBusinessError(ErrCodeSchemeDuplicated, "dup")))
	assert.Equal(t, "scheme not found", base.Message, "WithMessage must not mutate the original")
}

func TestAppErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewSystemError(ErrCodeStorageError, "store failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store failed: connection refused", err.Error())

	wrapped := fmt.Errorf("plugin helloworld: %w", err)
	assert.True(t, IsAppError(wrapped))
	assert.Equal(t, ErrCodeStorageError, GetAppError(wrapped).Code)
}

func TestGetAppErrorWrapsForeignErrors(t *testing.T) {
	appErr := GetAppError(fmt.Errorf("boom"))

	assert.Equal(t, ErrCodeInternalServer, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPCode)
	assert.EqualError(t, appErr.Unwrap(), "boom")
}

func TestBusinessErrorHTTPCodes(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeSchemeNotFound:   http.StatusNotFound,
		ErrCodePluginNotFound:   http.StatusNotFound,
		ErrCodeSchemeDuplicated: http.StatusConflict,
		ErrCodeInvalidState:     http.StatusConflict,
		ErrCodeInvalidInput:     http.StatusBadRequest,
		ErrCodeNilScheme:        http.StatusBadRequest,
		ErrCodeStorageError:     http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, NewBusinessError(code, "x").HTTPCode, code)
	}
}
