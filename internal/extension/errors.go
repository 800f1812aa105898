package extension

import (
	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
)

// 扩展相关错误，使用 errors.Is 按错误码判断
var (
	// ErrNilScheme Unregister 收到空 Scheme（例如 Get 未找到后直接注销），属于调用方前置条件违例
	ErrNilScheme = apperrors.NewBusinessError(apperrors.ErrCodeNilScheme, "scheme must not be nil")

	ErrNilExtension     = apperrors.NewBusinessError(apperrors.ErrCodeInvalidInput, "extension must not be nil")
	ErrSchemeNotFound   = apperrors.NewBusinessError(apperrors.ErrCodeSchemeNotFound, "scheme not found")
	ErrSchemeDuplicated = apperrors.NewBusinessError(apperrors.ErrCodeSchemeDuplicated, "scheme already registered")
	ErrExtensionMissing = apperrors.NewNotFoundError("extension")
	ErrVersionConflict  = apperrors.NewBusinessError(apperrors.ErrCodeVersionConflict, "extension version conflict")
	ErrAlreadyExists    = apperrors.NewBusinessError(apperrors.ErrCodeConflict, "extension already exists")
)
