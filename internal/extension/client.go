package extension

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
	"github.com/go-playground/validator/v10"
)

var translator = apperrors.NewErrorTranslator()

// Client 扩展对象的增删改查，所有操作都要求类型已注册
type Client struct {
	schemes  SchemeManager
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

// NewClient 创建扩展客户端
func NewClient(schemes SchemeManager, store Store) *Client {
	return &Client{
		schemes:  schemes,
		store:    store,
		validate: validator.New(),
		now:      time.Now,
	}
}

// ListResult 分页结果
type ListResult struct {
	Page        int         `json:"page"`
	Size        int         `json:"size"`
	Total       int         `json:"total"`
	Items       []Extension `json:"items"`
	First       bool        `json:"first"`
	Last        bool        `json:"last"`
	HasNext     bool        `json:"hasNext"`
	HasPrevious bool        `json:"hasPrevious"`
	TotalPages  int         `json:"totalPages"`
}

// Create 新建扩展对象
func (c *Client) Create(ctx context.Context, ext Extension) (Extension, error) {
	scheme, err := c.schemeOf(ext)
	if err != nil {
		return nil, err
	}
	if err := c.validateExtension(ext); err != nil {
		return nil, err
	}

	meta := ext.GetMetadata()
	created := c.now().UTC()
	meta.CreationTimestamp = &created
	meta.DeletionTimestamp = nil
	meta.Version = nil
	stampType(ext, scheme.GVK)

	data, err := json.Marshal(ext)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to encode extension").WithCause(err)
	}
	record, err := c.store.Create(ctx, scheme.StoreKey(meta.Name), data)
	if err != nil {
		return nil, err
	}
	return c.decode(scheme, record)
}

// Update 更新扩展对象，metadata.version 必须与存储中一致
func (c *Client) Update(ctx context.Context, ext Extension) (Extension, error) {
	scheme, err := c.schemeOf(ext)
	if err != nil {
		return nil, err
	}
	if err := c.validateExtension(ext); err != nil {
		return nil, err
	}

	meta := ext.GetMetadata()
	if meta.Version == nil {
		return nil, apperrors.NewInvalidInputError("metadata.version", "is required for update")
	}
	key := scheme.StoreKey(meta.Name)
	current, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	old, err := c.decode(scheme, current)
	if err != nil {
		return nil, err
	}
	// 创建时间不可修改
	meta.CreationTimestamp = old.GetMetadata().CreationTimestamp
	version := *meta.Version
	meta.Version = nil
	stampType(ext, scheme.GVK)

	data, err := json.Marshal(ext)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to encode extension").WithCause(err)
	}
	record, err := c.store.Update(ctx, key, version, data)
	if err != nil {
		return nil, err
	}
	return c.decode(scheme, record)
}

// Delete 删除扩展对象，返回带 deletionTimestamp 的最后状态
func (c *Client) Delete(ctx context.Context, ext Extension) (Extension, error) {
	scheme, err := c.schemeOf(ext)
	if err != nil {
		return nil, err
	}
	name := ext.GetMetadata().Name
	if name == "" {
		return nil, apperrors.NewInvalidInputError("metadata.name", "must not be empty")
	}

	key := scheme.StoreKey(name)
	record, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var version int64
	if v := ext.GetMetadata().Version; v != nil {
		version = *v
	}
	if err := c.store.Delete(ctx, key, version); err != nil {
		return nil, err
	}

	deleted, err := c.decode(scheme, record)
	if err != nil {
		return nil, err
	}
	ts := c.now().UTC()
	deleted.GetMetadata().DeletionTimestamp = &ts
	return deleted, nil
}

// Fetch 按名称获取扩展对象
func (c *Client) Fetch(ctx context.Context, gvk GroupVersionKind, name string) (Extension, error) {
	scheme, ok := c.schemes.Fetch(gvk)
	if !ok {
		return nil, ErrSchemeNotFound.WithMessage("scheme %s not found", gvk)
	}
	record, err := c.store.Get(ctx, scheme.StoreKey(name))
	if err != nil {
		return nil, err
	}
	return c.decode(scheme, record)
}

// List 分页列出，page从1开始；size<=0时返回全部
func (c *Client) List(ctx context.Context, gvk GroupVersionKind, page, size int) (*ListResult, error) {
	scheme, ok := c.schemes.Fetch(gvk)
	if !ok {
		return nil, ErrSchemeNotFound.WithMessage("scheme %s not found", gvk)
	}
	records, err := c.store.List(ctx, scheme.StoreKeyPrefix())
	if err != nil {
		return nil, err
	}

	items := make([]Extension, 0, len(records))
	for _, record := range records {
		ext, err := c.decode(scheme, record)
		if err != nil {
			return nil, err
		}
		items = append(items, ext)
	}
	return paginate(items, page, size), nil
}

func paginate(items []Extension, page, size int) *ListResult {
	total := len(items)
	if size <= 0 {
		return &ListResult{
			Page:       0,
			Size:       0,
			Total:      total,
			Items:      items,
			First:      true,
			Last:       true,
			TotalPages: 1,
		}
	}
	if page < 1 {
		page = 1
	}

	totalPages := (total + size - 1) / size
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &ListResult{
		Page:        page,
		Size:        size,
		Total:       total,
		Items:       items[start:end],
		First:       page == 1,
		Last:        page >= totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
		TotalPages:  totalPages,
	}
}

func (c *Client) schemeOf(ext Extension) (*Scheme, error) {
	if isNilExtension(ext) {
		return nil, ErrNilExtension
	}
	scheme := c.schemes.Get(ext)
	if scheme == nil {
		return nil, ErrSchemeNotFound.WithMessage("scheme %s not found", ext.GroupVersionKind())
	}
	return scheme, nil
}

func (c *Client) validateExtension(ext Extension) error {
	if err := c.validate.Struct(ext); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return translator.TranslateValidation("invalid extension", verrs)
		}
		return apperrors.NewValidationError("invalid extension").WithCause(err)
	}
	return nil
}

func (c *Client) decode(scheme *Scheme, record *ExtensionStore) (Extension, error) {
	ext := scheme.New()
	if err := json.Unmarshal(record.Data, ext); err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeStorageError, "failed to decode extension").WithCause(err)
	}
	stampType(ext, scheme.GVK)
	version := record.Version
	ext.GetMetadata().Version = &version
	return ext, nil
}
