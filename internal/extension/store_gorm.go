package extension

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
	"gorm.io/gorm"
)

// GormStore 基于gorm的扩展存储（PostgreSQL）
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建gorm存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate 创建 extension_stores 表
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&ExtensionStore{})
}

func (s *GormStore) Create(ctx context.Context, name string, data []byte) (*ExtensionStore, error) {
	record := &ExtensionStore{Name: name, Data: data, Version: 1}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyExists.WithMessage("extension %s already exists", name)
		}
		return nil, storageError(err)
	}
	return record, nil
}

func (s *GormStore) Update(ctx context.Context, name string, version int64, data []byte) (*ExtensionStore, error) {
	result := s.db.WithContext(ctx).Model(&ExtensionStore{}).
		Where("name = ? AND version = ?", name, version).
		Updates(map[string]interface{}{"data": data, "version": version + 1})
	if result.Error != nil {
		return nil, storageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.missingOrConflict(ctx, name, version)
	}
	return &ExtensionStore{Name: name, Data: data, Version: version + 1}, nil
}

func (s *GormStore) Delete(ctx context.Context, name string, version int64) error {
	query := s.db.WithContext(ctx).Where("name = ?", name)
	if version != 0 {
		query = query.Where("version = ?", version)
	}
	result := query.Delete(&ExtensionStore{})
	if result.Error != nil {
		return storageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return s.missingOrConflict(ctx, name, version)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, name string) (*ExtensionStore, error) {
	var record ExtensionStore
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExtensionMissing.WithMessage("extension %s not found", name)
		}
		return nil, storageError(err)
	}
	return &record, nil
}

func (s *GormStore) List(ctx context.Context, prefix string) ([]*ExtensionStore, error) {
	var records []*ExtensionStore
	err := s.db.WithContext(ctx).
		Where(`name LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order("name").
		Find(&records).Error
	if err != nil {
		return nil, storageError(err)
	}
	return records, nil
}

// missingOrConflict 在更新/删除未命中时区分记录不存在与版本冲突
func (s *GormStore) missingOrConflict(ctx context.Context, name string, version int64) error {
	current, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	return ErrVersionConflict.WithMessage("extension %s version conflict: expected %d, got %d", name, current.Version, version)
}

// likeEscaper 转义 LIKE 通配符，前缀按字面匹配
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func storageError(err error) error {
	return apperrors.NewSystemError(apperrors.ErrCodeStorageError, "extension storage failed").WithCause(err)
}

var _ Store = (*GormStore)(nil)
