package extension

import (
	"reflect"
	"strings"

	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
)

// Scheme 已注册扩展类型的描述
type Scheme struct {
	GVK      GroupVersionKind `json:"groupVersionKind"`
	Plural   string           `json:"plural"`
	Singular string           `json:"singular"`

	// 扩展的结构体类型（非指针）
	Type reflect.Type `json:"-"`
}

// New 创建该类型的一个空实例
func (s *Scheme) New() Extension {
	return reflect.New(s.Type).Interface().(Extension)
}

// StoreKeyPrefix 返回该类型在存储中的键前缀
func (s *Scheme) StoreKeyPrefix() string {
	group := s.GVK.Group
	if group == "" {
		group = "core"
	}
	return "/registry/" + group + "/" + s.Plural + "/"
}

// StoreKey 返回指定名称对象的存储键
func (s *Scheme) StoreKey(name string) string {
	return s.StoreKeyPrefix() + name
}

// BuildScheme 根据扩展原型构建Scheme
func BuildScheme(ext Extension) (*Scheme, error) {
	if isNilExtension(ext) {
		return nil, ErrNilExtension
	}

	gvk := ext.GroupVersionKind()
	if gvk.Kind == "" {
		return nil, apperrors.NewInvalidInputError("kind", "must not be empty")
	}
	if gvk.Version == "" {
		return nil, apperrors.NewInvalidInputError("version", "must not be empty")
	}

	typ := reflect.TypeOf(ext)
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, apperrors.NewInvalidInputError("extension", "must be a pointer to struct")
	}

	plural := strings.ToLower(gvk.Kind) + "s"
	singular := strings.ToLower(gvk.Kind)
	if namer, ok := ext.(ResourceNamer); ok {
		if p := namer.Plural(); p != "" {
			plural = p
		}
		if s := namer.Singular(); s != "" {
			singular = s
		}
	}

	return &Scheme{
		GVK:      gvk,
		Plural:   plural,
		Singular: singular,
		Type:     typ.Elem(),
	}, nil
}

func isNilExtension(ext Extension) bool {
	if ext == nil {
		return true
	}
	v := reflect.ValueOf(ext)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// typeOf 返回原型对应的结构体类型
func typeOf(ext Extension) reflect.Type {
	typ := reflect.TypeOf(ext)
	if typ.Kind() == reflect.Ptr {
		return typ.Elem()
	}
	return typ
}
