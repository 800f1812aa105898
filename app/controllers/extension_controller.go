package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
	"github.com/aihub/plugin-hello-world/internal/extension"
)

// ExtensionController 已注册扩展类型的通用接口
//
//	GET    /apis/schemes
//	GET    /apis/<group>/<version>/<plural>?page=&size=
//	POST   /apis/<group>/<version>/<plural>
//	GET    /apis/<group>/<version>/<plural>/<name>
//	PUT    /apis/<group>/<version>/<plural>/<name>
//	DELETE /apis/<group>/<version>/<plural>/<name>?version=
type ExtensionController struct {
	BaseController
}

// resourcePath /apis 之后的路径
type resourcePath struct {
	scheme *extension.Scheme
	name   string
}

// Get 列表、单个对象或已注册类型
func (c *ExtensionController) Get() {
	if c.segments() == "schemes" {
		c.JSON(http.StatusOK, services.Schemes().List())
		return
	}

	res, ok := c.resolve()
	if !ok {
		return
	}

	if res.name == "" {
		page, _ := c.GetInt("page", 0)
		size, _ := c.GetInt("size", 0)
		list, err := services.Client().List(c.Ctx.Request.Context(), res.scheme.GVK, page, size)
		if err != nil {
			c.JSONAppError(err)
			return
		}
		c.JSON(http.StatusOK, list)
		return
	}

	ext, err := services.Client().Fetch(c.Ctx.Request.Context(), res.scheme.GVK, res.name)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusOK, ext)
}

// Post 创建对象
func (c *ExtensionController) Post() {
	res, ok := c.resolve()
	if !ok {
		return
	}
	if res.name != "" {
		c.JSONError(http.StatusMethodNotAllowed, "POST is only allowed on collections")
		return
	}

	ext, ok := c.decode(res.scheme)
	if !ok {
		return
	}
	created, err := services.Client().Create(c.Ctx.Request.Context(), ext)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Put 更新对象，请求体需携带 metadata.version
func (c *ExtensionController) Put() {
	res, ok := c.resolve()
	if !ok {
		return
	}
	if res.name == "" {
		c.JSONError(http.StatusMethodNotAllowed, "PUT requires a resource name")
		return
	}

	ext, ok := c.decode(res.scheme)
	if !ok {
		return
	}
	meta := ext.GetMetadata()
	if meta.Name == "" {
		meta.Name = res.name
	}
	if meta.Name != res.name {
		c.JSONAppError(apperrors.NewInvalidInputError("metadata.name", "does not match the request path"))
		return
	}

	updated, err := services.Client().Update(c.Ctx.Request.Context(), ext)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete 删除对象，可选 ?version= 做乐观锁校验
func (c *ExtensionController) Delete() {
	res, ok := c.resolve()
	if !ok {
		return
	}
	if res.name == "" {
		c.JSONError(http.StatusMethodNotAllowed, "DELETE requires a resource name")
		return
	}

	ext := res.scheme.New()
	ext.GetMetadata().Name = res.name
	if raw := c.GetString("version"); raw != "" {
		version, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSONAppError(apperrors.NewInvalidInputError("version", "must be an integer"))
			return
		}
		ext.GetMetadata().Version = &version
	}

	deleted, err := services.Client().Delete(c.Ctx.Request.Context(), ext)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusOK, deleted)
}

// segments 返回去掉 /apis/ 前缀的路径
func (c *ExtensionController) segments() string {
	path := strings.TrimPrefix(c.Ctx.Input.URL(), "/apis")
	return strings.Trim(path, "/")
}

// resolve 解析 group/version/plural[/name] 并查找已注册的 Scheme
func (c *ExtensionController) resolve() (resourcePath, bool) {
	parts := strings.Split(c.segments(), "/")
	if len(parts) != 3 && len(parts) != 4 {
		c.JSONError(http.StatusNotFound, "expected /apis/<group>/<version>/<plural>[/<name>]")
		return resourcePath{}, false
	}
	for _, part := range parts {
		if part == "" {
			c.JSONError(http.StatusNotFound, "empty path segment")
			return resourcePath{}, false
		}
	}

	group, version, plural := parts[0], parts[1], parts[2]
	scheme, ok := services.Schemes().FetchByPlural(group, version, plural)
	if !ok {
		c.JSONAppError(extension.ErrSchemeNotFound.WithMessage("no scheme for %s/%s %s", group, version, plural))
		return resourcePath{}, false
	}

	res := resourcePath{scheme: scheme}
	if len(parts) == 4 {
		res.name = parts[3]
	}
	return res, true
}

// decode 将请求体解码为该类型的新实例
func (c *ExtensionController) decode(scheme *extension.Scheme) (extension.Extension, bool) {
	body, err := c.requestBody()
	if err != nil {
		c.JSONError(http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if len(body) == 0 {
		c.JSONAppError(apperrors.NewInvalidInputError("body", "must not be empty"))
		return nil, false
	}

	ext := scheme.New()
	if err := json.Unmarshal(body, ext); err != nil {
		c.JSONAppError(apperrors.NewInvalidInputError("body", err.Error()))
		return nil, false
	}
	return ext, true
}

