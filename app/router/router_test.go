package router

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aihub/plugin-hello-world/app/controllers"
	"github.com/aihub/plugin-hello-world/app/middleware"
	"github.com/aihub/plugin-hello-world/internal/database"
	apperrors "github.com/aihub/plugin-hello-world/internal/errors"
	"github.com/aihub/plugin-hello-world/internal/extension"
	"github.com/aihub/plugin-hello-world/internal/plugins"
	"github.com/aihub/plugin-hello-world/internal/todo"
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const todosPath = "/apis/todo.guqing.github.io/v1alpha1/todos"

type testServices struct {
	schemes  extension.SchemeManager
	client   *extension.Client
	manager  *plugins.PluginManager
	health   *database.HealthChecker
	registry *prometheus.Registry
	monitor  *apperrors.ErrorMonitor
}

func (s *testServices) Schemes() extension.SchemeManager { return s.schemes }
func (s *testServices) Client() *extension.Client { return s.client }
func (s *testServices) PluginManager() *plugins.PluginManager { return s.manager }
func (s *testServices) Health() *database.HealthChecker { return s.health }
func (s *testServices) Registry() *prometheus.Registry { return s.registry }
func (s *testServices) ErrorMonitor() *apperrors.ErrorMonitor { return s.monitor }

func newTestServer(t *testing.T) (*web.ControllerRegister, *testServices) {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics := plugins.NewMetrics(reg)
	schemes := extension.NewSchemeManager()
	metrics.WatchSchemes(schemes)

	manager, err := plugins.NewPluginManager(plugins.ManagerConfig{
		PluginDir: t.TempDir(),
		TempDir:   t.TempDir(),
		// 测试中不打开真实的 .so，统一返回 Todo 插件工厂
		OpenFactory: func(string) (plugins.PluginFactory, error) { return todo.NewPlugin, nil },
	}, schemes, metrics, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, manager.Install(todo.Descriptor, "", todo.NewPlugin))

	svc := &testServices{
		schemes:  schemes,
		client:   extension.NewClient(schemes, extension.NewMemoryStore()),
		manager:  manager,
		registry: reg,
		monitor:  apperrors.NewErrorMonitor(reg),
	}
	controllers.SetServices(svc)
	t.Cleanup(func() { controllers.SetServices(nil) })

	h := web.NewControllerRegister()
	require.NoError(t, middleware.NewMiddlewareManager(zap.NewNop(), reg).Apply(h))
	Routes(h)
	return h, svc
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "UP", body["status"])
	assert.EqualValues(t, 1, body["plugins"])
	assert.EqualValues(t, 0, body["schemes"])
	assert.NotContains(t, body, "store")
	assert.Empty(t, body["errors"])
}

func TestHealthReportsStoreDown(t *testing.T) {
	h, svc := newTestServer(t)
	svc.health = database.NewHealthChecker("redis", database.PingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}), nil)
	require.Error(t, svc.health.Check(context.Background()))

	w := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "DOWN", body["status"])
	store := body["store"].(map[string]interface{})
	assert.Equal(t, "redis", store["name"])
	assert.Contains(t, store["last_error"], "connection refused")
}

func TestServicesNotInitialized(t *testing.T) {
	h := web.NewControllerRegister()
	Routes(h)
	controllers.SetServices(nil)

	w := do(h, http.MethodGet, "/api/plugins", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPluginLifecycleEndpoints(t *testing.T) {
	h, svc := newTestServer(t)
	base := "/api/plugins/" + todo.PluginID

	w := do(h, http.MethodGet, "/api/plugins", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	list := body["data"].(map[string]interface{})["plugins"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "created", list[0].(map[string]interface{})["state"])

	// 启动后 Todo 类型可见
	w = do(h, http.MethodPost, base+"/start", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "started", decodeBody(t, w)["data"].(map[string]interface{})["state"])
	assert.NotNil(t, svc.schemes.Get(&todo.Todo{}))

	w = do(h, http.MethodPost, base+"/start", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", decodeBody(t, w)["code"])

	w = do(h, http.MethodPost, base+"/reload", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "started", decodeBody(t, w)["data"].(map[string]interface{})["state"])

	w = do(h, http.MethodPost, base+"/stop", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "stopped", decodeBody(t, w)["data"].(map[string]interface{})["state"])
	assert.Nil(t, svc.schemes.Get(&todo.Todo{}))

	w = do(h, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodDelete, base, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, svc.manager.ListPlugins())

	w = do(h, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PLUGIN_NOT_FOUND", decodeBody(t, w)["code"])
}

func TestUnknownPlugin(t *testing.T) {
	h, _ := newTestServer(t)

	for _, path := range []string{"/api/plugins/missing/start", "/api/plugins/missing/stop"} {
		w := do(h, http.MethodPost, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, false, decodeBody(t, w)["success"])
	}
}

// upload 以 multipart 表单提交文件
func upload(h http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", filename)
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/plugins/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// packageBytes 生成内存中的 .xpkg
func packageBytes(t *testing.T, manifest string, binary []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range map[string][]byte{"manifest.json": []byte(manifest), "plugin.so": binary} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestUploadRejectsNonPackage(t *testing.T) {
	h, _ := newTestServer(t)

	w := upload(h, "plugin.zip", []byte("not a package"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ".xpkg")
}

func TestUploadInstallsPackage(t *testing.T) {
	h, svc := newTestServer(t)
	pkg := packageBytes(t, `{"id":"uploaded","name":"Uploaded","version":"1.0.0"}`, []byte("v1"))

	w := upload(h, "uploaded.xpkg", pkg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(h, http.MethodGet, "/api/plugins/uploaded", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "created", decodeBody(t, w)["data"].(map[string]interface{})["state"])

	saved, err := os.ReadFile(filepath.Join(svc.manager.PluginDir(), "uploaded.xpkg"))
	require.NoError(t, err)
	assert.Equal(t, pkg, saved)

	leftovers, err := filepath.Glob(filepath.Join(svc.manager.PluginDir(), "*.part"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestUploadDuplicateKeepsInstalledPlugin(t *testing.T) {
	h, svc := newTestServer(t)
	first := packageBytes(t, `{"id":"uploaded","name":"Uploaded","version":"1.0.0"}`, []byte("v1"))
	require.Equal(t, http.StatusOK, upload(h, "uploaded.xpkg", first).Code)

	entry, err := svc.manager.GetPlugin("uploaded")
	require.NoError(t, err)
	installed := entry.Wrapper.PluginPath()

	second := packageBytes(t, `{"id":"uploaded","name":"Uploaded","version":"2.0.0"}`, []byte("v2"))
	w := upload(h, "uploaded.xpkg", second)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(apperrors.ErrCodeConflict), decodeBody(t, w)["code"])

	// 已安装插件的解压目录与原始包都不受影响
	assert.FileExists(t, filepath.Join(installed, "plugin.so"))
	saved, err := os.ReadFile(filepath.Join(svc.manager.PluginDir(), "uploaded.xpkg"))
	require.NoError(t, err)
	assert.Equal(t, first, saved)

	entry, err = svc.manager.GetPlugin("uploaded")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", entry.Descriptor.Version)
}

func TestTodoCRUD(t *testing.T) {
	h, svc := newTestServer(t)
	require.NoError(t, svc.manager.StartPlugin(todo.PluginID))

	w := do(h, http.MethodPost, todosPath, `{"metadata":{"name":"t1"},"spec":{"title":"Hello"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody(t, w)
	assert.Equal(t, "todo.guqing.github.io/v1alpha1", created["apiVersion"])
	assert.Equal(t, "Todo", created["kind"])
	meta := created["metadata"].(map[string]interface{})
	assert.EqualValues(t, 1, meta["version"])
	assert.NotEmpty(t, meta["creationTimestamp"])

	w = do(h, http.MethodPost, todosPath, `{"metadata":{"name":"t1"},"spec":{"title":"Again"}}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(h, http.MethodGet, todosPath+"?page=1&size=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody(t, w)
	assert.EqualValues(t, 1, list["total"])
	assert.Equal(t, true, list["first"])
	assert.Len(t, list["items"], 1)

	w = do(h, http.MethodGet, todosPath+"/t1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello", decodeBody(t, w)["spec"].(map[string]interface{})["title"])

	w = do(h, http.MethodPut, todosPath+"/t1", `{"metadata":{"name":"t1","version":1},"spec":{"title":"Hello","done":true}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody(t, w)
	assert.EqualValues(t, 2, updated["metadata"].(map[string]interface{})["version"])
	assert.Equal(t, true, updated["spec"].(map[string]interface{})["done"])

	// 旧版本号更新冲突
	w = do(h, http.MethodPut, todosPath+"/t1", `{"metadata":{"version":1},"spec":{"title":"Stale"}}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "VERSION_CONFLICT", decodeBody(t, w)["code"])

	w = do(h, http.MethodPut, todosPath+"/t1", `{"metadata":{"name":"other","version":2},"spec":{"title":"Hello"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodDelete, todosPath+"/t1?version=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decodeBody(t, w)["metadata"].(map[string]interface{})["deletionTimestamp"])

	w = do(h, http.MethodGet, todosPath+"/t1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTodoValidation(t *testing.T) {
	h, svc := newTestServer(t)
	require.NoError(t, svc.manager.StartPlugin(todo.PluginID))

	w := do(h, http.MethodPost, todosPath, `{"metadata":{"name":"t1"},"spec":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, w)["code"])

	w = do(h, http.MethodPost, todosPath, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decodeBody(t, w)["code"])

	w = do(h, http.MethodPost, todosPath, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnregisteredKind(t *testing.T) {
	h, svc := newTestServer(t)

	// 插件未启动时 Todo 未注册
	w := do(h, http.MethodGet, todosPath, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SCHEME_NOT_FOUND", decodeBody(t, w)["code"])

	require.NoError(t, svc.manager.StartPlugin(todo.PluginID))
	w = do(h, http.MethodGet, todosPath, "")
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, svc.manager.StopPlugin(todo.PluginID))
	w = do(h, http.MethodGet, todosPath, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, http.MethodGet, "/apis/todo.guqing.github.io", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSchemes(t *testing.T) {
	h, svc := newTestServer(t)

	w := do(h, http.MethodGet, "/apis/schemes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	require.NoError(t, svc.manager.StartPlugin(todo.PluginID))
	w = do(h, http.MethodGet, "/apis/schemes", "")
	require.Equal(t, http.StatusOK, w.Code)

	var schemes []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &schemes))
	require.Len(t, schemes, 1)
	assert.Equal(t, "todos", schemes[0]["plural"])
	assert.Equal(t, "Todo", schemes[0]["groupVersionKind"].(map[string]interface{})["kind"])
}

func TestMetricsEndpoint(t *testing.T) {
	h, svc := newTestServer(t)
	require.NoError(t, svc.manager.StartPlugin(todo.PluginID))

	do(h, http.MethodGet, "/health", "")

	w := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	text := w.Body.String()
	assert.Contains(t, text, "plugin_lifecycle_total")
	assert.Contains(t, text, "http_requests_total")
}

func TestErrorsAreCounted(t *testing.T) {
	h, svc := newTestServer(t)

	do(h, http.MethodGet, todosPath, "")
	do(h, http.MethodPost, "/api/plugins/missing/start", "")

	stats := svc.monitor.GetStats()
	assert.EqualValues(t, 1, stats[apperrors.ErrCodeSchemeNotFound].Count)
	assert.EqualValues(t, 1, stats[apperrors.ErrCodePluginNotFound].Count)

	do(h, http.MethodPost, "/api/plugins/missing/stop", "")
	w := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	top := decodeBody(t, w)["errors"].([]interface{})
	require.Len(t, top, 2)
	first := top[0].(map[string]interface{})
	assert.Equal(t, string(apperrors.ErrCodePluginNotFound), first["code"])
	assert.EqualValues(t, 2, first["count"])
}
