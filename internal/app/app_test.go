package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/Corphon/PersonaChat/internal/api"
	"github.com/Corphon/PersonaChat/internal/config"
	"github.com/Corphon/PersonaChat/internal/di"
	"github.com/Corphon/PersonaChat/internal/storage"
	"github.com/gin-gonic/gin"
)

// 测试用配置，不配置密钥，模型客户端处于未就绪状态
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:           "0",
		DataDir:        filepath.Join(dir, "data"),
		LogDir:         filepath.Join(dir, "logs"),
		StorageBackend: "file",
		LLMProvider:    "openrouter",
		LocalModelURL:  "http://127.0.0.1:1/api/generate",
	}
}

// 模拟服务器
type mockServer struct {
	ShutdownCalled bool
}

func (m *mockServer) ListenAndServe() error {
	return nil
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	m.ShutdownCalled = true
	return nil
}

// TestInitServices 所有服务都应注册到容器
func TestInitServices(t *testing.T) {
	cfg := testConfig(t)
	container := di.NewContainer()

	if err := InitServices(cfg, container); err != nil {
		t.Fatalf("初始化服务失败: %v", err)
	}
	defer di.MustResolve[*api.ChatHub](container, di.ChatHub).Close()

	names := []string{
		di.StoreService, di.TemplateService, di.LLMService, di.CharacterService,
		di.MemoryService, di.ChatService, di.ScenarioService, di.NarratorService,
		di.GenerateService, di.ExportService, di.ChatHub,
	}
	for _, name := range names {
		if !container.Has(name) {
			t.Errorf("服务未注册: %s", name)
		}
	}

	if _, err := api.NewHandlerFromContainer(container); err != nil {
		t.Fatalf("创建处理器失败: %v", err)
	}

	store := di.MustResolve[storage.Store](container, di.StoreService)
	if _, cached := store.(*storage.CachedStore); cached {
		t.Error("缓存大小为0时不应包装缓存")
	}
	if !store.Exists(config.TemplatesDir, "prompt_templates") {
		t.Error("应该已写入默认模板")
	}
}

// TestInitServicesWithCache 缓存大小大于0时包装缓存层
func TestInitServicesWithCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageCacheSize = 16
	container := di.NewContainer()

	if err := InitServices(cfg, container); err != nil {
		t.Fatalf("初始化服务失败: %v", err)
	}
	defer di.MustResolve[*api.ChatHub](container, di.ChatHub).Close()

	store := di.MustResolve[storage.Store](container, di.StoreService)
	if _, cached := store.(*storage.CachedStore); !cached {
		t.Fatalf("store = %T, want *storage.CachedStore", store)
	}
}

// TestInitServicesUnknownBackend 未知存储后端返回错误
func TestInitServicesUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageBackend = "redis"

	if err := InitServices(cfg, di.NewContainer()); err == nil {
		t.Fatal("未知存储后端应该返回错误")
	}
}

// TestNewServesHealth 路由可以处理请求
func TestNewServesHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)

	app, err := New(cfg, di.NewContainer())
	if err != nil {
		t.Fatalf("创建应用失败: %v", err)
	}
	defer app.cleanup()

	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	files, _ := os.ReadDir(cfg.LogDir)
	if len(files) == 0 {
		t.Error("应该已创建日志文件")
	}
}

// TestRun 收到停止信号后关闭服务器
func TestRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)

	app, err := New(cfg, di.NewContainer())
	if err != nil {
		t.Fatalf("创建应用失败: %v", err)
	}
	mockSrv := &mockServer{}
	app.server = mockSrv

	go func() {
		time.Sleep(100 * time.Millisecond)
		app.stopChan <- syscall.SIGTERM
	}()

	if err := app.Run(); err != nil {
		t.Fatalf("运行应用失败: %v", err)
	}
	if !mockSrv.ShutdownCalled {
		t.Error("应该调用了server.Shutdown")
	}
}
