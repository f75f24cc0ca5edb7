// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Corphon/PersonaChat/internal/api"
	"github.com/Corphon/PersonaChat/internal/config"
	"github.com/Corphon/PersonaChat/internal/di"
	"github.com/Corphon/PersonaChat/internal/services"
	"github.com/Corphon/PersonaChat/internal/storage"
	"github.com/Corphon/PersonaChat/internal/utils"
	"github.com/gin-gonic/gin"
)

// 关闭服务器最多等待的时间
const shutdownTimeout = 30 * time.Second

// 缓存条目的过期时间
const storeCacheExpiration = 5 * time.Minute

// httpServer 便于在测试中替换真实服务器
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 持有应用运行期间的全部资源
type App struct {
	config    *config.Config
	container *di.Container
	router    *gin.Engine
	server    httpServer
	stopChan  chan os.Signal
}

// New 初始化日志、服务和路由
func New(cfg *config.Config, container *di.Container) (*App, error) {
	if err := initLogger(cfg.LogDir); err != nil {
		return nil, err
	}
	if cfg.DebugMode {
		utils.GetLogger().SetLogLevel(utils.DEBUG)
	}

	if err := InitServices(cfg, container); err != nil {
		return nil, err
	}

	handler, err := api.NewHandlerFromContainer(container)
	if err != nil {
		return nil, fmt.Errorf("创建请求处理器失败: %w", err)
	}
	router := api.SetupRouter(handler, cfg.DebugMode)

	app := &App{
		config:    cfg,
		container: container,
		router:    router,
		server: &http.Server{
			Addr:              cfg.Host + ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		stopChan: make(chan os.Signal, 1),
	}
	return app, nil
}

// initLogger 日志同时写入 logDir 下按日期命名的文件
func initLogger(logDir string) error {
	if logDir == "" {
		return nil
	}
	logFile := filepath.Join(logDir, fmt.Sprintf("app_%s.log", time.Now().Format("2006-01-02")))
	if err := utils.InitLogger(logFile); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	return nil
}

// InitServices 按依赖顺序创建服务并注册到容器
func InitServices(cfg *config.Config, container *di.Container) error {
	// 1. 存储
	baseStore, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("打开存储失败: %w", err)
	}
	var store storage.Store = baseStore
	if cfg.StorageCacheSize > 0 {
		store = storage.NewCachedStore(baseStore, cfg.StorageCacheSize, storeCacheExpiration)
	}
	container.Register(di.StoreService, store)

	// 2. 模板
	templates := services.NewTemplateService(store)
	if err := templates.EnsureDefaults(); err != nil {
		return fmt.Errorf("写入默认模板失败: %w", err)
	}
	container.Register(di.TemplateService, templates)

	// 3. 模型客户端
	llmService := services.NewLLMService(config.GetCurrentConfig())
	if !llmService.IsReady() {
		utils.GetLogger().Warn("远程模型未就绪", map[string]interface{}{
			"provider":    llmService.GetProviderName(),
			"ready_state": llmService.GetReadyState(),
		})
	}
	container.Register(di.LLMService, llmService)

	// 4. 实体服务
	memory := services.NewMemoryService(store)
	characters := services.NewCharacterService(store, memory)
	scenarios := services.NewScenarioService(store)
	container.Register(di.MemoryService, memory)
	container.Register(di.CharacterService, characters)
	container.Register(di.ScenarioService, scenarios)

	// 5. 对话与生成
	narrator := services.NewSceneNarrator(llmService)
	chats := services.NewChatService(store, characters, scenarios, templates, memory, llmService, narrator)
	hub := api.NewChatHub()
	chats.SetBroadcaster(hub)

	container.Register(di.NarratorService, narrator)
	container.Register(di.ChatService, chats)
	container.Register(di.ChatHub, hub)
	container.Register(di.GenerateService, services.NewGenerationService(llmService))
	container.Register(di.ExportService,
		services.NewExportService(chats, characters, filepath.Join(cfg.DataDir, "exports")))

	utils.GetLogger().Info("服务初始化完成", map[string]interface{}{
		"storage_backend": cfg.StorageBackend,
		"cache_size":      cfg.StorageCacheSize,
		"provider":        llmService.GetProviderName(),
		"llm_ready":       llmService.IsReady(),
	})
	return nil
}

// Router 返回已配置的路由
func (a *App) Router() *gin.Engine {
	return a.router
}

// Run 启动HTTP服务并阻塞到收到停止信号
func (a *App) Run() error {
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	serverErr := make(chan error, 1)
	go func() {
		utils.GetLogger().Info("服务器启动", map[string]interface{}{
			"host": a.config.Host,
			"port": a.config.Port,
		})
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return fmt.Errorf("启动服务器失败: %w", err)
	case sig := <-a.stopChan:
		utils.GetLogger().Info("正在关闭服务器", map[string]interface{}{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(ctx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	utils.GetLogger().Info("服务器已关闭", nil)
	return nil
}

// cleanup 关闭推送中心和存储
func (a *App) cleanup() {
	if hub, err := di.Resolve[*api.ChatHub](a.container, di.ChatHub); err == nil {
		hub.Close()
	}
	if store, err := di.Resolve[storage.Store](a.container, di.StoreService); err == nil {
		if err := store.Close(); err != nil {
			utils.GetLogger().Warn("关闭存储失败", map[string]interface{}{"error": err.Error()})
		}
	}
	utils.GetLogger().Close()
}
