// cmd/server/main.go
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/Corphon/PersonaChat/internal/app"
	"github.com/Corphon/PersonaChat/internal/config"
	"github.com/Corphon/PersonaChat/internal/di"
)

func main() {
	log.Println("🚀 启动 PersonaChat 服务器...")

	// 1. 首先加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s", baseConfig.Port)

	// 2. 创建必要的目录
	createDirectories(baseConfig)
	log.Println("✅ 目录结构创建完成")

	// 3. 初始化配置系统
	if err := config.InitConfig(baseConfig); err != nil {
		log.Fatalf("初始化配置系统失败: %v", err)
	}
	log.Println("✅ 配置系统初始化完成")

	// 4. 初始化服务和路由
	application, err := app.New(baseConfig, di.GetContainer())
	if err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	log.Printf("🔗 访问地址: http://localhost:%s/api/health", baseConfig.Port)

	// 5. 运行到收到停止信号
	if err := application.Run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("✅ 服务器优雅关闭完成")
}

// createDirectories 创建应用所需的目录结构
func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, config.CharactersDir),
		filepath.Join(cfg.DataDir, config.MemoryDir),
		filepath.Join(cfg.DataDir, config.TemplatesDir),
		filepath.Join(cfg.DataDir, config.ChatInstancesDir),
		filepath.Join(cfg.DataDir, config.ScenariosDir),
		filepath.Join(cfg.DataDir, "exports"),
		cfg.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("创建目录失败 %s: %v", dir, err)
		}
	}
}
