// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string

	// 每个提供商各自的密钥，切换提供商时据此重新选择
	providerKeys map[string]string
)

// RemoteProviders 允许在运行时切换到的远程提供商
var RemoteProviders = []string{"openrouter", "gemini"}

// IsRemoteProvider 判断名称是否为可切换的远程提供商
func IsRemoteProvider(name string) bool {
	for _, p := range RemoteProviders {
		if p == name {
			return true
		}
	}
	return false
}

// 数据目录下的集合名称
const (
	CharactersDir    = "characters"
	MemoryDir        = "memory"
	TemplatesDir     = "templates"
	ChatInstancesDir = "chat_instances"
	ScenariosDir     = "scenarios"
)

// LocalModelName 作为模型名时表示使用本地模型端点
const LocalModelName = "local"

// Config 存储从环境变量加载的基础配置
type Config struct {
	Port      string `env:"PORT" envDefault:"5000"`
	Host      string `env:"HOST" envDefault:"0.0.0.0"`
	DataDir   string `env:"DATA_DIR" envDefault:"data"`
	LogDir    string `env:"LOG_DIR" envDefault:"logs"`
	DebugMode bool   `env:"DEBUG_MODE" envDefault:"true"`

	// 存储后端: file 或 sqlite
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"file"`
	// 文档缓存条目数，0 表示不缓存
	StorageCacheSize int `env:"STORAGE_CACHE_SIZE" envDefault:"0"`

	LLMProvider       string `env:"LLM_PROVIDER" envDefault:"openrouter"`
	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	GeminiAPIKey      string `env:"GEMINI_API_KEY"`
	DefaultModel      string `env:"DEFAULT_MODEL" envDefault:"deepseek/deepseek-llm-7b-chat"`
	LocalModelURL     string `env:"LOCAL_MODEL_URL" envDefault:"http://localhost:11434/api/generate"`

	AppName    string `env:"APP_NAME" envDefault:"AI Character Chat"`
	AppReferer string `env:"APP_REFERER" envDefault:"http://localhost:5000"`
}

// AppConfig 包含应用程序运行时的全部配置
type AppConfig struct {
	Port           string `json:"port"`
	Host           string `json:"host"`
	DataDir        string `json:"data_dir"`
	LogDir         string `json:"log_dir"`
	DebugMode      bool   `json:"debug_mode"`
	StorageBackend string `json:"storage_backend"`
	LocalModelURL  string `json:"local_model_url"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Load 从 .env 文件和环境变量加载配置
func Load() (*Config, error) {
	// .env 文件是可选的
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	if cfg.LLMProvider == "openrouter" && cfg.OpenRouterAPIKey == "" {
		// 只记录警告，不返回错误
		log.Println("警告: 未设置 OPENROUTER_API_KEY，远程模型调用将会失败")
	}

	return cfg, nil
}

// APIKey 返回当前提供商对应的密钥
func (c *Config) APIKey() string {
	return c.keyFor(c.LLMProvider)
}

func (c *Config) keyFor(provider string) string {
	if provider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.OpenRouterAPIKey
}

// ToAppConfig 把基础配置转换为运行时配置
func (c *Config) ToAppConfig() *AppConfig {
	return &AppConfig{
		Port:           c.Port,
		Host:           c.Host,
		DataDir:        c.DataDir,
		LogDir:         c.LogDir,
		DebugMode:      c.DebugMode,
		StorageBackend: c.StorageBackend,
		LocalModelURL:  c.LocalModelURL,
		LLMProvider:    c.LLMProvider,
		LLMConfig: map[string]string{
			"api_key":       c.APIKey(),
			"default_model": c.DefaultModel,
			"base_url":      c.OpenRouterBaseURL,
			"app_name":      c.AppName,
			"http_referer":  c.AppReferer,
		},
	}
}

// DefaultModel 返回当前默认模型
func (c *AppConfig) DefaultModel() string {
	if c == nil || c.LLMConfig == nil {
		return ""
	}
	return c.LLMConfig["default_model"]
}

// APIKey 返回当前远程提供商的密钥
func (c *AppConfig) APIKey() string {
	if c == nil || c.LLMConfig == nil {
		return ""
	}
	return c.LLMConfig["api_key"]
}

// Clone 返回配置的深拷贝
func (c *AppConfig) Clone() *AppConfig {
	clone := *c
	clone.LLMConfig = make(map[string]string, len(c.LLMConfig))
	for k, v := range c.LLMConfig {
		clone.LLMConfig[k] = v
	}
	return &clone
}

// InitConfig 初始化配置管理器
func InitConfig(base *Config) error {
	configFile = filepath.Join(base.DataDir, "config.json")

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = base.ToAppConfig()
	providerKeys = map[string]string{
		"openrouter": base.keyFor("openrouter"),
		"gemini":     base.keyFor("gemini"),
	}

	// 尝试从文件加载已保存的LLM设置
	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if json.Unmarshal(data, &saved) == nil && saved.LLMProvider != "" {
			currentConfig.LLMProvider = saved.LLMProvider
			for k, v := range saved.LLMConfig {
				if k == "api_key" || v == "" {
					continue
				}
				currentConfig.LLMConfig[k] = v
			}
			currentConfig.LLMConfig["api_key"] = providerKeys[saved.LLMProvider]
		}
	}

	return saveConfigLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 未初始化时退回到环境变量配置
		base, err := Load()
		if err != nil {
			base = &Config{LLMProvider: "openrouter"}
		}
		return base.ToAppConfig()
	}

	return currentConfig.Clone()
}

// UpdateLLMConfig 更新LLM配置，空值保留原有设置。
// 切换提供商且未给出 api_key 时，使用该提供商自己的密钥。
func UpdateLLMConfig(provider string, updates map[string]string) (*AppConfig, error) {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return nil, fmt.Errorf("配置系统未初始化")
	}

	if provider != "" && provider != currentConfig.LLMProvider {
		currentConfig.LLMProvider = provider
		currentConfig.LLMConfig["api_key"] = providerKeys[provider]
	}
	for k, v := range updates {
		if v == "" {
			continue
		}
		if k == "api_key" {
			providerKeys[currentConfig.LLMProvider] = v
		}
		currentConfig.LLMConfig[k] = v
	}

	if err := saveConfigLocked(); err != nil {
		return nil, err
	}
	return currentConfig.Clone(), nil
}

// saveConfigLocked 保存当前配置到文件，调用方需持有写锁。
// API 密钥从不写入磁盘。
func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	persisted := currentConfig.Clone()
	delete(persisted.LLMConfig, "api_key")

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
