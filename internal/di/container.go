// internal/di/container.go
package di

import (
	"fmt"
	"sync"
)

// 容器中注册的服务名称
const (
	StoreService     = "store"
	TemplateService  = "template"
	LLMService       = "llm"
	CharacterService = "character"
	MemoryService    = "memory"
	ChatService      = "chat"
	ScenarioService  = "scenario"
	NarratorService  = "narrator"
	GenerateService  = "generate"
	ExportService    = "export"
	ChatHub          = "chat_hub"
)

// Container 是一个简单的依赖注入容器
type Container struct {
	services map[string]interface{}
	mutex    sync.RWMutex
}

var (
	globalContainer *Container
	once            sync.Once
)

// NewContainer 创建一个新的依赖注入容器
func NewContainer() *Container {
	return &Container{
		services: make(map[string]interface{}),
	}
}

// GetContainer 获取全局容器实例
func GetContainer() *Container {
	once.Do(func() {
		globalContainer = NewContainer()
	})
	return globalContainer
}

// Register 在容器中注册一个服务实例
func (c *Container) Register(name string, service interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.services[name] = service
}

// Get 从容器中获取一个服务实例
func (c *Container) Get(name string) interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.services[name]
}

// Has 检查容器中是否存在指定名称的服务
func (c *Container) Has(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, exists := c.services[name]
	return exists
}

// Resolve 取出指定名称的服务并断言为 T
func Resolve[T any](c *Container, name string) (T, error) {
	var zero T
	service := c.Get(name)
	if service == nil {
		return zero, fmt.Errorf("服务未注册: %s", name)
	}
	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("服务类型不匹配: %s (%T)", name, service)
	}
	return typed, nil
}

// MustResolve 与 Resolve 相同，失败时 panic，只用于启动阶段
func MustResolve[T any](c *Container, name string) T {
	service, err := Resolve[T](c, name)
	if err != nil {
		panic(err)
	}
	return service
}
