// internal/utils/metrics.go
package utils

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector 进程内计数器和耗时统计
type MetricsCollector struct {
	counters   map[string]*int64
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Histogram 只记录次数、总和、最小值和最大值
type Histogram struct {
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// NewMetricsCollector 创建独立的收集器，测试中使用
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*int64),
		histograms: make(map[string]*Histogram),
	}
}

// GetMetricsCollector 返回全局收集器
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

func (m *MetricsCollector) counter(name string) *int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()
	if exists {
		return counter
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, exists = m.counters[name]; !exists {
		counter = new(int64)
		m.counters[name] = counter
	}
	return counter
}

// IncrementCounter 计数加一
func (m *MetricsCollector) IncrementCounter(name string) {
	atomic.AddInt64(m.counter(name), 1)
}

// AddCounter 计数加上指定值
func (m *MetricsCollector) AddCounter(name string, value int64) {
	atomic.AddInt64(m.counter(name), value)
}

// GetCounterValue 读取计数
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()
	if !exists {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// RecordHistogram 记录一个观测值
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if histogram, exists = m.histograms[name]; !exists {
			histogram = &Histogram{min: value, max: value}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.mu.Lock()
	defer histogram.mu.Unlock()

	histogram.count++
	histogram.sum += value
	if value < histogram.min {
		histogram.min = value
	}
	if value > histogram.max {
		histogram.max = value
	}
}

// GetMetrics 返回全部指标的快照
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, counter := range m.counters {
		counters[name] = atomic.LoadInt64(counter)
	}

	histograms := make(map[string]map[string]int64, len(m.histograms))
	for name, histogram := range m.histograms {
		histogram.mu.Lock()
		histograms[name] = map[string]int64{
			"count": histogram.count,
			"sum":   histogram.sum,
			"min":   histogram.min,
			"max":   histogram.max,
		}
		histogram.mu.Unlock()
	}

	return map[string]interface{}{
		"counters":   counters,
		"histograms": histograms,
	}
}

// RecordAPIRequest 记录一次HTTP请求
func (m *MetricsCollector) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	m.IncrementCounter("api_requests_total")
	m.IncrementCounter("api_requests_" + method + "_" + route)
	m.IncrementCounter(fmt.Sprintf("api_responses_%dxx", statusCode/100))
	m.RecordHistogram("api_response_time_ms", duration.Milliseconds())
}

// RecordLLMRequest 记录一次模型调用
func (m *MetricsCollector) RecordLLMRequest(provider string, tokensUsed int, duration time.Duration, err error) {
	m.IncrementCounter("llm_requests_total")
	m.IncrementCounter("llm_requests_" + provider)
	if err != nil {
		m.IncrementCounter("llm_errors_total")
		return
	}
	m.AddCounter("llm_tokens_total", int64(tokensUsed))
	m.RecordHistogram("llm_response_time_ms", duration.Milliseconds())
}

// RecordChatTurn 记录一轮已保存的对话
func (m *MetricsCollector) RecordChatTurn(isPlayerAction bool) {
	m.IncrementCounter("chat_turns_total")
	if isPlayerAction {
		m.IncrementCounter("chat_player_actions_total")
	}
}
