package utils

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMetricsCountersAndHistograms(t *testing.T) {
	m := NewMetricsCollector()

	m.RecordAPIRequest("/api/chat/:id", "POST", 200, 30*time.Millisecond)
	m.RecordAPIRequest("/api/chat/:id", "POST", 502, 10*time.Millisecond)
	m.RecordAPIRequest("/api/characters/:id", "GET", 404, 5*time.Millisecond)

	if got := m.GetCounterValue("api_requests_total"); got != 3 {
		t.Fatalf("api_requests_total = %d, want 3", got)
	}
	if got := m.GetCounterValue("api_requests_POST_/api/chat/:id"); got != 2 {
		t.Fatalf("route counter = %d, want 2", got)
	}
	for name, want := range map[string]int64{"api_responses_2xx": 1, "api_responses_4xx": 1, "api_responses_5xx": 1} {
		if got := m.GetCounterValue(name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}

	snapshot := m.GetMetrics()
	histograms := snapshot["histograms"].(map[string]map[string]int64)
	latency := histograms["api_response_time_ms"]
	if latency["count"] != 3 || latency["min"] != 5 || latency["max"] != 30 || latency["sum"] != 45 {
		t.Fatalf("unexpected latency histogram: %v", latency)
	}
}

func TestMetricsLLMAndTurns(t *testing.T) {
	m := NewMetricsCollector()

	m.RecordLLMRequest("openrouter", 120, time.Second, nil)
	m.RecordLLMRequest("openrouter", 0, time.Second, errors.New("timeout"))
	m.RecordChatTurn(false)
	m.RecordChatTurn(true)

	if got := m.GetCounterValue("llm_requests_openrouter"); got != 2 {
		t.Errorf("llm_requests_openrouter = %d", got)
	}
	if got := m.GetCounterValue("llm_errors_total"); got != 1 {
		t.Errorf("llm_errors_total = %d", got)
	}
	if got := m.GetCounterValue("llm_tokens_total"); got != 120 {
		t.Errorf("llm_tokens_total = %d", got)
	}
	if got := m.GetCounterValue("chat_turns_total"); got != 2 {
		t.Errorf("chat_turns_total = %d", got)
	}
	if got := m.GetCounterValue("chat_player_actions_total"); got != 1 {
		t.Errorf("chat_player_actions_total = %d", got)
	}
	if got := m.GetCounterValue("missing"); got != 0 {
		t.Errorf("missing counter = %d", got)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.IncrementCounter("hits")
				m.RecordHistogram("latency", int64(j))
			}
		}()
	}
	wg.Wait()

	if got := m.GetCounterValue("hits"); got != 1000 {
		t.Fatalf("hits = %d, want 1000", got)
	}
}
