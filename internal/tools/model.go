package tools

import (
	"context"
	"sync"

	"github.com/cursorcli/workspace-mcp/internal/ports"
)

// MockModel is an in-memory ModelPort façade: the client's own model choice
// is reported back to it (current carries no real inference here), and
// every tools/call's usage can be recorded and aggregated, mirroring the
// teacher's in-process accounting style rather than a durable store — §1's
// Non-goals explicitly exclude durable telemetry persistence.
type MockModel struct {
	mu      sync.Mutex
	current ports.ModelDescriptor
	records []ports.UsageRecord
}

// NewMockModel creates a model façade reporting descriptor as current.
func NewMockModel(descriptor ports.ModelDescriptor) *MockModel {
	return &MockModel{current: descriptor}
}

func (m *MockModel) Current(context.Context) (ports.ModelDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *MockModel) RecordUsage(_ context.Context, rec ports.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MockModel) Stats(context.Context) (ports.ModelUsageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ports.ModelUsageStats{PerModel: map[string]ports.ModelUsageBreakdown{}}
	var totalDurationMs int64
	for _, r := range m.records {
		tokens := r.PromptTokens + r.CompletionTokens
		stats.SessionCount++
		stats.TotalTokens += tokens
		totalDurationMs += r.DurationMs

		b := stats.PerModel[r.Model]
		b.Calls++
		b.Tokens += tokens
		b.AverageDurationMs = (b.AverageDurationMs*float64(b.Calls-1) + float64(r.DurationMs)) / float64(b.Calls)
		if r.Model == m.current.Name {
			b.EstimatedCostUSD = float64(b.Tokens) * m.current.CostPerToken
		}
		stats.PerModel[r.Model] = b
	}
	stats.EstimatedCostUSD = stats.PerModel[m.current.Name].EstimatedCostUSD
	if stats.SessionCount > 0 {
		stats.AverageDurationMs = float64(totalDurationMs) / float64(stats.SessionCount)
	}
	return stats, nil
}
