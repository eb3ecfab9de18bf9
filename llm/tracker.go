package llm

import (
	"sort"
	"sync"
	"time"

	"github.com/zero-day-ai/council/types"
)

// ModelUsage aggregates the outcomes recorded for one model.
type ModelUsage struct {
	Requests      int
	Failures      int
	Tokens        int
	Cost          float64
	ExecutionTime time.Duration
}

// Add combines two ModelUsage instances.
func (u ModelUsage) Add(other ModelUsage) ModelUsage {
	return ModelUsage{
		Requests:      u.Requests + other.Requests,
		Failures:      u.Failures + other.Failures,
		Tokens:        u.Tokens + other.Tokens,
		Cost:          u.Cost + other.Cost,
		ExecutionTime: u.ExecutionTime + other.ExecutionTime,
	}
}

// UsageFromResponse converts one response into a single-request ModelUsage.
func UsageFromResponse(r types.Response) ModelUsage {
	u := ModelUsage{
		Requests:      1,
		Tokens:        max(r.SelfAssessment.TokenUsage, 0),
		Cost:          r.SelfAssessment.EstimatedCost,
		ExecutionTime: r.ExecutionDuration(),
	}
	if !r.Success {
		u.Failures = 1
	}
	return u
}

// UsageTracker tracks usage across models.
type UsageTracker interface {
	// Add records usage for a specific model.
	Add(model string, usage ModelUsage)

	// Record adds the usage reported by a response.
	Record(r types.Response)

	// Total returns the aggregate usage across all models.
	Total() ModelUsage

	// ByModel returns the usage for a specific model.
	ByModel(model string) ModelUsage

	// Reset clears all tracked usage.
	Reset()

	// Models returns the tracked model ids.
	Models() []string
}

// DefaultUsageTracker is a thread-safe implementation of UsageTracker.
type DefaultUsageTracker struct {
	mu     sync.RWMutex
	models map[string]ModelUsage
	total  ModelUsage
}

// NewUsageTracker creates a new DefaultUsageTracker.
func NewUsageTracker() *DefaultUsageTracker {
	return &DefaultUsageTracker{
		models: make(map[string]ModelUsage),
	}
}

// Add records usage for a specific model.
func (t *DefaultUsageTracker) Add(model string, usage ModelUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.models[model] = t.models[model].Add(usage)
	t.total = t.total.Add(usage)
}

// Record adds the usage reported by r under r.ModelUsed.
func (t *DefaultUsageTracker) Record(r types.Response) {
	t.Add(r.ModelUsed, UsageFromResponse(r))
}

// Total returns the aggregate usage across all models.
func (t *DefaultUsageTracker) Total() ModelUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// ByModel returns the usage for a specific model.
// Returns an empty ModelUsage if the model has not been used.
func (t *DefaultUsageTracker) ByModel(model string) ModelUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.models[model]
}

// Reset clears all tracked usage.
func (t *DefaultUsageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.models = make(map[string]ModelUsage)
	t.total = ModelUsage{}
}

// Models returns the tracked model ids in sorted order.
func (t *DefaultUsageTracker) Models() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	models := make([]string, 0, len(t.models))
	for m := range t.models {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// Snapshot returns a read-only copy of the current usage state.
type Snapshot struct {
	// Models contains usage by model id.
	Models map[string]ModelUsage

	// Total contains aggregate usage.
	Total ModelUsage
}

// Snapshot returns a snapshot of the current usage state.
func (t *DefaultUsageTracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	models := make(map[string]ModelUsage, len(t.models))
	for m, usage := range t.models {
		models[m] = usage
	}

	return Snapshot{
		Models: models,
		Total:  t.total,
	}
}
