// Package metrics provides in-memory operation timings and Prometheus
// counters for jobs and the notification hub.
package metrics

import (
	"sync"
	"time"
)

// Operation names recorded by the collector.
const (
	OpEmbedding    = "embedding"
	OpLLMStream    = "llm_stream"
	OpTextExtract  = "text_extract"
	OpVectorSearch = "vector_search"
	OpPersist      = "persist"
)

// OperationSnapshot is the JSON view of one operation served at /api/stats.
// Token fields are set only for model calls that reported usage.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs"`

	TotalInputTokens  *int64   `json:"totalInputTokens,omitempty"`
	TotalOutputTokens *int64   `json:"totalOutputTokens,omitempty"`
	AvgInputTokens    *float64 `json:"avgInputTokens,omitempty"`
	AvgOutputTokens   *float64 `json:"avgOutputTokens,omitempty"`
	MinInputTokens    *int64   `json:"minInputTokens,omitempty"`
	MaxInputTokens    *int64   `json:"maxInputTokens,omitempty"`
	MinOutputTokens   *int64   `json:"minOutputTokens,omitempty"`
	MaxOutputTokens   *int64   `json:"maxOutputTokens,omitempty"`
}

// Snapshot is a point-in-time view of all recorded operations.
// Operations that never ran are nil.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptimeSeconds"`
	Embedding     *OperationSnapshot `json:"embedding,omitempty"`
	LLMStream     *OperationSnapshot `json:"llmStream,omitempty"`
	TextExtract   *OperationSnapshot `json:"textExtract,omitempty"`
	VectorSearch  *OperationSnapshot `json:"vectorSearch,omitempty"`
	Persist       *OperationSnapshot `json:"persist,omitempty"`
}

// series accumulates count, sum and extremes of int64 samples.
type series struct {
	n, sum, min, max int64
}

func (s *series) add(v int64) {
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}
	s.n++
	s.sum += v
}

func (s series) avg() float64 {
	if s.n == 0 {
		return 0
	}
	return float64(s.sum) / float64(s.n)
}

type operation struct {
	durations series // milliseconds
	input     series
	output    series
}

// Collector aggregates operation timings and model token usage.
// All methods are thread-safe and no-ops on a nil Collector.
type Collector struct {
	mu      sync.Mutex
	started time.Time
	ops     map[string]*operation
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		ops:     make(map[string]*operation),
	}
}

func (c *Collector) op(name string) *operation {
	o, ok := c.ops[name]
	if !ok {
		o = &operation{}
		c.ops[name] = o
	}
	return o
}

// RecordTiming records one run of op.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.op(op).durations.add(duration.Milliseconds())
}

// RecordLLMUsage records one model call with its token usage.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	o := c.op(op)
	o.durations.add(duration.Milliseconds())
	o.input.add(inputTokens)
	o.output.add(outputTokens)
}

func (o *operation) snapshot() *OperationSnapshot {
	if o == nil || o.durations.n == 0 {
		return nil
	}

	d := o.durations
	snap := &OperationSnapshot{
		Count:       d.n,
		TotalTimeMs: d.sum,
		AvgTimeMs:   d.avg(),
		MinTimeMs:   d.min,
		MaxTimeMs:   d.max,
	}
	if o.input.sum == 0 && o.output.sum == 0 {
		return snap
	}

	in, out := o.input, o.output
	avgIn, avgOut := in.avg(), out.avg()
	snap.TotalInputTokens, snap.TotalOutputTokens = &in.sum, &out.sum
	snap.AvgInputTokens, snap.AvgOutputTokens = &avgIn, &avgOut
	snap.MinInputTokens, snap.MaxInputTokens = &in.min, &in.max
	snap.MinOutputTokens, snap.MaxOutputTokens = &out.min, &out.max
	return snap
}

// Snapshot returns the current statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.started).Seconds(),
		Embedding:     c.ops[OpEmbedding].snapshot(),
		LLMStream:     c.ops[OpLLMStream].snapshot(),
		TextExtract:   c.ops[OpTextExtract].snapshot(),
		VectorSearch:  c.ops[OpVectorSearch].snapshot(),
		Persist:       c.ops[OpPersist].snapshot(),
	}
}
