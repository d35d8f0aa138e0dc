package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	documentsProcessed = newLabeledCounter()
	documentsFailed    = newLabeledCounter()

	completionCalls    atomic.Uint64
	completionFailures atomic.Uint64
	promptTokens       atomic.Uint64
	completionTokens   atomic.Uint64

	completionDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 20000, 30000})
	processDuration    = newHistogram([]float64{100, 500, 1000, 5000, 10000, 30000, 60000})
)

// IncDocumentProcessed counts a document that produced a result for the given tool.
func IncDocumentProcessed(tool string) {
	documentsProcessed.Inc(tool)
}

// IncDocumentFailed counts a request that was rejected or aborted, keyed by error code.
func IncDocumentFailed(code string) {
	documentsFailed.Inc(code)
}

// ObserveCompletion records one completion call.
func ObserveCompletion(durationMs float64, prompt, completion int, failed bool) {
	completionCalls.Add(1)
	if failed {
		completionFailures.Add(1)
	}
	if prompt > 0 {
		promptTokens.Add(uint64(prompt))
	}
	if completion > 0 {
		completionTokens.Add(uint64(completion))
	}
	if durationMs < 0 {
		durationMs = 0
	}
	completionDuration.Observe(durationMs)
}

// ObserveProcessDurationMs records end-to-end processing time for one document.
func ObserveProcessDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	processDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeLabeledCounter(&buf, "documents_processed_total", "Documents processed by tool", "tool", documentsProcessed.Snapshot())
	writeLabeledCounter(&buf, "documents_failed_total", "Document requests failed by error code", "code", documentsFailed.Snapshot())
	writeCounter(&buf, "llm_completion_calls_total", "Completion calls issued", completionCalls.Load())
	writeCounter(&buf, "llm_completion_failures_total", "Completion calls that failed", completionFailures.Load())
	writeCounter(&buf, "llm_prompt_tokens_total", "Prompt tokens consumed", promptTokens.Load())
	writeCounter(&buf, "llm_completion_tokens_total", "Completion tokens produced", completionTokens.Load())
	writeHistogram(&buf, "llm_completion_duration_ms", "Completion call duration in milliseconds", completionDuration.Snapshot())
	writeHistogram(&buf, "document_process_duration_ms", "Document processing duration in milliseconds", processDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (c *labeledCounter) Inc(label string) {
	if label == "" {
		label = "unknown"
	}
	c.mu.Lock()
	c.values[label]++
	c.mu.Unlock()
}

func (c *labeledCounter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe stores the value in its smallest enclosing bucket; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
