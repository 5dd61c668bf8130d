// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector. It renders text/plain exposition format directly, without
// pulling in the heavy prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the global metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters, gauges, and histograms.
type MetricsCollector struct {
	mu         sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   map[string]*Counter{},
		gauges:     map[string]*Gauge{},
		histograms: map[string]*Histogram{},
		startTime:  time.Now(),
	}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	labels string
	value  atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n int64) { c.value.Add(n) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	labels string
	value  atomic.Int64
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.value.Add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.value.Add(-1) }

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of values across fixed buckets.
type Histogram struct {
	name   string
	labels string

	mu      sync.Mutex
	count   int64
	sum     float64
	bounds  []float64
	buckets []int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.buckets[i]++
		}
	}
}

// helpText maps a metric name to its HELP line, written once per name even
// when several labeled series share it.
var helpText = map[string]string{}

func key(name, labels string) string { return name + "{" + labels + "}" }

// Counter returns or creates a counter.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(name, labels)
	if ctr, ok := c.counters[k]; ok {
		return ctr
	}
	helpText[name] = help
	ctr := &Counter{name: name, labels: labels}
	c.counters[k] = ctr
	return ctr
}

// Gauge returns or creates a gauge.
func (c *MetricsCollector) Gauge(name, help, labels string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(name, labels)
	if g, ok := c.gauges[k]; ok {
		return g
	}
	helpText[name] = help
	g := &Gauge{name: name, labels: labels}
	c.gauges[k] = g
	return g
}

// Histogram returns or creates a histogram with the given bucket bounds.
func (c *MetricsCollector) Histogram(name, help, labels string, bounds []float64) *Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(name, labels)
	if h, ok := c.histograms[k]; ok {
		return h
	}
	helpText[name] = help
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)
	h := &Histogram{name: name, labels: labels, bounds: sorted, buckets: make([]int64, len(sorted))}
	c.histograms[k] = h
	return h
}

// Handler renders the registry in Prometheus text exposition format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		fmt.Fprintf(w, "# HELP tradebot_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(w, "# TYPE tradebot_uptime_seconds gauge\n")
		fmt.Fprintf(w, "tradebot_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

		c.mu.Lock()
		defer c.mu.Unlock()

		written := map[string]bool{}
		for _, k := range sortedKeys(c.counters) {
			ctr := c.counters[k]
			writeHeader(w, written, ctr.name, "counter")
			writeSample(w, ctr.name, ctr.labels, fmt.Sprintf("%d", ctr.Value()))
		}
		for _, k := range sortedKeys(c.gauges) {
			g := c.gauges[k]
			writeHeader(w, written, g.name, "gauge")
			writeSample(w, g.name, g.labels, fmt.Sprintf("%d", g.Value()))
		}
		for _, k := range sortedKeys(c.histograms) {
			c.histograms[k].write(w, written)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeHeader(w io.Writer, written map[string]bool, name, kind string) {
	if written[name] {
		return
	}
	written[name] = true
	fmt.Fprintf(w, "# HELP %s %s\n", name, helpText[name])
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
}

func writeSample(w io.Writer, name, labels, value string) {
	if labels != "" {
		fmt.Fprintf(w, "%s{%s} %s\n", name, labels, value)
	} else {
		fmt.Fprintf(w, "%s %s\n", name, value)
	}
}

func (h *Histogram) write(w io.Writer, written map[string]bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	writeHeader(w, written, h.name, "histogram")
	for i, le := range h.bounds {
		bound := fmt.Sprintf("%g", le)
		if math.IsInf(le, 1) {
			bound = "+Inf"
		}
		labels := fmt.Sprintf(`le="%s"`, bound)
		if h.labels != "" {
			labels = h.labels + "," + labels
		}
		writeSample(w, h.name+"_bucket", labels, fmt.Sprintf("%d", h.buckets[i]))
	}
	writeSample(w, h.name+"_count", h.labels, fmt.Sprintf("%d", h.count))
	writeSample(w, h.name+"_sum", h.labels, strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", h.sum), "0"), "."))
}

// Pre-defined metrics used across the application.
var (
	ScansTotal         = Collector.Counter("tradebot_inbox_scans_total", "Total inbox scans", "")
	ConversationsTotal = Collector.Counter("tradebot_conversations_handled_total", "Total conversations handled", "")
	RepliesAPI         = Collector.Counter("tradebot_replies_total", "Total replies sent", `source="api"`)
	RepliesAssistant   = Collector.Counter("tradebot_replies_total", "Total replies sent", `source="assistant"`)
	RepliesCanned      = Collector.Counter("tradebot_replies_total", "Total replies sent", `source="canned"`)
	InquiriesCaptured  = Collector.Counter("tradebot_inquiries_captured_total", "Total inquiry records captured", "")
	RecoveriesTotal    = Collector.Counter("tradebot_recoveries_total", "Total session recoveries", "")
	HealthFailures     = Collector.Counter("tradebot_health_failures_total", "Total failed session health checks", "")
	LoopErrors         = Collector.Counter("tradebot_loop_errors_total", "Total handling errors in the control loop", "")
	UnreadGauge        = Collector.Gauge("tradebot_unread_conversations", "Eligible unread conversations at last scan", "")

	ReplyLatency = Collector.Histogram("tradebot_reply_latency_seconds", "Time from pick-up to confirmed send in seconds", "",
		[]float64{1, 2, 5, 10, 30, 60, 120})
	ScanLatency = Collector.Histogram("tradebot_scan_latency_seconds", "Inbox scan latency in seconds", "",
		[]float64{0.1, 0.5, 1, 2, 5, 10})
)

// ReplyCounter maps a reply source label to its counter.
func ReplyCounter(source string) *Counter {
	switch source {
	case "assistant":
		return RepliesAssistant
	case "canned":
		return RepliesCanned
	default:
		return RepliesAPI
	}
}
