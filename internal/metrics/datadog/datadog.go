// Package datadog submits falconctl metrics to Datadog.
//
// Samples are buffered in memory and submitted on a ticker and once more on
// Close, so a long batch produces a time series and a short one still gets
// its tail. Credentials come from DD_API_KEY and DD_SITE as read by the
// Datadog client.
package datadog

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/deixis/falconctl/internal/metrics"
)

// Options controls the backend.
type Options struct {
	// JobName becomes tag "job:<name>"; default "falconctl".
	JobName string
	// Env becomes tag "env:<env>"; default "unknown".
	Env string
	// Tags are extra tags such as "service:extract".
	Tags []string
	// FlushEvery is the submission interval; default 60s.
	FlushEvery time.Duration

	// Test seams.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.BackendCloser.
type Backend struct {
	api        metricsSubmitter
	ctx        context.Context
	baseTags   []string
	flushEvery time.Duration
	now        func() time.Time
	newTicker  func(d time.Duration) *time.Ticker

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu          sync.Mutex
	tableCounts map[string]float64   // table\x00status
	durations   map[string][]float64 // table\x00status
	buildCounts map[string]float64   // status
}

// NewBackend starts a backend whose flush loop runs until Close.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "falconctl"
	}
	env := strings.TrimSpace(opts.Env)
	if env == "" {
		env = "unknown"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	b := &Backend{
		api:         opts.submitter,
		ctx:         dd.NewDefaultContext(parent),
		baseTags:    append([]string{"env:" + env, "job:" + job}, opts.Tags...),
		flushEvery:  flushEvery,
		now:         opts.now,
		newTicker:   opts.newTicker,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		tableCounts: make(map[string]float64),
		durations:   make(map[string][]float64),
		buildCounts: make(map[string]float64),
	}
	if b.api == nil {
		b.api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newTicker == nil {
		b.newTicker = time.NewTicker
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)
	t := b.newTicker(b.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and submits what is still buffered. It is
// safe to call more than once.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.TableTotal:
		b.tableCounts[pairKey(labels["table"], labels["status"])] += delta
	case metrics.BuildTotal:
		b.buildCounts[orUnknown(labels["status"])] += delta
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == metrics.TableDurationSeconds {
		k := pairKey(labels["table"], labels["status"])
		b.durations[k] = append(b.durations[k], value)
	}
}

type snapshot struct {
	tableCounts map[string]float64
	durations   map[string][]float64
	buildCounts map[string]float64
}

func (s snapshot) isEmpty() bool {
	return len(s.tableCounts) == 0 && len(s.durations) == 0 && len(s.buildCounts) == 0
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := snapshot{tableCounts: b.tableCounts, durations: b.durations, buildCounts: b.buildCounts}
	b.tableCounts = make(map[string]float64)
	b.durations = make(map[string][]float64)
	b.buildCounts = make(map[string]float64)
	return s
}

// Flush submits and clears the buffers. Buffers are cleared even when the
// submission fails.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries emits series in a stable order: table counts, table duration
// percentiles, build counts.
func (b *Backend) buildSeries(s snapshot, ts int64) []datadogV2.MetricSeries {
	var series []datadogV2.MetricSeries

	for _, k := range sortedKeys(s.tableCounts) {
		table, status := splitPairKey(k)
		tags := withTags(b.baseTags, "table:"+table, "status:"+status)
		series = append(series, point("falcon.table.total", datadogV2.METRICINTAKETYPE_COUNT, s.tableCounts[k], tags, ts))
	}

	for _, k := range sortedKeys(s.durations) {
		samples := append([]float64(nil), s.durations[k]...)
		if len(samples) == 0 {
			continue
		}
		sort.Float64s(samples)
		table, status := splitPairKey(k)
		tags := withTags(b.baseTags, "table:"+table, "status:"+status)
		const prefix = "falcon.table.duration_seconds"
		for _, p := range []struct {
			suffix string
			q      float64
		}{{".p50", 0.50}, {".p90", 0.90}, {".p95", 0.95}, {".p99", 0.99}} {
			series = append(series, point(prefix+p.suffix, datadogV2.METRICINTAKETYPE_GAUGE, nearestRank(samples, p.q), tags, ts))
		}
		series = append(series,
			point(prefix+".max", datadogV2.METRICINTAKETYPE_GAUGE, samples[len(samples)-1], tags, ts),
			point(prefix+".samples", datadogV2.METRICINTAKETYPE_GAUGE, float64(len(samples)), tags, ts),
		)
	}

	for _, status := range sortedKeys(s.buildCounts) {
		tags := withTags(b.baseTags, "status:"+status)
		series = append(series, point("falcon.build.total", datadogV2.METRICINTAKETYPE_COUNT, s.buildCounts[status], tags, ts))
	}
	return series
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, ts int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
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

func pairKey(a, status string) string {
	return orUnknown(a) + "\x00" + orUnknown(status)
}

func splitPairKey(k string) (string, string) {
	a, status, ok := strings.Cut(k, "\x00")
	if !ok {
		return k, "unknown"
	}
	return a, status
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	return append(out, extras...)
}

// nearestRank expects sorted input.
func nearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.BackendCloser = (*Backend)(nil)
