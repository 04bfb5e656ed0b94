package o11y

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SnapshotFunc receives periodic metrics snapshots from a StandaloneMetricsProvider.
type SnapshotFunc func(ctx context.Context, snapshot MetricsSnapshot)

// StandaloneMetricsConfig configures the standalone metrics provider
type StandaloneMetricsConfig struct {
	Interval    time.Duration // How often to report metrics (default: 30s)
	ServiceName string        // Service name to include in snapshots
	OnSnapshot  SnapshotFunc  // Receives each snapshot; nil disables periodic reporting
}

// MetricsSnapshot is a point-in-time copy of every metric the provider holds.
type MetricsSnapshot struct {
	Timestamp   time.Time            `json:"timestamp"`
	ServiceName string               `json:"service_name"`
	Counters    map[string]int64     `json:"counters"`
	Histograms  map[string][]float64 `json:"histograms"`
	Gauges      map[string]float64   `json:"gauges"`
}

// StandaloneMetricsProvider keeps metrics in memory and optionally reports
// snapshots on an interval. It needs no external collector, which makes it the
// default for the CLI and the provider of choice in tests.
type StandaloneMetricsProvider struct {
	config StandaloneMetricsConfig

	counters   sync.Map // map[string]*standaloneCounter
	histograms sync.Map // map[string]*standaloneHistogram
	gauges     sync.Map // map[string]*standaloneGauge

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started int32 // atomic boolean
}

// NewStandaloneMetricsProvider creates a new standalone metrics provider
func NewStandaloneMetricsProvider(config *StandaloneMetricsConfig) *StandaloneMetricsProvider {
	if config == nil {
		config = &StandaloneMetricsConfig{}
	}

	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.ServiceName == "" {
		config.ServiceName = "unknown"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &StandaloneMetricsProvider{
		config: *config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins periodic snapshot reporting. It is a no-op without OnSnapshot.
func (s *StandaloneMetricsProvider) Start() error {
	if s.config.OnSnapshot == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil // Already started
	}

	s.wg.Add(1)
	go s.reportLoop()

	return nil
}

// Stop gracefully stops the reporting loop, emitting one final snapshot.
func (s *StandaloneMetricsProvider) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.started, 1, 0) {
		return nil // Already stopped
	}

	s.cancel()
	s.wg.Wait()

	return nil
}

func (s *StandaloneMetricsProvider) reportLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.config.OnSnapshot(s.ctx, s.Snapshot())
		case <-s.ctx.Done():
			s.config.OnSnapshot(context.Background(), s.Snapshot())
			return
		}
	}
}

// Snapshot collects the current value of every metric.
func (s *StandaloneMetricsProvider) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Timestamp:   time.Now(),
		ServiceName: s.config.ServiceName,
		Counters:    make(map[string]int64),
		Histograms:  make(map[string][]float64),
		Gauges:      make(map[string]float64),
	}

	s.counters.Range(func(key, value any) bool {
		snapshot.Counters[key.(string)] = atomic.LoadInt64(&value.(*standaloneCounter).value)
		return true
	})

	s.histograms.Range(func(key, value any) bool {
		histogram := value.(*standaloneHistogram)
		histogram.mu.RLock()
		values := make([]float64, len(histogram.values))
		copy(values, histogram.values)
		histogram.mu.RUnlock()
		snapshot.Histograms[key.(string)] = values
		return true
	})

	s.gauges.Range(func(key, value any) bool {
		for series, v := range value.(*standaloneGauge).getValues() {
			snapshot.Gauges[key.(string)+series] = v
		}
		return true
	})

	return snapshot
}

// CounterValue returns the current value of the named counter, or 0.
func (s *StandaloneMetricsProvider) CounterValue(name string) int64 {
	if existing, ok := s.counters.Load(name); ok {
		return atomic.LoadInt64(&existing.(*standaloneCounter).value)
	}
	return 0
}

// MetricsProvider interface implementation

func (s *StandaloneMetricsProvider) Counter(name string) Counter {
	if existing, ok := s.counters.Load(name); ok {
		return existing.(*standaloneCounter)
	}

	actual, _ := s.counters.LoadOrStore(name, &standaloneCounter{})
	return actual.(*standaloneCounter)
}

func (s *StandaloneMetricsProvider) Histogram(name string) Histogram {
	if existing, ok := s.histograms.Load(name); ok {
		return existing.(*standaloneHistogram)
	}

	actual, _ := s.histograms.LoadOrStore(name, &standaloneHistogram{})
	return actual.(*standaloneHistogram)
}

func (s *StandaloneMetricsProvider) Gauge(name string) Gauge {
	if existing, ok := s.gauges.Load(name); ok {
		return existing.(*standaloneGauge)
	}

	actual, _ := s.gauges.LoadOrStore(name, &standaloneGauge{})
	return actual.(*standaloneGauge)
}

type standaloneCounter struct {
	value int64
}

func (c *standaloneCounter) Add(ctx context.Context, value int64, labels ...Label) {
	atomic.AddInt64(&c.value, value)
}

// histograms keep at most this many samples
const maxHistogramSamples = 1024

type standaloneHistogram struct {
	mu     sync.RWMutex
	values []float64
}

func (h *standaloneHistogram) Record(ctx context.Context, value float64, labels ...Label) {
	h.mu.Lock()
	if len(h.values) >= maxHistogramSamples {
		h.values = h.values[1:]
	}
	h.values = append(h.values, value)
	h.mu.Unlock()
}

// standaloneGauge keeps one value per label set, keyed by seriesKey.
type standaloneGauge struct {
	mu     sync.RWMutex
	values map[string]float64
}

func (g *standaloneGauge) Set(ctx context.Context, value float64, labels ...Label) {
	key := seriesKey(labels)
	g.mu.Lock()
	if g.values == nil {
		g.values = make(map[string]float64)
	}
	g.values[key] = value
	g.mu.Unlock()
}

func (g *standaloneGauge) getValues() map[string]float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maps.Clone(g.values)
}

// seriesKey renders labels as {k=v,...} sorted by key, or "" when there
// are none, so a snapshot key reads like name{stream=messages}.
func seriesKey(labels []Label) string {
	if len(labels) == 0 {
		return ""
	}
	sorted := slices.Clone(labels)
	slices.SortFunc(sorted, func(a, b Label) int { return strings.Compare(a.Key, b.Key) })

	var sb strings.Builder
	sb.WriteByte('{')
	for i, l := range sorted {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(l.Key)
		sb.WriteByte('=')
		sb.WriteString(l.Value)
	}
	sb.WriteByte('}')
	return sb.String()
}
