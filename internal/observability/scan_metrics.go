package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanCollector exposes pass-scanning Prometheus metrics.
type ScanCollector struct {
	gatherer prometheus.Gatherer

	ScanDuration        prometheus.Histogram
	SamplesTotal        prometheus.Counter
	PropagationFailures prometheus.Counter
	ScansSuperseded     prometheus.Counter
	WeatherHitRatio     prometheus.Gauge
	TaskDurations       *prometheus.HistogramVec
}

// NewScanCollector registers scan metrics against the provided registerer.
func NewScanCollector(reg prometheus.Registerer) (*ScanCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scanHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scan_duration_seconds",
		Help:    "Duration of full pass scans over the prediction horizon, per target.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	scanHistogram, err := registerHistogram(reg, scanHistogram, "scan_duration_seconds")
	if err != nil {
		return nil, err
	}

	samples := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_samples_total",
		Help: "Cumulative number of propagation samples evaluated during scans.",
	})
	samples, err = registerCounter(reg, samples, "scan_samples_total")
	if err != nil {
		return nil, err
	}

	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "propagation_failures_total",
		Help: "Cumulative number of samples the propagator could not solve.",
	})
	failures, err = registerCounter(reg, failures, "propagation_failures_total")
	if err != nil {
		return nil, err
	}

	superseded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scans_superseded_total",
		Help: "Cumulative number of scans discarded because a newer request overtook them.",
	})
	superseded, err = registerCounter(reg, superseded, "scans_superseded_total")
	if err != nil {
		return nil, err
	}

	weatherRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weather_cache_hit_ratio",
		Help: "Hit ratio for the cloud cover cache.",
	})
	weatherRatio, err = registerGauge(reg, weatherRatio, "weather_cache_hit_ratio")
	if err != nil {
		return nil, err
	}

	taskDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_duration_seconds",
		Help:    "Duration of periodic background tasks, labeled by task name.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"task"})
	taskDurations, err = registerHistogramVec(reg, taskDurations, "task_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &ScanCollector{
		gatherer:            gatherer,
		ScanDuration:        scanHistogram,
		SamplesTotal:        samples,
		PropagationFailures: failures,
		ScansSuperseded:     superseded,
		WeatherHitRatio:     weatherRatio,
		TaskDurations:       taskDurations,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ScanCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveScan records how long one full scan took.
func (c *ScanCollector) ObserveScan(d time.Duration) {
	if c == nil || c.ScanDuration == nil {
		return
	}
	c.ScanDuration.Observe(d.Seconds())
}

// AddSamples adds to the evaluated-samples counter.
func (c *ScanCollector) AddSamples(n int) {
	if c == nil || c.SamplesTotal == nil || n <= 0 {
		return
	}
	c.SamplesTotal.Add(float64(n))
}

// IncPropagationFailures increments the failed-sample counter.
func (c *ScanCollector) IncPropagationFailures() {
	if c == nil || c.PropagationFailures == nil {
		return
	}
	c.PropagationFailures.Inc()
}

// IncSuperseded increments the discarded-scan counter.
func (c *ScanCollector) IncSuperseded() {
	if c == nil || c.ScansSuperseded == nil {
		return
	}
	c.ScansSuperseded.Inc()
}

// SetWeatherHitRatio sets the cloud cover cache hit ratio.
func (c *ScanCollector) SetWeatherHitRatio(ratio float64) {
	if c == nil || c.WeatherHitRatio == nil {
		return
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	c.WeatherHitRatio.Set(ratio)
}

// ObserveTask records the duration of one periodic task run. Fits the
// scheduler's task observer signature.
func (c *ScanCollector) ObserveTask(name string, took time.Duration) {
	if c == nil || c.TaskDurations == nil {
		return
	}
	c.TaskDurations.WithLabelValues(name).Observe(took.Seconds())
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
