// Package metrics keeps process gauges and sales samples in an embedded
// time-series store under the working directory.
package metrics

import (
	"errors"
	"path"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

const (
	MetricsSalesTotal       = "pos_sales_total"
	MetricsSalesCount       = "pos_sales_count"
	MetricsItemsSold        = "pos_items_sold"
	MetricsCheckoutRejected = "pos_checkout_rejected"
	MetricsSystemCPU        = "system_cpuuse"
	MetricsSystemMem        = "system_memuse"
	MetricsProcessCPU       = "velvetpos_cpuuse"
	MetricsProcessMem       = "velvetpos_memuse"
)

var ErrNotInitialized = errors.New("metrics storage not initialized")

var (
	mu      sync.RWMutex
	storage tstorage.Storage
)

// Point is one sample of a series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// InitMetrics opens the storage in <workdir>/metrics.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	if storage != nil {
		return nil
	}
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(path.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(30*24*time.Hour),
	)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

func storeLabels(storeID string) []tstorage.Label {
	if storeID == "" {
		return nil
	}
	return []tstorage.Label{{Name: "store", Value: storeID}}
}

func insert(metric string, labels []tstorage.Label, value float64) error {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return ErrNotInitialized
	}
	return storage.InsertRows([]tstorage.Row{{
		Metric:    metric,
		Labels:    labels,
		DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: value},
	}})
}

// SetGauge records the current value of a process-wide gauge.
func SetGauge(metric string, value int64) {
	_ = insert(metric, nil, float64(value))
}

// AddSample records a store-scoped sample.
func AddSample(metric, storeID string, value float64) error {
	return insert(metric, storeLabels(storeID), value)
}

// Query returns the samples of a series in [start, end).
func Query(metric, storeID string, start, end time.Time) ([]Point, error) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return nil, ErrNotInitialized
	}
	points, err := storage.Select(metric, storeLabels(storeID), start.Unix(), end.Unix())
	if errors.Is(err, tstorage.ErrNoDataPoints) {
		return []Point{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(points))
	for _, p := range points {
		out = append(out, Point{Timestamp: time.Unix(p.Timestamp, 0), Value: p.Value})
	}
	return out, nil
}

// Close flushes and closes the storage.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
