package monitor

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// Device metrics.
	DevicesOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acquire_devices_open",
		Help: "Number of device instances currently in the Active state.",
	})

	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquire_scans_total",
			Help: "Driver Scan() calls, by driver and outcome.",
		},
		[]string{"driver", "outcome"},
	)

	// Datafeed metrics.
	PacketsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquire_packets_emitted_total",
			Help: "Datafeed packets sent on the session bus, by packet type.",
		},
		[]string{"driver", "packet_type"},
	)

	SamplesAcquired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquire_samples_acquired_total",
			Help: "Logic/analog samples delivered in Logic/Analog packets.",
		},
		[]string{"driver"},
	)

	BytesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquire_bytes_received_total",
			Help: "Raw bytes read from the transport, by driver.",
		},
		[]string{"driver"},
	)

	AcquisitionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquire_acquisition_errors_total",
			Help: "Acquisition failures, by driver and stage.",
		},
		[]string{"driver", "stage"},
	)

	AcquisitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acquire_acquisition_duration_seconds",
			Help:    "Wall time from AcquisitionStart to the End packet.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)

	// Runtime metrics.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acquire_goroutines",
		Help: "Current goroutine count.",
	})

	MemoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acquire_memory_usage_bytes",
		Help: "Resident heap allocation, per runtime.MemStats.Alloc.",
	})
)

// Monitor owns metrics registration and the HTTP exposition endpoint.
type Monitor struct {
	log *logrus.Logger
}

// NewMonitor registers every collector. Calling it twice will panic
// (prometheus.MustRegister), so callers must construct exactly one Monitor
// per process.
func NewMonitor(log *logrus.Logger) *Monitor {
	prometheus.MustRegister(
		DevicesOpen,
		ScansTotal,
		PacketsEmitted,
		SamplesAcquired,
		BytesReceived,
		AcquisitionErrors,
		AcquisitionDuration,
		GoroutineCount,
		MemoryUsage,
	)

	return &Monitor{log: log}
}

// StartMetricsServer serves /metrics and /health on port in a background
// goroutine.
func (m *Monitor) StartMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	m.log.Infof("monitor: metrics server listening on %s", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.log.WithError(err).Error("monitor: metrics server stopped")
		}
	}()
}

// StartRuntimeMonitor periodically samples goroutine count and heap usage.
func (m *Monitor) StartRuntimeMonitor() {
	ticker := time.NewTicker(10 * time.Second)

	go func() {
		for range ticker.C {
			GoroutineCount.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			MemoryUsage.Set(float64(memStats.Alloc))

			m.log.Debugf("runtime: %d goroutines, %.2f MB heap",
				runtime.NumGoroutine(),
				float64(memStats.Alloc)/1024/1024,
			)
		}
	}()
}
