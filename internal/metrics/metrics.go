package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rahul91115/canfd-eth-gateway/internal/logging"
)

// Prometheus counters
var (
	CANRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canfd_rx_frames_total",
		Help: "Total CAN-FD frames read from the SocketCAN interface.",
	})
	SerialRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_rx_frames_total",
		Help: "Total CAN-FD frames decoded from the serial adapter link.",
	})
	UDPTxPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_tx_packets_total",
		Help: "Total gateway packets sent to the UDP destination.",
	})
	DroppedPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dropped_packets_total",
		Help: "Total gateway packets lost to send failures (best-effort delivery).",
	})
	IncompleteReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "incomplete_reads_total",
		Help: "Total bus reads discarded because they did not yield a complete CAN-FD frame.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed adapter frames (bad checksum, invalid length, truncated).",
	})
	LengthClamped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "length_clamped_frames_total",
		Help: "Total frames whose length exceeded 64 and was clamped before encoding.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrCANRead     = "can_read"
	ErrSerialRead  = "serial_read"
	ErrUDPSend     = "udp_send"
	ErrFrameLength = "frame_length"
)

// StartHTTP serves Prometheus metrics at /metrics plus a /ready endpoint on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localCANRx      uint64
	localSerialRx   uint64
	localUDPTx      uint64
	localDropped    uint64
	localIncomplete uint64
	localMalformed  uint64
	localClamped    uint64
	localErrors     uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	CANRx      uint64
	SerialRx   uint64
	UDPTx      uint64
	Dropped    uint64
	Incomplete uint64
	Malformed  uint64
	Clamped    uint64
	Errors     uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		CANRx:      atomic.LoadUint64(&localCANRx),
		SerialRx:   atomic.LoadUint64(&localSerialRx),
		UDPTx:      atomic.LoadUint64(&localUDPTx),
		Dropped:    atomic.LoadUint64(&localDropped),
		Incomplete: atomic.LoadUint64(&localIncomplete),
		Malformed:  atomic.LoadUint64(&localMalformed),
		Clamped:    atomic.LoadUint64(&localClamped),
		Errors:     atomic.LoadUint64(&localErrors),
	}
}

// Wrapper helpers to keep call sites simple.

// IncCANRx increments the SocketCAN receive counters.
func IncCANRx() {
	CANRxFrames.Inc()
	atomic.AddUint64(&localCANRx, 1)
}

func IncSerialRx() {
	SerialRxFrames.Inc()
	atomic.AddUint64(&localSerialRx, 1)
}

// IncUDPTx increments the packet transmit counters.
func IncUDPTx() {
	UDPTxPackets.Inc()
	atomic.AddUint64(&localUDPTx, 1)
}

// IncDropped counts a packet lost to a send failure.
func IncDropped() {
	DroppedPackets.Inc()
	atomic.AddUint64(&localDropped, 1)
}

func IncIncomplete() {
	IncompleteReads.Inc()
	atomic.AddUint64(&localIncomplete, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncClamped() {
	LengthClamped.Inc()
	atomic.AddUint64(&localClamped, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrCANRead, ErrSerialRead, ErrUDPSend, ErrFrameLength,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
