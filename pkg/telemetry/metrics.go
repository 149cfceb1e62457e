package telemetry

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "wolfnet").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for frame duration.
	// Default: 0.5ms to 100ms
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the frame duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "wolfnet",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Prometheus records network and snapshot counters. It satisfies the
// metrics interfaces of netchan and server.
type Prometheus struct {
	packetsSent      *prometheus.CounterVec
	fragmentsSent    prometheus.Counter
	bytesSent        prometheus.Counter
	packetsReceived  prometheus.Counter
	bytesReceived    prometheus.Counter
	packetsDropped   *prometheus.CounterVec
	snapshotsSent    *prometheus.CounterVec
	snapshotBytes    prometheus.Histogram
	snapshotEntities prometheus.Histogram
	rateDelayed      prometheus.Counter
	truncated        prometheus.Counter
	overflows        prometheus.Counter
	reliableCommands prometheus.Counter
	activeClients    prometheus.Gauge
	clientsDropped   *prometheus.CounterVec
	frameDuration    prometheus.Histogram
}

// NewPrometheus registers the collectors and returns the recorder.
//
// Metrics collected:
//   - wolfnet_packets_sent_total: packets sent by kind (packet, fragment)
//   - wolfnet_fragments_sent_total
//   - wolfnet_bytes_sent_total and wolfnet_bytes_received_total
//   - wolfnet_packets_received_total
//   - wolfnet_packets_dropped_total: discarded or lost packets by reason
//   - wolfnet_snapshots_sent_total: snapshots by kind (delta, full)
//   - wolfnet_snapshot_bytes and wolfnet_snapshot_entities histograms
//   - wolfnet_snapshots_rate_delayed_total
//   - wolfnet_snapshot_entities_truncated_total
//   - wolfnet_message_overflows_total
//   - wolfnet_reliable_commands_total
//   - wolfnet_clients_active
//   - wolfnet_clients_dropped_total: drops by reason category
//   - wolfnet_frame_duration_seconds
func NewPrometheus(opts ...MetricsOption) *Prometheus {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
			Buckets:     buckets,
		})
	}

	return &Prometheus{
		packetsSent:      counterVec("packets_sent_total", "Total packets sent", "kind"),
		fragmentsSent:    counter("fragments_sent_total", "Total fragment packets sent"),
		bytesSent:        counter("bytes_sent_total", "Total bytes sent"),
		packetsReceived:  counter("packets_received_total", "Total sequenced packets received"),
		bytesReceived:    counter("bytes_received_total", "Total bytes received"),
		packetsDropped:   counterVec("packets_dropped_total", "Packets discarded or lost", "reason"),
		snapshotsSent:    counterVec("snapshots_sent_total", "Snapshots sent to clients", "kind"),
		snapshotBytes:    histogram("snapshot_bytes", "Encoded snapshot size in bytes", []float64{64, 256, 512, 1024, 2048, 4096, 8192, 16384}),
		snapshotEntities: histogram("snapshot_entities", "Entities per snapshot", []float64{0, 8, 32, 64, 128, 256}),
		rateDelayed:      counter("snapshots_rate_delayed_total", "Snapshots held back by the client rate"),
		truncated:        counter("snapshot_entities_truncated_total", "Visible entities cut from snapshots over the entity limit"),
		overflows:        counter("message_overflows_total", "Outgoing messages that overflowed their buffer"),
		reliableCommands: counter("reliable_commands_total", "Reliable server commands queued"),
		activeClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "clients_active",
			Help:        "Number of connected clients",
			ConstLabels: config.ConstLabels,
		}),
		clientsDropped: counterVec("clients_dropped_total", "Clients dropped by reason", "reason"),
		frameDuration:  histogram("frame_duration_seconds", "Server frame duration in seconds", config.Buckets),
	}
}

// PacketSent records one outgoing datagram.
func (p *Prometheus) PacketSent(bytes int, fragment bool) {
	kind := "packet"
	if fragment {
		kind = "fragment"
	}
	p.packetsSent.WithLabelValues(kind).Inc()
	if fragment {
		p.fragmentsSent.Inc()
	}
	p.bytesSent.Add(float64(bytes))
}

// PacketReceived records one incoming sequenced datagram.
func (p *Prometheus) PacketReceived(bytes int) {
	p.packetsReceived.Inc()
	p.bytesReceived.Add(float64(bytes))
}

// PacketDropped records a discarded or lost packet.
func (p *Prometheus) PacketDropped(reason string) {
	p.packetsDropped.WithLabelValues(reason).Inc()
}

// SnapshotSent records one snapshot message.
func (p *Prometheus) SnapshotSent(bytes, entities int, delta bool) {
	kind := "full"
	if delta {
		kind = "delta"
	}
	p.snapshotsSent.WithLabelValues(kind).Inc()
	p.snapshotBytes.Observe(float64(bytes))
	p.snapshotEntities.Observe(float64(entities))
}

// SnapshotRateDelayed records a snapshot held back by the rate limit.
func (p *Prometheus) SnapshotRateDelayed() {
	p.rateDelayed.Inc()
}

// EntitiesTruncated records entities cut from a snapshot.
func (p *Prometheus) EntitiesTruncated(n int) {
	p.truncated.Add(float64(n))
}

// MessageOverflow records an outgoing message that ran out of space.
func (p *Prometheus) MessageOverflow() {
	p.overflows.Inc()
}

// ReliableCommandQueued records a reliable command added for a client.
func (p *Prometheus) ReliableCommandQueued() {
	p.reliableCommands.Inc()
}

// ClientConnected records a client entering the connected state.
func (p *Prometheus) ClientConnected() {
	p.activeClients.Inc()
}

// ClientDropped records a client leaving. reason is free text and is
// reduced to a small set of labels.
func (p *Prometheus) ClientDropped(reason string) {
	p.activeClients.Dec()
	p.clientsDropped.WithLabelValues(CategorizeReason(reason)).Inc()
}

// FrameDuration records the time spent in one server frame.
func (p *Prometheus) FrameDuration(d time.Duration) {
	p.frameDuration.Observe(d.Seconds())
}

// CategorizeReason maps a drop reason to a low-cardinality label.
func CategorizeReason(reason string) string {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "timed out"):
		return "timeout"
	case strings.Contains(r, "too many pending"):
		return "reliable_overflow"
	case strings.Contains(r, "overflow"):
		return "overflow"
	case strings.Contains(r, "illegible"):
		return "illegible"
	case strings.Contains(r, "kicked"):
		return "kicked"
	case strings.Contains(r, "disconnect"), strings.Contains(r, "quit"):
		return "quit"
	case strings.Contains(r, "shutdown"):
		return "shutdown"
	default:
		return "other"
	}
}
