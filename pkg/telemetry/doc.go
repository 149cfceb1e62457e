// Package telemetry exports server and channel activity to Prometheus and
// OpenTelemetry.
//
//	reg := prometheus.NewRegistry()
//	metrics := telemetry.NewPrometheus(telemetry.WithRegistry(reg))
//	tracer := telemetry.NewTracer(telemetry.WithTracerName("arena-1"))
//
// Prometheus satisfies netchan.Metrics and server.Metrics; Tracer is passed
// to the server to wrap frames and snapshot sends in spans.
package telemetry
