// Package metrics collects Prometheus series for the routing pipeline:
// routing decisions with confidence and fallback counts, step and run
// outcomes with durations, streamed chunks and interruptions, plan
// adaptations, provider requests with token usage and cost, behavior store
// operations, and HTTP traffic. Series register through promauto under a
// caller-chosen namespace; promhttp serves them without extra wiring.
//
// Collector is the low-level recording surface. Bridge subscribes it to the
// event bus so pipeline packages stay free of metrics concerns, and the
// Instrument* wrappers decorate the provider and store interfaces with
// per-call recording.
package metrics
