// Package metrics exports charger readings and exchange outcomes to
// Prometheus. Metrics is a charger.Observer; feed it readings with
// ObserveReading and serve Handler on /metrics.
package metrics
