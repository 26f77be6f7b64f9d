/*
Package metrics provides custom metrics through the Tarmac host runtime and the
Recorder used to instrument data adapter operations.

HostMetrics exposes constructors for Counter, Gauge, and Histogram metric
handles, each backed by protobuf payloads sent over waPC host calls. A Recorder
built with NewRecorder turns adapter activity into those metrics: per-operation
call and error counters, a duration histogram in milliseconds, and a gauge of
open connections.

Metric emission follows Prometheus-style ergonomics: Inc/Dec/Observe are
best-effort and do not return errors. Marshal or host-call failures are
swallowed so they never change the outcome of a database operation.
*/
package metrics
