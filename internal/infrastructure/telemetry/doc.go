// Package telemetry records session metrics to InfluxDB: event counters
// per kind and reconnect-delay measurements. Entirely optional; writes are
// batched and asynchronous so the shim never blocks on the recorder.
package telemetry
