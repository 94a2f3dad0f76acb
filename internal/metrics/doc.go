// Package metrics collects structural and performance telemetry about txpool
// conversions and exports it to a Prometheus push gateway.
//
// Measurements are split in two layers:
//
//  1. Job: a per-conversion recorder holding a Snapshot (wrapper counts, byte
//     sizes, durations, field replacements and located errors). A Job is used
//     by one goroutine and handed to the Collector exactly once.
//  2. Collector: the process-wide aggregator. It folds each finished Job into
//     Prometheus counters and gauges and pushes the registry in the
//     background, so a slow or unreachable sink never delays JSON output.
//
// Metric names are part of the compatibility surface and use dots:
//
//	txpool.type_wrapper.instances     counter  wrapper_type
//	txpool.input.bytes                gauge
//	txpool.output.bytes               gauge
//	txpool.parse.duration_ms          gauge
//	txpool.content.parse_duration_ms  gauge
//	txpool.field.replacements         counter
//	txpool.parse.errors               counter  error_type, error_line, error_column
//
// # Basic Usage
//
//	collector := metrics.NewCollector(metrics.NewPushExporter(endpoint, "txpool2json"), logger)
//	job := collector.NewJob()
//	job.RecordBytes(metrics.Input, len(src))
//	// ... lex, parse, render ...
//	_ = collector.Flush(ctx, job)
//	_ = collector.Wait(shutdownCtx)
package metrics
