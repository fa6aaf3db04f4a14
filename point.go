package waffledb

// Point represents a single time-series data point with a metric name, optional tags,
// a float64 value, and a Unix nanosecond timestamp.
type Point struct {
	// Metric is the series name (e.g., "cpu.usage", "http.request_count").
	Metric string
	// Tags are optional key-value labels for filtering and grouping (e.g., {"host": "web-1"}).
	Tags map[string]string
	// Value is the numeric measurement.
	Value float64
	// Timestamp is the observation time in Unix nanoseconds.
	Timestamp int64
}
