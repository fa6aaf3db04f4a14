package waffledb

import (
	"regexp"
	"strings"
	"time"
)

// defaultQueryWindow is the textual query's default lookback, per §4.7.
const defaultQueryWindow = 24 * time.Hour

var (
	// SELECT fn(metric) FROM metric
	aggQueryRe = regexp.MustCompile(`(?i)^select\s+(avg|sum|min|max|count)\s*\(\s*([a-zA-Z0-9_.:]+)\s*\)\s+from\s+([a-zA-Z0-9_.:]+)\s*$`)
	// SELECT metric FROM metric
	rawQueryRe = regexp.MustCompile(`(?i)^select\s+([a-zA-Z0-9_.:]+)\s+from\s+([a-zA-Z0-9_.:]+)\s*$`)
)

// QueryResult is the outcome of a textual query: either a raw point
// series (Fn == "") or a single aggregate scalar.
type QueryResult struct {
	Fn     string
	Metric string
	Points []Point
	Value  float64
}

// RunQuery parses and executes a minimal textual query per §4.7:
//
//	SELECT avg(cpu) FROM cpu
//	SELECT cpu FROM cpu
//
// The time window is always the last 24 hours relative to wall-clock time
// at query time. Anything outside this grammar fails with ErrQuerySyntax.
func (e *Engine) RunQuery(text string) (QueryResult, error) {
	if !e.running.Load() {
		return QueryResult{}, ErrClosed
	}
	trimmed := strings.TrimSpace(text)

	if m := aggQueryRe.FindStringSubmatch(trimmed); m != nil {
		fn := strings.ToLower(m[1])
		metric := m[2]
		fromMetric := m[3]
		if metric != fromMetric {
			return QueryResult{}, newQueryError(text, ErrQuerySyntax)
		}
		start, end := defaultWindow()
		value := e.aggregate(fn, metric, start, end, nil)
		return QueryResult{Fn: fn, Metric: metric, Value: value}, nil
	}

	if m := rawQueryRe.FindStringSubmatch(trimmed); m != nil {
		metric := m[1]
		fromMetric := m[2]
		if metric != fromMetric {
			return QueryResult{}, newQueryError(text, ErrQuerySyntax)
		}
		start, end := defaultWindow()
		points := e.Query(metric, start, end, nil)
		return QueryResult{Metric: metric, Points: points}, nil
	}

	return QueryResult{}, newQueryError(text, ErrQuerySyntax)
}

func defaultWindow() (start, end uint64) {
	now := time.Now()
	end = uint64(now.UnixNano())
	start = uint64(now.Add(-defaultQueryWindow).UnixNano())
	return start, end
}

func (e *Engine) aggregate(fn, metric string, start, end uint64, tags map[string]string) float64 {
	switch fn {
	case "sum":
		return e.Sum(metric, start, end, tags)
	case "avg":
		return e.Avg(metric, start, end, tags)
	case "min":
		return e.Min(metric, start, end, tags)
	case "max":
		return e.Max(metric, start, end, tags)
	case "count":
		return float64(e.Count(metric, start, end, tags))
	default:
		return 0.0
	}
}
