package waffledb

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdirTemp switches the working directory to a fresh temp dir for the
// duration of the test, since Open resolves its database root relative to
// cwd. It restores the original directory on cleanup.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func openTestEngine(t *testing.T, name string) *Engine {
	t.Helper()
	chdirTemp(t)
	cfg := DefaultConfig(name)
	cfg.FlushInterval = 10 * time.Millisecond
	e, err := Open(name, cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func waitForFlush(cfg Config) {
	time.Sleep(3 * cfg.FlushInterval)
}

func TestEngineWriteThenQueryAfterFlush(t *testing.T) {
	e := openTestEngine(t, "write-query")

	if err := e.Write(Point{Metric: "cpu", Value: 1.0, Timestamp: 100}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := e.Write(Point{Metric: "cpu", Value: 2.0, Timestamp: 200}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	waitForFlush(e.cfg)

	points := e.Query("cpu", 0, 1000, nil)
	if len(points) != 2 {
		t.Fatalf("Query returned %d points, want 2", len(points))
	}
	if points[0].Timestamp > points[1].Timestamp {
		t.Error("Query results should be ascending by timestamp")
	}
}

func TestEngineQueryUnknownMetricIsEmpty(t *testing.T) {
	e := openTestEngine(t, "unknown-metric")
	points := e.Query("nonexistent", 0, 1000, nil)
	if len(points) != 0 {
		t.Fatalf("Query for an unknown metric returned %d points, want 0", len(points))
	}
}

func TestEngineAggregatesAcrossFlushes(t *testing.T) {
	e := openTestEngine(t, "aggregates")

	for i := int64(0); i < 10; i++ {
		if err := e.Write(Point{Metric: "cpu.batch", Value: float64(i), Timestamp: i}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	waitForFlush(e.cfg)

	if got := e.Sum("cpu.batch", 0, 9, nil); got != 45 {
		t.Errorf("Sum() = %v, want 45", got)
	}
	if got := e.Avg("cpu.batch", 0, 9, nil); got != 4.5 {
		t.Errorf("Avg() = %v, want 4.5", got)
	}
	if got := e.Min("cpu.batch", 0, 9, nil); got != 0 {
		t.Errorf("Min() = %v, want 0", got)
	}
	if got := e.Max("cpu.batch", 0, 9, nil); got != 9 {
		t.Errorf("Max() = %v, want 9", got)
	}
	if got := e.Count("cpu.batch", 0, 9, nil); got != 10 {
		t.Errorf("Count() = %v, want 10", got)
	}
}

func TestEngineSealsChunkAtCapacity(t *testing.T) {
	e := openTestEngine(t, "seal-capacity")

	for i := 0; i < ChunkCapacity+50; i++ {
		if err := e.Write(Point{Metric: "cpu.seal", Value: float64(i), Timestamp: int64(i)}); err != nil {
			t.Fatalf("Write failed at %d: %v", i, err)
		}
	}
	waitForFlush(e.cfg)
	waitForFlush(e.cfg)

	e.chunksMu.Lock()
	sealedCount := len(e.sealedChunks["cpu.seal"])
	e.chunksMu.Unlock()
	if sealedCount < 1 {
		t.Fatalf("expected at least one sealed chunk, got %d", sealedCount)
	}

	points := e.Query("cpu.seal", 0, uint64(ChunkCapacity+49), nil)
	if len(points) != ChunkCapacity+50 {
		t.Fatalf("Query across sealed+active chunks returned %d points, want %d", len(points), ChunkCapacity+50)
	}
}

func TestEngineGetMetrics(t *testing.T) {
	e := openTestEngine(t, "get-metrics")

	_ = e.Write(Point{Metric: "cpu", Value: 1, Timestamp: 1})
	_ = e.Write(Point{Metric: "mem", Value: 1, Timestamp: 1})

	metrics := e.GetMetrics()
	if len(metrics) != 2 {
		t.Fatalf("GetMetrics() = %v, want 2 entries", metrics)
	}
}

func TestEngineDeleteMetric(t *testing.T) {
	e := openTestEngine(t, "delete-metric")

	if err := e.Write(Point{Metric: "to.delete", Value: 1, Timestamp: 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	waitForFlush(e.cfg)

	if err := e.DeleteMetric("to.delete"); err != nil {
		t.Fatalf("DeleteMetric failed: %v", err)
	}

	for _, m := range e.GetMetrics() {
		if m == "to.delete" {
			t.Fatal("to.delete should no longer be registered")
		}
	}
	if got := e.Query("to.delete", 0, 1000, nil); len(got) != 0 {
		t.Fatalf("Query after delete = %v, want empty", got)
	}
}

func TestEngineCrashRecoveryFromWAL(t *testing.T) {
	dir := chdirTemp(t)
	name := "crash-recovery"
	cfg := DefaultConfig(name)
	cfg.FlushInterval = time.Hour // never ticks; points stay in WAL/queue

	e, err := Open(name, cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := int64(0); i < 3; i++ {
		if err := e.Write(Point{Metric: "x", Value: float64(i), Timestamp: i}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	// Simulate a crash: drop the handle without calling Close, so the
	// flusher never runs and nothing is sealed to disk.
	e.running.Store(false)

	// Re-chdir defensively in case Open mutated cwd (it doesn't, but keep
	// the recovered engine rooted at the same temp dir).
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}

	e2, err := Open(name, DefaultConfig(name))
	if err != nil {
		t.Fatalf("re-Open after crash failed: %v", err)
	}
	defer e2.Close()

	metrics := e2.GetMetrics()
	found := false
	for _, m := range metrics {
		if m == "x" {
			found = true
		}
	}
	if !found {
		t.Fatalf("GetMetrics() after crash recovery = %v, want to contain 'x'", metrics)
	}

	points := e2.Query("x", 0, 1000, nil)
	if len(points) != 3 {
		t.Fatalf("Query after crash recovery returned %d points, want 3", len(points))
	}
}

func TestEngineNoDuplicateReplayAfterCleanClose(t *testing.T) {
	name := "no-dup-replay"
	chdirTemp(t)
	cfg := DefaultConfig(name)
	cfg.FlushInterval = 5 * time.Millisecond

	e, err := Open(name, cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := int64(0); i < 5; i++ {
		if err := e.Write(Point{Metric: "y", Value: float64(i), Timestamp: i}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	waitForFlush(cfg)
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	e2, err := Open(name, DefaultConfig(name))
	if err != nil {
		t.Fatalf("re-Open failed: %v", err)
	}
	defer e2.Close()

	points := e2.Query("y", 0, 1000, nil)
	if len(points) != 5 {
		t.Fatalf("Query after clean restart returned %d points, want exactly 5 (no duplicate replay)", len(points))
	}
}

func TestEngineDestroyRemovesDBPath(t *testing.T) {
	e := openTestEngine(t, "destroy-me")
	path := e.dbPath
	if err := e.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be removed after Destroy", path)
	}
}

func TestEngineTagFilteredQuery(t *testing.T) {
	e := openTestEngine(t, "tag-filter")

	_ = e.Write(Point{Metric: "http", Value: 1, Timestamp: 1, Tags: map[string]string{"host": "a"}})
	_ = e.Write(Point{Metric: "http", Value: 2, Timestamp: 2, Tags: map[string]string{"host": "b"}})
	waitForFlush(e.cfg)

	got := e.Query("http", 0, 1000, map[string]string{"host": "a"})
	if len(got) != 1 {
		t.Fatalf("tag-filtered Query returned %d points, want 1", len(got))
	}
	if got[0].Tags["host"] != "a" {
		t.Errorf("got tags %v, want host=a", got[0].Tags)
	}
}

func TestDefaultConfigDatabaseRootPath(t *testing.T) {
	e := openTestEngine(t, "path-check")
	if filepath.Base(filepath.Dir(e.dbPath)) != "."+brand+"db" {
		t.Errorf("dbPath = %s, want to live under .%sdb/", e.dbPath, brand)
	}
}
