package waffledb

import (
	"errors"
	"testing"
	"time"
)

func TestRunQueryRawSelect(t *testing.T) {
	e := openTestEngine(t, "query-raw")
	_ = e.Write(Point{Metric: "cpu", Value: 1, Timestamp: time.Now().UnixNano()})
	waitForFlush(e.cfg)

	result, err := e.RunQuery("SELECT cpu FROM cpu")
	if err != nil {
		t.Fatalf("RunQuery failed: %v", err)
	}
	if len(result.Points) != 1 {
		t.Fatalf("RunQuery raw select returned %d points, want 1", len(result.Points))
	}
}

func TestRunQueryAggregateSelect(t *testing.T) {
	e := openTestEngine(t, "query-agg")
	now := time.Now().UnixNano()
	_ = e.Write(Point{Metric: "cpu", Value: 2, Timestamp: now})
	_ = e.Write(Point{Metric: "cpu", Value: 4, Timestamp: now + 1})
	waitForFlush(e.cfg)

	result, err := e.RunQuery("select avg(cpu) from cpu")
	if err != nil {
		t.Fatalf("RunQuery failed: %v", err)
	}
	if result.Fn != "avg" {
		t.Errorf("Fn = %q, want avg", result.Fn)
	}
	if result.Value != 3 {
		t.Errorf("Value = %v, want 3", result.Value)
	}
}

func TestRunQueryRejectsBadGrammar(t *testing.T) {
	e := openTestEngine(t, "query-bad")

	_, err := e.RunQuery("DROP TABLE cpu")
	if !errors.Is(err, ErrQuerySyntax) {
		t.Fatalf("RunQuery on malformed text: got %v, want ErrQuerySyntax", err)
	}
}

func TestRunQueryRejectsMismatchedMetric(t *testing.T) {
	e := openTestEngine(t, "query-mismatch")

	_, err := e.RunQuery("SELECT avg(cpu) FROM mem")
	if !errors.Is(err, ErrQuerySyntax) {
		t.Fatalf("RunQuery with mismatched metric names: got %v, want ErrQuerySyntax", err)
	}
}

func TestIntersectSortedInts(t *testing.T) {
	got := intersectSortedInts([]int{1, 2, 3, 5, 8}, []int{2, 3, 4, 8})
	want := []int{2, 3, 8}
	if len(got) != len(want) {
		t.Fatalf("intersectSortedInts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("intersectSortedInts() = %v, want %v", got, want)
		}
	}
}
