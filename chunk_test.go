package waffledb

import (
	"testing"
)

func TestChunkAppendAndQuery(t *testing.T) {
	c := NewChunk()
	for i := uint64(0); i < 10; i++ {
		if err := c.Append(1000+i, float64(i), map[string]string{"host": "a"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if c.Count() != 10 {
		t.Fatalf("Count() = %d, want 10", c.Count())
	}
	minTS, maxTS := c.TimeRange()
	if minTS != 1000 || maxTS != 1009 {
		t.Fatalf("TimeRange() = (%d, %d), want (1000, 1009)", minTS, maxTS)
	}

	idx := c.QueryTimeRange(1002, 1005)
	if len(idx) != 4 {
		t.Fatalf("QueryTimeRange returned %d indices, want 4", len(idx))
	}
}

func TestChunkFullReturnsErrChunkFull(t *testing.T) {
	c := NewChunk()
	for i := 0; i < ChunkCapacity; i++ {
		if err := c.Append(uint64(i), float64(i), nil); err != nil {
			t.Fatalf("unexpected error at row %d: %v", i, err)
		}
	}
	if c.CanAppend() {
		t.Fatal("CanAppend() should be false once ChunkCapacity rows are held")
	}
	if err := c.Append(uint64(ChunkCapacity), 0, nil); err != ErrChunkFull {
		t.Fatalf("Append past capacity: got %v, want ErrChunkFull", err)
	}
}

func TestChunkAppendDoesNotSort(t *testing.T) {
	c := NewChunk()
	in := []uint64{500, 100, 900, 300}
	for _, ts := range in {
		if err := c.Append(ts, 0, nil); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	c.mu.RLock()
	got := append([]uint64(nil), c.timestamps...)
	c.mu.RUnlock()
	for i, ts := range in {
		if got[i] != ts {
			t.Errorf("timestamps[%d] = %d, want %d (append order, unsorted)", i, got[i], ts)
		}
	}
}

func TestChunkQueryTags(t *testing.T) {
	c := NewChunk()
	_ = c.Append(1, 1.0, map[string]string{"host": "a"})
	_ = c.Append(2, 2.0, map[string]string{"host": "b"})
	_ = c.Append(3, 3.0, map[string]string{"host": "a", "env": "prod"})

	idx := c.QueryTags(map[string]string{"host": "a"})
	if len(idx) != 2 {
		t.Fatalf("QueryTags returned %d indices, want 2", len(idx))
	}

	all := c.QueryTags(nil)
	if len(all) != 3 {
		t.Fatalf("QueryTags(nil) returned %d indices, want 3", len(all))
	}
}

func TestChunkAggregatesEmptyRangeReturnZero(t *testing.T) {
	c := NewChunk()
	if got := c.Sum(0, 100); got != 0.0 {
		t.Errorf("Sum on empty chunk = %v, want 0.0", got)
	}
	if got := c.Min(0, 100); got != 0.0 {
		t.Errorf("Min on empty chunk = %v, want 0.0", got)
	}
	if got := c.Max(0, 100); got != 0.0 {
		t.Errorf("Max on empty chunk = %v, want 0.0", got)
	}
	if got := c.Avg(0, 100); got != 0.0 {
		t.Errorf("Avg on empty chunk = %v, want 0.0", got)
	}
}

func TestChunkAggregates(t *testing.T) {
	c := NewChunk()
	values := []float64{1, 2, 3, 4, 5}
	for i, v := range values {
		_ = c.Append(uint64(i), v, nil)
	}

	if got := c.Sum(0, 4); got != 15 {
		t.Errorf("Sum() = %v, want 15", got)
	}
	if got := c.Min(0, 4); got != 1 {
		t.Errorf("Min() = %v, want 1", got)
	}
	if got := c.Max(0, 4); got != 5 {
		t.Errorf("Max() = %v, want 5", got)
	}
	if got := c.Avg(0, 4); got != 3 {
		t.Errorf("Avg() = %v, want 3", got)
	}
	if got := c.CountInRange(1, 3); got != 3 {
		t.Errorf("CountInRange() = %v, want 3", got)
	}
}

func TestChunkSerializeRoundtrip(t *testing.T) {
	c := NewChunk()
	_ = c.Append(100, 1.5, map[string]string{"host": "a", "env": "prod"})
	_ = c.Append(200, 2.5, nil)
	_ = c.Append(300, 3.5, map[string]string{"host": "b"})

	data, err := c.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	got, err := DeserializeChunk(data)
	if err != nil {
		t.Fatalf("DeserializeChunk failed: %v", err)
	}

	if got.Count() != c.Count() {
		t.Fatalf("Count mismatch: got %d, want %d", got.Count(), c.Count())
	}
	gotMin, gotMax := got.TimeRange()
	wantMin, wantMax := c.TimeRange()
	if gotMin != wantMin || gotMax != wantMax {
		t.Fatalf("TimeRange mismatch: got (%d,%d), want (%d,%d)", gotMin, gotMax, wantMin, wantMax)
	}
	for i := 0; i < c.Count(); i++ {
		if got.values[i] != c.values[i] || got.timestamps[i] != c.timestamps[i] {
			t.Errorf("row %d mismatch", i)
		}
	}
	if got.tags[0]["host"] != "a" || got.tags[0]["env"] != "prod" {
		t.Errorf("row 0 tags not preserved: %v", got.tags[0])
	}
	if len(got.tags[1]) != 0 {
		t.Errorf("row 1 tags should be empty, got %v", got.tags[1])
	}
}

func TestDeserializeChunkRejectsOversizedCount(t *testing.T) {
	c := NewChunk()
	data, err := c.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	// Corrupt the count field (bytes 16..24) to exceed ChunkCapacity.
	corrupted := append([]byte(nil), data...)
	for i := 16; i < 24; i++ {
		corrupted[i] = 0xff
	}
	if _, err := DeserializeChunk(corrupted); err == nil {
		t.Fatal("expected DeserializeChunk to fail on an oversized count")
	}
}
