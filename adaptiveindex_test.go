package waffledb

import "testing"

func TestAdaptiveIndexRegisterAndCandidates(t *testing.T) {
	idx := NewAdaptiveIndex()
	idx.Register("cpu", 0, 100, 200)
	idx.Register("cpu", 1, 300, 400)
	idx.Register("mem", 0, 0, 50)

	got := idx.Candidates("cpu", 150, 350)
	if len(got) != 2 {
		t.Fatalf("Candidates() = %v, want both chunks", got)
	}

	got = idx.Candidates("cpu", 1000, 2000)
	if len(got) != 0 {
		t.Fatalf("Candidates() outside every chunk's bounds = %v, want empty", got)
	}
}

func TestAdaptiveIndexForget(t *testing.T) {
	idx := NewAdaptiveIndex()
	idx.Register("cpu", 0, 0, 100)
	idx.Forget("cpu")

	got := idx.Candidates("cpu", 0, 100)
	if len(got) != 0 {
		t.Fatalf("Candidates() after Forget = %v, want empty", got)
	}
}
