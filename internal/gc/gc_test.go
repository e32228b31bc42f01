package gc

import "testing"

func TestSweepFreesUnmarked(t *testing.T) {
	a := NewAllocator(1024)
	live := new(int)
	dead := new(int)
	a.Track(live, 8, "int", TierGC)
	a.Track(dead, 8, "int", TierGC)

	a.MarkOnce(live)
	a.Sweep()

	if !a.MarkOnce(live) {
		t.Error("expected live object to survive sweep and be markable again")
	}
	if ok := a.MarkOnce(dead); ok {
		t.Error("expected dead object to be swept and no longer tracked")
	}
}

func TestSuppressionBlocksShouldCollect(t *testing.T) {
	a := NewAllocator(1)
	a.Track(new(int), 100, "int", TierGC)
	if !a.ShouldCollect() {
		t.Fatal("expected ShouldCollect true before suppression")
	}
	a.Suppress()
	if a.ShouldCollect() {
		t.Error("expected ShouldCollect false while suppressed")
	}
	a.Unsuppress()
	if !a.ShouldCollect() {
		t.Error("expected ShouldCollect true again after Unsuppress")
	}
}

func TestInfraTierNeverSwept(t *testing.T) {
	a := NewAllocator(1)
	infra := new(int)
	a.Track(infra, 8, "ns", TierInfra)
	a.Sweep()
	if ok := a.MarkOnce(infra); !ok {
		t.Error("expected infra-tier object to survive sweep untouched")
	}
}
