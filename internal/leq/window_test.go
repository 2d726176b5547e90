package leq

import (
	"math"
	"testing"
)

func TestValueRequiresFullWindow(t *testing.T) {
	w := NewWindow(1200)
	for i := 0; i < 1199; i++ {
		w.Push(70)
	}
	if _, ok := w.Value(); ok {
		t.Fatalf("expected no value with %d of %d samples", w.Len(), w.Cap())
	}
	w.Push(70)
	v, ok := w.Value()
	if !ok {
		t.Fatal("expected value with full window")
	}
	if math.Abs(v-70) > 1e-9 {
		t.Fatalf("identical 70 dB samples should yield 70 dB, got %v", v)
	}
}

func TestEnergyAveragingNotArithmetic(t *testing.T) {
	w := NewWindow(1200)
	for i := 0; i < 600; i++ {
		w.Push(60)
	}
	for i := 0; i < 600; i++ {
		w.Push(70)
	}
	v, ok := w.Value()
	if !ok {
		t.Fatal("expected value with full window")
	}
	// Energy-weighted mean of equal parts 60 and 70 dB is ~67.4 dB,
	// not the arithmetic 65.
	want := 10 * math.Log10((math.Pow(10, 6)+math.Pow(10, 7))/2)
	if math.Abs(v-want) > 1e-9 {
		t.Fatalf("got %v want %v", v, want)
	}
	if v < 66.9 || v > 67.5 {
		t.Fatalf("energy average out of expected range: %v", v)
	}
}

func TestPushEvictsOldest(t *testing.T) {
	w := NewWindow(1200)
	w.Push(120) // will be evicted
	for i := 0; i < 1200; i++ {
		w.Push(70)
	}
	if w.Len() != 1200 {
		t.Fatalf("occupancy exceeded capacity: %d", w.Len())
	}
	v, ok := w.Value()
	if !ok {
		t.Fatal("expected value")
	}
	if math.Abs(v-70) > 1e-9 {
		t.Fatalf("evicted sample still contributing: got %v", v)
	}
}

func TestClearResetsValue(t *testing.T) {
	w := NewWindow(10)
	for i := 0; i < 10; i++ {
		w.Push(70)
	}
	if _, ok := w.Value(); !ok {
		t.Fatal("expected value before clear")
	}
	w.Clear()
	if _, ok := w.Value(); ok {
		t.Fatal("expected no value after clear")
	}
	if w.Len() != 0 {
		t.Fatalf("expected empty window, got %d", w.Len())
	}
	for i := 0; i < 10; i++ {
		w.Push(60)
	}
	v, ok := w.Value()
	if !ok {
		t.Fatal("expected value after refill")
	}
	if math.Abs(v-60) > 1e-9 {
		t.Fatalf("stale samples after clear: got %v", v)
	}
}

func TestNonFiniteGuard(t *testing.T) {
	w := NewWindow(4)
	for i := 0; i < 4; i++ {
		w.Push(math.Inf(1))
	}
	if _, ok := w.Value(); ok {
		t.Fatal("expected no value for non-finite power sum")
	}
	w.Clear()
	for i := 0; i < 4; i++ {
		w.Push(math.Inf(-1))
	}
	if _, ok := w.Value(); ok {
		t.Fatal("expected no value when linear domain underflows to zero")
	}
}

func TestDefaultCapacity(t *testing.T) {
	w := NewWindow(0)
	if w.Cap() != DefaultCapacity {
		t.Fatalf("got capacity %d want %d", w.Cap(), DefaultCapacity)
	}
}
