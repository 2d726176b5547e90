package bridge

import (
	"testing"
	"time"

	"github.com/jensen-user/rew-bridge/internal/leq"
	"github.com/jensen-user/rew-bridge/internal/rew"
)

func TestApplyUpdateOverwritesReadings(t *testing.T) {
	state := NewState(leq.NewWindow(4))

	state.ApplyUpdate(rew.Update{SPL: 65.2, Leq1m: 64.0, Leq10m: 63.0, ElapsedTime: 1.5})
	state.ApplyUpdate(rew.Update{SPL: 71.8, Leq1m: 66.0, Leq10m: 64.5, ElapsedTime: 1.6})

	snap := state.Snapshot()
	if snap.SPLASlow != 71.8 || snap.Leq1m != 66.0 || snap.Leq10m != 64.5 {
		t.Fatalf("readings not overwritten: %+v", snap)
	}
	if snap.Elapsed != 1.6 {
		t.Fatalf("elapsed not updated: %v", snap.Elapsed)
	}
	if !snap.MeasurementActive {
		t.Fatal("telemetry receipt must mark the measurement active")
	}
	if snap.BufferSamples != 2 {
		t.Fatalf("expected 2 buffered samples, got %d", snap.BufferSamples)
	}
}

func TestLastUpdateOnlyAdvances(t *testing.T) {
	state := NewState(leq.NewWindow(4))
	times := []time.Time{
		time.Unix(100, 0),
		time.Unix(50, 0), // clock went backwards
		time.Unix(200, 0),
	}
	i := 0
	state.now = func() time.Time {
		ts := times[i]
		i++
		return ts
	}

	state.ApplyUpdate(rew.Update{SPL: 70})
	state.ApplyUpdate(rew.Update{SPL: 70})
	if got := state.Snapshot().LastUpdate; !got.Equal(time.Unix(100, 0)) {
		t.Fatalf("timestamp regressed to %v", got)
	}

	state.ApplyUpdate(rew.Update{SPL: 70})
	if got := state.Snapshot().LastUpdate; !got.Equal(time.Unix(200, 0)) {
		t.Fatalf("timestamp failed to advance: %v", got)
	}
}

func TestSnapshotConsistency(t *testing.T) {
	state := NewState(leq.NewWindow(2))
	state.ApplyUpdate(rew.Update{SPL: 70})

	snap := state.Snapshot()
	if snap.HasLeq2m {
		t.Fatal("partial window must not report a 2-minute leq")
	}

	state.ApplyUpdate(rew.Update{SPL: 70})
	snap = state.Snapshot()
	if !snap.HasLeq2m {
		t.Fatal("full window must report a 2-minute leq")
	}
	if snap.BufferSamples != 2 {
		t.Fatalf("snapshot buffer count inconsistent: %d", snap.BufferSamples)
	}
}
