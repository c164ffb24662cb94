package prediction

import (
	"testing"

	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
	"github.com/ancillary-agi-foundry/netcode/pkg/snapshot"
)

func TestApplyInputSequenceMonotonic(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)

	var ref entity.NetworkedEntity = entity.NewPlayerEntity(1)

	var last uint32
	for i := 0; i < 5; i++ {
		seq, err := eng.ApplyInput(&ref, netmath.Vector3{X: 1}, false)
		if err != nil {
			t.Fatalf("ApplyInput: %v", err)
		}
		if seq <= last {
			t.Fatalf("sequence not strictly increasing: %d after %d", seq, last)
		}
		last = seq
	}
	if last != 5 {
		t.Fatalf("expected sequence 5 after 5 inputs, got %d", last)
	}
}

func TestApplyInputNilEntity(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)

	seq, err := eng.ApplyInput(nil, netmath.Vector3{}, false)
	if err == nil {
		t.Fatal("expected error for nil entity")
	}
	if seq != 0 {
		t.Fatalf("expected current sequence 0 returned, got %d", seq)
	}
}

func TestApplyInputRecordsSnapshots(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)

	var ref entity.NetworkedEntity = entity.NewPlayerEntity(9)
	seq, err := eng.ApplyInput(&ref, netmath.Vector3{X: 1}, false)
	if err != nil {
		t.Fatalf("ApplyInput: %v", err)
	}

	inputs := store.InputSnapshotsAfter(9, 0)
	if len(inputs) != 1 || inputs[0].SequenceNumber != seq {
		t.Fatalf("expected one recorded input at sequence %d, got %+v", seq, inputs)
	}

	states := store.EntitySnapshotsAfter(9, 0)
	if len(states) != 1 || states[0].SequenceNumber != seq {
		t.Fatalf("expected one recorded entity snapshot at sequence %d, got %+v", seq, states)
	}
}

func TestResetZeroesSequence(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)

	var ref entity.NetworkedEntity = entity.NewPlayerEntity(1)
	if _, err := eng.ApplyInput(&ref, netmath.Vector3{}, false); err != nil {
		t.Fatalf("ApplyInput: %v", err)
	}

	eng.Reset()
	if eng.CurrentSequence() != 0 {
		t.Fatalf("expected sequence 0 after reset, got %d", eng.CurrentSequence())
	}
}
