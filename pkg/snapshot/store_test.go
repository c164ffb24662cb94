package snapshot

import (
	"runtime"
	"testing"
	"time"

	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
)

func TestEntitySnapshotsAfterOrdering(t *testing.T) {
	s := NewStore()
	now := time.Now()

	seqs := []uint32{5, 1, 3, 2, 4}
	for _, seq := range seqs {
		s.StoreEntitySnapshot(EntitySnapshot{EntityID: 1, SequenceNumber: seq, Timestamp: now})
	}

	got := s.EntitySnapshotsAfter(1, 2)
	want := []uint32{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %d snapshots, want %d", len(got), len(want))
	}
	prev := uint32(2)
	for i, snap := range got {
		if snap.SequenceNumber != want[i] {
			t.Fatalf("index %d: got seq %d, want %d", i, snap.SequenceNumber, want[i])
		}
		if snap.SequenceNumber <= prev {
			t.Fatalf("sequence not strictly increasing: %d after %d", snap.SequenceNumber, prev)
		}
		prev = snap.SequenceNumber
	}
}

func TestStoreEntitySnapshotTieBreakOverwrites(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.StoreEntitySnapshot(EntitySnapshot{EntityID: 1, SequenceNumber: 1, Position: netmath.Vector3{X: 1}, Timestamp: now})
	s.StoreEntitySnapshot(EntitySnapshot{EntityID: 1, SequenceNumber: 1, Position: netmath.Vector3{X: 2}, Timestamp: now})

	latest := s.LatestEntitySnapshot(1)
	if latest.Position.X != 2 {
		t.Fatalf("expected later insert to win, got X=%v", latest.Position.X)
	}
	all := s.EntitySnapshotsAfter(1, 0)
	if len(all) != 1 {
		t.Fatalf("expected exactly one snapshot at sequence 1, got %d", len(all))
	}
}

func TestLatestEntitySnapshotSentinel(t *testing.T) {
	s := NewStore()
	latest := s.LatestEntitySnapshot(42)
	if latest.SequenceNumber != 0 {
		t.Fatalf("expected sentinel sequence 0 for unknown entity, got %d", latest.SequenceNumber)
	}
}

func TestStoreInputSnapshotDuplicateIsNoOp(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.StoreInputSnapshot(InputSnapshot{PlayerID: 1, SequenceNumber: 5, Movement: netmath.Vector3{X: 1}, Timestamp: now})
	s.StoreInputSnapshot(InputSnapshot{PlayerID: 1, SequenceNumber: 5, Movement: netmath.Vector3{X: 99}, Timestamp: now})

	got := s.InputSnapshotsAfter(1, 0)
	if len(got) != 1 {
		t.Fatalf("expected duplicate sequence to be a no-op, got %d entries", len(got))
	}
	if got[0].Movement.X != 1 {
		t.Fatalf("expected first insert to win on duplicate sequence, got X=%v", got[0].Movement.X)
	}
}

func TestPruneRemovesOldSnapshots(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.StoreEntitySnapshot(EntitySnapshot{EntityID: 1, SequenceNumber: 1, Timestamp: now.Add(-2 * time.Second)})
	s.StoreEntitySnapshot(EntitySnapshot{EntityID: 1, SequenceNumber: 2, Timestamp: now})

	if removed := s.Prune(now, 1*time.Second); removed != 1 {
		t.Fatalf("expected Prune to report 1 removed snapshot, got %d", removed)
	}

	remaining := s.EntitySnapshotsAfter(1, 0)
	if len(remaining) != 1 || remaining[0].SequenceNumber != 2 {
		t.Fatalf("expected only the recent snapshot to survive prune, got %+v", remaining)
	}
	for _, snap := range remaining {
		if now.Sub(snap.Timestamp) > time.Second {
			t.Fatalf("surviving snapshot older than retention window: %v", snap.Timestamp)
		}
	}
}

func TestRegisterAndGetEntity(t *testing.T) {
	s := NewStore()
	e := entity.NewPlayerEntity(7)
	var ref entity.NetworkedEntity = e

	s.RegisterEntity(&ref)

	got, ok := s.GetEntity(7)
	if !ok {
		t.Fatal("expected entity to resolve")
	}
	if got.ID() != 7 {
		t.Fatalf("expected ID 7, got %d", got.ID())
	}
}

func TestGetEntityUnknownReturnsFalse(t *testing.T) {
	s := NewStore()
	if _, ok := s.GetEntity(999); ok {
		t.Fatal("expected unknown entity lookup to fail")
	}
}

func TestGetEntityExpiresOnceUnreferenced(t *testing.T) {
	s := NewStore()

	func() {
		e := entity.NewPlayerEntity(3)
		var ref entity.NetworkedEntity = e
		s.RegisterEntity(&ref)
	}()

	for i := 0; i < 10; i++ {
		runtime.GC()
		if _, ok := s.GetEntity(3); !ok {
			return
		}
	}
	t.Fatal("expected weak registration to expire once the caller's reference is gone")
}
