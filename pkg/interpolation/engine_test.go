package interpolation

import (
	"testing"
	"time"

	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
	"github.com/ancillary-agi-foundry/netcode/pkg/snapshot"
)

func TestInterpolationBetweenTwoSnapshots(t *testing.T) {
	// End-to-end interpolation scenario with literal timestamps.
	store := snapshot.NewStore()

	base := time.Now()
	store.StoreEntitySnapshot(snapshot.EntitySnapshot{EntityID: 1, Position: netmath.Vector3{X: 0}, Timestamp: base, SequenceNumber: 1})
	store.StoreEntitySnapshot(snapshot.EntitySnapshot{EntityID: 1, Position: netmath.Vector3{X: 10}, Timestamp: base.Add(100 * time.Millisecond), SequenceNumber: 2})

	snapshots := store.EntitySnapshotsByTimestamp(1)

	start, end, tAt05 := bracket(snapshots, base.Add(50*time.Millisecond))
	x := start.Position.Lerp(end.Position, tAt05).X
	if x < 4.9 || x > 5.1 {
		t.Fatalf("expected x≈5.0 at render clock t=0.05s, got %v", x)
	}

	start, end, tAt15 := bracket(snapshots, base.Add(150*time.Millisecond))
	x = start.Position.Lerp(end.Position, tAt15).X
	if x != 10 {
		t.Fatalf("expected clamp to end snapshot x=10 at t=0.15s, got %v", x)
	}
}

func TestBracketClampsTToUnitInterval(t *testing.T) {
	base := time.Now()
	snapshots := []snapshot.EntitySnapshot{
		{Position: netmath.Vector3{X: 0}, Timestamp: base},
		{Position: netmath.Vector3{X: 1}, Timestamp: base.Add(time.Second)},
	}

	_, _, t1 := bracket(snapshots, base.Add(-time.Second))
	if t1 < 0 || t1 > 1 {
		t.Fatalf("t out of [0,1]: %v", t1)
	}
	_, _, t2 := bracket(snapshots, base.Add(10*time.Second))
	if t2 < 0 || t2 > 1 {
		t.Fatalf("t out of [0,1]: %v", t2)
	}
}

func TestUpdateEntitySnapsBeyondMaxDistance(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)
	eng.SetMaxDistance(1.0)

	e := entity.NewPlayerEntity(1)
	now := time.Now()
	store.StoreEntitySnapshot(snapshot.EntitySnapshot{EntityID: 1, Position: netmath.Vector3{X: 100}, Timestamp: now.Add(-200 * time.Millisecond), SequenceNumber: 1})
	store.StoreEntitySnapshot(snapshot.EntitySnapshot{EntityID: 1, Position: netmath.Vector3{X: 100}, Timestamp: now, SequenceNumber: 2})

	var snapped bool
	eng.OnSnap = func(entityID uint32, from, to netmath.Vector3) { snapped = true }

	eng.UpdateEntity(e, 500*time.Millisecond)

	if !snapped {
		t.Fatal("expected OnSnap to fire for a distance beyond max")
	}
	if e.Position().Distance(netmath.Vector3{X: 100}) > netmath.Epsilon {
		t.Fatalf("expected position to snap fully to target, got %+v", e.Position())
	}
}

func TestRecordAssignsIncrementingSequence(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)

	now := time.Now()
	eng.Record(1, netmath.Vector3{X: 1}, now)
	eng.Record(1, netmath.Vector3{X: 2}, now.Add(time.Millisecond))

	snaps := store.EntitySnapshotsAfter(1, 0)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 recorded snapshots, got %d", len(snaps))
	}
	if snaps[0].SequenceNumber != 1 || snaps[1].SequenceNumber != 2 {
		t.Fatalf("expected incrementing sequence numbers, got %+v", snaps)
	}
}
