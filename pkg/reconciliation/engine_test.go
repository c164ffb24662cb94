package reconciliation

import (
	"testing"
	"time"

	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
	"github.com/ancillary-agi-foundry/netcode/pkg/snapshot"
)

func TestReconcileNoOpBelowThreshold(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)
	e := entity.NewPlayerEntity(1)

	triggered := eng.Reconcile(e, e.Position(), 1, time.Now(), false)
	if triggered {
		t.Fatal("expected no-op when server and client positions match")
	}
}

func TestReconcileTriggersAboveThreshold(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)
	var ref entity.NetworkedEntity = entity.NewPlayerEntity(1)
	store.RegisterEntity(&ref)

	serverPos := netmath.Vector3{X: 10}
	triggered := eng.Reconcile(ref, serverPos, 3, time.Now(), false)
	if !triggered {
		t.Fatal("expected reconciliation to trigger above threshold")
	}
	if !eng.IsReconciling(ref.ID()) {
		t.Fatal("expected armed reconciliation state")
	}
}

func TestOnReconcileAndOnSkippedCallbacks(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)
	var ref entity.NetworkedEntity = entity.NewPlayerEntity(1)
	store.RegisterEntity(&ref)

	var fired int
	var skipReasons []string
	eng.OnReconcile = func(entityID uint32, serverPosition, oldPosition netmath.Vector3) {
		fired++
	}
	eng.OnSkipped = func(entityID uint32, reason string) {
		skipReasons = append(skipReasons, reason)
	}

	if !eng.Reconcile(ref, netmath.Vector3{X: 10}, 1, time.Now(), false) {
		t.Fatal("expected reconciliation to trigger above threshold")
	}
	if fired != 1 {
		t.Fatalf("expected OnReconcile to fire once, fired %d times", fired)
	}

	if eng.Reconcile(ref, netmath.Vector3{X: 20}, 2, time.Now(), false) {
		t.Fatal("expected second reconciliation within cooldown to be skipped")
	}
	if eng.Reconcile(ref, ref.Position(), 3, time.Now(), false) {
		t.Fatal("expected reconciliation at matching position to be skipped")
	}

	if len(skipReasons) == 0 {
		t.Fatal("expected OnSkipped to fire for at least one skipped attempt")
	}
}

func TestReconciliationCooldown(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)
	var ref entity.NetworkedEntity = entity.NewPlayerEntity(1)
	store.RegisterEntity(&ref)

	base := time.Now()
	eng.now = func() time.Time { return base }

	first := eng.Reconcile(ref, netmath.Vector3{X: 10}, 1, base, false)
	if !first {
		t.Fatal("expected first reconciliation to trigger")
	}
	eng.Update(0)

	eng.now = func() time.Time { return base.Add(20 * time.Millisecond) }
	second := eng.Reconcile(ref, netmath.Vector3{X: 20}, 2, base, false)
	if second {
		t.Fatal("expected second reconciliation within cooldown to be a no-op")
	}

	eng.now = func() time.Time { return base.Add(40 * time.Millisecond) }
	third := eng.Reconcile(ref, netmath.Vector3{X: 20}, 2, base, false)
	if !third {
		t.Fatal("expected reconciliation to trigger once cooldown elapses")
	}
}

func TestReconcileThenUpdateReplaysNewerInputs(t *testing.T) {
	// End-to-end reconciliation scenario with literal timestamps.
	store := snapshot.NewStore()
	eng := NewEngine(store)
	var ref entity.NetworkedEntity = entity.NewPlayerEntity(1)
	store.RegisterEntity(&ref)

	// PlayerEntity scales a Move direction by MoveSpeed*DefaultTickDelta per
	// Update, so this input displaces the entity by exactly +1 in x.
	step := netmath.Vector3{X: 1 / (entity.DefaultMoveSpeed * entity.DefaultTickDelta)}

	now := time.Now()
	for seq := uint32(1); seq <= 5; seq++ {
		store.StoreInputSnapshot(snapshot.InputSnapshot{
			PlayerID:       1,
			Movement:       step,
			Timestamp:      now,
			SequenceNumber: seq,
		})
	}
	// Simulate 5 predicted steps of +1 each (client x == 5).
	for i := 0; i < 5; i++ {
		ref.Move(step)
		ref.Update()
	}
	if ref.Position().X < 4.9 {
		t.Fatalf("expected predicted x near 5, got %v", ref.Position().X)
	}

	serverPos := netmath.Vector3{X: 3}
	if !eng.Reconcile(ref, serverPos, 3, now, false) {
		t.Fatal("expected reconciliation to trigger: |3-5| = 2 > 0.5")
	}

	eng.Update(0)

	// Replays inputs 4 and 5 (Δx=+1 each) from target_position.x=3.
	got := ref.Position().X
	if got < 4.9 || got > 5.1 {
		t.Fatalf("expected simulation x settled back near 5 after replay, got %v", got)
	}
	if eng.IsReconciling(ref.ID()) {
		t.Fatal("expected reconciliation state to be cleared after Update")
	}
}

func TestReconcileDropsStateWhenEntityNeverRegistered(t *testing.T) {
	store := snapshot.NewStore()
	eng := NewEngine(store)
	e := entity.NewPlayerEntity(1)

	// Reconcile can still trigger against ent directly (the caller always
	// has a live reference at call time), but since nothing ever
	// registered entity 1 with the store, Update cannot resolve it later
	// and must drop the state instead of panicking.
	if !eng.Reconcile(e, netmath.Vector3{X: 10}, 1, time.Now(), false) {
		t.Fatal("expected reconciliation to trigger")
	}

	eng.Update(0)
	if eng.IsReconciling(e.ID()) {
		t.Fatal("expected state cleared when the entity can't be resolved from the store")
	}
}
