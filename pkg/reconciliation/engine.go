// Package reconciliation detects divergence between a client's predicted
// state and the server-authoritative state, snaps the simulation to the
// server's position, and replays buffered inputs newer than the
// acknowledged sequence so subsequent prediction stays correct, while
// letting the visible (render) position ease in over several frames so
// the correction is never seen as a pop.
package reconciliation

import (
	"sync"
	"time"

	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
	"github.com/ancillary-agi-foundry/netcode/pkg/snapshot"
)

// DefaultThreshold is the minimum divergence, in world units, that
// triggers a reconciliation.
const DefaultThreshold = 0.5

// MinInterval is the minimum time between two reconciliations of the same
// entity.
const MinInterval = 33 * time.Millisecond

// state holds the in-flight correction for one entity between the moment
// Reconcile detects divergence and the next Update call replays it.
type state struct {
	startPosition   netmath.Vector3
	targetPosition  netmath.Vector3
	reconciling     bool
	serverSequence  uint32
	serverIsJumping bool
}

// Engine is the per-client reconciliation driver. One Engine instance
// tracks state across every entity a client owns a local prediction for
// (ordinarily just the local player, but the type does not assume that).
type Engine struct {
	mu sync.Mutex

	threshold       float32
	smoothingFactor float32
	minInterval     time.Duration

	store *snapshot.Store
	now   func() time.Time

	states           map[uint32]*state
	lastReconcileAt  map[uint32]time.Time

	// OnReconcile is invoked synchronously whenever reconciliation
	// triggers, with (entityID, serverPosition, oldPosition). It must not
	// mutate the store or entity graph synchronously; if the caller needs
	// to cross a thread boundary it should post a message from inside
	// this callback rather than act directly.
	OnReconcile func(entityID uint32, serverPosition, oldPosition netmath.Vector3)

	// OnSkipped is invoked synchronously whenever Reconcile declines to
	// correct, with the entityID and the reason ("cooldown" or
	// "below-threshold"). Same synchronous-callback constraints as
	// OnReconcile apply.
	OnSkipped func(entityID uint32, reason string)
}

// NewEngine constructs a reconciliation Engine with the documented default
// threshold and cooldown.
func NewEngine(store *snapshot.Store) *Engine {
	return &Engine{
		threshold:       DefaultThreshold,
		smoothingFactor: 0.2,
		minInterval:     MinInterval,
		store:           store,
		now:             time.Now,
		states:          make(map[uint32]*state),
		lastReconcileAt: make(map[uint32]time.Time),
	}
}

// SetThreshold overrides the default reconciliation distance threshold.
func (e *Engine) SetThreshold(threshold float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threshold = threshold
}

// SetSmoothingFactor overrides the stored advisory blend-rate hint. The
// engine does not pass it to entities: InitiateVisualBlend takes no rate,
// so each entity's visual blend runs at its own rate.
func (e *Engine) SetSmoothingFactor(factor float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.smoothingFactor = factor
}

// Reconcile compares the server-authoritative position against the
// entity's current (predicted) position. It returns false, a no-op, if
// the per-entity cooldown has not elapsed, or if the divergence is below
// threshold. Otherwise it records the server's EntitySnapshot, arms the
// replay state consumed by the next Update, fires OnReconcile, and
// returns true.
func (e *Engine) Reconcile(ent entity.NetworkedEntity, serverPosition netmath.Vector3, serverSequence uint32, serverTimestamp time.Time, serverIsJumping bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	entityID := ent.ID()
	now := e.now()

	if last, ok := e.lastReconcileAt[entityID]; ok && now.Sub(last) < e.minInterval {
		if e.OnSkipped != nil {
			e.OnSkipped(entityID, "cooldown")
		}
		return false
	}

	diff := serverPosition.Distance(ent.Position())
	if diff < e.threshold {
		if e.OnSkipped != nil {
			e.OnSkipped(entityID, "below-threshold")
		}
		return false
	}

	e.store.StoreEntitySnapshot(snapshot.EntitySnapshot{
		EntityID:       entityID,
		Position:       serverPosition,
		IsJumping:      serverIsJumping,
		Timestamp:      serverTimestamp,
		SequenceNumber: serverSequence,
	})

	oldPosition := ent.Position()
	e.states[entityID] = &state{
		startPosition:   oldPosition,
		targetPosition:  serverPosition,
		reconciling:     true,
		serverSequence:  serverSequence,
		serverIsJumping: serverIsJumping,
	}

	if e.OnReconcile != nil {
		e.OnReconcile(entityID, serverPosition, oldPosition)
	}

	e.lastReconcileAt[entityID] = now
	return true
}

// Update resolves every entity with an armed reconciliation state: snaps
// its simulation state to the server target, replays every buffered input
// newer than the acknowledged sequence, records a snapshot after each
// replayed input, and finally initiates the entity's own visual blend so
// the correction is invisible even though the simulation jumped instantly.
func (e *Engine) Update(delta time.Duration) {
	e.mu.Lock()
	pending := make(map[uint32]*state, len(e.states))
	for id, st := range e.states {
		pending[id] = st
	}
	e.mu.Unlock()

	for entityID, st := range pending {
		ent, ok := e.store.GetEntity(entityID)
		if !ok {
			e.mu.Lock()
			delete(e.states, entityID)
			e.mu.Unlock()
			continue
		}

		ent.SnapSimulationState(st.targetPosition, st.serverIsJumping, ent.VelocityY())
		ent.SetPosition(st.targetPosition)

		pendingInputs := e.store.InputSnapshotsAfter(entityID, st.serverSequence)
		for _, input := range pendingInputs {
			ent.Move(input.Movement)
			if input.IsJumping && input.SequenceNumber > st.serverSequence {
				ent.Jump()
			}
			ent.Update()

			e.store.StoreEntitySnapshot(snapshot.EntitySnapshot{
				EntityID:       entityID,
				Position:       ent.Position(),
				IsJumping:      ent.IsJumping(),
				Timestamp:      e.now(),
				SequenceNumber: input.SequenceNumber,
			})
		}

		ent.InitiateVisualBlend()

		e.mu.Lock()
		delete(e.states, entityID)
		e.mu.Unlock()
	}
}

// IsReconciling reports whether entityID has an armed, not-yet-replayed
// reconciliation state.
func (e *Engine) IsReconciling(entityID uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[entityID]
	return ok && st.reconciling
}
