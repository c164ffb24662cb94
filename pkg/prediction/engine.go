// Package prediction implements client-side prediction: applying a local
// player's input immediately, without waiting for a server round trip, and
// recording both the input and the resulting state so reconciliation can
// later verify and correct it.
package prediction

import (
	"fmt"
	"sync"
	"time"

	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
	"github.com/ancillary-agi-foundry/netcode/pkg/snapshot"
)

// Engine assigns monotonically increasing input sequence numbers, applies
// inputs to the local entity immediately, and records input+state
// snapshots for later reconciliation.
type Engine struct {
	mu              sync.Mutex
	currentSequence uint32

	store *snapshot.Store
	now   func() time.Time
}

// NewEngine constructs a prediction Engine backed by store. now defaults
// to time.Now; tests may override it for deterministic timestamps.
func NewEngine(store *snapshot.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// CurrentSequence returns the last sequence number issued.
func (e *Engine) CurrentSequence() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentSequence
}

// Reset zeroes the sequence counter. Outside of tests, this is never
// called mid-session, since sequence numbers are strictly monotonic for
// the lifetime of a connection.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentSequence = 0
}

// ApplyInput applies movement and jump to ref's entity, advances the
// sequence counter, and records the resulting input+state snapshot. ref
// must point at the caller's own NetworkedEntity field so the store can
// register a weak reference to it (see snapshot.Store.RegisterEntity). It
// returns the sequence number assigned to this input, which the caller
// transmits in the outgoing PlayerMovementRequest.
func (e *Engine) ApplyInput(ref *entity.NetworkedEntity, movement netmath.Vector3, isJumping bool) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ref == nil || *ref == nil {
		return e.currentSequence, fmt.Errorf("prediction: ApplyInput called with nil entity")
	}

	e.store.RegisterEntity(ref)
	ent := *ref

	ent.Move(movement)
	if isJumping {
		ent.Jump()
	}
	ent.Update()

	e.currentSequence++
	seq := e.currentSequence
	now := e.now()

	e.store.StoreInputSnapshot(snapshot.InputSnapshot{
		PlayerID:       ent.ID(),
		Movement:       movement,
		IsJumping:      isJumping,
		Timestamp:      now,
		SequenceNumber: seq,
	})
	e.store.StoreEntitySnapshot(snapshot.EntitySnapshot{
		EntityID:       ent.ID(),
		Position:       ent.Position(),
		Velocity:       netmath.Vector3{},
		IsJumping:      isJumping,
		Timestamp:      now,
		SequenceNumber: seq,
	})

	return seq, nil
}
