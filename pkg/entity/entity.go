// Package entity defines the NetworkedEntity contract the core invokes and
// a concrete reference implementation used by tests and the cmd/ binaries.
// The reference implementation's physics (gravity, jump impulse, ground
// collision) is deliberately outside the core's scope: the core only ever
// calls through the interface below.
package entity

import (
	"sync"

	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
)

// NetworkedEntity is the capability set the prediction, reconciliation,
// and interpolation engines invoke. A concrete implementation holds both a
// simulation position (the authoritative target used for physics and
// further prediction) and a render position (what the view draws); the two
// diverge only while a visual blend is in progress.
type NetworkedEntity interface {
	// Move nudges the entity by direction; direction is in input-space
	// units, not yet scaled by speed or delta time.
	Move(direction netmath.Vector3)
	// Update advances the entity's own physics by one step.
	Update()
	// Jump applies the entity's jump impulse, if grounded.
	Jump()

	// Position returns the current simulation position.
	Position() netmath.Vector3
	// SetPosition overwrites the simulation position directly, bypassing
	// physics. Used when replaying from a reconciled snapshot.
	SetPosition(p netmath.Vector3)
	// RenderPosition returns the position the view should draw.
	RenderPosition() netmath.Vector3

	// IsJumping reports whether the entity is currently airborne.
	IsJumping() bool
	// VelocityY returns the entity's vertical velocity.
	VelocityY() float32

	// SnapSimulationState forces the simulation position, jump state and
	// vertical velocity to the given authoritative values, instantly and
	// without blending. Used when reconciliation snaps to the server state.
	SnapSimulationState(position netmath.Vector3, isJumping bool, velocityY float32)
	// InitiateVisualBlend starts the render position easing toward the
	// simulation position over subsequent ticks, hiding a reconciliation
	// snap from the player without delaying causality.
	InitiateVisualBlend()

	// ID returns the entity's stable identifier (its owning player ID).
	ID() uint32
	// MoveSpeed returns the entity's configured movement speed. The core
	// engines do not call it; an implementation applies its own speed when
	// turning Move directions into a displacement.
	MoveSpeed() float32
}

// Gravity is the downward acceleration the reference entity applies per
// Update, in units/s².
const Gravity = 20.0

// JumpVelocity is the vertical velocity the reference entity's Jump
// imparts.
const JumpVelocity = 8.0

// GroundLevel is the Y coordinate the reference entity treats as ground.
const GroundLevel = 0.0

// DefaultMoveSpeed is the reference entity's movement speed in units/s.
const DefaultMoveSpeed = 5.0

// DefaultTickDelta is the fixed per-Update timestep the reference entity
// assumes, matching a 60Hz client tick.
const DefaultTickDelta = 1.0 / 60.0

// DefaultBlendRate is the fraction of the remaining render/simulation gap
// closed per Update while a visual blend is active.
const DefaultBlendRate = 0.2

// PlayerEntity is a reference NetworkedEntity implementation: a player
// controlled by ground movement plus simple jump/gravity physics. It is
// not part of the core; it exists so the core has something concrete to
// drive in tests and in the cmd/ demo binaries.
type PlayerEntity struct {
	mu sync.Mutex

	id        uint32
	moveSpeed float32

	simPosition    netmath.Vector3
	renderPosition netmath.Vector3
	velocityY      float32
	isJumping      bool
	blending       bool

	pendingMove netmath.Vector3
}

// NewPlayerEntity constructs a PlayerEntity at the origin.
func NewPlayerEntity(id uint32) *PlayerEntity {
	return &PlayerEntity{id: id, moveSpeed: DefaultMoveSpeed}
}

// Move accumulates a movement direction to be applied on the next Update.
func (p *PlayerEntity) Move(direction netmath.Vector3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingMove = p.pendingMove.Add(direction)
}

// Jump imparts JumpVelocity if the entity is grounded.
func (p *PlayerEntity) Jump() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.simPosition.Y <= GroundLevel {
		p.velocityY = JumpVelocity
		p.isJumping = true
	}
}

// Update applies accumulated movement, gravity, and ground collision, then
// advances the render position toward the simulation position if a visual
// blend is in progress.
func (p *PlayerEntity) Update() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.simPosition = p.simPosition.Add(p.pendingMove.Mul(p.moveSpeed * DefaultTickDelta))
	p.pendingMove = netmath.Vector3{}

	p.velocityY -= Gravity * DefaultTickDelta
	p.simPosition.Y += p.velocityY * DefaultTickDelta

	if p.simPosition.Y <= GroundLevel {
		p.simPosition.Y = GroundLevel
		p.velocityY = 0
		p.isJumping = false
	}

	if p.blending {
		p.renderPosition = p.renderPosition.Lerp(p.simPosition, DefaultBlendRate)
		if p.renderPosition.Distance(p.simPosition) < netmath.Epsilon {
			p.renderPosition = p.simPosition
			p.blending = false
		}
	} else {
		p.renderPosition = p.simPosition
	}
}

// Position returns the simulation position.
func (p *PlayerEntity) Position() netmath.Vector3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.simPosition
}

// SetPosition overwrites the simulation position without touching the
// render position or blend state.
func (p *PlayerEntity) SetPosition(pos netmath.Vector3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.simPosition = pos
}

// RenderPosition returns the position the view should draw.
func (p *PlayerEntity) RenderPosition() netmath.Vector3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderPosition
}

// IsJumping reports whether the entity is airborne.
func (p *PlayerEntity) IsJumping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isJumping
}

// VelocityY returns the entity's vertical velocity.
func (p *PlayerEntity) VelocityY() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.velocityY
}

// SnapSimulationState instantly sets simulation position, jump state and
// vertical velocity to authoritative values.
func (p *PlayerEntity) SnapSimulationState(position netmath.Vector3, isJumping bool, velocityY float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.simPosition = position
	p.isJumping = isJumping
	p.velocityY = velocityY
}

// InitiateVisualBlend starts easing the render position toward the
// simulation position on subsequent Update calls.
func (p *PlayerEntity) InitiateVisualBlend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blending = true
}

// ID returns the owning player's ID.
func (p *PlayerEntity) ID() uint32 { return p.id }

// MoveSpeed returns the entity's configured movement speed.
func (p *PlayerEntity) MoveSpeed() float32 { return p.moveSpeed }
