// Package interpolation renders remote entities along a render clock
// delayed by a fixed interval behind the wall of received snapshots,
// converting reception jitter into smooth visual motion.
package interpolation

import (
	"sync"
	"time"

	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
	"github.com/ancillary-agi-foundry/netcode/pkg/snapshot"
)

// DefaultDelay is the default render-clock lag: an entity's render clock
// starts this far behind the current time when it is first updated.
const DefaultDelay = 100 * time.Millisecond

// DefaultMaxDistance is the default snap threshold: if the interpolated
// target is farther than this from the entity's current position, the
// engine reports the jump through OnSnap. The position is set to the
// target either way.
const DefaultMaxDistance = 5.0

// Engine maintains a per-entity render clock and advances remote entities
// along it by linear interpolation between bracketing snapshots.
type Engine struct {
	mu sync.Mutex

	delay       time.Duration
	maxDistance float32

	store      *snapshot.Store
	renderTime map[uint32]time.Time

	// OnSnap is invoked whenever a target is farther than maxDistance
	// from the entity's current position. The entity is moved straight to
	// the target in every case; this only reports the large jump. Intended
	// for diagnostics; may be nil.
	OnSnap func(entityID uint32, from, to netmath.Vector3)
}

// NewEngine constructs an interpolation Engine with the documented default
// delay and snap distance.
func NewEngine(store *snapshot.Store) *Engine {
	return &Engine{
		delay:       DefaultDelay,
		maxDistance: DefaultMaxDistance,
		store:       store,
		renderTime:  make(map[uint32]time.Time),
	}
}

// SetDelay overrides the render-clock lag.
func (e *Engine) SetDelay(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = delay
}

// SetMaxDistance overrides the snap threshold.
func (e *Engine) SetMaxDistance(maxDistance float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxDistance = maxDistance
}

// Record appends a new EntitySnapshot for entityID at position/timestamp,
// with the next sequence number in that entity's series.
func (e *Engine) Record(entityID uint32, position netmath.Vector3, timestamp time.Time) {
	latest := e.store.LatestEntitySnapshot(entityID)
	e.store.StoreEntitySnapshot(snapshot.EntitySnapshot{
		EntityID:       entityID,
		Position:       position,
		Timestamp:      timestamp,
		SequenceNumber: latest.SequenceNumber + 1,
	})
}

// initRenderTime seeds entityID's render clock the first time it's seen,
// placing it delay behind now so the very first UpdateEntity call has
// history to interpolate against.
func (e *Engine) initRenderTime(entityID uint32, now time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.renderTime[entityID]
	if !ok {
		rt = now.Add(-e.delay)
		e.renderTime[entityID] = rt
	}
	return rt
}

// UpdateEntity advances entityID's render clock by delta, finds the
// snapshots bracketing the new render time, computes the interpolated (or
// snapped) target, and applies it to ent.
func (e *Engine) UpdateEntity(ent entity.NetworkedEntity, delta time.Duration) {
	entityID := ent.ID()
	now := time.Now()
	e.initRenderTime(entityID, now)

	e.mu.Lock()
	renderTime := e.renderTime[entityID].Add(delta)
	e.renderTime[entityID] = renderTime
	maxDistance := e.maxDistance
	e.mu.Unlock()

	snapshots := e.store.EntitySnapshotsByTimestamp(entityID)
	if len(snapshots) == 0 {
		return
	}

	start, end, t := bracket(snapshots, renderTime)
	target := start.Position.Lerp(end.Position, t)

	current := ent.Position()
	if target.Distance(current) > maxDistance && e.OnSnap != nil {
		e.OnSnap(entityID, current, target)
	}
	ent.SetPosition(target)

	if end.IsJumping && !start.IsJumping {
		ent.Jump()
	}
	ent.Update()
}

// bracket finds the snapshots bracketing renderTime
// and returns the interpolation parameter t, clamped to [0, 1].
func bracket(snapshots []snapshot.EntitySnapshot, renderTime time.Time) (start, end snapshot.EntitySnapshot, t float32) {
	idx := -1
	for i, snap := range snapshots {
		if !snap.Timestamp.Before(renderTime) {
			idx = i
			break
		}
	}

	switch {
	case idx == -1:
		// No snapshot is at or after renderTime: every snapshot is older.
		newest := snapshots[len(snapshots)-1]
		return newest, newest, 1
	case idx == 0:
		// The first snapshot is already at or after renderTime.
		oldest := snapshots[0]
		return oldest, oldest, 0
	default:
		prev := snapshots[idx-1]
		found := snapshots[idx]
		span := found.Timestamp.Sub(prev.Timestamp)
		if span <= 0 {
			return prev, found, 0
		}
		elapsed := renderTime.Sub(prev.Timestamp)
		t := netmath.Clamp01(float32(elapsed) / float32(span))
		return prev, found, t
	}
}
