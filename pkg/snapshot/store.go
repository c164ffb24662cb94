// Package snapshot retains per-entity state history and per-player input
// history, sequence-indexed and bounded by age. It is the single shared
// mutable map the prediction, reconciliation, and interpolation engines
// all read and write: each per-entity/per-player series is
// guarded by its own mutex since contention is low.
package snapshot

import (
	"sort"
	"sync"
	"time"
	"weak"

	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
)

// EntitySnapshot is an immutable record of an entity's state at a point in
// time, keyed by sequence number.
type EntitySnapshot struct {
	EntityID       uint32
	Position       netmath.Vector3
	Velocity       netmath.Vector3
	IsJumping      bool
	Timestamp      time.Time
	SequenceNumber uint32
}

// InputSnapshot is an immutable record of a player's input at a point in
// time, keyed by sequence number.
type InputSnapshot struct {
	PlayerID       uint32
	Movement       netmath.Vector3
	IsJumping      bool
	Timestamp      time.Time
	SequenceNumber uint32
}

type entitySeries struct {
	mu   sync.Mutex
	list []EntitySnapshot // ordered by SequenceNumber
}

type inputSeries struct {
	mu   sync.Mutex
	list []InputSnapshot // ordered by SequenceNumber, no duplicate sequence numbers
}

// Store holds per-entity state history, per-player input history, and a
// weak-reference registry of live entities used to deliver reconciliation
// callbacks without the store holding entities alive past their owner's
// lifetime.
type Store struct {
	entitiesMu sync.RWMutex
	entities   map[uint32]*entitySeries

	inputsMu sync.RWMutex
	inputs   map[uint32]*inputSeries

	registryMu sync.RWMutex
	registry   map[uint32]weak.Pointer[entity.NetworkedEntity]
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		entities: make(map[uint32]*entitySeries),
		inputs:   make(map[uint32]*inputSeries),
		registry: make(map[uint32]weak.Pointer[entity.NetworkedEntity]),
	}
}

func (s *Store) entitySeriesFor(entityID uint32) *entitySeries {
	s.entitiesMu.RLock()
	es, ok := s.entities[entityID]
	s.entitiesMu.RUnlock()
	if ok {
		return es
	}

	s.entitiesMu.Lock()
	defer s.entitiesMu.Unlock()
	if es, ok = s.entities[entityID]; ok {
		return es
	}
	es = &entitySeries{}
	s.entities[entityID] = es
	return es
}

func (s *Store) inputSeriesFor(playerID uint32) *inputSeries {
	s.inputsMu.RLock()
	is, ok := s.inputs[playerID]
	s.inputsMu.RUnlock()
	if ok {
		return is
	}

	s.inputsMu.Lock()
	defer s.inputsMu.Unlock()
	if is, ok = s.inputs[playerID]; ok {
		return is
	}
	is = &inputSeries{}
	s.inputs[playerID] = is
	return is
}

// StoreEntitySnapshot inserts s into entityID's history, preserving
// sequence-number order. If a snapshot with the same sequence number
// already exists, the later insert overwrites it.
func (s *Store) StoreEntitySnapshot(snap EntitySnapshot) {
	es := s.entitySeriesFor(snap.EntityID)
	es.mu.Lock()
	defer es.mu.Unlock()

	idx := sort.Search(len(es.list), func(i int) bool {
		return es.list[i].SequenceNumber >= snap.SequenceNumber
	})
	if idx < len(es.list) && es.list[idx].SequenceNumber == snap.SequenceNumber {
		es.list[idx] = snap
		return
	}
	es.list = append(es.list, EntitySnapshot{})
	copy(es.list[idx+1:], es.list[idx:])
	es.list[idx] = snap
}

// StoreInputSnapshot inserts i into its player's history, preserving
// sequence-number order. Duplicate insertion of an already-present
// sequence number is a no-op.
func (s *Store) StoreInputSnapshot(snap InputSnapshot) {
	is := s.inputSeriesFor(snap.PlayerID)
	is.mu.Lock()
	defer is.mu.Unlock()

	idx := sort.Search(len(is.list), func(i int) bool {
		return is.list[i].SequenceNumber >= snap.SequenceNumber
	})
	if idx < len(is.list) && is.list[idx].SequenceNumber == snap.SequenceNumber {
		return // duplicate, no-op
	}
	is.list = append(is.list, InputSnapshot{})
	copy(is.list[idx+1:], is.list[idx:])
	is.list[idx] = snap
}

// LatestEntitySnapshot returns the snapshot with the greatest sequence
// number for entityID, or the zero-value sentinel (SequenceNumber == 0) if
// none exist.
func (s *Store) LatestEntitySnapshot(entityID uint32) EntitySnapshot {
	es := s.entitySeriesFor(entityID)
	es.mu.Lock()
	defer es.mu.Unlock()
	if len(es.list) == 0 {
		return EntitySnapshot{EntityID: entityID}
	}
	return es.list[len(es.list)-1]
}

// EntitySnapshotsAfter returns, in ascending sequence-number order, every
// stored snapshot for entityID with SequenceNumber strictly greater than
// seq.
func (s *Store) EntitySnapshotsAfter(entityID uint32, seq uint32) []EntitySnapshot {
	es := s.entitySeriesFor(entityID)
	es.mu.Lock()
	defer es.mu.Unlock()

	idx := sort.Search(len(es.list), func(i int) bool {
		return es.list[i].SequenceNumber > seq
	})
	out := make([]EntitySnapshot, len(es.list)-idx)
	copy(out, es.list[idx:])
	return out
}

// EntitySnapshotsByTimestamp returns every stored snapshot for entityID in
// ascending timestamp order, for the interpolation engine.
func (s *Store) EntitySnapshotsByTimestamp(entityID uint32) []EntitySnapshot {
	es := s.entitySeriesFor(entityID)
	es.mu.Lock()
	defer es.mu.Unlock()

	out := make([]EntitySnapshot, len(es.list))
	copy(out, es.list)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// InputSnapshotsAfter returns, in ascending sequence-number order, every
// stored input for playerID with SequenceNumber strictly greater than seq.
func (s *Store) InputSnapshotsAfter(playerID uint32, seq uint32) []InputSnapshot {
	is := s.inputSeriesFor(playerID)
	is.mu.Lock()
	defer is.mu.Unlock()

	idx := sort.Search(len(is.list), func(i int) bool {
		return is.list[i].SequenceNumber > seq
	})
	out := make([]InputSnapshot, len(is.list)-idx)
	copy(out, is.list[idx:])
	return out
}

// Prune removes every stored entity and input snapshot whose timestamp
// predates now-maxAge, returning the total number of snapshots removed
// across both series so callers can feed it to a diagnostics counter.
func (s *Store) Prune(now time.Time, maxAge time.Duration) int {
	cutoff := now.Add(-maxAge)
	removed := 0

	s.entitiesMu.RLock()
	entitySeriesList := make([]*entitySeries, 0, len(s.entities))
	for _, es := range s.entities {
		entitySeriesList = append(entitySeriesList, es)
	}
	s.entitiesMu.RUnlock()

	for _, es := range entitySeriesList {
		es.mu.Lock()
		kept := es.list[:0]
		for _, snap := range es.list {
			if !snap.Timestamp.Before(cutoff) {
				kept = append(kept, snap)
			} else {
				removed++
			}
		}
		es.list = kept
		es.mu.Unlock()
	}

	s.inputsMu.RLock()
	inputSeriesList := make([]*inputSeries, 0, len(s.inputs))
	for _, is := range s.inputs {
		inputSeriesList = append(inputSeriesList, is)
	}
	s.inputsMu.RUnlock()

	for _, is := range inputSeriesList {
		is.mu.Lock()
		kept := is.list[:0]
		for _, snap := range is.list {
			if !snap.Timestamp.Before(cutoff) {
				kept = append(kept, snap)
			} else {
				removed++
			}
		}
		is.list = kept
		is.mu.Unlock()
	}

	return removed
}

// RegisterEntity stores a weak reference to *ref, keyed by its ID, for
// later lookup by reconciliation. ref must point at a field the caller
// owns and keeps alive for as long as the entity should be resolvable
// (e.g. a session's own `player NetworkedEntity` field). The store itself
// never holds the entity alive, only observes whether the caller still
// does.
func (s *Store) RegisterEntity(ref *entity.NetworkedEntity) {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	s.registry[(*ref).ID()] = weak.Make(ref)
}

// GetEntity resolves the weak reference registered for entityID. It
// returns false if no entity was ever registered under that ID, or if the
// registered entity has since been garbage collected, in which case the
// expired entry is purged.
func (s *Store) GetEntity(entityID uint32) (entity.NetworkedEntity, bool) {
	s.registryMu.RLock()
	ref, ok := s.registry[entityID]
	s.registryMu.RUnlock()
	if !ok {
		return nil, false
	}

	ptr := ref.Value()
	if ptr == nil {
		s.registryMu.Lock()
		delete(s.registry, entityID)
		s.registryMu.Unlock()
		return nil, false
	}
	return *ptr, true
}
