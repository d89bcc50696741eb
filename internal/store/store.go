// Package store provides the session's in-memory entity cache.
//
// The store holds at most one live entity per key. Derived indices attach as
// Indexers and are updated synchronously inside the store's write lock, so a
// Put, Remove or Rekey is observed by the store and every index together.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/randalmurphal/featureplus/internal/entity"
)

// Indexer is a derived view maintained from store mutations. Hooks run while
// the store's write lock is held and must not call back into the store.
type Indexer interface {
	// OnPut is called after e is stored. prev is the entity previously stored
	// under the same key, or nil.
	OnPut(prev, e entity.Entity)
	// OnRemove is called after prev is removed.
	OnRemove(prev entity.Entity)
	// OnRekey is called after the entity stored under old moved to newID.
	// References held by other entities have already been rewritten.
	OnRekey(old entity.Key, newID string)
	// OnReset is called when the store is cleared.
	OnReset()
}

type slot struct {
	e   entity.Entity
	seq uint64
}

// Store is the authoritative in-memory cache of entities keyed by kind and id.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	entities map[entity.Key]slot
	seq      uint64
	indexers []Indexer
	logger   *slog.Logger
}

// New creates an empty store with the given indexers attached.
func New(logger *slog.Logger, indexers ...Indexer) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entities: make(map[entity.Key]slot),
		indexers: indexers,
		logger:   logger,
	}
}

// Attach registers an additional indexer and replays current contents into it.
func (s *Store) Attach(ix Indexer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indexers = append(s.indexers, ix)
	for _, sl := range s.sortedLocked() {
		ix.OnPut(nil, sl.e)
	}
}

// Get returns a copy of the entity stored under key.
func (s *Store) Get(key entity.Key) (entity.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, ok := s.entities[key]
	if !ok {
		return nil, false
	}
	return sl.e.Clone(), true
}

// Has reports whether key is present.
func (s *Store) Has(key entity.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[key]
	return ok
}

// Put stores a copy of e, replacing any entity with the same key.
func (s *Store) Put(e entity.Entity) error {
	key := e.Key()
	if key.ID == "" {
		return fmt.Errorf("put %s: empty id", key.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := e.Clone()
	prev, existed := s.entities[key]
	seq := prev.seq
	if !existed {
		s.seq++
		seq = s.seq
	}
	s.entities[key] = slot{e: stored, seq: seq}

	var prevEntity entity.Entity
	if existed {
		prevEntity = prev.e
	}
	for _, ix := range s.indexers {
		ix.OnPut(prevEntity, stored)
	}
	return nil
}

// Remove deletes the entity under key. Removing an unknown key is a no-op
// and returns false.
func (s *Store) Remove(key entity.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.entities[key]
	if !ok {
		return false
	}
	delete(s.entities, key)
	for _, ix := range s.indexers {
		ix.OnRemove(prev.e)
	}
	return true
}

// Rekey moves the entity under old to newID and rewrites every reference to
// old held by other entities, in one step. Indexers see a single OnRekey.
func (s *Store) Rekey(old entity.Key, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.entities[old]
	if !ok {
		return fmt.Errorf("rekey %s: not in store", old)
	}
	newKey := entity.Key{Kind: old.Kind, ID: newID}
	if _, clash := s.entities[newKey]; clash && newKey != old {
		return fmt.Errorf("rekey %s: %s already present", old, newKey)
	}

	delete(s.entities, old)
	sl.e.SetID(newID)
	s.entities[newKey] = sl

	rewritten := 0
	for _, other := range s.entities {
		if other.e.RewriteRef(old, newID) {
			rewritten++
		}
	}
	for _, ix := range s.indexers {
		ix.OnRekey(old, newID)
	}

	s.logger.Debug("entity rekeyed", "from", old.String(), "to", newKey.String(), "refs", rewritten)
	return nil
}

// List returns copies of every entity of kind accepted by pred, in insertion
// order. A nil pred accepts everything.
func (s *Store) List(kind entity.Kind, pred func(entity.Entity) bool) []entity.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.Entity
	for _, sl := range s.sortedLocked() {
		if sl.e.Key().Kind != kind {
			continue
		}
		if pred != nil && !pred(sl.e) {
			continue
		}
		out = append(out, sl.e.Clone())
	}
	return out
}

// Count returns how many entities of kind satisfy pred without copying them.
func (s *Store) Count(kind entity.Kind, pred func(entity.Entity) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key, sl := range s.entities {
		if key.Kind != kind {
			continue
		}
		if pred == nil || pred(sl.e) {
			n++
		}
	}
	return n
}

// Each calls fn for every entity of kind, in no particular order. fn runs
// under the read lock and sees the stored value: it must not modify or
// retain e, nor call back into the store.
func (s *Store) Each(kind entity.Kind, fn func(e entity.Entity)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, sl := range s.entities {
		if key.Kind == kind {
			fn(sl.e)
		}
	}
}

// Features returns the features accepted by pred.
func (s *Store) Features(pred func(*entity.Feature) bool) []*entity.Feature {
	var out []*entity.Feature
	for _, e := range s.List(entity.KindFeature, nil) {
		f := e.(*entity.Feature)
		if pred == nil || pred(f) {
			out = append(out, f)
		}
	}
	return out
}

// Tasks returns the tasks accepted by pred.
func (s *Store) Tasks(pred func(*entity.Task) bool) []*entity.Task {
	var out []*entity.Task
	for _, e := range s.List(entity.KindTask, nil) {
		t := e.(*entity.Task)
		if pred == nil || pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// Feature returns the feature with id.
func (s *Store) Feature(id string) (*entity.Feature, bool) {
	e, ok := s.Get(entity.FeatureKey(id))
	if !ok {
		return nil, false
	}
	return e.(*entity.Feature), true
}

// Project returns the project with id.
func (s *Store) Project(id string) (*entity.Project, bool) {
	e, ok := s.Get(entity.ProjectKey(id))
	if !ok {
		return nil, false
	}
	return e.(*entity.Project), true
}

// Len returns the number of stored entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Reset clears the store and every index.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities = make(map[entity.Key]slot)
	for _, ix := range s.indexers {
		ix.OnReset()
	}
}

func (s *Store) sortedLocked() []slot {
	slots := make([]slot, 0, len(s.entities))
	for _, sl := range s.entities {
		slots = append(slots, sl)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].seq < slots[j].seq })
	return slots
}
