// Package entity defines the records cached by a featureplus session:
// projects, features (with nested sub-features and tags) and tasks.
package entity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind identifies an entity type.
type Kind string

const (
	KindProject Kind = "project"
	KindFeature Kind = "feature"
	KindTask    Kind = "task"
)

// ValidKinds returns all entity kinds.
func ValidKinds() []Kind {
	return []Kind{KindProject, KindFeature, KindTask}
}

// IsValidKind returns true if k is a known entity kind.
func IsValidKind(k Kind) bool {
	switch k {
	case KindProject, KindFeature, KindTask:
		return true
	default:
		return false
	}
}

// Key addresses one entity in the store.
type Key struct {
	Kind Kind
	ID   string
}

// String returns "kind/id".
func (k Key) String() string {
	return string(k.Kind) + "/" + k.ID
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.Kind == "" && k.ID == ""
}

// ProjectKey returns the key for a project id.
func ProjectKey(id string) Key { return Key{Kind: KindProject, ID: id} }

// FeatureKey returns the key for a feature id.
func FeatureKey(id string) Key { return Key{Kind: KindFeature, ID: id} }

// TaskKey returns the key for a task id.
func TaskKey(id string) Key { return Key{Kind: KindTask, ID: id} }

// Entity is implemented by every cached record.
//
// Implementations are pointer types. The store only ever hands out clones,
// so callers may mutate what they receive.
type Entity interface {
	// Key returns the entity's kind and id.
	Key() Key
	// SetID replaces the entity's id (used when a temporary id is reconciled).
	SetID(id string)
	// Clone returns a deep copy.
	Clone() Entity
	// Validate checks field constraints and returns a VALIDATION error.
	Validate() error
	// Refs lists the keys of other entities this one points at.
	Refs() []Key
	// RewriteRef replaces references to old with newID. Returns true if
	// anything changed.
	RewriteRef(old Key, newID string) bool
}

// TempIDPrefix marks ids assigned locally before the remote has answered.
const TempIDPrefix = "tmp-"

// NewTempID returns a fresh temporary id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was produced by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// CloneEntity returns a clone of e, or nil for nil.
func CloneEntity(e Entity) Entity {
	if e == nil {
		return nil
	}
	return e.Clone()
}

// New returns an empty entity of the given kind, ready for decoding.
func New(kind Kind) (Entity, error) {
	switch kind {
	case KindProject:
		return &Project{}, nil
	case KindFeature:
		return &Feature{}, nil
	case KindTask:
		return &Task{}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
}
