// Package hierarchy maintains the parent/child index over features.
//
// Every feature has at most one parent; features without a parent are the
// project's feature groups. The index never holds a cycle: attaching a child
// walks the proposed parent's ancestor chain first and rejects the change if
// the child appears on it.
package hierarchy

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
)

// Index is the derived parent -> children mapping over features.
// It implements store.Indexer.
type Index struct {
	mu       sync.RWMutex
	parent   map[string]string // child -> parent, "" for roots
	project  map[string]string // feature -> project
	children map[string]*idSet // parent -> children in attach order
	roots    map[string]*idSet // project -> root features in attach order
	logger   *slog.Logger
}

// New creates an empty hierarchy index.
func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Index{logger: logger}
	ix.reset()
	return ix
}

func (ix *Index) reset() {
	ix.parent = make(map[string]string)
	ix.project = make(map[string]string)
	ix.children = make(map[string]*idSet)
	ix.roots = make(map[string]*idSet)
}

// Contains reports whether the feature is indexed.
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.project[id]
	return ok
}

// ParentOf returns the feature's parent. ok is false for feature groups and
// unknown features.
func (ix *Index) ParentOf(id string) (parent string, ok bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p := ix.parent[id]
	return p, p != ""
}

// ChildrenOf returns the feature's direct children in the order they were
// attached.
func (ix *Index) ChildrenOf(id string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if set, ok := ix.children[id]; ok {
		return set.list()
	}
	return []string{}
}

// ChildCount returns the number of direct children.
func (ix *Index) ChildCount(id string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if set, ok := ix.children[id]; ok {
		return set.len()
	}
	return 0
}

// Roots returns the project's feature groups in the order they were attached.
func (ix *Index) Roots(projectID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if set, ok := ix.roots[projectID]; ok {
		return set.list()
	}
	return []string{}
}

// Ancestors returns the chain of parents, nearest first.
func (ix *Index) Ancestors(id string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []string
	for cur := ix.parent[id]; cur != "" && len(out) <= len(ix.parent); cur = ix.parent[cur] {
		out = append(out, cur)
	}
	return out
}

// Depth returns 0 for a feature group, 1 for its children and so on.
func (ix *Index) Depth(id string) int {
	return len(ix.Ancestors(id))
}

// Descendants returns every feature below id in pre-order.
func (ix *Index) Descendants(id string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []string
	var walk func(string)
	walk = func(cur string) {
		set, ok := ix.children[cur]
		if !ok {
			return
		}
		for _, c := range set.ids {
			out = append(out, c)
			walk(c)
		}
	}
	walk(id)
	return out
}

// CheckParent validates attaching child (in projectID) under parent without
// changing anything. An empty parent is always valid. Returns a CYCLE error
// if child is parent or one of its ancestors, and a VALIDATION error if the
// parent is unknown or belongs to another project.
func (ix *Index) CheckParent(child, projectID, parent string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.checkLocked(child, projectID, parent)
}

func (ix *Index) checkLocked(child, projectID, parent string) error {
	if parent == "" {
		return nil
	}
	if parent == child {
		return errors.ErrCycle([]string{child, child})
	}
	parentProject, ok := ix.project[parent]
	if !ok {
		return errors.ErrValidation("parent_feature_id", fmt.Sprintf("parent feature %s not found", parent))
	}
	if projectID != "" && parentProject != projectID {
		return errors.ErrValidation("parent_feature_id",
			fmt.Sprintf("parent feature %s belongs to project %s, not %s", parent, parentProject, projectID))
	}

	path := []string{child, parent}
	for cur, steps := ix.parent[parent], 0; cur != ""; cur, steps = ix.parent[cur], steps+1 {
		path = append(path, cur)
		if cur == child {
			return errors.ErrCycle(path)
		}
		if steps > len(ix.parent) {
			// existing data already loops; refuse to extend it
			return errors.ErrCycle(path)
		}
	}
	return nil
}

// Attach places child under parent ("" for a feature group) after
// validating the move. On error nothing changes. Re-attaching removes the
// child from its old parent and adds it to the new one in one step.
func (ix *Index) Attach(child, projectID, parent string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.checkLocked(child, projectID, parent); err != nil {
		return err
	}
	ix.attachLocked(child, projectID, parent)
	return nil
}

func (ix *Index) attachLocked(child, projectID, parent string) {
	if _, known := ix.project[child]; known {
		ix.unlinkLocked(child)
	}
	ix.project[child] = projectID
	ix.parent[child] = parent
	if parent == "" {
		ix.rootSet(projectID).add(child)
		return
	}
	set, ok := ix.children[parent]
	if !ok {
		set = newIDSet()
		ix.children[parent] = set
	}
	set.add(child)
}

// unlinkLocked removes child from its parent's child set (or its project's
// roots). Its own children are left in place.
func (ix *Index) unlinkLocked(child string) {
	parent := ix.parent[child]
	if parent == "" {
		if set, ok := ix.roots[ix.project[child]]; ok {
			set.remove(child)
		}
		return
	}
	if set, ok := ix.children[parent]; ok {
		set.remove(child)
		if set.len() == 0 {
			delete(ix.children, parent)
		}
	}
}

// Detach removes the feature from the index. Children keep pointing at it.
func (ix *Index) Detach(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.detachLocked(id)
}

func (ix *Index) detachLocked(id string) {
	if _, ok := ix.project[id]; !ok {
		return
	}
	ix.unlinkLocked(id)
	delete(ix.parent, id)
	delete(ix.project, id)
}

func (ix *Index) rootSet(projectID string) *idSet {
	set, ok := ix.roots[projectID]
	if !ok {
		set = newIDSet()
		ix.roots[projectID] = set
	}
	return set
}

// OnPut implements store.Indexer.
func (ix *Index) OnPut(_, e entity.Entity) {
	f, ok := e.(*entity.Feature)
	if !ok {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	parent := f.Parent()
	if err := ix.checkParentForPut(f.ID, f.ProjectID, parent); err != nil {
		ix.logger.Warn("feature kept as group: invalid parent",
			"feature", f.ID, "parent", parent, "error", err)
		parent = ""
	}
	if _, known := ix.project[f.ID]; known && ix.parent[f.ID] == parent && ix.project[f.ID] == f.ProjectID {
		return
	}
	ix.attachLocked(f.ID, f.ProjectID, parent)
}

// checkParentForPut is checkLocked without the existence rule: records may
// arrive child-first while a project is being loaded.
func (ix *Index) checkParentForPut(child, projectID, parent string) error {
	if parent == "" {
		return nil
	}
	if _, known := ix.project[parent]; !known {
		if parent == child {
			return errors.ErrCycle([]string{child, child})
		}
		return nil
	}
	return ix.checkLocked(child, projectID, parent)
}

// OnRemove implements store.Indexer.
func (ix *Index) OnRemove(prev entity.Entity) {
	f, ok := prev.(*entity.Feature)
	if !ok {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.detachLocked(f.ID)
}

// OnRekey implements store.Indexer.
func (ix *Index) OnRekey(old entity.Key, newID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	switch old.Kind {
	case entity.KindFeature:
		ix.rekeyFeatureLocked(old.ID, newID)
	case entity.KindProject:
		for id, p := range ix.project {
			if p == old.ID {
				ix.project[id] = newID
			}
		}
		if set, ok := ix.roots[old.ID]; ok {
			delete(ix.roots, old.ID)
			ix.roots[newID] = set
		}
	}
}

func (ix *Index) rekeyFeatureLocked(old, newID string) {
	if projectID, ok := ix.project[old]; ok {
		parent := ix.parent[old]
		if parent == "" {
			if set, ok := ix.roots[projectID]; ok {
				set.replace(old, newID)
			}
		} else if set, ok := ix.children[parent]; ok {
			set.replace(old, newID)
		}
		delete(ix.project, old)
		delete(ix.parent, old)
		ix.project[newID] = projectID
		ix.parent[newID] = parent
	}
	if set, ok := ix.children[old]; ok {
		delete(ix.children, old)
		ix.children[newID] = set
		for _, c := range set.ids {
			ix.parent[c] = newID
		}
	}
}

// OnReset implements store.Indexer.
func (ix *Index) OnReset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.reset()
}
