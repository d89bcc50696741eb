// Package counts derives read-only counters from the store and the
// hierarchy index. Nothing is cached: every call recomputes from current
// contents, so the numbers cannot drift from what is stored.
package counts

import (
	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/hierarchy"
	"github.com/randalmurphal/featureplus/internal/store"
)

// Aggregator answers count queries.
type Aggregator struct {
	store     *store.Store
	hierarchy *hierarchy.Index
}

// New creates an aggregator over s and h.
func New(s *store.Store, h *hierarchy.Index) *Aggregator {
	return &Aggregator{store: s, hierarchy: h}
}

// ChildFeatureCount returns the number of direct sub-features of id.
func (a *Aggregator) ChildFeatureCount(id string) int {
	return a.hierarchy.ChildCount(id)
}

// TaskCount returns the number of tasks owned by feature id.
func (a *Aggregator) TaskCount(id string) int {
	return a.store.Count(entity.KindTask, func(e entity.Entity) bool {
		return e.(*entity.Task).Owner() == id
	})
}

// TaskCounts returns task counts for every feature that owns at least one
// task, in a single pass over the store.
func (a *Aggregator) TaskCounts() map[string]int {
	out := make(map[string]int)
	a.store.Each(entity.KindTask, func(e entity.Entity) {
		out[e.(*entity.Task).Owner()]++
	})
	return out
}

// StatusCounts tallies a project's features by status.
type StatusCounts struct {
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
}

// Total returns the number of features counted.
func (c StatusCounts) Total() int { return c.Todo + c.InProgress + c.Done }

// StatusCounts returns the board column sizes for projectID.
func (a *Aggregator) StatusCounts(projectID string) StatusCounts {
	var c StatusCounts
	a.store.Each(entity.KindFeature, func(e entity.Entity) {
		f := e.(*entity.Feature)
		if f.ProjectID != projectID {
			return
		}
		switch f.Status {
		case entity.StatusTodo:
			c.Todo++
		case entity.StatusInProgress:
			c.InProgress++
		case entity.StatusDone:
			c.Done++
		}
	})
	return c
}

// Summary is the rollup shown next to a feature.
type Summary struct {
	Children int `json:"children"`
	Tasks    int `json:"tasks"`
	// DescendantTasks counts tasks owned by the feature or anything below it.
	DescendantTasks int `json:"descendant_tasks"`
}

// Summary returns the rollup for feature id.
func (a *Aggregator) Summary(id string) Summary {
	byOwner := a.TaskCounts()
	s := Summary{
		Children: a.hierarchy.ChildCount(id),
		Tasks:    byOwner[id],
	}
	s.DescendantTasks = s.Tasks
	for _, d := range a.hierarchy.Descendants(id) {
		s.DescendantTasks += byOwner[d]
	}
	return s
}
