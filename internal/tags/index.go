package tags

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/randalmurphal/featureplus/internal/entity"
)

// DefaultMinQueryLen is the query length at which Autocomplete starts
// returning suggestions.
const DefaultMinQueryLen = 2

// Index maps tag names to the features carrying them and back. It mirrors
// the tags stored on features and implements store.Indexer.
type Index struct {
	mu          sync.RWMutex
	byTag       map[string]map[string]struct{} // tag -> feature ids
	byFeature   map[string][]string            // feature id -> tags in stored order
	minQueryLen int
	logger      *slog.Logger
}

// New creates an empty tag index. minQueryLen <= 0 selects
// DefaultMinQueryLen.
func New(logger *slog.Logger, minQueryLen int) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	if minQueryLen <= 0 {
		minQueryLen = DefaultMinQueryLen
	}
	return &Index{
		byTag:       make(map[string]map[string]struct{}),
		byFeature:   make(map[string][]string),
		minQueryLen: minQueryLen,
		logger:      logger,
	}
}

// ByTag returns the ids of features carrying tag, sorted.
func (ix *Index) ByTag(tag string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bucket := ix.byTag[tag]
	out := make([]string, 0, len(bucket))
	for id := range bucket {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TagsOf returns the feature's tags in stored order.
func (ix *Index) TagsOf(featureID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string{}, ix.byFeature[featureID]...)
}

// Has reports whether featureID carries tag.
func (ix *Index) Has(featureID, tag string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.byTag[tag][featureID]
	return ok
}

// Catalogue returns every tag in use, sorted.
func (ix *Index) Catalogue() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.catalogueLocked()
}

func (ix *Index) catalogueLocked() []string {
	out := make([]string, 0, len(ix.byTag))
	for tag := range ix.byTag {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Usage returns the number of features carrying each tag.
func (ix *Index) Usage() map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make(map[string]int, len(ix.byTag))
	for tag, bucket := range ix.byTag {
		out[tag] = len(bucket)
	}
	return out
}

// Autocomplete suggests catalogue tags containing query, ignoring case,
// minus the tags in exclude. Queries shorter than the configured minimum
// (counted in runes, after trimming) return nothing.
func (ix *Index) Autocomplete(query string, exclude []string) []string {
	q := strings.ToLower(normalize(query))
	if utf8.RuneCountInString(q) < ix.minQueryLen {
		return nil
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []string
	for _, tag := range ix.catalogueLocked() {
		if _, excluded := skip[tag]; excluded {
			continue
		}
		if strings.Contains(strings.ToLower(tag), q) {
			out = append(out, tag)
		}
	}
	return out
}

// OnPut implements store.Indexer.
func (ix *Index) OnPut(_, e entity.Entity) {
	f, ok := e.(*entity.Feature)
	if !ok {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.unlinkLocked(f.ID)
	ix.linkLocked(f.ID, Merge(nil, f.Tags))
}

// OnRemove implements store.Indexer.
func (ix *Index) OnRemove(prev entity.Entity) {
	f, ok := prev.(*entity.Feature)
	if !ok {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.unlinkLocked(f.ID)
}

// OnRekey implements store.Indexer.
func (ix *Index) OnRekey(old entity.Key, newID string) {
	if old.Kind != entity.KindFeature {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	tags, ok := ix.byFeature[old.ID]
	if !ok {
		return
	}
	ix.unlinkLocked(old.ID)
	ix.linkLocked(newID, tags)
}

// OnReset implements store.Indexer.
func (ix *Index) OnReset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byTag = make(map[string]map[string]struct{})
	ix.byFeature = make(map[string][]string)
}

func (ix *Index) linkLocked(featureID string, tags []string) {
	if len(tags) == 0 {
		return
	}
	ix.byFeature[featureID] = tags
	for _, tag := range tags {
		bucket, ok := ix.byTag[tag]
		if !ok {
			bucket = make(map[string]struct{})
			ix.byTag[tag] = bucket
		}
		bucket[featureID] = struct{}{}
	}
}

// unlinkLocked drops every membership of featureID and prunes empty buckets.
func (ix *Index) unlinkLocked(featureID string) {
	for _, tag := range ix.byFeature[featureID] {
		bucket := ix.byTag[tag]
		delete(bucket, featureID)
		if len(bucket) == 0 {
			delete(ix.byTag, tag)
		}
	}
	delete(ix.byFeature, featureID)
}
