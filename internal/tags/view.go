package tags

import (
	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/store"
)

// FeaturesByTag returns the stored features carrying tag, in id order.
func FeaturesByTag(s *store.Store, ix *Index, tag string) []*entity.Feature {
	ids := ix.ByTag(tag)
	out := make([]*entity.Feature, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.Feature(id); ok {
			out = append(out, f)
		}
	}
	return out
}
