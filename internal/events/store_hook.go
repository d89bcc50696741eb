package events

import (
	"github.com/randalmurphal/featureplus/internal/entity"
)

// StoreHook publishes cache changes. It implements store.Indexer; attach it
// after the real indices so subscribers only hear about fully indexed state.
type StoreHook struct {
	pub Publisher
}

// NewStoreHook creates a hook publishing to pub.
func NewStoreHook(pub Publisher) *StoreHook {
	return &StoreHook{pub: pub}
}

// OnPut implements store.Indexer.
func (h *StoreHook) OnPut(_, e entity.Entity) {
	h.pub.Publish(NewEvent(EventEntityPut, e.Key().String(), nil))
}

// OnRemove implements store.Indexer.
func (h *StoreHook) OnRemove(prev entity.Entity) {
	h.pub.Publish(NewEvent(EventEntityRemoved, prev.Key().String(), nil))
}

// OnRekey implements store.Indexer. The event is published on the old key's
// topic, where existing subscribers are listening.
func (h *StoreHook) OnRekey(old entity.Key, newID string) {
	to := entity.Key{Kind: old.Kind, ID: newID}
	h.pub.Publish(NewEvent(EventEntityRekeyed, old.String(), RekeyData{From: old.String(), To: to.String()}))
}

// OnReset implements store.Indexer.
func (h *StoreHook) OnReset() {}
