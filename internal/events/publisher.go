package events

import (
	"slices"
	"strings"
	"sync"
)

// GlobalTopic receives every event.
const GlobalTopic = "*"

// KindTopic returns the topic that receives events for every entity of one
// kind, e.g. "feature/*". List and tree views subscribe to it.
func KindTopic(kind string) string { return kind + "/*" }

// Publisher fans events out to subscribers. Topics are entity keys
// ("feature/12"), kind topics or GlobalTopic.
type Publisher interface {
	Publish(event Event)
	Subscribe(topic string) <-chan Event
	Unsubscribe(topic string, ch <-chan Event)
	Close()
}

// MemoryPublisher delivers events over buffered channels. Delivery never
// blocks the publisher: a subscriber whose buffer is full misses the event.
//
// A subscription to a temporary key follows the entity when it is rekeyed,
// so a view opened on an unsaved feature keeps receiving its events.
type MemoryPublisher struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	buffer int
	closed bool
}

// PublisherOption configures a MemoryPublisher.
type PublisherOption func(*MemoryPublisher)

// WithBufferSize sets each subscription's channel capacity.
func WithBufferSize(size int) PublisherOption {
	return func(p *MemoryPublisher) {
		if size > 0 {
			p.buffer = size
		}
	}
}

// NewMemoryPublisher creates a publisher with a default buffer of 100.
func NewMemoryPublisher(opts ...PublisherOption) *MemoryPublisher {
	p := &MemoryPublisher{subs: make(map[string][]chan Event), buffer: 100}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish delivers event to subscribers of its topic, of its kind topic and
// of GlobalTopic.
func (p *MemoryPublisher) Publish(event Event) {
	if event.Type == EventEntityRekeyed {
		p.publishRekey(event)
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.closed {
		p.deliverLocked(event)
	}
}

// publishRekey delivers on the old key, then hands the old key's
// subscriptions to the new key.
func (p *MemoryPublisher) publishRekey(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.deliverLocked(event)

	data, ok := event.Data.(RekeyData)
	if !ok || data.To == "" || data.To == event.Topic {
		return
	}
	if moved, ok := p.subs[event.Topic]; ok {
		p.subs[data.To] = append(p.subs[data.To], moved...)
		delete(p.subs, event.Topic)
	}
}

func (p *MemoryPublisher) deliverLocked(event Event) {
	for _, topic := range reach(event.Topic) {
		for _, ch := range p.subs[topic] {
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// reach lists the subscription topics an event on topic is delivered to.
func reach(topic string) []string {
	if topic == GlobalTopic {
		return []string{GlobalTopic}
	}
	out := []string{topic}
	if kind, id, ok := strings.Cut(topic, "/"); ok && id != "*" {
		out = append(out, KindTopic(kind))
	}
	return append(out, GlobalTopic)
}

// Subscribe returns a channel receiving events for topic. After Close it
// returns a closed channel.
func (p *MemoryPublisher) Subscribe(topic string) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return closedChan()
	}
	ch := make(chan Event, p.buffer)
	p.subs[topic] = append(p.subs[topic], ch)
	return ch
}

// Unsubscribe removes and closes ch. A subscription that followed a rekey is
// found under its new key.
func (p *MemoryPublisher) Unsubscribe(topic string, ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.removeLocked(topic, ch) {
		return
	}
	for t := range p.subs {
		if p.removeLocked(t, ch) {
			return
		}
	}
}

func (p *MemoryPublisher) removeLocked(topic string, ch <-chan Event) bool {
	subs := p.subs[topic]
	i := slices.IndexFunc(subs, func(c chan Event) bool { return c == ch })
	if i < 0 {
		return false
	}
	close(subs[i])
	subs = slices.Delete(subs, i, i+1)
	if len(subs) == 0 {
		delete(p.subs, topic)
	} else {
		p.subs[topic] = subs
	}
	return true
}

// Close closes every subscription. Later publishes are dropped.
func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, subs := range p.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	p.subs = nil
}

// SubscriberCount returns the number of subscriptions on topic.
func (p *MemoryPublisher) SubscriberCount(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs[topic])
}

func closedChan() <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

// NopPublisher drops everything.
type NopPublisher struct{}

// NewNopPublisher creates a no-op publisher.
func NewNopPublisher() *NopPublisher { return &NopPublisher{} }

func (*NopPublisher) Publish(Event)                    {}
func (*NopPublisher) Subscribe(string) <-chan Event    { return closedChan() }
func (*NopPublisher) Unsubscribe(string, <-chan Event) {}
func (*NopPublisher) Close()                           {}
