package events

import (
	"sync"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	before := time.Now()
	event := NewEvent(EventEntityPut, "feature/1", nil)
	after := time.Now()

	if event.Type != EventEntityPut {
		t.Errorf("expected type %s, got %s", EventEntityPut, event.Type)
	}
	if event.Topic != "feature/1" {
		t.Errorf("expected topic feature/1, got %s", event.Topic)
	}
	if event.Time.Before(before) || event.Time.After(after) {
		t.Errorf("event time %v not between %v and %v", event.Time, before, after)
	}
}

func TestMemoryPublisher_PublishAndSubscribe(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	ch := pub.Subscribe("feature/1")
	pub.Publish(NewEvent(EventOpCommitted, "feature/1", OpData{Op: "update"}))

	select {
	case received := <-ch:
		if received.Type != EventOpCommitted {
			t.Errorf("expected type %s, got %s", EventOpCommitted, received.Type)
		}
		if d, ok := received.Data.(OpData); !ok || d.Op != "update" {
			t.Errorf("unexpected data %v", received.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestMemoryPublisher_TopicIsolation(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	ch1 := pub.Subscribe("feature/1")
	ch2 := pub.Subscribe("feature/2")

	pub.Publish(NewEvent(EventEntityPut, "feature/1", nil))

	select {
	case <-ch1:
	case <-time.After(100 * time.Millisecond):
		t.Error("feature/1 subscriber should receive")
	}
	select {
	case e := <-ch2:
		t.Errorf("feature/2 subscriber should not receive, got %v", e)
	default:
	}
}

func TestMemoryPublisher_GlobalSubscription(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	global := pub.Subscribe(GlobalTopic)
	pub.Publish(NewEvent(EventEntityPut, "feature/1", nil))
	pub.Publish(NewEvent(EventEntityRemoved, "task/3", nil))

	for _, want := range []string{"feature/1", "task/3"} {
		select {
		case e := <-global:
			if e.Topic != want {
				t.Errorf("expected %s, got %s", want, e.Topic)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestMemoryPublisher_KindSubscription(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	features := pub.Subscribe(KindTopic("feature"))
	pub.Publish(NewEvent(EventEntityPut, "task/3", nil))
	pub.Publish(NewEvent(EventEntityPut, "feature/1", nil))

	select {
	case e := <-features:
		if e.Topic != "feature/1" {
			t.Errorf("expected feature/1, got %s", e.Topic)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("kind subscriber should receive feature events")
	}
	if len(features) != 0 {
		t.Errorf("kind subscriber got events for another kind")
	}
}

func TestMemoryPublisher_SubscriptionFollowsRekey(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	ch := pub.Subscribe("feature/tmp-1")
	pub.Publish(NewEvent(EventEntityRekeyed, "feature/tmp-1", RekeyData{From: "feature/tmp-1", To: "feature/7"}))
	pub.Publish(NewEvent(EventOpCommitted, "feature/7", OpData{Op: "create"}))

	for _, want := range []EventType{EventEntityRekeyed, EventOpCommitted} {
		select {
		case e := <-ch:
			if e.Type != want {
				t.Errorf("expected %s, got %s", want, e.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
	if pub.SubscriberCount("feature/tmp-1") != 0 || pub.SubscriberCount("feature/7") != 1 {
		t.Error("subscription should have moved to the server key")
	}

	// the caller still unsubscribes with the key it subscribed to
	pub.Unsubscribe("feature/tmp-1", ch)
	if pub.SubscriberCount("feature/7") != 0 {
		t.Error("unsubscribe should find the moved subscription")
	}
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed")
	}
}

func TestMemoryPublisher_FullBufferDoesNotBlock(t *testing.T) {
	pub := NewMemoryPublisher(WithBufferSize(1))
	defer pub.Close()

	ch := pub.Subscribe("feature/1")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			pub.Publish(NewEvent(EventEntityPut, "feature/1", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(ch) != 1 {
		t.Errorf("expected 1 buffered event, got %d", len(ch))
	}
}

func TestMemoryPublisher_Unsubscribe(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	ch := pub.Subscribe("feature/1")
	if pub.SubscriberCount("feature/1") != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	pub.Unsubscribe("feature/1", ch)
	if pub.SubscriberCount("feature/1") != 0 {
		t.Errorf("expected 0 subscribers")
	}
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed")
	}
}

func TestMemoryPublisher_Close(t *testing.T) {
	pub := NewMemoryPublisher()
	ch := pub.Subscribe("feature/1")
	pub.Close()
	pub.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if _, ok := <-pub.Subscribe("feature/1"); ok {
		t.Error("subscribe after close should return a closed channel")
	}
	// publishing after close is a no-op
	pub.Publish(NewEvent(EventEntityPut, "feature/1", nil))
}

func TestMemoryPublisher_Concurrent(t *testing.T) {
	pub := NewMemoryPublisher(WithBufferSize(1000))
	defer pub.Close()

	ch := pub.Subscribe(GlobalTopic)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				pub.Publish(NewEvent(EventEntityPut, "feature/1", nil))
			}
		}()
	}
	wg.Wait()

	if len(ch) != 100 {
		t.Errorf("expected 100 events, got %d", len(ch))
	}
}

func TestNopPublisher(t *testing.T) {
	pub := NewNopPublisher()
	pub.Publish(NewEvent(EventEntityPut, "feature/1", nil))
	if _, ok := <-pub.Subscribe("feature/1"); ok {
		t.Error("nop subscription should be closed")
	}
	pub.Unsubscribe("feature/1", nil)
	pub.Close()
}
