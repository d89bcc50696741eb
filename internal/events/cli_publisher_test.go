package events

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/featureplus/internal/entity"
)

func TestCLIPublisher_PrintsRollbacks(t *testing.T) {
	var buf bytes.Buffer
	pub := NewCLIPublisher(&buf)

	pub.Publish(NewEvent(EventOpCommitted, "feature/1", OpData{Op: "update"}))
	pub.Publish(NewEvent(EventOpRolledBack, "feature/2", OpData{Op: "create", Error: "remote request failed"}))
	pub.Publish(NewEvent(EventEntityPut, "feature/3", nil))

	out := buf.String()
	if strings.Contains(out, "committed") {
		t.Errorf("commits should be quiet without verbose: %q", out)
	}
	if !strings.Contains(out, "rolled back create feature/2: remote request failed") {
		t.Errorf("missing rollback line: %q", out)
	}
}

func TestCLIPublisher_Verbose(t *testing.T) {
	var buf bytes.Buffer
	pub := NewCLIPublisher(&buf, WithVerbose(true))
	pub.Publish(NewEvent(EventOpCommitted, "feature/1", OpData{Op: "update"}))

	if !strings.Contains(buf.String(), "committed update feature/1") {
		t.Errorf("missing commit line: %q", buf.String())
	}
}

func TestCLIPublisher_FansOut(t *testing.T) {
	inner := NewMemoryPublisher()
	defer inner.Close()

	var buf bytes.Buffer
	pub := NewCLIPublisher(&buf, WithInnerPublisher(inner))
	ch := pub.Subscribe("feature/1")
	pub.Publish(NewEvent(EventEntityPut, "feature/1", nil))

	select {
	case <-ch:
	case <-time.After(100 * time.Millisecond):
		t.Error("inner subscriber should receive the event")
	}
	pub.Unsubscribe("feature/1", ch)
}

func TestCLIPublisher_NoInner(t *testing.T) {
	pub := NewCLIPublisher(&bytes.Buffer{})
	if _, ok := <-pub.Subscribe("x"); ok {
		t.Error("expected closed channel")
	}
	pub.Close()
}

func TestStoreHook(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()
	ch := pub.Subscribe(GlobalTopic)

	hook := NewStoreHook(pub)
	f := entity.NewFeature("p1", "x")
	f.ID = "tmp-1"
	hook.OnPut(nil, f)
	hook.OnRekey(f.Key(), "7")
	f.ID = "7"
	hook.OnRemove(f)
	hook.OnReset()

	want := []struct {
		typ   EventType
		topic string
	}{
		{EventEntityPut, "feature/tmp-1"},
		{EventEntityRekeyed, "feature/tmp-1"},
		{EventEntityRemoved, "feature/7"},
	}
	for _, w := range want {
		e := <-ch
		if e.Type != w.typ || e.Topic != w.topic {
			t.Errorf("got %s %s, want %s %s", e.Type, e.Topic, w.typ, w.topic)
		}
	}
	if len(ch) != 0 {
		t.Errorf("unexpected extra events: %d", len(ch))
	}
}
