package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	if b.Count() != 2 {
		t.Errorf("Count() = %d, want 2", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Errorf("Count() = %d, want 1", b.Count())
	}

	// Channel is closed after unsubscribe.
	select {
	case _, ok := <-ch1:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed")
	}

	b.Unsubscribe(ch2)
}

func TestPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventCreate, Path: "docs/report.pdf", Size: 1024})

	select {
	case event := <-ch:
		if event.Type != EventCreate {
			t.Errorf("Type = %q", event.Type)
		}
		if event.Path != "docs/report.pdf" {
			t.Errorf("Path = %q", event.Path)
		}
		if event.Size != 1024 {
			t.Errorf("Size = %d", event.Size)
		}
		if event.Timestamp == 0 {
			t.Error("Timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Error("event not received")
	}
}

func TestPublishRenameCarriesNewPath(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventRename, Path: "old.txt", NewPath: "new.txt"})

	select {
	case event := <-ch:
		if event.NewPath != "new.txt" {
			t.Errorf("NewPath = %q", event.NewPath)
		}
	case <-time.After(time.Second):
		t.Error("event not received")
	}
}

func TestPublishToAll(t *testing.T) {
	b := NewBroadcaster()
	subs := make([]chan Event, 3)
	for i := range subs {
		subs[i] = b.Subscribe()
	}

	b.Publish(Event{Type: EventDelete, Path: "gone.txt"})

	for i, ch := range subs {
		select {
		case event := <-ch:
			if event.Path != "gone.txt" {
				t.Errorf("subscriber %d: Path = %q", i, event.Path)
			}
		case <-time.After(time.Second):
			t.Errorf("subscriber %d: event not received", i)
		}
	}
	for _, ch := range subs {
		b.Unsubscribe(ch)
	}
}

func TestPublishDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Overfill the buffer; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(Event{Type: EventModify, Path: "busy.txt"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on slow consumer")
	}
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(Event{Type: EventMove, Path: "a/f.txt", NewPath: "b/f.txt", Timestamp: 42})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != "move" || decoded["newPath"] != "b/f.txt" {
		t.Errorf("decoded = %v", decoded)
	}
	if _, present := decoded["size"]; present {
		t.Error("zero size should be omitted")
	}
}
