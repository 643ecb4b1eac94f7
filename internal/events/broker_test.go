package events

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryPublishSubscribe(t *testing.T) {
	b := NewMemory()
	topic := "j1"
	ch := b.Subscribe(topic)

	evt := Event{Type: "job.queued", Data: map[string]any{"x": 1}}
	b.Publish(topic, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["x"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(topic, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	b.Unsubscribe(topic, ch) // second call is a no-op
	if b.Subscribers(topic) != 0 {
		t.Fatal("topic should have no subscribers")
	}
}

func TestMemoryPublishDoesNotBlock(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("j")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("j", Event{Type: "tick"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	b.Unsubscribe("j", ch)
}

func TestRedisBrokerRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedis("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer b.Close()

	ch := b.Subscribe("j42")
	b.Publish("j42", Event{Type: "job.succeeded", Data: map[string]any{"jobId": "j42"}})
	select {
	case got := <-ch:
		if got.Type != "job.succeeded" || got.Data["jobId"] != "j42" {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}

	b.Unsubscribe("j42", ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}
