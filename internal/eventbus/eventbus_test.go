package eventbus

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.Subscribe()
	b.Publish("hello")
	select {
	case e := <-sub:
		if e != "hello" {
			t.Fatalf("got %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestBusNonBlocking(t *testing.T) {
	b := New()
	defer b.Close()
	b.Subscribe() // never drained
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestBusSubscribeBuffered(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.SubscribeBuffered(2)
	for i := 0; i < 3; i++ {
		b.Publish(i)
	}
	if got := len(sub); got != 2 {
		t.Fatalf("buffered = %d, want 2", got)
	}
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", b.Dropped())
	}

	// A non-positive size falls back to the default capacity.
	if got := cap(b.SubscribeBuffered(0)); got != DefaultSubscriberBuffer {
		t.Fatalf("default cap = %d, want %d", got, DefaultSubscriberBuffer)
	}
}

func TestBusDroppedCounts(t *testing.T) {
	b := New()
	defer b.Close()
	b.SubscribeBuffered(1) // never drained
	for i := 0; i < 5; i++ {
		b.Publish(i)
	}
	if b.Dropped() != 4 {
		t.Fatalf("dropped = %d, want 4", b.Dropped())
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel not closed")
	}
}

func TestTypedBus(t *testing.T) {
	b := NewTyped[int]()
	defer b.Close()
	sub := b.Subscribe()
	b.Publish(42)
	select {
	case v := <-sub:
		if v != 42 {
			t.Fatalf("got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	b := New()
	b.Subscribe()
	b.Close()
	b.Publish("late") // must not panic
	b.Close()         // idempotent
}
