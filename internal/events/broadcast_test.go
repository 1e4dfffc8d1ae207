package events

import (
	"context"
	"errors"
	"testing"

	"backtester/internal/domain"
)

func TestBroadcasterDelivers(t *testing.T) {
	b := NewBroadcaster()
	id1, ch1 := b.Subscribe(1)
	_, ch2 := b.Subscribe(1)
	if b.Subscribers() != 2 {
		t.Fatalf("Subscribers() = %d, want 2", b.Subscribers())
	}

	if err := b.PublishRun(context.Background(), sampleRun()); err != nil {
		t.Fatalf("PublishRun: %v", err)
	}
	for i, ch := range []<-chan domain.Run{ch1, ch2} {
		select {
		case run := <-ch:
			if run.ID != "run-42" {
				t.Errorf("subscriber %d got %s, want run-42", i, run.ID)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}

	b.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Error("unsubscribed channel should be closed")
	}
	if b.Subscribers() != 1 {
		t.Errorf("Subscribers() after Unsubscribe = %d, want 1", b.Subscribers())
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe(1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.PublishRun(ctx, sampleRun()); err != nil {
			t.Fatalf("PublishRun: %v", err)
		}
	}
	if len(ch) != 1 {
		t.Errorf("buffered events = %d, want 1", len(ch))
	}
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe(1)
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}
	_, late := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed")
	}
}

func TestMulti(t *testing.T) {
	boom := errors.New("broker unreachable")
	ok := &fakeWriter{}
	failing := &fakeWriter{err: boom}
	b := NewBroadcaster()
	_, ch := b.Subscribe(1)

	m := Multi{newKafkaPublisher(failing, "t"), newKafkaPublisher(ok, "t"), b}
	err := m.PublishRun(context.Background(), sampleRun())
	if !errors.Is(err, boom) {
		t.Errorf("PublishRun error = %v, want wrapped %v", err, boom)
	}
	if len(ok.msgs) != 1 {
		t.Errorf("healthy publisher got %d messages, want 1", len(ok.msgs))
	}
	if len(ch) != 1 {
		t.Errorf("broadcast subscriber got %d events, want 1", len(ch))
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !ok.closed || !failing.closed {
		t.Error("Close did not close every publisher")
	}
}
