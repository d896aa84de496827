package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/scriptbook/pkg/ports"
	"go.uber.org/zap/zaptest"
)

var _ ports.EventBus = (*InMemoryEventBus)(nil)

func TestPublish_OrderedPerSubscriber(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	_ = bus.Subscribe(ctx, "topic", func(ctx context.Context, e ports.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.ID)
		if len(got) == 100 {
			close(done)
		}
		return nil
	})

	for i := 0; i < 100; i++ {
		_ = bus.Publish(ctx, "topic", ports.Event{ID: fmt.Sprint(i)})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, id := range got {
		if id != fmt.Sprint(i) {
			t.Fatalf("event %d delivered out of order: %s", i, id)
		}
	}
}

func TestSubscribe_TopicsAreIsolated(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	defer bus.Close()

	received := make(chan ports.Event, 2)
	_ = bus.Subscribe(context.Background(), "a", func(ctx context.Context, e ports.Event) error {
		received <- e
		return nil
	})

	_ = bus.Publish(context.Background(), "b", ports.Event{ID: "b"})
	_ = bus.Publish(context.Background(), "a", ports.Event{ID: "a"})

	select {
	case e := <-received:
		if e.ID != "a" {
			t.Errorf("received event from wrong topic: %s", e.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan struct{}, 1)
	_ = bus.Subscribe(ctx, "topic", func(ctx context.Context, e ports.Event) error {
		received <- struct{}{}
		return nil
	})

	cancel()
	time.Sleep(20 * time.Millisecond)
	_ = bus.Publish(context.Background(), "topic", ports.Event{ID: "x"})

	select {
	case <-received:
		t.Error("cancelled subscription received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_SlowHandlerDoesNotBlock(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	defer bus.Close()

	release := make(chan struct{})
	defer close(release)
	_ = bus.Subscribe(context.Background(), "topic", func(ctx context.Context, e ports.Event) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = bus.Publish(context.Background(), "topic", ports.Event{ID: fmt.Sprint(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow handler")
	}
}

func TestClose(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	_ = bus.Close()

	if err := bus.Publish(context.Background(), "topic", ports.Event{}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}
