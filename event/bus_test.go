package event_test

import (
	"sync"
	"testing"
	"time"

	"github.com/xraph/foreman/event"
)

func TestBus_PublishReachesAllTopicSubscribers(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	first := bus.Subscribe(event.TopicActivated)
	second := bus.Subscribe(event.TopicActivated)
	other := bus.Subscribe(event.TopicDeactivated)

	msg := event.Message{MasterID: 7, Name: "A", Active: true}
	bus.Publish(event.TopicActivated, msg)

	for _, sub := range []*event.Subscription{first, second} {
		select {
		case got := <-sub.C():
			if got != msg {
				t.Errorf("received %+v, want %+v", got, msg)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the message")
		}
	}

	select {
	case got := <-other.C():
		t.Errorf("subscriber on another topic received %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	sub := bus.Subscribe(event.TopicActivated)
	sub.Cancel()
	// Cancel is idempotent.
	sub.Cancel()

	bus.Publish(event.TopicActivated, event.Message{MasterID: 1})

	if _, ok := <-sub.C(); ok {
		t.Error("cancelled subscription channel should be closed and empty")
	}
}

func TestBus_CloseCancelsAll(t *testing.T) {
	bus := event.NewBus()

	sub := bus.Subscribe(event.TopicDeactivated)
	bus.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("subscription channel should be closed after bus close")
	}

	// Publish after close is a no-op.
	bus.Publish(event.TopicDeactivated, event.Message{MasterID: 1})
}

func TestBus_CancelUnblocksStalledPublish(t *testing.T) {
	bus := event.NewBus(event.WithBuffer(1))
	defer bus.Close()

	sub := bus.Subscribe(event.TopicActivated)
	// Fill the buffer; the next publish to this subscriber blocks.
	bus.Publish(event.TopicActivated, event.Message{MasterID: 1})

	published := make(chan struct{})
	go func() {
		bus.Publish(event.TopicActivated, event.Message{MasterID: 2})
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("publish should block on a full buffer")
	case <-time.After(50 * time.Millisecond):
	}

	sub.Cancel()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("cancel did not unblock the stalled publish")
	}
}

func TestBus_ConcurrentPublishAndCancel(t *testing.T) {
	bus := event.NewBus(event.WithBuffer(1))
	defer bus.Close()

	var wg sync.WaitGroup
	var subs []*event.Subscription
	for range 16 {
		sub := bus.Subscribe(event.TopicActivated)
		subs = append(subs, sub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range sub.C() {
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, s := range subs {
			s.Cancel()
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 64 {
			bus.Publish(event.TopicActivated, event.Message{MasterID: int64(i)})
		}
	}()
	wg.Wait()
}
