package event

import (
	"testing"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	bus.Publish(StakeEvent{BaseEvent: BaseEvent{Seq: 7}, Amount: 100})

	for i, ch := range []<-chan Notification{a, b} {
		n := <-ch
		ev, ok := n.(StakeEvent)
		if !ok {
			t.Fatalf("subscriber %d: expected StakeEvent, got %T", i, n)
		}
		if ev.GetSeq() != 7 || ev.Amount != 100 {
			t.Errorf("subscriber %d: unexpected event %+v", i, ev)
		}
	}
}

func TestBus_NonBlocking(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)

	bus.Publish(UnstakeEvent{BaseEvent: BaseEvent{Seq: 1}})
	bus.Publish(UnstakeEvent{BaseEvent: BaseEvent{Seq: 2}})

	if bus.Dropped() != 1 {
		t.Errorf("Expected 1 dropped, got %d", bus.Dropped())
	}
	if n := <-ch; n.GetSeq() != 1 {
		t.Errorf("Expected seq 1, got %d", n.GetSeq())
	}
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)
	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("Expected closed channel")
	}

	late := bus.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("Subscribing after close should return a closed channel")
	}

	// Publishing after close is a no-op
	bus.Publish(PriceUpdateEvent{})
}
